// dlq-replay перечитывает artcart.dlq и возвращает записи в рабочие topics.
// По умолчанию работает в режиме dry-run и только печатает кандидатов.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second

	envKafkaBrokers    = "KAFKA_BROKERS"
	headerReplayedFrom = "x-replayed-from"
)

type config struct {
	brokers     []string
	sourceTopic string
	// пустой targetTopic: topic берётся из записи или по типу агрегата.
	targetTopic string
	eventType   string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func (c config) mode() string {
	if c.execute {
		return "execute"
	}
	return "dry-run"
}

type replayMessage struct {
	topic     string
	key       string
	eventType string
	value     []byte
}

// outboxRecord пишет outbox-воркер; приходит внутри Envelope.Payload.
type outboxRecord struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s saramaSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

// kafkaDeps — соединения, которые нужны одному прогону.
type kafkaDeps struct {
	client   offsetClient
	source   partitionConsumerSource
	producer replayProducer
}

func (d kafkaDeps) close() {
	if d.producer != nil {
		_ = d.producer.Close()
	}
	if d.source != nil {
		_ = d.source.Close()
	}
	if d.client != nil {
		_ = d.client.Close()
	}
}

var dialKafka = func(cfg config) (kafkaDeps, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.ClientID = "artcart-dlq-replay"
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return kafkaDeps{}, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return kafkaDeps{}, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := kafkaDeps{client: client, source: saramaSource{consumer: consumer}}
	if !cfg.execute {
		return deps, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.ClientID = "artcart-dlq-replay"
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		deps.close()
		return kafkaDeps{}, fmt.Errorf("create kafka producer: %w", err)
	}
	deps.producer = producer
	return deps, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := parseConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func parseConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("dlq-replay", flag.ContinueOnError)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers, comma-separated (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to scan")
	fs.StringVar(&cfg.targetTopic, "target-topic", "", "force every replayed record into this topic")
	fs.StringVar(&cfg.eventType, "event-type", "", "replay only this event type, e.g. "+domain.EventCartNotification)
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max records to scan across partitions")
	fs.BoolVar(&cfg.execute, "execute", false, "publish records; without it only candidates are logged")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the newest records of each partition")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop a partition after this much silence")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" && lookup != nil {
		brokersRaw, _ = lookup(envKafkaBrokers)
	}
	cfg.brokers = parseBrokers(brokersRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)
	cfg.eventType = strings.TrimSpace(cfg.eventType)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case cfg.sourceTopic == "":
		return config{}, errors.New("source-topic is required")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	deps, err := dialKafka(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	_, err = newReplayer(cfg, deps).run(ctx)
	return err
}

type replayStats struct {
	scanned  int
	replayed int
	skipped  int
}

func (s *replayStats) add(other replayStats) {
	s.scanned += other.scanned
	s.replayed += other.replayed
	s.skipped += other.skipped
}

type replayer struct {
	cfg    config
	deps   kafkaDeps
	logger *log.Entry
	now    func() time.Time
}

func newReplayer(cfg config, deps kafkaDeps) *replayer {
	return &replayer{
		cfg:  cfg,
		deps: deps,
		logger: log.WithFields(log.Fields{
			"component":    "dlq-replay",
			"source_topic": cfg.sourceTopic,
			"mode":         cfg.mode(),
		}),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *replayer) run(ctx context.Context) (replayStats, error) {
	var total replayStats
	if r.deps.client == nil || r.deps.source == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if r.cfg.execute && r.deps.producer == nil {
		return total, errors.New("producer is required in execute mode")
	}

	partitions, err := r.deps.client.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("list partitions of %s: %w", r.cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		r.logger.Warn("source topic has no partitions")
		return total, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		budget := r.cfg.limit - total.scanned
		if budget <= 0 {
			break
		}
		stats, err := r.replayPartition(ctx, partition, budget)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}

	r.logger.WithFields(log.Fields{
		"scanned":  total.scanned,
		"replayed": total.replayed,
		"skipped":  total.skipped,
	}).Info("dlq replay finished")
	return total, nil
}

// window возвращает полуинтервал [start, end) смещений для чтения.
func (r *replayer) window(partition int32, budget int) (int64, int64, error) {
	oldest, err := r.deps.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	newest, err := r.deps.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(newest-int64(budget), oldest)
	}
	return start, newest, nil
}

func (r *replayer) replayPartition(ctx context.Context, partition int32, budget int) (replayStats, error) {
	var stats replayStats

	start, end, err := r.window(partition, budget)
	if err != nil || start >= end {
		return stats, err
	}

	pc, err := r.deps.source.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for stats.scanned < budget {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return stats, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			replayed, err := r.handle(msg)
			if err != nil {
				return stats, err
			}
			stats.scanned++
			if replayed {
				stats.replayed++
			} else {
				stats.skipped++
			}

			if msg.Offset+1 >= end {
				return stats, nil
			}
		}
	}
	return stats, nil
}

// handle сообщает, была ли запись отобрана для повтора.
func (r *replayer) handle(msg *sarama.ConsumerMessage) (bool, error) {
	logger := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	replay, ok, err := extractReplayMessage(msg, r.cfg.targetTopic, r.now())
	if err != nil {
		logger.WithError(err).Warn("skip unsupported dlq record")
		return false, nil
	}
	if !ok || !matchesEventType(replay, r.cfg.eventType) {
		return false, nil
	}

	logger = logger.WithFields(log.Fields{
		"target_topic": replay.topic,
		"key":          replay.key,
		"event_type":   replay.eventType,
	})
	if !r.cfg.execute {
		logger.Info("dlq replay candidate")
		return true, nil
	}

	origin := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	if err := publishReplay(r.deps.producer, replay, origin, r.now()); err != nil {
		return false, fmt.Errorf("replay %s: %w", origin, err)
	}
	logger.Debug("dlq record replayed")
	return true, nil
}

func publishReplay(producer replayProducer, msg replayMessage, origin string, now time.Time) error {
	if producer == nil {
		return errors.New("producer is nil")
	}

	headers := []sarama.RecordHeader{{Key: []byte(headerReplayedFrom), Value: []byte(origin)}}
	if msg.eventType != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte(kafka.HeaderEventType), Value: []byte(msg.eventType)})
	}

	_, _, err := producer.SendMessage(&sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Headers:   headers,
		Timestamp: now,
	})
	return err
}

// extractReplayMessage восстанавливает исходную запись из DLQ.
// ok=false означает запись неизвестного формата.
func extractReplayMessage(msg *sarama.ConsumerMessage, targetTopic string, now time.Time) (replayMessage, bool, error) {
	if replay, ok := fromConsumerRecord(msg.Value); ok {
		if targetTopic != "" {
			replay.topic = targetTopic
		}
		return replay, true, nil
	}

	replay, ok, err := fromOutboxRecord(msg.Value, now)
	if err != nil || !ok {
		return replayMessage{}, false, err
	}
	if targetTopic != "" {
		replay.topic = targetTopic
	}
	return replay, true, nil
}

func fromConsumerRecord(raw []byte) (replayMessage, bool) {
	var record kafka.DeadLetter
	if err := json.Unmarshal(raw, &record); err != nil || record.OriginalValue == "" {
		return replayMessage{}, false
	}

	value := []byte(record.OriginalValue)
	original, _ := decodeEnvelope(value)

	topic := record.OriginalTopic
	if topic == "" {
		topic = kafka.TopicForAggregate(original.AggregateType)
	}
	return replayMessage{
		topic:     topic,
		key:       record.OriginalKey,
		eventType: string(original.EventType),
		value:     value,
	}, true
}

func fromOutboxRecord(raw []byte, now time.Time) (replayMessage, bool, error) {
	envelope, err := decodeEnvelope(raw)
	if err != nil || len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		return replayMessage{}, false, nil
	}

	var record outboxRecord
	if err := json.Unmarshal(envelope.Payload, &record); err != nil {
		return replayMessage{}, false, fmt.Errorf("decode outbox dlq record: %w", err)
	}
	if len(record.Payload) == 0 {
		return replayMessage{}, false, errors.New("outbox dlq record has no original payload")
	}

	original := domain.OutboxMessage{
		ID:            firstNonEmpty(record.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(record.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(record.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(record.EventType, string(envelope.EventType)),
		Payload:       record.Payload,
	}
	encoded, err := json.Marshal(kafka.NewEnvelope(original, now))
	if err != nil {
		return replayMessage{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}

	return replayMessage{
		topic:     kafka.TopicForAggregate(original.AggregateType),
		key:       firstNonEmpty(original.AggregateID, original.ID),
		eventType: original.EventType,
		value:     encoded,
	}, true, nil
}

func decodeEnvelope(raw []byte) (kafka.Envelope, error) {
	var envelope kafka.Envelope
	err := json.Unmarshal(raw, &envelope)
	return envelope, err
}

func matchesEventType(msg replayMessage, eventType string) bool {
	return eventType == "" || msg.eventType == eventType
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
