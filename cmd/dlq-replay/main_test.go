package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
	"github.com/vladislavdragonenkov/artcart/internal/messaging/kafka"
)

var replayNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestParseBrokers(t *testing.T) {
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, parseBrokers(" broker-1:9092, ,broker-2:9092 "))
	require.Empty(t, parseBrokers(" , "))
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(nil, envOf(map[string]string{envKafkaBrokers: "kafka:9092"}))
	require.NoError(t, err)

	require.Equal(t, []string{"kafka:9092"}, cfg.brokers)
	require.Equal(t, kafka.TopicDeadLetterQueue, cfg.sourceTopic)
	require.Empty(t, cfg.targetTopic)
	require.Empty(t, cfg.eventType)
	require.Equal(t, defaultReplayLimit, cfg.limit)
	require.Equal(t, defaultIdleTimeout, cfg.idleTimeout)
	require.False(t, cfg.execute)
	require.Equal(t, "dry-run", cfg.mode())
}

func TestParseConfig_FlagsWinOverEnv(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-brokers", "b1:9092,b2:9092",
		"-target-topic", " artcart.cart.events ",
		"-event-type", domain.EventCartNotification,
		"-limit", "7",
		"-execute",
		"-from-newest",
		"-idle-timeout", "250ms",
	}, envOf(map[string]string{envKafkaBrokers: "ignored:9092"}))
	require.NoError(t, err)

	require.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.brokers)
	require.Equal(t, kafka.TopicCartEvents, cfg.targetTopic)
	require.Equal(t, domain.EventCartNotification, cfg.eventType)
	require.Equal(t, 7, cfg.limit)
	require.True(t, cfg.fromNewest)
	require.Equal(t, 250*time.Millisecond, cfg.idleTimeout)
	require.Equal(t, "execute", cfg.mode())
}

func TestParseConfig_Validation(t *testing.T) {
	withBrokers := envOf(map[string]string{envKafkaBrokers: "kafka:9092"})

	tests := []struct {
		name    string
		args    []string
		lookup  func(string) (string, bool)
		wantErr string
	}{
		{name: "no brokers", lookup: envOf(nil), wantErr: "kafka brokers are required"},
		{name: "blank source topic", args: []string{"-source-topic", " "}, lookup: withBrokers, wantErr: "source-topic"},
		{name: "zero limit", args: []string{"-limit", "0"}, lookup: withBrokers, wantErr: "limit"},
		{name: "negative idle timeout", args: []string{"-idle-timeout", "-1s"}, lookup: withBrokers, wantErr: "idle-timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(tt.args, tt.lookup)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseConfig_Help(t *testing.T) {
	_, err := parseConfig([]string{"-h"}, envOf(nil))
	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestExtractReplayMessage_ConsumerRecord(t *testing.T) {
	original := mustJSON(t, kafka.NewEnvelope(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "ORD-100001",
		EventType:     domain.EventOrderPlaced,
		Payload:       []byte(`{"order_id":"ORD-100001"}`),
	}, replayNow))

	record := mustJSON(t, map[string]any{
		"original_topic": kafka.TopicOrderEvents,
		"original_key":   "ORD-100001",
		"original_value": string(original),
		"error_message":  "handler failed",
	})

	got, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: record}, "", replayNow)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kafka.TopicOrderEvents, got.topic)
	require.Equal(t, "ORD-100001", got.key)
	require.Equal(t, domain.EventOrderPlaced, got.eventType)
	require.JSONEq(t, string(original), string(got.value))
}

func TestExtractReplayMessage_ConsumerRecordWithoutTopicRoutesByAggregate(t *testing.T) {
	original := mustJSON(t, kafka.NewEnvelope(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: domain.AggregateCart,
		AggregateID:   "session-7",
		EventType:     domain.EventCartNotification,
		Payload:       []byte(`{"message":"Added to cart"}`),
	}, replayNow))
	record := mustJSON(t, map[string]any{"original_key": "session-7", "original_value": string(original)})

	got, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: record}, "", replayNow)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kafka.TopicCartEvents, got.topic)
	require.Equal(t, domain.EventCartNotification, got.eventType)
}

func TestExtractReplayMessage_OutboxRecord(t *testing.T) {
	raw := outboxDLQRecord(t, domain.AggregateCart, "session-9", domain.EventCartNotification, `{"message":"Removed from cart"}`)

	got, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: raw}, "", replayNow)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kafka.TopicCartEvents, got.topic)
	require.Equal(t, "session-9", got.key)
	require.Equal(t, domain.EventCartNotification, got.eventType)

	var envelope kafka.Envelope
	require.NoError(t, json.Unmarshal(got.value, &envelope))
	require.Equal(t, "outbox-9", envelope.ID)
	require.Equal(t, domain.AggregateCart, envelope.AggregateType)
	require.JSONEq(t, `{"message":"Removed from cart"}`, string(envelope.Payload))
	require.True(t, envelope.PublishedAt.Equal(replayNow))

	overridden, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: raw}, "artcart.replay", replayNow)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "artcart.replay", overridden.topic)
}

func TestExtractReplayMessage_Rejects(t *testing.T) {
	brokenNested := mustJSON(t, map[string]any{
		"id":             "outbox-3",
		"aggregate_type": domain.AggregateOrder,
		"payload":        "not-an-object",
	})
	emptyNested := mustJSON(t, map[string]any{
		"id":      "outbox-4",
		"payload": map[string]any{"outbox_id": "outbox-4"},
	})

	tests := []struct {
		name    string
		raw     []byte
		wantErr bool
	}{
		{name: "not json", raw: []byte("plain text")},
		{name: "envelope without payload", raw: []byte(`{"id":"x","payload":null}`)},
		{name: "nested payload is not a record", raw: brokenNested, wantErr: true},
		{name: "nested record without original payload", raw: emptyNested, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: tt.raw}, "", replayNow)
			require.False(t, ok)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMatchesEventType(t *testing.T) {
	msg := replayMessage{eventType: domain.EventOrderPlaced}
	require.True(t, matchesEventType(msg, ""))
	require.True(t, matchesEventType(msg, domain.EventOrderPlaced))
	require.False(t, matchesEventType(msg, domain.EventCartNotification))
}

func TestPublishReplay(t *testing.T) {
	require.Error(t, publishReplay(nil, replayMessage{}, "", replayNow))

	producer := &stubReplayProducer{}
	msg := replayMessage{topic: kafka.TopicCartEvents, key: "session-1", eventType: domain.EventCartNotification, value: []byte(`{}`)}
	require.NoError(t, publishReplay(producer, msg, "artcart.dlq/0/12", replayNow))

	sent := producer.sent[0]
	require.Equal(t, kafka.TopicCartEvents, sent.Topic)
	require.Equal(t, replayNow, sent.Timestamp)
	require.Equal(t, "artcart.dlq/0/12", headerValue(sent, headerReplayedFrom))
	require.Equal(t, domain.EventCartNotification, headerValue(sent, kafka.HeaderEventType))

	producer.sendErr = errors.New("broker down")
	require.ErrorContains(t, publishReplay(producer, msg, "artcart.dlq/0/13", replayNow), "broker down")
}

func TestReplayer_DryRunLogsWithoutPublishing(t *testing.T) {
	client := singlePartitionClient(0, 2)
	source := &stubPartitionSource{consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(
		dlqMessage(t, 0, domain.AggregateCart, domain.EventCartNotification),
		dlqMessage(t, 1, domain.AggregateOrder, domain.EventOrderPlaced),
	)}}

	stats, err := testReplayer(testConfig(), kafkaDeps{client: client, source: source}).run(context.Background())
	require.NoError(t, err)
	require.Equal(t, replayStats{scanned: 2, replayed: 2}, stats)
}

func TestReplayer_ExecuteFiltersByEventType(t *testing.T) {
	cfg := testConfig()
	cfg.execute = true
	cfg.eventType = domain.EventOrderPlaced

	client := singlePartitionClient(0, 3)
	source := &stubPartitionSource{consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(
		dlqMessage(t, 0, domain.AggregateCart, domain.EventCartNotification),
		dlqMessage(t, 1, domain.AggregateOrder, domain.EventOrderPlaced),
		&sarama.ConsumerMessage{Topic: kafka.TopicDeadLetterQueue, Offset: 2, Value: []byte("garbage")},
	)}}
	producer := &stubReplayProducer{}

	stats, err := testReplayer(cfg, kafkaDeps{client: client, source: source, producer: producer}).run(context.Background())
	require.NoError(t, err)
	require.Equal(t, replayStats{scanned: 3, replayed: 1, skipped: 2}, stats)
	require.Len(t, producer.sent, 1)
	require.Equal(t, kafka.TopicOrderEvents, producer.sent[0].Topic)
	require.Equal(t, "artcart.dlq/0/1", headerValue(producer.sent[0], headerReplayedFrom))
}

func TestReplayer_LimitSpansPartitions(t *testing.T) {
	cfg := testConfig()
	cfg.limit = 3

	client := &stubOffsetClient{
		partitions: []int32{1, 0},
		offsets:    map[int32]offsetRange{0: {newest: 2}, 1: {newest: 2}},
	}
	source := &stubPartitionSource{consumers: map[int32]partitionConsumer{
		0: closedPartitionConsumer(dlqMessage(t, 0, domain.AggregateCart, domain.EventCartNotification), dlqMessage(t, 1, domain.AggregateCart, domain.EventCartNotification)),
		1: closedPartitionConsumer(dlqMessage(t, 0, domain.AggregateOrder, domain.EventOrderPlaced), dlqMessage(t, 1, domain.AggregateOrder, domain.EventOrderPlaced)),
	}}

	stats, err := testReplayer(cfg, kafkaDeps{client: client, source: source}).run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.scanned)
	require.Equal(t, []consumeCall{{partition: 0, offset: 0}, {partition: 1, offset: 0}}, source.calls)
}

func TestReplayer_FromNewestStartsInsideWindow(t *testing.T) {
	cfg := testConfig()
	cfg.fromNewest = true
	cfg.limit = 2

	client := &stubOffsetClient{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {oldest: 10, newest: 50}}}
	source := &stubPartitionSource{consumers: map[int32]partitionConsumer{0: closedPartitionConsumer()}}

	_, err := testReplayer(cfg, kafkaDeps{client: client, source: source}).run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []consumeCall{{partition: 0, offset: 48}}, source.calls)
}

func TestReplayer_EmptyPartitionIsNotConsumed(t *testing.T) {
	client := &stubOffsetClient{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {oldest: 5, newest: 5}}}
	source := &stubPartitionSource{}

	stats, err := testReplayer(testConfig(), kafkaDeps{client: client, source: source}).run(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.scanned)
	require.Empty(t, source.calls)
}

func TestReplayer_Errors(t *testing.T) {
	cfg := testConfig()

	_, err := testReplayer(cfg, kafkaDeps{}).run(context.Background())
	require.ErrorContains(t, err, "client and consumer are required")

	executeCfg := cfg
	executeCfg.execute = true
	_, err = testReplayer(executeCfg, kafkaDeps{client: singlePartitionClient(0, 1), source: &stubPartitionSource{}}).run(context.Background())
	require.ErrorContains(t, err, "producer is required")

	_, err = testReplayer(cfg, kafkaDeps{
		client: &stubOffsetClient{partitionsErr: errors.New("metadata unavailable")},
		source: &stubPartitionSource{},
	}).run(context.Background())
	require.ErrorContains(t, err, "metadata unavailable")

	_, err = testReplayer(cfg, kafkaDeps{
		client: &stubOffsetClient{partitions: []int32{0}, offsetErr: map[int32]error{0: errors.New("offset lookup failed")}},
		source: &stubPartitionSource{},
	}).run(context.Background())
	require.ErrorContains(t, err, "offset lookup failed")

	_, err = testReplayer(cfg, kafkaDeps{
		client: singlePartitionClient(0, 1),
		source: &stubPartitionSource{consumeErr: errors.New("not leader")},
	}).run(context.Background())
	require.ErrorContains(t, err, "not leader")

	errCh := make(chan *sarama.ConsumerError, 1)
	errCh <- &sarama.ConsumerError{Topic: kafka.TopicDeadLetterQueue, Err: errors.New("fetch failed")}
	_, err = testReplayer(cfg, kafkaDeps{
		client: singlePartitionClient(0, 1),
		source: &stubPartitionSource{consumers: map[int32]partitionConsumer{0: &stubPartitionConsumer{
			messages: make(chan *sarama.ConsumerMessage),
			errors:   errCh,
		}}},
	}).run(context.Background())
	require.ErrorContains(t, err, "fetch failed")

	_, err = testReplayer(executeCfg, kafkaDeps{
		client:   singlePartitionClient(0, 1),
		source:   &stubPartitionSource{consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(dlqMessage(t, 0, domain.AggregateOrder, domain.EventOrderPlaced))}},
		producer: &stubReplayProducer{sendErr: errors.New("broker down")},
	}).run(context.Background())
	require.ErrorContains(t, err, "artcart.dlq/0/0")
}

func TestReplayer_IdleTimeoutAndCancel(t *testing.T) {
	cfg := testConfig()
	cfg.idleTimeout = 20 * time.Millisecond

	silent := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	stats, err := testReplayer(cfg, kafkaDeps{
		client: singlePartitionClient(0, 5),
		source: &stubPartitionSource{consumers: map[int32]partitionConsumer{0: silent}},
	}).run(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.scanned)
	require.True(t, silent.closed)

	cfg.idleTimeout = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = testReplayer(cfg, kafkaDeps{
		client: singlePartitionClient(0, 5),
		source: &stubPartitionSource{consumers: map[int32]partitionConsumer{0: &stubPartitionConsumer{
			messages: make(chan *sarama.ConsumerMessage),
			errors:   make(chan *sarama.ConsumerError),
		}}},
	}).run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_ClosesDialedDependencies(t *testing.T) {
	original := dialKafka
	t.Cleanup(func() { dialKafka = original })

	client := singlePartitionClient(0, 1)
	source := &stubPartitionSource{consumers: map[int32]partitionConsumer{0: closedPartitionConsumer(
		dlqMessage(t, 0, domain.AggregateCart, domain.EventCartNotification),
	)}}
	producer := &stubReplayProducer{}

	var dialed config
	dialKafka = func(cfg config) (kafkaDeps, error) {
		dialed = cfg
		return kafkaDeps{client: client, source: source, producer: producer}, nil
	}

	cfg := testConfig()
	cfg.execute = true
	require.NoError(t, run(context.Background(), cfg))
	require.Equal(t, cfg.brokers, dialed.brokers)
	require.Len(t, producer.sent, 1)
	require.True(t, client.closed)
	require.True(t, source.closed)
	require.True(t, producer.closed)

	dialKafka = func(config) (kafkaDeps, error) { return kafkaDeps{}, errors.New("dial failed") }
	require.ErrorContains(t, run(context.Background(), cfg), "dial failed")
}

func TestReplayStatsAdd(t *testing.T) {
	total := replayStats{scanned: 1, replayed: 1}
	total.add(replayStats{scanned: 2, skipped: 2})
	require.Equal(t, replayStats{scanned: 3, replayed: 1, skipped: 2}, total)
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", " ", "b", "c"))
	require.Empty(t, firstNonEmpty("", "  "))
}

func testConfig() config {
	return config{
		brokers:     []string{"kafka:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		limit:       defaultReplayLimit,
		idleTimeout: time.Second,
	}
}

func testReplayer(cfg config, deps kafkaDeps) *replayer {
	r := newReplayer(cfg, deps)
	r.now = func() time.Time { return replayNow }
	return r
}

func envOf(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func outboxDLQRecord(t *testing.T, aggregateType, aggregateID, eventType, payload string) []byte {
	t.Helper()

	id := "outbox-" + aggregateID[len(aggregateID)-1:]
	record := mustJSON(t, map[string]any{
		"outbox_id":      id,
		"aggregate_type": aggregateType,
		"aggregate_id":   aggregateID,
		"event_type":     eventType,
		"payload":        json.RawMessage(payload),
		"publish_error":  "kafka: broker not available",
	})
	return mustJSON(t, kafka.NewEnvelope(domain.OutboxMessage{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       record,
	}, replayNow.Add(-time.Hour)))
}

func dlqMessage(t *testing.T, offset int64, aggregateType, eventType string) *sarama.ConsumerMessage {
	t.Helper()
	aggregateID := fmt.Sprintf("agg-%d", offset)
	return &sarama.ConsumerMessage{
		Topic:  kafka.TopicDeadLetterQueue,
		Offset: offset,
		Value:  outboxDLQRecord(t, aggregateType, aggregateID, eventType, `{}`),
	}
}

func headerValue(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

type offsetRange struct {
	oldest int64
	newest int64
}

func singlePartitionClient(oldest, newest int64) *stubOffsetClient {
	return &stubOffsetClient{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {oldest: oldest, newest: newest}}}
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	offsetErr     map[int32]error
	closed        bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if err := s.offsetErr[partition]; err != nil {
		return 0, err
	}
	switch marker {
	case sarama.OffsetOldest:
		return s.offsets[partition].oldest, nil
	case sarama.OffsetNewest:
		return s.offsets[partition].newest, nil
	}
	return 0, fmt.Errorf("unexpected offset marker %d", marker)
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	return append([]int32(nil), s.partitions...), s.partitionsErr
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
	calls      []consumeCall
	closed     bool
}

func (s *stubPartitionSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	if pc, ok := s.consumers[partition]; ok {
		return pc, nil
	}
	return nil, fmt.Errorf("partition %d is not stubbed", partition)
}

func (s *stubPartitionSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionConsumer) Close() error {
	s.closed = true
	return nil
}

// closedPartitionConsumer отдаёт сообщения и закрывает каналы.
func closedPartitionConsumer(messages ...*sarama.ConsumerMessage) *stubPartitionConsumer {
	pc := &stubPartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(messages)),
		errors:   make(chan *sarama.ConsumerError),
	}
	for _, msg := range messages {
		pc.messages <- msg
	}
	close(pc.messages)
	return pc
}

type stubReplayProducer struct {
	sendErr error
	sent    []*sarama.ProducerMessage
	closed  bool
}

func (s *stubReplayProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if s.sendErr != nil {
		return 0, 0, s.sendErr
	}
	s.sent = append(s.sent, msg)
	return 0, int64(len(s.sent)), nil
}

func (s *stubReplayProducer) Close() error {
	s.closed = true
	return nil
}
