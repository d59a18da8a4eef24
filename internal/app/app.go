package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/artcart/internal/catalog"
	healthcheck "github.com/vladislavdragonenkov/artcart/internal/health"
	"github.com/vladislavdragonenkov/artcart/internal/metrics"
	"github.com/vladislavdragonenkov/artcart/internal/notify"
	grpcsvc "github.com/vladislavdragonenkov/artcart/internal/service/grpc"
	"github.com/vladislavdragonenkov/artcart/internal/service/outbox"
	"github.com/vladislavdragonenkov/artcart/internal/version"
)

const (
	shutdownTimeout = 5 * time.Second
	drainTimeout    = 3 * time.Second
)

func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return err
	}

	products, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDependencies(deps, logger)

	// Kafka опциональна: без неё outbox пишется в лог, а лента уведомлений
	// получает сообщения напрямую.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafkaProducer(kafkaProducer, logger)

	feed := notify.NewFeed(cfg.NotificationFeedSize)
	routing := notificationRouting{viaOutbox: kafkaProducer != nil, feedDirect: true}

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if kafkaProducer != nil {
		relay, err := startNotificationRelay(relayCtx, cfg.KafkaBrokers, feed, kafkaProducer, logger)
		if err == nil {
			routing.feedDirect = false
			defer func() {
				stopRelay()
				stopNotificationRelay(relay, logger)
			}()
		}
	}

	cartMetrics := metrics.NewCartMetrics()
	notifier := buildNotifier(routing, deps, feed, logger)
	svc := buildServices(cfg, deps, products, feed, notifier, kafkaProducer, cartMetrics, logger)

	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go svc.registry.RunEviction(evictCtx, cfg.CartIdleTTL)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		svc.worker.Run(workerCtx)
	}()
	defer drainOutbox(svc.worker, logger)
	defer shutdownOutboxWorker(stopWorker, workerDone, logger)

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcsvc.RegisterCartServiceServer(grpcServer, svc.cart)
	grpcMetrics.InitializeMetrics(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// HTTP Health checks
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("storage", deps.storageChecker)
	}
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.outboxRepo.Stats, cfg.OutboxMaxPending))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.Shutdown()
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(shutdownTimeout):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// shutdownOutboxWorker останавливает polling и ждёт завершения цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}

// drainOutbox публикует оставшиеся сообщения перед выходом.
func drainOutbox(worker *outbox.Worker, logger *log.Entry) {
	if worker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if processed := worker.Drain(ctx); processed > 0 {
		logger.WithField("processed", processed).Info("outbox backlog published on shutdown")
	}
}

// newMetricsMux собирает служебные маршруты: метрики, пробы и сведения о сборке.
func newMetricsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})
	return mux
}

// startMetricsServer поднимает служебный HTTP-сервер и гасит его по отмене ctx.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: newMetricsMux(healthHandler), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz %s/livez %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
