package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fjod/go_checkout/internal/config"
	checkouthttp "github.com/fjod/go_checkout/internal/http"
	"github.com/fjod/go_checkout/internal/metrics"
	"github.com/fjod/go_checkout/internal/notifier"
	"github.com/fjod/go_checkout/internal/processor"
	"github.com/fjod/go_checkout/internal/publisher"
	"github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/service"
	"github.com/fjod/go_checkout/internal/session"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
	"github.com/fjod/go_checkout/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg := logger.MustNew(cfg.Service, cfg.Env, cfg.LogLevel)
	defer func() { _ = lg.Sync() }()
	zap.ReplaceGlobals(lg)
	lg.Info("checkout-service starting",
		zap.String("session_store", cfg.SessionStore),
		zap.String("intent_store", cfg.IntentStore),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sessions, closeSessions := newSessionStore(cfg, lg)
	defer closeSessions()

	repo := newRepository(cfg, lg)
	defer repo.Close()

	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:                "processor",
		ConsecutiveFailures: cfg.Processor.BreakerFailures,
		OpenTimeout:         cfg.Processor.BreakerOpenTimeout.Duration,
		Ignore:              processor.IsRejection,
		OnStateChange: func(name, from, to string) {
			lg.Warn("circuit_breaker_state_changed",
				zap.String("breaker", name),
				zap.String("from", from),
				zap.String("to", to),
			)
		},
	})
	client := processor.NewHTTPClient(processor.Config{
		BaseURL:  cfg.Processor.BaseURL,
		ClientID: cfg.Processor.ClientID,
		Secret:   cfg.Processor.Secret,
		Timeout:  cfg.Processor.Timeout.Duration,
	},
		processor.WithBreaker(breaker),
		processor.WithMetrics(m),
		processor.WithTransport(otelhttp.NewTransport(http.DefaultTransport)),
	)

	checkoutService := service.NewCheckoutService(
		service.NewProcessorHandler(client, cfg.Processor.Timeout.Duration),
		sessions,
		repo,
		service.WithOrderStore(repo),
		service.WithNotifier(newNotifier(cfg, lg)),
		service.WithSessionTTL(cfg.SessionTTL.Duration),
		service.WithMetrics(m),
	)

	// Outbox publishing
	var wg sync.WaitGroup
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	var poller *publisher.OutboxPoller
	if len(cfg.Kafka.Brokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		poller = publisher.NewOutboxPoller(repo, writer, lg.Named("outbox"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(pollerCtx)
		}()
	} else {
		lg.Info("kafka brokers not configured, outbox publishing disabled")
	}

	// HTTP server
	router := checkouthttp.NewRouter(
		checkouthttp.NewCheckoutHandler(checkoutService, cfg.RequestTimeout.Duration, checkouthttp.CookieSettings{
			Name:   cfg.SessionCookie.Name,
			Secure: cfg.SessionCookie.Secure,
			TTL:    cfg.SessionTTL.Duration,
		}),
		checkouthttp.NewPaymentHandler(checkoutService, cfg.RequestTimeout.Duration),
		checkouthttp.RouterConfig{
			Logger:             lg,
			RequestTimeout:     cfg.RequestTimeout.Duration,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
			Metrics:            promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      otelhttp.NewHandler(router, cfg.Service),
		ReadTimeout:  cfg.RequestTimeout.Duration,
		WriteTimeout: cfg.RequestTimeout.Duration + cfg.Processor.Timeout.Duration,
		IdleTimeout:  2 * cfg.RequestTimeout.Duration,
	}

	go func() {
		lg.Info("HTTP server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// gRPC health server
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		lg.Fatal("Failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		lg.Info("gRPC health server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			lg.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("Shutting down checkout service...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	pollerCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		lg.Info("Outbox poller stopped cleanly")
	case <-shutdownCtx.Done():
		lg.Warn("Outbox poller didn't stop in time")
	}

	if poller != nil {
		if err := poller.Close(); err != nil {
			lg.Error("Failed to close kafka writer", zap.Error(err))
		}
	}
	lg.Info("Checkout service stopped")
}

func newSessionStore(cfg *config.Config, lg *zap.Logger) (session.Store, func()) {
	if cfg.SessionStore == config.BackendMemory {
		lg.Warn("using in-memory session store, sessions are lost on restart")
		store := session.NewMemoryStore()
		return store, func() { _ = store.Close() }
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout.Duration)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		lg.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	lg.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))
	return session.NewRedisStore(rdb), func() { _ = rdb.Close() }
}

func newRepository(cfg *config.Config, lg *zap.Logger) repository.RepoInterface {
	if cfg.IntentStore == config.BackendMemory {
		lg.Warn("using in-memory intent store, intents are lost on restart")
		return repository.NewMemoryRepository()
	}

	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDir,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		lg.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := repo.RunMigrations(creds); err != nil {
		lg.Fatal("Failed to run migrations", zap.Error(err))
	}
	lg.Info("Database migrations completed")
	return repo
}

func newNotifier(cfg *config.Config, lg *zap.Logger) notifier.Notifier {
	if cfg.Mail.SendGridAPIKey == "" {
		lg.Info("sendgrid api key not configured, receipts are logged only")
		return notifier.LogNotifier{}
	}
	return notifier.NewSendGridNotifier(notifier.SendGridConfig{
		APIKey:    cfg.Mail.SendGridAPIKey,
		FromEmail: cfg.Mail.FromEmail,
		FromName:  cfg.Mail.FromName,
		ReplyTo:   cfg.Mail.ReplyTo,
		BCC:       cfg.Mail.BCC,
		Subject:   cfg.Mail.Subject,
	})
}
