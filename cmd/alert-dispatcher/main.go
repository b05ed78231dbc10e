package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crisis-alerts/internal/alert/history"
	"crisis-alerts/internal/common/auth"
	"crisis-alerts/internal/common/aws"
	"crisis-alerts/internal/common/camunda"
	"crisis-alerts/internal/common/config"
	"crisis-alerts/internal/common/database"
	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/common/observability"
	"crisis-alerts/internal/common/scheduler"
	"crisis-alerts/internal/common/smtp"
	"crisis-alerts/internal/server"
	crisisalertdispatch "crisis-alerts/internal/workers/alerts/crisis-alert-dispatch"

	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting alert dispatcher...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint, log)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- History sinks ---
	var sinks []history.Sink
	var historyReader server.HistoryReader

	if cfg.Database.Postgres.Enabled() {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		store := history.NewPostgresStore(pg.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("failed to prepare dispatch history table", zap.Error(err))
		}
		sinks = append(sinks, store)
		historyReader = store
		zapLog.Info("PostgreSQL connected successfully")
	}

	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		sinks = append(sinks, history.NewElasticsearchIndexer(esClient.Client, cfg.Database.Elasticsearch.Index))
		zapLog.Info("Elasticsearch connected successfully")
	}

	if cfg.Kafka.Enabled() {
		publisher := history.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, config.GetDuration(cfg.Kafka.BatchTimeout))
		defer publisher.Close()
		sinks = append(sinks, publisher)
		zapLog.Info("Kafka publisher configured", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	deps := crisisalertdispatch.ServiceDependencies{Observability: obs}
	if len(sinks) > 0 {
		deps.History = history.NewFanout(log, sinks...)
	}

	// --- Redis: idempotency cache and rate limit store ---
	var rateStore limiter.Store
	if cfg.Database.Redis.Enabled() {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()

		deps.Cache = crisisalertdispatch.NewResultCache(redis.Client)
		rateStore, err = sredis.NewStoreWithOptions(redis.Client, limiter.StoreOptions{
			Prefix: "crisis-alerts:ratelimit",
		})
		if err != nil {
			zapLog.Fatal("failed to create rate limit store", zap.Error(err))
		}
		zapLog.Info("Redis connected successfully")
	}

	// --- Providers ---
	registry, err := buildProviders(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("provider setup failed", zap.Error(err))
	}
	registry.Start(ctx)
	deps.Providers = registry

	cron := scheduler.NewCron(log)
	if _, err := cron.AddWithCtx(ctx, cfg.Providers.ReverifySchedule, func(ctx context.Context) {
		registry.Reverify(ctx)
	}); err != nil {
		zapLog.Fatal("invalid provider reverify schedule", zap.Error(err))
	}
	cron.Start()

	// --- Zeebe worker ---
	var camundaClient *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
	}

	handler, err := crisisalertdispatch.NewHandler(crisisalertdispatch.HandlerOptions{
		AppConfig:    cfg,
		Camunda:      camundaClient,
		Logger:       log,
		Dependencies: deps,
	})
	if err != nil {
		zapLog.Fatal("failed to create crisis-alert-dispatch handler", zap.Error(err))
	}
	if camundaClient != nil {
		if err := handler.Register(); err != nil {
			zapLog.Fatal("failed to register crisis-alert-dispatch worker", zap.Error(err))
		}
	}

	// --- HTTP API ---
	opts := server.Options{
		Address:        cfg.HTTP.Address,
		Dispatcher:     handler.Service(),
		Providers:      registry,
		History:        historyReader,
		RateLimit:      cfg.HTTP.RateLimit,
		RateLimitStore: rateStore,
		Logger:         log,
	}
	if kc := cfg.Auth.Keycloak; kc.Enabled {
		opts.Auth = auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret)
	}
	srv, err := server.New(opts)
	if err != nil {
		zapLog.Fatal("failed to create HTTP API", zap.Error(err))
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			zapLog.Error("HTTP API failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping alert dispatcher...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP API", zap.Error(err))
	}
	handler.Close()
	cron.Stop()
	cancel()

	if camundaClient != nil {
		if err := camundaClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Alert dispatcher stopped gracefully")
}

// buildProviders picks SES or SMTP for email and SNS for SMS when enabled.
func buildProviders(ctx context.Context, cfg *config.Config, log logger.Logger) (*aws.ProviderRegistry, error) {
	pc := aws.ProviderConfigFrom(cfg)

	var email aws.EmailSender
	switch {
	case pc.EmailEnabled:
		ses, err := aws.NewSESClient(ctx, pc.Region, pc.FromEmail)
		if err != nil {
			return nil, err
		}
		email = ses
	case cfg.Providers.SMTP.Host != "":
		s := cfg.Providers.SMTP
		email = smtp.NewSender(smtp.Config{
			Host:        s.Host,
			Port:        s.Port,
			Username:    s.Username,
			Password:    s.Password,
			UseTLS:      s.UseTLS,
			DefaultFrom: s.DefaultFrom,
		})
	default:
		return nil, fmt.Errorf("no email provider configured: enable providers.aws.ses or set providers.smtp.host")
	}

	var sms aws.SMSSender
	if pc.SMSEnabled {
		sns, err := aws.NewSNSClient(ctx, pc)
		if err != nil {
			return nil, err
		}
		sms = sns
	}

	return aws.NewProviderRegistry(aws.RegistryOptions{
		Email:         email,
		SMS:           sms,
		Logger:        log,
		VerifyTimeout: config.GetDuration(cfg.Providers.VerifyTimeout),
	})
}
