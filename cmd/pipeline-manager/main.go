// cmd/pipeline-manager/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"hiring-pipeline/internal/api"
	"hiring-pipeline/internal/assessment"
	"hiring-pipeline/internal/common/auth"
	awsclient "hiring-pipeline/internal/common/aws"
	"hiring-pipeline/internal/common/camunda"
	"hiring-pipeline/internal/common/config"
	"hiring-pipeline/internal/common/database"
	"hiring-pipeline/internal/common/lock"
	"hiring-pipeline/internal/common/logger"
	"hiring-pipeline/internal/common/observability"
	"hiring-pipeline/internal/common/validation"
	"hiring-pipeline/internal/evaluation"
	"hiring-pipeline/internal/interview"
	"hiring-pipeline/internal/outbox"
	"hiring-pipeline/internal/pipeline"
	"hiring-pipeline/internal/sinks/audit"
	"hiring-pipeline/internal/sinks/notification"
	"hiring-pipeline/internal/sinks/workflow"
	"hiring-pipeline/internal/store/postgres"

	rt "hiring-pipeline/internal/workers/application/request-transition"
	sa "hiring-pipeline/internal/workers/application/submit-application"
	itt "hiring-pipeline/internal/workers/assessment/invite-to-test"
	se "hiring-pipeline/internal/workers/evaluation/submit-evaluation"
	ci "hiring-pipeline/internal/workers/interview/complete-interview"
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
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting pipeline manager...", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name, prometheus.DefaultRegisterer)
	defer obs.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
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
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			zapLog.Fatal("database migration failed", zap.Error(err))
		}
		zapLog.Info("Database migrations applied")
	}

	readyChecks := []api.Check{{Name: "postgres", Ping: pg.Ping}}

	// --- Redis (application lock, notification dedupe) ---
	var (
		redis  *database.RedisClient
		locker lock.Locker = lock.Noop{}
	)
	if cfg.Database.Redis.Enabled {
		err = retryWithBackoff(func() error {
			redis = database.NewRedis(cfg.Database.Redis)
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		locker = lock.NewRedisLocker(redis.Client,
			config.GetDuration(cfg.Pipeline.LockTTL),
			config.GetDuration(cfg.Pipeline.LockWait),
			log)
		readyChecks = append(readyChecks, api.Check{Name: "redis", Ping: redis.Ping})
		zapLog.Info("Redis connected successfully")
	}

	// --- Elasticsearch (audit search index) ---
	var es *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		readyChecks = append(readyChecks, api.Check{Name: "elasticsearch", Ping: es.Ping})
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		readyChecks = append(readyChecks, api.Check{Name: "zeebe", Ping: zeebe.HealthCheck})
		zapLog.Info("Zeebe client connected successfully")
	}

	// --- Domain services ---
	st := postgres.New(pg.DB)
	pipelineSvc := pipeline.NewService(st,
		pipeline.Config{RequireTestsBeforeInterview: cfg.Pipeline.RequireTestsBeforeInterview},
		log,
		pipeline.WithLocker(locker),
		pipeline.WithObservability(obs),
	)
	ledger := evaluation.NewLedger(st,
		evaluation.Config{MinRating: cfg.Pipeline.MinRating, MaxRating: cfg.Pipeline.MaxRating},
		log,
		evaluation.WithLocker(locker),
		evaluation.WithObservability(obs),
	)
	assessments := assessment.NewService(st, log,
		assessment.WithLocker(locker),
		assessment.WithObservability(obs),
	)
	scheduler := interview.NewScheduler(st, log,
		interview.WithLocker(locker),
		interview.WithObservability(obs),
		interview.WithRatingBounds(cfg.Pipeline.MinRating, cfg.Pipeline.MaxRating),
	)

	// --- Sinks ---
	auditSink := newAuditSink(cfg, pg, es, log)
	sinks := []outbox.Sink{
		newNotificationSink(ctx, cfg, pg, redis, log, zapLog),
		auditSink,
	}
	if zeebe != nil {
		sinks = append(sinks, workflow.NewSink(zeebe, config.GetDuration(cfg.Camunda.MessageTTL), log))
	}

	var background sync.WaitGroup
	if cfg.Outbox.Enabled {
		relay := outbox.NewRelay(st, sinks, outbox.ConfigFrom(cfg.Outbox), log)
		background.Add(1)
		go func() {
			defer background.Done()
			relay.Run(ctx)
		}()
	}

	// --- Zeebe workers ---
	var workers []*camunda.CamundaWorker
	if zeebe != nil {
		validator := validation.MustValidator()
		handlers := map[string]camunda.JobHandler{
			sa.TaskType:  sa.NewHandler(&sa.Config{Timeout: workerTimeout(cfg, sa.TaskType)}, pipelineSvc, validator, log),
			rt.TaskType:  rt.NewHandler(&rt.Config{Timeout: workerTimeout(cfg, rt.TaskType)}, pipelineSvc, validator, log),
			se.TaskType:  se.NewHandler(&se.Config{Timeout: workerTimeout(cfg, se.TaskType)}, ledger, validator, log),
			itt.TaskType: itt.NewHandler(&itt.Config{Timeout: workerTimeout(cfg, itt.TaskType)}, assessments, validator, log),
			ci.TaskType:  ci.NewHandler(&ci.Config{Timeout: workerTimeout(cfg, ci.TaskType)}, scheduler, validator, log),
		}
		for taskType, handler := range handlers {
			if w := startWorker(zeebe, cfg, taskType, handler, log, zapLog); w != nil {
				workers = append(workers, w)
			}
		}
	}

	// --- REST API ---
	authenticator := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
		config.GetDuration(cfg.Auth.Keycloak.Timeout),
	)
	server := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewRouter(api.Dependencies{
			Pipeline:       pipelineSvc,
			Ledger:         ledger,
			Assessments:    assessments,
			Scheduler:      scheduler,
			Audit:          auditSink,
			Authenticator:  authenticator,
			ReadyChecks:    readyChecks,
			RequestTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
			Logger:         log,
		}),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	background.Wait()

	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Pipeline manager stopped gracefully")
}

func workerTimeout(cfg *config.Config, taskType string) time.Duration {
	return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
}

func startWorker(client *camunda.Client, cfg *config.Config, taskType string, handler camunda.JobHandler, log logger.Logger, zapLog *zap.Logger) *camunda.CamundaWorker {
	wcfg := config.GetWorkerConfig(cfg, taskType)
	if !wcfg.Enabled {
		zapLog.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	maxJobs := wcfg.MaxJobsActive
	if maxJobs == 0 {
		maxJobs = cfg.Camunda.MaxJobsActive
	}
	w := camunda.NewWorker(client.GetClient(), taskType, camunda.WorkerOptions{
		MaxJobsActive: maxJobs,
		Timeout:       config.GetDuration(wcfg.Timeout),
	}, handler, log)

	zapLog.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", maxJobs),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
	return w
}

func newAuditSink(cfg *config.Config, pg *database.PostgresClient, es *database.ElasticsearchClient, log logger.Logger) *audit.Sink {
	if es == nil {
		return audit.NewSink(pg.DB, nil, cfg.Audit.Index, log)
	}
	return audit.NewSink(pg.DB, es.Client, cfg.Audit.Index, log)
}

// newNotificationSink enables each channel only when both the notification
// switch and its AWS integration are on.
func newNotificationSink(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, redis *database.RedisClient, log logger.Logger, zapLog *zap.Logger) *notification.Sink {
	var (
		email notification.EmailSender
		sms   notification.SMSSender
	)

	aws := cfg.Integrations.AWS
	emailOn := cfg.Notifications.Email.Enabled && aws.SES.Enabled
	smsOn := cfg.Notifications.SMS.Enabled && aws.SNS.Enabled
	if emailOn || smsOn {
		awsCfg, err := awsclient.LoadConfig(ctx, aws.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
		if emailOn {
			from := cfg.Notifications.Email.FromEmail
			if from == "" {
				from = aws.SES.FromEmail
			}
			email = awsclient.NewSESClient(awsCfg, from)
		}
		if smsOn {
			sms = awsclient.NewSNSClient(awsCfg, aws.SNS.DefaultSMSSenderID)
		}
	}

	notifCfg := notification.Config{
		EmailEnabled: email != nil,
		SMSEnabled:   sms != nil,
		DedupeTTL:    config.GetDuration(cfg.Notifications.DedupeTTL),
	}
	if redis == nil {
		return notification.NewSink(notifCfg, pg.DB, email, sms, nil, log)
	}
	return notification.NewSink(notifCfg, pg.DB, email, sms, redis.Client, log)
}
