// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intent-workers/internal/common/aws"
	"intent-workers/internal/common/camunda"
	"intent-workers/internal/common/config"
	"intent-workers/internal/common/database"
	commonhttp "intent-workers/internal/common/http"
	"intent-workers/internal/common/logger"
	"intent-workers/internal/common/metrics"
	"intent-workers/internal/common/observability"
	"intent-workers/internal/conversation"
	"intent-workers/internal/intent/catalogdb"
	"intent-workers/internal/intent/dialog"
	"intent-workers/pkg/catalog"

	// Conversation Workers (3)
	bcp "intent-workers/internal/workers/conversation/build-clarification-prompt"
	cc "intent-workers/internal/workers/conversation/conversation-cleanup"
	di "intent-workers/internal/workers/conversation/disambiguate-intent"

	// Analytics Workers (2)
	ard "intent-workers/internal/workers/analytics/audit-routing-decision"
	qds "intent-workers/internal/workers/analytics/query-decision-stats"

	// Notification Workers (1)
	eu "intent-workers/internal/workers/notification/escalate-unresolved"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level and format.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	if cfg.Observability.TracingEnabled {
		tracing := observability.NewTracing("worker-manager", cfg.Observability.JaegerEndpoint)
		defer tracing.Shutdown()
	}

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Load Intent Catalog ---
	// Loaded once at startup; workers share the parsed copy. A broken or
	// empty catalog is fatal here rather than at first job.
	loadCtx, cancelLoad := context.WithTimeout(ctx, 15*time.Second)
	cat, err := loadCatalog(loadCtx, cfg, pg)
	cancelLoad()
	if err != nil {
		zapLog.Fatal("catalog load failed",
			zap.String("source", cfg.Catalog.Source),
			zap.Error(err),
		)
	}
	metrics.CatalogIntents.Set(float64(len(cat.Intents)))
	zapLog.Info("Intent catalog loaded",
		zap.String("source", cfg.Catalog.Source),
		zap.Int("intents", len(cat.Intents)),
	)

	// --- Build Shared Dialog Engine & Conversation Store ---
	policy := dialog.Policy{
		ConfidenceFloor: cfg.Dialog.ConfidenceFloor,
		MarginFloor:     cfg.Dialog.MarginFloor,
	}
	engine, err := dialog.NewEngine(cat, policy, cfg.Dialog.MaxOptions)
	if err != nil {
		zapLog.Fatal("dialog engine initialization failed", zap.Error(err))
	}
	store := conversation.NewStore(redisClient, cfg.Conversation)

	runner := camunda.NewRunner(camundaClient.GetClient(), zapLog)

	// --- START: Register ALL 6 Workers ---

	// --- 1. Conversation Workers (3) ---
	if cfg.Workers[di.TaskType].Enabled {
		handler := di.NewHandler(
			&di.Config{
				Timeout: config.GetDuration(cfg.Workers[di.TaskType].Timeout),
			},
			engine, store, log,
		)
		runner.Start(di.TaskType, cfg.Workers[di.TaskType], handler.Handle)
	}

	if cfg.Workers[bcp.TaskType].Enabled {
		bcpCfg := bcp.LoadConfig()
		bcpCfg.TemplateRegistry = cfg.Template.RegistryPath
		bcpCfg.Timeout = config.GetDuration(cfg.Workers[bcp.TaskType].Timeout)
		handler := bcp.NewHandler(bcpCfg, cat, &clarificationLoggerAdapter{log})
		runner.Start(bcp.TaskType, cfg.Workers[bcp.TaskType], handler.Handle)
	}

	cleanupHandler, err := cc.NewHandler(cc.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("failed to create conversation-cleanup handler", zap.Error(err))
	}
	if err := cleanupHandler.Register(); err != nil {
		zapLog.Fatal("failed to register conversation-cleanup worker", zap.Error(err))
	}

	// --- 2. Analytics Workers (2) ---
	if cfg.Workers[ard.TaskType].Enabled {
		auditCfg := ard.LoadConfig()
		auditCfg.Timeout = config.GetDuration(cfg.Workers[ard.TaskType].Timeout)
		auditCfg.Table = cfg.Analytics.DecisionsTable
		auditCfg.Index = cfg.Analytics.DecisionsIndex
		handler := ard.NewHandler(auditCfg, pg.DB, esClient.Client, log)
		runner.Start(ard.TaskType, cfg.Workers[ard.TaskType], handler.Handle)
	}

	if cfg.Workers[qds.TaskType].Enabled {
		statsCfg := qds.LoadConfig()
		statsCfg.Timeout = config.GetDuration(cfg.Workers[qds.TaskType].Timeout)
		statsCfg.Index = cfg.Analytics.DecisionsIndex
		statsCfg.CacheTTL = time.Duration(cfg.Analytics.StatsCacheTTLSec) * time.Second
		handler := qds.NewHandler(statsCfg, esClient.Client, redisClient, log)
		runner.Start(qds.TaskType, cfg.Workers[qds.TaskType], handler.Handle)
	}

	// --- 3. Notification Workers (1) ---
	if cfg.Workers[eu.TaskType].Enabled {
		escCfg := eu.LoadConfig()
		escCfg.Timeout = config.GetDuration(cfg.Workers[eu.TaskType].Timeout)
		escCfg.EmailEnabled = cfg.Notifications.Email.Enabled
		escCfg.FromEmail = cfg.Notifications.Email.FromEmail
		escCfg.OperatorEmail = cfg.Notifications.Email.Operator
		escCfg.SMSEnabled = cfg.Notifications.SMS.Enabled
		escCfg.OperatorNumber = cfg.Notifications.SMS.OperatorNumber
		escCfg.WebhookEnabled = cfg.Notifications.Webhook.Enabled
		escCfg.WebhookURL = cfg.Notifications.Webhook.URL

		var emailSender eu.EmailSender
		if escCfg.EmailEnabled {
			sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("failed to create SES client", zap.Error(err))
			}
			emailSender = sesClient
		}

		var smsSender eu.SMSSender
		if escCfg.SMSEnabled {
			snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("failed to create SNS client", zap.Error(err))
			}
			smsSender = snsClient
		}

		webhookClient := commonhttp.NewClient(10 * time.Second)

		handler := eu.NewHandler(escCfg, emailSender, smsSender, webhookClient, log)
		runner.Start(eu.TaskType, cfg.Workers[eu.TaskType], handler.Handle)
	}

	zapLog.Info("Worker registration complete", zap.Int("running", runner.Count()))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			status := "ready"
			code := http.StatusOK
			if err := camundaClient.HealthCheck(checkCtx); err != nil {
				status = "zeebe unavailable"
				code = http.StatusServiceUnavailable
			} else if err := redisClient.Ping(checkCtx); err != nil {
				status = "redis unavailable"
				code = http.StatusServiceUnavailable
			} else if err := pg.Ping(checkCtx); err != nil {
				status = "postgres unavailable"
				code = http.StatusServiceUnavailable
			} else if err := esClient.Ping(); err != nil {
				status = "elasticsearch unavailable"
				code = http.StatusServiceUnavailable
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	runner.Close()
	cleanupHandler.Close()

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// loadCatalog reads the intent catalog from the configured source. The
// source is fixed at startup; there is no runtime switching.
func loadCatalog(ctx context.Context, cfg *config.Config, pg *database.PostgresClient) (*catalog.Catalog, error) {
	switch cfg.Catalog.Source {
	case "postgres":
		return catalogdb.LoadCatalog(ctx, pg.DB)
	case "file":
		format, err := catalog.ParseFormat(cfg.Catalog.Format)
		if err != nil {
			return nil, err
		}
		return catalog.LoadFile(cfg.Catalog.Path, format)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
}

// Logger adapter for the clarification prompt worker's local Logger interface
type clarificationLoggerAdapter struct {
	logger.Logger
}

func (a *clarificationLoggerAdapter) With(fields map[string]interface{}) bcp.Logger {
	return &clarificationLoggerAdapter{a.Logger.With(fields)}
}
