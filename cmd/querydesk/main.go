// cmd/querydesk/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"querydesk/internal/access"
	"querydesk/internal/api"
	"querydesk/internal/clients"
	"querydesk/internal/common/config"
	"querydesk/internal/common/database"
	"querydesk/internal/common/logger"
	"querydesk/internal/common/observability"
	"querydesk/internal/directory"
	"querydesk/internal/extractor"
	"querydesk/internal/notify"
	"querydesk/internal/ranking"
	"querydesk/internal/router"
	"querydesk/internal/session"
	"querydesk/internal/ticket"
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
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting querydesk...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("querydesk")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init organization directory ---
	dir, err := directory.New(cfg.Directory.Path, log)
	if err != nil {
		zapLog.Fatal("organization directory load failed", zap.Error(err))
	}
	organizations, _ := dir.Stats()
	zapLog.Info("Organization directory loaded", zap.Int("organizations", organizations))

	refreshStop := make(chan struct{})
	go func() {
		interval := time.Duration(cfg.Directory.RefreshInterval) * time.Second
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				changed, err := dir.RefreshIfChanged()
				if err != nil {
					zapLog.Warn("directory refresh failed", zap.Error(err))
				} else if changed {
					organizations, _ := dir.Stats()
					zapLog.Info("Organization directory refreshed", zap.Int("organizations", organizations))
				}
			case <-refreshStop:
				return
			}
		}
	}()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.Tickets.AuditEnabled {
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
	}

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
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init external service clients ---
	tracker := clients.NewTrackerClient(
		cfg.Integrations.Tracker.BaseURL,
		cfg.Integrations.Tracker.APIKey,
		time.Duration(cfg.Integrations.Tracker.Timeout)*time.Millisecond,
		cfg.Integrations.Tracker.MaxRetries,
		log,
	)
	helpCenter := clients.NewHelpCenterClient(esClient.Client, cfg.Database.Elasticsearch.Index, cfg.Ranking.Limit, log)

	var textGen clients.TextGenerationClient
	if cfg.APIs.GenAI.BaseURL != "" {
		textGen = clients.NewTextGenClient(
			cfg.APIs.GenAI.BaseURL,
			cfg.APIs.GenAI.APIKey,
			cfg.APIs.GenAI.Model,
			time.Duration(cfg.APIs.GenAI.Timeout)*time.Millisecond,
			cfg.APIs.GenAI.MaxRetries,
			log,
		)
	}

	var scorer ranking.RelevanceScorer
	if cfg.APIs.Embedding.BaseURL != "" {
		scorer = ranking.NewEmbeddingScorer(
			cfg.APIs.Embedding.BaseURL,
			cfg.APIs.Embedding.APIKey,
			time.Duration(cfg.APIs.Embedding.Timeout)*time.Millisecond,
			2,
		)
	}
	ranker := ranking.New(scorer, ranking.Config{
		Threshold:  cfg.Ranking.Threshold,
		MinResults: cfg.Ranking.MinResults,
		Limit:      cfg.Ranking.Limit,
	}, log)

	// --- Ticket pipeline ---
	categories := ticket.LoadCategoryConfig(cfg.Tickets.ConfigPath, cfg.Tickets.DefaultCategory, log)
	assembler := ticket.NewAssembler(categories, log)

	rules := extractor.NewRuleBasedExtractor(categories, log)
	var fieldExtractor extractor.FieldExtractor = rules
	if textGen != nil {
		fieldExtractor = extractor.NewAIExtractor(textGen, rules, log)
	}

	var auditor router.TicketAuditor
	if cfg.Tickets.AuditEnabled {
		auditor = ticket.NewAuditRepository(pg.DB, log)
	}

	var notifier router.TicketNotifier = notify.NopNotifier{}
	if cfg.Integrations.AWS.SES.Enabled || cfg.Integrations.AWS.SNS.Enabled {
		awsNotifier, err := notify.NewAWSNotifier(ctx, notify.Config{
			EmailEnabled: cfg.Integrations.AWS.SES.Enabled,
			FromEmail:    cfg.Integrations.AWS.SES.FromEmail,
			SNSEnabled:   cfg.Integrations.AWS.SNS.Enabled,
			TopicARN:     cfg.Integrations.AWS.SNS.TopicARN,
			AWSRegion:    cfg.Integrations.AWS.Region,
		}, log)
		if err != nil {
			zapLog.Fatal("failed to create AWS notifier", zap.Error(err))
		}
		notifier = awsNotifier
	}

	zapLog.Info("All external service clients initialized")

	// --- Assemble the query router ---
	qr := router.New(router.Options{
		Gate:          access.NewGate(dir, log),
		Directory:     dir,
		Primary:       tracker,
		Secondary:     helpCenter,
		Ranker:        ranker,
		Extractor:     fieldExtractor,
		Categories:    categories,
		Assembler:     assembler,
		Auditor:       auditor,
		Notifier:      notifier,
		Sessions:      session.NewRedisStore(redis.Client),
		Conversations: session.NewRedisConversationStore(redis.Client),
		TextGen:       textGen,
		Logger:        log,
	})

	server := api.NewServer(qr, dir, time.Duration(cfg.HTTP.RequestTimeout)*time.Millisecond, obs, log)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: server.Handler(),
	}

	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Metrics Server ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.String("address", cfg.HTTP.MetricsAddress))
		if err := http.ListenAndServe(cfg.HTTP.MetricsAddress, mux); err != nil {
			zapLog.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	close(refreshStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("querydesk stopped gracefully")
}
