// cmd/assistant-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pantry-assistant/internal/actions"
	"pantry-assistant/internal/api"
	"pantry-assistant/internal/common/config"
	"pantry-assistant/internal/common/database"
	"pantry-assistant/internal/common/llm"
	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/observability"
	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/orchestrator"
	"pantry-assistant/internal/resolver"
	"pantry-assistant/internal/store"
	"pantry-assistant/internal/store/memory"
	"pantry-assistant/internal/store/postgres"
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
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assistant server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Driver),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel exporter unavailable, http metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()
	var ready []api.Pinger

	// --- Store ---
	var st store.Store
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		st = memory.New()
		zapLog.Warn("using in-memory store, data is lost on restart")
	default:
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

		pgStore := postgres.New(pg.GetDB())
		if err := pgStore.Migrate(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		st = pgStore
		zapLog.Info("PostgreSQL connected successfully")
	}
	defer st.Close()
	ready = append(ready, st)

	// --- Model ---
	completer := llm.NewHTTPCompleter(llm.ConfigFrom(cfg.Model), log)

	registry, err := actions.NewRegistry(intent.Deps{
		Completer: completer,
		Resolver:  resolver.New(st, cfg.Assistant.ResolverSearchLimit, log),
		Store:     st,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("action registry failed", zap.Error(err))
	}

	var classifier llm.Classifier = llm.NewModelClassifier(completer, actions.Descriptions(registry), log)

	// --- Classifier cache ---
	if cfg.Database.Redis.Enabled && cfg.Model.ClassifierCacheTTL > 0 {
		rdb := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		classifier = llm.NewCachedClassifier(classifier, rdb.GetClient(), cfg.Model.ClassifierCacheTTLDuration(), log)
		ready = append(ready, rdb)
		zapLog.Info("Redis connected successfully, classifier cache enabled")
	}

	orch := orchestrator.New(registry, classifier, orchestrator.Config{
		DefaultLocale:    cfg.Assistant.DefaultLocale,
		MaxClarifyRounds: cfg.Assistant.MaxClarifyRounds,
		MaxQuestions:     cfg.Assistant.MaxQuestions,
		PreviewItems:     cfg.Assistant.ConfirmPreviewItems,
	}, log)

	handler := api.NewHandler(orch, api.Config{
		Debug:          cfg.Assistant.Debug,
		RequestTimeout: cfg.HTTP.WriteTimeoutDuration(),
	}, log, ready...)

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler.Routes(obs.Middleware),
		ReadTimeout:  cfg.HTTP.ReadTimeoutDuration(),
		WriteTimeout: cfg.HTTP.WriteTimeoutDuration(),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address), zap.Strings("actions", registry.Names()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeoutDuration())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during HTTP shutdown", zap.Error(err))
	}

	zapLog.Info("Assistant server stopped gracefully")
}
