// Command promptdeck serves the LLM generation dashboard API: prompt
// submission, live stream tailing, history, usage accounting, and sharing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/engine"
	"github.com/promptdeck/promptdeck/internal/llm"
	"github.com/promptdeck/promptdeck/internal/llm/providers"
	"github.com/promptdeck/promptdeck/internal/logger"
	"github.com/promptdeck/promptdeck/internal/rest"
	"github.com/promptdeck/promptdeck/internal/store/memory"
	"github.com/promptdeck/promptdeck/internal/store/postgres"
)

func main() {
	logger.Init()

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ModelCatalogPath != "" {
		if err := llm.DefaultCatalog().LoadCatalogFromFile(cfg.ModelCatalogPath); err != nil {
			return fmt.Errorf("failed to load model catalog: %w", err)
		}
		slog.Info("model catalog loaded", "path", cfg.ModelCatalogPath)
	}

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	credentials := func() llm.Credentials {
		return llm.Credentials{
			Anthropic: cfg.AnthropicAPIKey,
			OpenAI:    cfg.OpenAIAPIKey,
			XAI:       cfg.XAIAPIKey,
		}
	}

	registry := providers.NewRegistry(credentials())

	engineCfg := engine.DefaultConfig()
	engineCfg.MaxPromptLen = cfg.MaxPromptLen
	engineCfg.StuckAge = cfg.StuckAge
	engineCfg.SweepInterval = cfg.SweepInterval
	engineCfg.ChunkRetention = cfg.ChunkRetention
	engineCfg.HistoryLimit = cfg.HistoryLimit

	service := engine.NewService(store, registry, engineCfg)
	service.StartSweeper(ctx)

	handler := rest.NewHandler(service, credentials, providers.Build)
	e := rest.NewServer(handler)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		slog.Info("listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (engine.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Info("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}

	store, pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("connected to postgres")
	return store, pool.Close, nil
}
