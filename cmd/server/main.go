package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"shopee-deal-bot/internal/ai"
	"shopee-deal-bot/internal/automation"
	"shopee-deal-bot/internal/config"
	"shopee-deal-bot/internal/logring"
	"shopee-deal-bot/internal/store"
	"shopee-deal-bot/internal/validator"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	logs := logring.New(slog.NewTextHandler(os.Stdout, nil), cfg.LogRetention)
	logger := slog.New(logs)
	slog.SetDefault(logger)
	logger.Info("Starting Shopee deal bot server...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Critical error initializing store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	aiClient, err := ai.NewClient(ctx, cfg.GeminiAPIKey, cfg.FlashModel, cfg.ProModel)
	if err != nil {
		logger.Error("Critical error initializing Gemini client", "error", err)
		os.Exit(1)
	}

	srv := NewServer(aiClient, st, validator.New(), logs, logger, cfg.DefaultInterval)

	affCfg, err := st.LoadConfig(ctx)
	if err != nil {
		logger.Error("Failed to load saved affiliate config", "error", err)
	} else if affCfg != nil {
		srv.SetAffiliateConfig(affCfg)
		logger.Info("Loaded affiliate config", "provider", affCfg.Provider, "active", affCfg.Active)
	}

	engine := automation.NewEngine(aiClient, srv, st, srv, logger)
	srv.engine = engine

	// One tick per second drives the automation countdown.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				engine.Tick(ctx)
			}
		}
	}()

	mux := http.NewServeMux()
	srv.routes(mux)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		logger.Info("Received signal, shutting down gracefully...", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	logger.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped.")
}

// openStore picks Firestore when a project id is configured, otherwise the
// local JSON file store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.ProjectID != "" {
		slog.Info("Using Firestore persistence", "project", cfg.ProjectID)
		return store.NewFirestoreStore(ctx, cfg.ProjectID)
	}
	slog.Info("Using file persistence", "path", cfg.DataPath)
	return store.NewFileStore(cfg.DataPath)
}
