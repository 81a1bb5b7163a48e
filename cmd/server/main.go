// Deskbridge relay server: pairs web controllers with desktop agents and
// relays frames and commands between them.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/vkotlar/deskbridge/internal/api"
	"github.com/vkotlar/deskbridge/internal/config"
	"github.com/vkotlar/deskbridge/internal/middleware"
	"github.com/vkotlar/deskbridge/internal/nlu"
	"github.com/vkotlar/deskbridge/internal/relay"
	"github.com/vkotlar/deskbridge/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Relay core.
	reg := relay.NewRegistry()
	router := relay.NewRouter(reg)
	wsHandler := relay.NewWebSocketHandler(reg, router, cfg.AllowedOrigin, cfg.IsDevelopment())

	// Natural-language command parsing (optional).
	var parser api.CommandParser
	if cfg.NLU.Enabled() {
		client, err := nlu.NewClient(nlu.Config{
			URL:     cfg.NLU.URL,
			APIKey:  cfg.NLU.APIKey,
			Model:   cfg.NLU.Model,
			Timeout: cfg.NLU.Timeout,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize command parser", "error", err)
			os.Exit(1)
		}
		parser = client
		slog.Info("Natural-language commands enabled", "model", cfg.NLU.Model)
	} else {
		slog.Info("Natural-language commands disabled (NLU_API_KEY not set)")
	}

	apiHandler := api.NewHandler(repo, reg, router, parser)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	allowedOrigins := []string{cfg.AllowedOrigin}
	if cfg.AllowedOrigin == "" {
		allowedOrigins = []string{"*"}
	}
	r.Use(middleware.CORS(allowedOrigins))

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws", wsHandler.ServeHTTP)

	// WriteTimeout stays 0: frame streams are long-lived WebSocket writes.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
