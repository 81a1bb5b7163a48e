// Deskbridge desktop agent: connects to the relay under an access code,
// streams the screen, and executes controller commands on this machine.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vkotlar/deskbridge/internal/agent"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: agent <access_code>")
		fmt.Fprintln(os.Stderr, "\nExample:")
		fmt.Fprintln(os.Stderr, "  agent test-code")
		os.Exit(1)
	}
	accessCode := os.Args[1]

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := agent.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting agent", "server", cfg.ServerURL, "fps", cfg.FPS)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := agent.New(cfg, agent.NewDesktop(), agent.NewScreenCapturer())
	if err := a.Run(ctx, accessCode); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Agent stopped", "error", err)
		os.Exit(1)
	}

	slog.Info("Agent stopped")
}
