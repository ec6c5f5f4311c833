// Package main is the entry point for the recruiting portal HTTP server.
//
// MAIN PACKAGE:
// main only reads configuration, builds the logger and hands both to
// server.Build. All behavior lives in internal/.
//
// CONFIGURATION:
// Settings come from environment variables, optionally layered over a YAML
// file named by CONFIG_FILE. See internal/config for the full list.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/recruiting-portal/internal/config"
	"github.com/sakif/recruiting-portal/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Text logs for humans in development, JSON for the log pipeline in
	// production.
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var logger *slog.Logger
	if cfg.IsProduction() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.Build(context.Background(), cfg, logger, server.BuildOptions{})
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
