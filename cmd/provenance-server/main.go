// Package main runs the provenance ledger HTTP server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/fairtrace/provenance/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("PROVENANCE_CONFIG"), "Path to the YAML configuration file")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		glog.Fatalf("Failed to load config: %v", err)
	}
	level, _ := cfg.SlogLevel()

	var logLevel slog.LevelVar
	logLevel.Set(level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))
	slog.SetDefault(logger)

	loader.Watch(logger, func(next *config.Config) {
		if l, err := next.SlogLevel(); err == nil && l != logLevel.Level() {
			logLevel.Set(l)
			logger.Info("log level changed", "level", l.String())
		}
	})

	logger.Info("starting provenance server",
		"listen", cfg.Listen,
		"database", cfg.Database.Type,
		"handles", cfg.Handles,
		"auth", cfg.Auth.Mode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		glog.Fatalf("Failed to initialize: %v", err)
	}
	defer app.Close()

	if app.retention != nil {
		go app.retention.Run(ctx)
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("provenance server ready", "listen", cfg.Listen, "admin", cfg.Admin)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Live event streams end before Shutdown waits on their connections.
	app.broker.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("provenance server stopped")
}
