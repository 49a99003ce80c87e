package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auticare/app/server"
	"auticare/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	config.LoadEnvFile(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error loading configuration: ", err)
	}
	logger = newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.NewServer(cfg, logger)
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal, shutting down server...")
	case err := <-errc:
		if err != nil {
			logger.Error("server exited", "error", err.Error())
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err.Error())
	}
}

func newLogger(format string) *slog.Logger {
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
