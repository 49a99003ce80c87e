package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"auticare/config"
	"auticare/loader"
	"auticare/loader/service"
	"auticare/model"
	"auticare/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	config.LoadEnvFile(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error loading config: ", err)
	}
	if cfg.DatabaseURL == "" || cfg.EmbeddingURL == "" {
		log.Fatal("DATABASE_URL and EMBEDDING_URL are required for the loader")
	}
	if err := loader.SetLicense(cfg.UnidocKey); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder := model.NewOllamaEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
	sample, err := embedder.Embed("dimension check")
	if err != nil {
		log.Fatal("error reaching embedding service: ", err)
	}

	pool, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("error to connect to Postgres database: ", err)
	}
	defer func() {
		if err := pool.Close(); err != nil {
			log.Printf("error closing pool: %v", err)
		}
	}()

	if err := pool.Init(ctx, len(sample)); err != nil {
		log.Fatal("error to create tables: ", err)
	}

	lc := cfg.LoaderConfig()
	watcher, err := loader.NewWatcher(lc.SourceDir, lc.ArchiveDir, lc.BadDir, lc.MonitoringTime)
	if err != nil {
		log.Fatal(err)
	}

	service.New(pool, embedder, watcher, lc, logger).Run(ctx)
}
