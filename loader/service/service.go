package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"auticare/loader"
	"auticare/model"
	"auticare/store"
	"auticare/types"

	"github.com/google/uuid"
)

const (
	CorpusKnowledge = "knowledge"
	CorpusRecords   = "records"
)

// ErrUnchanged is returned by Ingest when the stored document is at least as
// new as the file.
var ErrUnchanged = errors.New("document unchanged")

type Service struct {
	logger   *slog.Logger
	store    store.DBStorer
	embedder model.EmbedderInterface
	watcher  *loader.Watcher
	cfg      types.LoaderConfig
}

func New(storer store.DBStorer, embedder model.EmbedderInterface, watcher *loader.Watcher, cfg types.LoaderConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		store:    storer,
		embedder: embedder,
		watcher:  watcher,
		cfg:      cfg,
	}
}

// Run watches the source directory and ingests every settled file until ctx
// is cancelled.
func (s *Service) Run(ctx context.Context) {
	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Watch(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileChan {
			s.handle(ctx, path)
		}
	}()

	wg.Wait()
	s.logger.Info("loader service stopped")
}

func (s *Service) handle(ctx context.Context, path string) {
	err := s.Ingest(ctx, path)
	if ctx.Err() != nil {
		return
	}
	failed := err != nil && !errors.Is(err, ErrUnchanged)
	switch {
	case failed:
		s.logger.Error("ingest failed", "path", path, "error", err.Error())
	case err != nil:
		s.logger.Info("document unchanged, skipping", "path", path)
	default:
		s.logger.Info("document ingested", "path", path)
	}
	if _, err := s.watcher.Done(path, failed); err != nil {
		s.logger.Warn("could not move file", "path", path, "error", err.Error())
	}
}

// Ingest stores one file. CSV files feed the records corpus, documents feed
// the knowledge corpus. An existing document's chunks are replaced.
func (s *Service) Ingest(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	doc := types.Document{
		ID:         DocumentID(path),
		Title:      Title(path),
		SourcePath: path,
		CreatedAt:  info.ModTime(),
		UpdatedAt:  info.ModTime(),
		Version:    1,
	}
	if !s.shouldUpdate(ctx, doc.ID, info.ModTime()) {
		return ErrUnchanged
	}

	var items []types.Item
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		doc.Source = CorpusRecords
		items, err = s.recordItems(path)
	} else {
		doc.Source = CorpusKnowledge
		items, err = s.knowledgeItems(path)
	}
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no content extracted from %s", path)
	}

	chunks := make([]types.Chunk, 0, len(items))
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		vec, err := model.EmbedWith(ctx, s.embedder, it.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		chunks = append(chunks, types.Chunk{
			ID:        uuid.New(),
			DocID:     doc.ID,
			Corpus:    doc.Source,
			Position:  i,
			Content:   it.Text,
			Metadata:  it.Metadata,
			Embedding: vec,
		})
	}

	if err := s.store.ReplaceDocument(ctx, doc, chunks); err != nil {
		return err
	}
	s.logger.Info("chunks saved", "doc", doc.Title, "corpus", doc.Source, "chunks", len(chunks))
	return nil
}

func (s *Service) shouldUpdate(ctx context.Context, id uuid.UUID, modTime time.Time) bool {
	existing, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		return true
	}
	return modTime.After(existing.UpdatedAt)
}

func (s *Service) knowledgeItems(path string) ([]types.Item, error) {
	pages, err := loader.ReadPages(path, loader.Crop{Top: s.cfg.CropTop, Bottom: s.cfg.CropBottom})
	if err != nil {
		return nil, err
	}
	chunks := loader.ChunkPages(pages, s.cfg.ChunkSize, s.cfg.MinChunkSize, loader.KnowledgeSource)
	return loader.ChunkItems(chunks), nil
}

func (s *Service) recordItems(path string) ([]types.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := store.ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return store.RecordItems(records), nil
}

// DocumentID is stable for a given path.
func DocumentID(path string) uuid.UUID {
	return uuid.NewMD5(uuid.NameSpaceURL, []byte(path))
}

func Title(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}
