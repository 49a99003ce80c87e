package store

import (
	"context"
	"fmt"

	"auticare/model"
)

// VectorIndex serves one corpus of the chunks table as a retrieval index.
type VectorIndex struct {
	db       DBStorer
	embedder model.EmbedderInterface
	corpus   string
}

func NewVectorIndex(db DBStorer, embedder model.EmbedderInterface, corpus string) *VectorIndex {
	return &VectorIndex{db: db, embedder: embedder, corpus: corpus}
}

func (v *VectorIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	vec, err := model.EmbedWith(ctx, v.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	chunks, err := v.db.Search(ctx, v.corpus, vec, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Content)
	}
	return out, nil
}
