package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"auticare/model"
	"auticare/types"
)

// Index returns up to k stored texts ordered by descending similarity.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

// Unavailable stands in for an index that could not be built. It behaves as
// an empty index.
type Unavailable struct {
	Reason string
}

func (Unavailable) Search(context.Context, string, int) ([]string, error) {
	return nil, nil
}

func IsAvailable(idx Index) bool {
	if idx == nil {
		return false
	}
	_, unavailable := idx.(Unavailable)
	return !unavailable
}

// Memory is a brute-force cosine index held in process memory. It is
// read-only after Build and safe for concurrent searches.
type Memory struct {
	embedder model.EmbedderInterface
	items    []types.Item
	vectors  [][]float32
}

// Build embeds every item. Embedders implementing model.Preparer are first
// prepared on the item texts.
func Build(ctx context.Context, items []types.Item, embedder model.EmbedderInterface) (*Memory, error) {
	if len(items) == 0 {
		return nil, errors.New("no items to index")
	}
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	if p, ok := embedder.(model.Preparer); ok {
		if err := p.Prepare(texts); err != nil {
			return nil, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	vectors := make([][]float32, len(items))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := model.EmbedWith(ctx, embedder, text)
		if err != nil {
			return nil, fmt.Errorf("embed item %d: %w", i, err)
		}
		vectors[i] = v
	}
	return &Memory{embedder: embedder, items: items, vectors: vectors}, nil
}

// BuildOrUnavailable is Build for startup wiring: any failure is logged and
// an Unavailable index is returned instead.
func BuildOrUnavailable(ctx context.Context, name string, items []types.Item, embedder model.EmbedderInterface, logger *slog.Logger) Index {
	idx, err := Build(ctx, items, embedder)
	if err != nil {
		logger.Warn("index unavailable", "index", name, "error", err.Error())
		return Unavailable{Reason: err.Error()}
	}
	logger.Info("index built", "index", name, "items", idx.Len())
	return idx
}

func (m *Memory) Len() int {
	return len(m.items)
}

func (m *Memory) Search(ctx context.Context, query string, k int) ([]string, error) {
	hits, err := m.SearchItems(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Item.Text
	}
	return out, nil
}

type Hit struct {
	Item  types.Item
	Score float64
}

// SearchItems is Search with scores and metadata. Items with no similarity
// to the query are not returned.
func (m *Memory) SearchItems(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qv, err := model.EmbedWith(ctx, m.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]Hit, 0, len(m.items))
	for i, v := range m.vectors {
		s := cosine(qv, v)
		if s <= 0 {
			continue
		}
		hits = append(hits, Hit{Item: m.items[i], Score: s})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// cosine assumes L2-normalized inputs.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
