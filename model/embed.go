package model

import (
	"context"
	"log"
	"math"
)

// EmbedderInterface turns text into a vector.
type EmbedderInterface interface {
	Embed(text string) ([]float32, error)
}

// ContextEmbedder is implemented by embedders that make blocking calls and
// honour the caller's deadline.
type ContextEmbedder interface {
	EmbedContext(ctx context.Context, text string) ([]float32, error)
}

// EmbedWith embeds text under ctx when e supports it.
func EmbedWith(ctx context.Context, e EmbedderInterface, text string) ([]float32, error) {
	if ce, ok := e.(ContextEmbedder); ok {
		return ce.EmbedContext(ctx, text)
	}
	return e.Embed(text)
}

// Preparer is implemented by embedders that must see the corpus before
// embedding, such as TF-IDF.
type Preparer interface {
	Prepare(corpus []string) error
}

// Dimensioner reports the fixed output size of an embedder.
type Dimensioner interface {
	Dimension() int
}

// NewEmbedder returns an Ollama embedder when url is set, otherwise a fresh
// TF-IDF embedder. Each corpus needs its own TF-IDF instance.
func NewEmbedder(url, model string) EmbedderInterface {
	if url != "" {
		log.Printf("[EMBEDDER] using Ollama embeddings (%s)", model)
		return NewOllamaEmbedder(url, model)
	}
	log.Printf("[EMBEDDER] using local TF-IDF embeddings")
	return NewTFIDF()
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, x := range vec {
		vec[i] = float32(float64(x) / norm)
	}
	return vec
}
