package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaEmbedder calls the Ollama embeddings endpoint.
type OllamaEmbedder struct {
	apiURL string
	model  string
	client *resty.Client
}

type OllamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type OllamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(apiURL, model string) *OllamaEmbedder {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(300 * time.Millisecond)
	return &OllamaEmbedder{
		apiURL: apiURL,
		model:  model,
		client: client,
	}
}

func (e *OllamaEmbedder) Embed(text string) ([]float32, error) {
	return e.EmbedContext(context.Background(), text)
}

// EmbedContext is bounded by ctx as well as the client timeout; retries stop
// once ctx is done.
func (e *OllamaEmbedder) EmbedContext(ctx context.Context, text string) ([]float32, error) {

	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(OllamaEmbeddingRequest{Model: e.model, Prompt: text}).
		Post(e.apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	var ollamaResp OllamaEmbeddingResponse
	if err := json.Unmarshal(resp.Body(), &ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(ollamaResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}

	embedding := make([]float32, len(ollamaResp.Embedding))
	for i, v := range ollamaResp.Embedding {
		embedding[i] = float32(v)
	}
	return normalize(embedding), nil
}
