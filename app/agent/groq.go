package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"auticare/types"

	"github.com/go-resty/resty/v2"
)

const DefaultGroqURL = "https://api.groq.com/openai/v1"

var (
	GroqModels       = []string{"llama-3.1-8b-instant", "llama-3.3-70b-versatile"}
	GroqDoctorModels = []string{"llama-3.1-8b-instant", "llama-3.3-70b-versatile", "mixtral-8x7b-32768", "gemma2-9b-it"}
)

// Groq speaks the OpenAI chat completions protocol.
type Groq struct {
	apiKey  string
	baseURL string
	models  []string
	client  *resty.Client
}

func NewGroq(apiKey, baseURL string, models []string) *Groq {
	if baseURL == "" {
		baseURL = DefaultGroqURL
	}
	// Failover moves to the next identifier instead of retrying.
	client := resty.New().SetRetryCount(0)
	return &Groq{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		models:  models,
		client:  client,
	}
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) Models() []string { return g.models }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *Groq) Complete(ctx context.Context, model string, messages []types.Message, opts Options) (string, error) {
	req := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, len(messages)),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for i, m := range messages {
		req.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	var out chatResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+g.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(g.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("groq request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("groq status %d: %s", resp.StatusCode(), out.Error.Message)
		}
		return "", fmt.Errorf("groq status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
