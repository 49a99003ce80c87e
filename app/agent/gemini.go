package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"auticare/types"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiPromptMax  = 12000
)

var GeminiModels = []string{"gemini-1.5-flash-latest"}

// Gemini sends the whole conversation as a single text prompt.
type Gemini struct {
	apiKey  string
	baseURL string
	models  []string
	client  *resty.Client
}

func NewGemini(apiKey, baseURL string, models []string) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiURL
	}
	return &Gemini{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		models:  models,
		client:  resty.New().SetRetryCount(0),
	}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Models() []string { return g.models }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// FlattenPrompt renders messages as labelled paragraphs and keeps the tail
// when the result is too long.
func FlattenPrompt(messages []types.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		label := "User"
		switch m.Role {
		case types.RoleSystem:
			label = "System"
		case types.RoleAssistant:
			label = "Assistant"
		}
		parts = append(parts, label+": "+m.Content)
	}
	prompt := strings.Join(parts, "\n\n")
	if r := []rune(prompt); len(r) > geminiPromptMax {
		prompt = string(r[len(r)-geminiPromptMax:])
	}
	return prompt
}

func (g *Gemini) Complete(ctx context.Context, model string, messages []types.Message, opts Options) (string, error) {
	var req geminiRequest
	req.Contents = []geminiContent{{Parts: []geminiPart{{Text: FlattenPrompt(messages)}}}}
	req.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	req.GenerationConfig.Temperature = opts.Temperature

	var out geminiResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(g.baseURL + "/models/" + url.PathEscape(model) + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode(), out.Error.Message)
		}
		return "", fmt.Errorf("gemini status %d", resp.StatusCode())
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no text")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
