package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"auticare/types"

	"golang.org/x/time/rate"
)

// Provider is one remote model vendor. Models lists the fixed fallback chain
// and does not include an override.
type Provider interface {
	Name() string
	Models() []string
	Complete(ctx context.Context, model string, messages []types.Message, opts Options) (string, error)
}

type Options struct {
	MaxTokens   int
	Temperature float64
}

// Attempt is one (provider, model) call that did not produce text.
type Attempt struct {
	Provider string
	Model    string
	Err      error
}

// Result is the outcome of a completion. OK is false when every identifier
// of every provider failed.
type Result struct {
	Text     string
	Provider string
	Model    string
	OK       bool
	Attempts []Attempt
}

// LastError is the error of the final failed attempt, if any.
func (r Result) LastError() error {
	if len(r.Attempts) == 0 {
		return nil
	}
	return r.Attempts[len(r.Attempts)-1].Err
}

var (
	ErrEmptyCompletion = errors.New("empty completion")
	ErrRateLimited     = errors.New("rate limit wait exceeds deadline")
)

type Recorder interface {
	LLMAttempt(provider, model string, ok bool, elapsed time.Duration)
	PromptTokens(n int)
}

// Gateway walks providers in order, and within a provider its models in
// order, until one returns non-empty text. Each identifier is tried once.
type Gateway struct {
	providers []Provider
	overrides map[string]string
	limiters  map[string]*rate.Limiter
	timeout   time.Duration
	opts      Options
	recorder  Recorder
	logger    *slog.Logger
	tokens    func([]types.Message) int
}

type GatewayOption func(*Gateway)

// WithOverride puts model ahead of the named provider's fixed chain.
func WithOverride(provider, model string) GatewayOption {
	return func(g *Gateway) {
		if model = strings.TrimSpace(model); model != "" {
			g.overrides[provider] = model
		}
	}
}

// WithRateLimit caps calls per provider. Zero disables limiting.
func WithRateLimit(perMinute float64) GatewayOption {
	return func(g *Gateway) {
		if perMinute <= 0 {
			return
		}
		for _, p := range g.providers {
			g.limiters[p.Name()] = rate.NewLimiter(rate.Limit(perMinute/60), 1)
		}
	}
}

func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

func WithOptions(o Options) GatewayOption {
	return func(g *Gateway) { g.opts = o }
}

func WithRecorder(r Recorder) GatewayOption {
	return func(g *Gateway) { g.recorder = r }
}

func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithTokenCounter replaces the tiktoken prompt counter.
func WithTokenCounter(f func([]types.Message) int) GatewayOption {
	return func(g *Gateway) { g.tokens = f }
}

func NewGateway(providers []Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		providers: providers,
		overrides: make(map[string]string),
		limiters:  make(map[string]*rate.Limiter),
		timeout:   30 * time.Second,
		opts:      Options{MaxTokens: 512, Temperature: 0.3},
		logger:    slog.Default(),
		tokens:    CountMessages,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Chain is the ordered list of identifiers tried for a provider.
func (g *Gateway) Chain(p Provider) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(m string) {
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		out = append(out, m)
	}
	add(g.overrides[p.Name()])
	for _, m := range p.Models() {
		add(m)
	}
	return out
}

func (g *Gateway) Describe() []types.ProviderInfo {
	out := make([]types.ProviderInfo, 0, len(g.providers))
	for _, p := range g.providers {
		out = append(out, types.ProviderInfo{Name: p.Name(), Models: g.Chain(p)})
	}
	return out
}

func (g *Gateway) Available() bool {
	return len(g.providers) > 0
}

// Complete never returns an error; exhaustion is reported as !Result.OK.
func (g *Gateway) Complete(ctx context.Context, messages []types.Message) Result {
	var res Result
	if len(g.providers) == 0 {
		return res
	}
	if g.tokens != nil {
		n := g.tokens(messages)
		g.logger.Debug("prompt size", "tokens", n, "messages", len(messages))
		if g.recorder != nil {
			g.recorder.PromptTokens(n)
		}
	}

	for _, p := range g.providers {
		for _, model := range g.Chain(p) {
			if err := ctx.Err(); err != nil {
				res.Attempts = append(res.Attempts, Attempt{Provider: p.Name(), Model: model, Err: err})
				return res
			}
			text, err := g.attempt(ctx, p, model, messages)
			if err != nil {
				g.logger.Warn("model attempt failed", "provider", p.Name(), "model", model, "error", err.Error())
				res.Attempts = append(res.Attempts, Attempt{Provider: p.Name(), Model: model, Err: err})
				continue
			}
			res.Text, res.Provider, res.Model, res.OK = text, p.Name(), model, true
			g.logger.Info("model answered", "provider", p.Name(), "model", model, "failed_attempts", len(res.Attempts))
			return res
		}
	}
	g.logger.Warn("all model providers failed", "attempts", len(res.Attempts))
	return res
}

func (g *Gateway) attempt(ctx context.Context, p Provider, model string, messages []types.Message) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if g.recorder != nil {
			g.recorder.LLMAttempt(p.Name(), model, err == nil, time.Since(start))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()

	if lim, ok := g.limiters[p.Name()]; ok {
		if err := lim.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}

	text, err = p.Complete(ctx, model, messages, g.opts)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
