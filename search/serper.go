package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultURL = "https://google.serper.dev/search"
	timeout    = 10 * time.Second
)

var triggers = []string{
	"latest autism research",
	"recent autism studies",
	"current autism statistics",
	"new autism therapies",
	"autism news",
	"recent developments",
}

// Triggered reports whether the text asks for current information.
func Triggered(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Recorder observes lookup outcomes.
type Recorder interface {
	SearchLookup(outcome string)
}

// Cache keeps snippets between lookups.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

type Serper struct {
	apiKey   string
	url      string
	client   *resty.Client
	cache    Cache
	recorder Recorder
	logger   *slog.Logger
}

type Option func(*Serper)

func WithCache(c Cache) Option {
	return func(s *Serper) { s.cache = c }
}

func WithRecorder(r Recorder) Option {
	return func(s *Serper) { s.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Serper) { s.logger = l }
}

func New(apiKey, url string, opts ...Option) *Serper {
	if url == "" {
		url = DefaultURL
	}
	s := &Serper{
		apiKey: apiKey,
		url:    url,
		client: resty.New().SetTimeout(timeout),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Serper) Enabled() bool {
	return s != nil && s.apiKey != ""
}

type request struct {
	Q string `json:"q"`
}

type response struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search returns the first organic snippet for "autism " + text. Any
// failure yields ("", false).
func (s *Serper) Search(ctx context.Context, text string) (string, bool) {
	if !s.Enabled() {
		s.observe("disabled")
		return "", false
	}
	q := "autism " + text
	key := cacheKey(q)
	if s.cache != nil {
		if v, ok := s.cache.Get(ctx, key); ok {
			s.observe("cache_hit")
			return v, true
		}
	}

	snippet, err := s.lookup(ctx, q)
	if err != nil {
		s.logger.Warn("live search failed", "error", err.Error())
		s.observe("error")
		return "", false
	}
	if snippet == "" {
		s.observe("empty")
		return "", false
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, snippet)
	}
	s.observe("ok")
	return snippet, true
}

func (s *Serper) lookup(ctx context.Context, q string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(request{Q: q}).
		Post(s.url)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", errors.New("serper status " + resp.Status())
	}
	var out response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", err
	}
	if len(out.Organic) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Organic[0].Snippet), nil
}

// Augment appends a current-information line to answer when the query asks
// for it and a snippet is found.
func (s *Serper) Augment(ctx context.Context, query, answer string) string {
	if !Triggered(query) {
		return answer
	}
	snippet, ok := s.Search(ctx, query)
	if !ok {
		return answer
	}
	return answer + "\n\nCurrent info: " + snippet
}

func (s *Serper) observe(outcome string) {
	if s != nil && s.recorder != nil {
		s.recorder.SearchLookup(outcome)
	}
}

func cacheKey(q string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(q))))
	return "auticare:search:" + hex.EncodeToString(sum[:])
}

// RedisCache stores snippets with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("search cache read failed", "error", err.Error())
		}
		return "", false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("search cache write failed", "error", err.Error())
	}
}
