package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"auticare/types"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr string
	LogFormat  string
	Pipeline   string
	MemorySize int

	RecordsFile   string
	KnowledgeFile string
	CropTop       float64
	CropBottom    float64
	UnidocKey     string

	Groq   ProviderConfig
	Gemini ProviderConfig
	LLM    LLMConfig

	SerperAPIKey string
	SerperURL    string
	SearchTTL    time.Duration

	DatabaseURL    string
	EmbeddingURL   string
	EmbeddingModel string

	Redis  RedisConfig
	Loader LoaderConfig
}

type ProviderConfig struct {
	APIKey  string
	Model   string // override identifier, tried first
	BaseURL string
}

func (p ProviderConfig) Enabled() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

type LLMConfig struct {
	Timeout           time.Duration
	MaxTokens         int
	RequestsPerMinute float64
	PromptTokenBudget int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type LoaderConfig struct {
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
	ChunkSize      int
	MinChunkSize   int
}

// LoaderConfig flattens the ingestion settings for the loader service.
func (c *Config) LoaderConfig() types.LoaderConfig {
	return types.LoaderConfig{
		MonitoringTime: c.Loader.MonitoringTime,
		SourceDir:      c.Loader.SourceDir,
		ArchiveDir:     c.Loader.ArchiveDir,
		BadDir:         c.Loader.BadDir,
		ChunkSize:      c.Loader.ChunkSize,
		MinChunkSize:   c.Loader.MinChunkSize,
		CropTop:        c.CropTop,
		CropBottom:     c.CropBottom,
	}
}

// LoadEnvFile loads .env when present. A missing file is not an error.
func LoadEnvFile(logger *slog.Logger, files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.Warn("no .env file loaded, using process environment", "error", err.Error())
	}
}

func defaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDR", ":5000")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("PIPELINE", "graph")
	v.SetDefault("MEMORY_SIZE", 5)

	v.SetDefault("RECORDS_FILE", "autism_data.csv")
	v.SetDefault("KNOWLEDGE_FILE", "Auticare_chatbot_comprehensivepdf.pdf")
	v.SetDefault("PDF_CROP_TOP", 0.0)
	v.SetDefault("PDF_CROP_BOTTOM", 0.0)

	v.SetDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")

	v.SetDefault("LLM_TIMEOUT", 30*time.Second)
	v.SetDefault("LLM_MAX_TOKENS", 512)
	v.SetDefault("LLM_RPM", 0.0)
	v.SetDefault("PROMPT_TOKEN_BUDGET", 6000)

	v.SetDefault("SERPER_URL", "https://google.serper.dev/search")
	v.SetDefault("SEARCH_CACHE_TTL", time.Hour)

	v.SetDefault("EMBEDDING_MODEL", "nomic-embed-text")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOADER_SOURCE_DIR", "data/source")
	v.SetDefault("LOADER_ARCHIVE_DIR", "data/archive")
	v.SetDefault("LOADER_BAD_DIR", "data/bad")
	v.SetDefault("LOADER_MONITORING_TIME", 5*time.Second)
	v.SetDefault("CHUNK_SIZE", 500)
	v.SetDefault("MIN_CHUNK_SIZE", 50)
}

// Load reads configuration from the environment, optionally layered over the
// YAML file named by CONFIG_FILE. Keys in the file use the same names as the
// environment variables.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		ServerAddr: v.GetString("SERVER_ADDR"),
		LogFormat:  v.GetString("LOG_FORMAT"),
		Pipeline:   strings.ToLower(v.GetString("PIPELINE")),
		MemorySize: v.GetInt("MEMORY_SIZE"),

		RecordsFile:   v.GetString("RECORDS_FILE"),
		KnowledgeFile: v.GetString("KNOWLEDGE_FILE"),
		CropTop:       v.GetFloat64("PDF_CROP_TOP"),
		CropBottom:    v.GetFloat64("PDF_CROP_BOTTOM"),
		UnidocKey:     v.GetString("UNIDOC_LICENSE_API_KEY"),

		Groq: ProviderConfig{
			APIKey:  v.GetString("GROQ_API_KEY"),
			Model:   v.GetString("GROQ_MODEL"),
			BaseURL: v.GetString("GROQ_BASE_URL"),
		},
		Gemini: ProviderConfig{
			APIKey:  v.GetString("GOOGLE_API_KEY"),
			Model:   v.GetString("GEMINI_MODEL"),
			BaseURL: v.GetString("GEMINI_BASE_URL"),
		},
		LLM: LLMConfig{
			Timeout:           v.GetDuration("LLM_TIMEOUT"),
			MaxTokens:         v.GetInt("LLM_MAX_TOKENS"),
			RequestsPerMinute: v.GetFloat64("LLM_RPM"),
			PromptTokenBudget: v.GetInt("PROMPT_TOKEN_BUDGET"),
		},

		SerperAPIKey: v.GetString("SERPER_API_KEY"),
		SerperURL:    v.GetString("SERPER_URL"),
		SearchTTL:    v.GetDuration("SEARCH_CACHE_TTL"),

		DatabaseURL:    v.GetString("DATABASE_URL"),
		EmbeddingURL:   v.GetString("EMBEDDING_URL"),
		EmbeddingModel: v.GetString("EMBEDDING_MODEL"),

		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Loader: LoaderConfig{
			SourceDir:      v.GetString("LOADER_SOURCE_DIR"),
			ArchiveDir:     v.GetString("LOADER_ARCHIVE_DIR"),
			BadDir:         v.GetString("LOADER_BAD_DIR"),
			MonitoringTime: v.GetDuration("LOADER_MONITORING_TIME"),
			ChunkSize:      v.GetInt("CHUNK_SIZE"),
			MinChunkSize:   v.GetInt("MIN_CHUNK_SIZE"),
		},
	}

	if cfg.Pipeline != "graph" && cfg.Pipeline != "direct" {
		return nil, fmt.Errorf("unknown PIPELINE %q, want graph or direct", cfg.Pipeline)
	}
	if cfg.MemorySize <= 0 {
		return nil, fmt.Errorf("MEMORY_SIZE must be positive, got %d", cfg.MemorySize)
	}
	if cfg.LLM.Timeout <= 0 {
		return nil, fmt.Errorf("LLM_TIMEOUT must be positive, got %s", cfg.LLM.Timeout)
	}
	return cfg, nil
}
