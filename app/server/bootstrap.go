package server

import (
	"context"
	"fmt"
	"log/slog"

	"auticare/app/agent"
	"auticare/app/bot"
	"auticare/config"
	"auticare/index"
	"auticare/knowledge"
	"auticare/loader"
	"auticare/loader/service"
	"auticare/memory"
	"auticare/metrics"
	"auticare/model"
	"auticare/search"
	"auticare/store"
	"auticare/types"

	"github.com/redis/go-redis/v9"
)

// tokenCounter sizes prompts for the history budget and the gateway metrics.
var tokenCounter = agent.CountMessages

// Deps is everything the HTTP layer serves. Any piece that could not be
// built degrades to an unavailable variant rather than failing startup.
type Deps struct {
	Doctor         *bot.Doctor
	Patient        *bot.Patient
	Records        index.Index
	DoctorGateway  *agent.Gateway
	PatientGateway *agent.Gateway

	closers []func() error
}

func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

// Bootstrap loads the data files, builds both indexes and gateways and
// assembles the two bots.
func Bootstrap(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*Deps, error) {
	deps := &Deps{}
	if err := loader.SetLicense(cfg.UnidocKey); err != nil {
		logger.Warn("pdf extraction license not applied", "error", err.Error())
	}

	records := store.LoadRecords(cfg.RecordsFile, logger)
	doc, err := knowledge.Load(cfg.KnowledgeFile, knowledge.LoadOptions{
		Crop:         loader.Crop{Top: cfg.CropTop, Bottom: cfg.CropBottom},
		ChunkSize:    cfg.Loader.ChunkSize,
		MinChunkSize: cfg.Loader.MinChunkSize,
	})
	if err != nil {
		logger.Warn("knowledge document not available", "path", cfg.KnowledgeFile, "error", err.Error())
		doc = nil
	}

	knowledgeIdx, recordsIdx := buildIndexes(ctx, cfg, deps, records, doc, logger)
	deps.Records = recordsIdx

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable, running without persistence", "addr", cfg.Redis.Addr, "error", err.Error())
			_ = rdb.Close()
			rdb = nil
		} else {
			deps.closers = append(deps.closers, rdb.Close)
		}
	}

	deps.DoctorGateway = newGateway(cfg, doctorProviders(cfg), m, logger)
	deps.PatientGateway = newGateway(cfg, patientProviders(cfg), m, logger)
	count := tokenCounter
	extractor := knowledge.NewExtractor(doc)

	memOpts := []memory.Option{memory.WithLogger(logger)}
	if rdb != nil {
		memOpts = append(memOpts, memory.WithPersister(memory.NewRedisPersister(rdb, "doctor", 0)))
	}
	mem := memory.New(cfg.MemorySize, memOpts...)
	if err := mem.Restore(ctx); err != nil {
		logger.Warn("doctor memory not restored", "error", err.Error())
	}

	gen := &bot.Generator{
		Resolver:  store.NewResolver(records),
		Knowledge: knowledgeIdx,
		Extractor: extractor,
		Gateway:   deps.DoctorGateway,
		Assembler: bot.DoctorAssembler(cfg.LLM.PromptTokenBudget, count),
		Recorder:  m,
		Logger:    logger.With("bot", "doctor"),
	}
	pipeline, err := bot.NewPipeline(cfg.Pipeline, gen)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Doctor = bot.NewDoctor(pipeline, mem, logger.With("bot", "doctor"))

	searchOpts := []search.Option{search.WithRecorder(m), search.WithLogger(logger)}
	if rdb != nil {
		searchOpts = append(searchOpts, search.WithCache(search.NewRedisCache(rdb, cfg.SearchTTL, logger)))
	}
	deps.Patient = &bot.Patient{
		Extractor: extractor,
		Knowledge: knowledgeIdx,
		Gateway:   deps.PatientGateway,
		Assembler: bot.PatientAssembler(cfg.LLM.PromptTokenBudget, count),
		Search:    search.New(cfg.SerperAPIKey, cfg.SerperURL, searchOpts...),
		Recorder:  m,
		Logger:    logger.With("bot", "patient"),
	}

	logger.Info("bootstrap complete",
		"records", records.Len(),
		"knowledge_chunks", chunkCount(doc),
		"doctor_providers", len(deps.DoctorGateway.Describe()),
		"patient_providers", len(deps.PatientGateway.Describe()),
		"pipeline", cfg.Pipeline,
	)
	return deps, nil
}

// buildIndexes prefers the pgvector corpora written by the loader when a
// database and an embedding service are configured and populated. Otherwise
// both indexes are built in memory over TF-IDF vectors.
func buildIndexes(ctx context.Context, cfg *config.Config, deps *Deps, records *store.RecordStore, doc *knowledge.Document, logger *slog.Logger) (index.Index, index.Index) {
	if cfg.DatabaseURL != "" && cfg.EmbeddingURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("vector store not reachable, using in-memory indexes", "error", err.Error())
		} else {
			embedder := model.NewOllamaEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
			k := persistentIndex(ctx, pg, embedder, service.CorpusKnowledge, logger)
			r := persistentIndex(ctx, pg, embedder, service.CorpusRecords, logger)
			if k != nil && r != nil {
				deps.closers = append(deps.closers, pg.Close)
				return k, r
			}
			pg.Close()
		}
	}

	var knowledgeItems []types.Item
	if doc != nil {
		knowledgeItems = doc.Items()
	}
	knowledgeIdx := index.BuildOrUnavailable(ctx, "knowledge", knowledgeItems, model.NewTFIDF(), logger)
	recordsIdx := index.BuildOrUnavailable(ctx, "records", store.RecordItems(records.Records()), model.NewTFIDF(), logger)
	return knowledgeIdx, recordsIdx
}

func persistentIndex(ctx context.Context, pg *store.PostgresStore, embedder model.EmbedderInterface, corpus string, logger *slog.Logger) index.Index {
	n, err := pg.CountChunks(ctx, corpus)
	if err != nil || n == 0 {
		logger.Warn("vector corpus empty or unreadable", "corpus", corpus, "chunks", n, "error", fmt.Sprint(err))
		return nil
	}
	logger.Info("using vector corpus", "corpus", corpus, "chunks", n)
	return store.NewVectorIndex(pg, embedder, corpus)
}

func doctorProviders(cfg *config.Config) []agent.Provider {
	var providers []agent.Provider
	if cfg.Groq.Enabled() {
		providers = append(providers, agent.NewGroq(cfg.Groq.APIKey, cfg.Groq.BaseURL, agent.GroqDoctorModels))
	}
	return providers
}

func patientProviders(cfg *config.Config) []agent.Provider {
	var providers []agent.Provider
	if cfg.Groq.Enabled() {
		providers = append(providers, agent.NewGroq(cfg.Groq.APIKey, cfg.Groq.BaseURL, agent.GroqModels))
	}
	if cfg.Gemini.Enabled() {
		providers = append(providers, agent.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, agent.GeminiModels))
	}
	return providers
}

func newGateway(cfg *config.Config, providers []agent.Provider, m *metrics.Metrics, logger *slog.Logger) *agent.Gateway {
	return agent.NewGateway(providers,
		agent.WithOverride("groq", cfg.Groq.Model),
		agent.WithOverride("gemini", cfg.Gemini.Model),
		agent.WithRateLimit(cfg.LLM.RequestsPerMinute),
		agent.WithTimeout(cfg.LLM.Timeout),
		agent.WithOptions(agent.Options{MaxTokens: cfg.LLM.MaxTokens, Temperature: 0.3}),
		agent.WithRecorder(m),
		agent.WithLogger(logger),
		agent.WithTokenCounter(tokenCounter),
	)
}

func chunkCount(doc *knowledge.Document) int {
	if doc == nil {
		return 0
	}
	return len(doc.Chunks)
}
