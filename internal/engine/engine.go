// Package engine wires Kenny's components together behind three entry
// points -- Ingest, SearchQuery and Run -- that the CLI (and any future
// frontend) calls into. It owns construction order: store, embedder,
// vector index, hybrid search, tool catalog, audit sink, compensation and
// plan engines, background processor and metrics recorder.
package engine

import (
	"context"
	"fmt"
	"time"

	"kenny/internal/audit"
	"kenny/internal/compensation"
	"kenny/internal/config"
	"kenny/internal/embedding"
	"kenny/internal/ids"
	"kenny/internal/ingest"
	"kenny/internal/jobs"
	"kenny/internal/llmplanner"
	"kenny/internal/logging"
	"kenny/internal/metrics"
	"kenny/internal/plan"
	"kenny/internal/search"
	"kenny/internal/store"
	"kenny/internal/tools"
	"kenny/internal/tools/catalog"
	"kenny/internal/vectorindex"
)

// Engine is Kenny's facade: the single object cmd/kenny constructs and
// calls into. All components it owns share one *store.Store connection
// and one correlation id per call.
type Engine struct {
	cfg *config.Config

	Store       *store.Store
	Embedder    embedding.EmbeddingEngine // nil if embedding backend unavailable
	VectorIndex vectorindex.Index
	Search      *search.Hybrid
	Registry    *tools.Registry
	Plan        *plan.Engine
	Jobs        *jobs.Processor
	Audit       *audit.Sink
	Metrics     *metrics.Recorder

	extractors []ingest.Extractor
}

// searcherAdapter satisfies catalog.Searcher by converting search.Hit into
// catalog.SearchHit. Kept here, not in internal/search or internal/tools,
// because neither of those packages may import the other.
type searcherAdapter struct{ h *search.Hybrid }

func (a searcherAdapter) Search(ctx context.Context, query string, limit int) ([]catalog.SearchHit, error) {
	result, err := a.h.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.SearchHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		out = append(out, catalog.SearchHit{
			DocumentID: h.DocumentID,
			Title:      h.Title,
			Snippet:    h.Snippet,
			Score:      h.Score,
		})
	}
	return out, nil
}

// New builds a fully wired Engine from cfg. extractors is the set of
// source integrations available for Ingest; it may be nil/empty when the
// caller only needs Search or Run.
func New(cfg *config.Config, extractors []ingest.Extractor) (*Engine, error) {
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		logging.BootError("embedding engine unavailable, search will be keyword-only: %v", err)
	}

	var idx vectorindex.Index
	if embedder != nil {
		idx = vectorindex.NewBruteForce(s, ModelID(cfg), embedder.Dimensions())
	}

	var searchEmbedder search.Embedder
	if embedder != nil {
		searchEmbedder = embedder
	}
	hybrid := search.New(s, idx, searchEmbedder,
		search.WithWeights(cfg.Search.BM25Weight, cfg.Search.EmbeddingWeight),
		search.WithFallbackTiers(cfg.Search.FallbackTiers),
		search.WithBudget(cfg.Search.Budget),
	)

	registry := tools.NewRegistry()
	if err := catalog.RegisterAll(registry, catalog.Deps{Store: s, Searcher: searcherAdapter{hybrid}}); err != nil {
		s.Close()
		return nil, fmt.Errorf("register tool catalog: %w", err)
	}

	sink, err := audit.Open(cfg.Audit.Path, audit.WithMaxBytes(cfg.Audit.MaxBytes), audit.WithRetention(cfg.Audit.Retention))
	if err != nil {
		logging.BootError("audit sink unavailable, falling back to noop: %v", err)
		sink = audit.NoopSink()
	}

	compensator := compensation.NewEngine(registry, sink)

	var planner plan.Planner
	if cfg.LLM.APIKey != "" {
		planner = llmplanner.New(cfg.LLM.APIKey, cfg.LLM.Model, parseTimeout(cfg.LLM.Timeout))
	}
	planEngine := plan.NewEngine(s, registry, planner, compensator, sink)

	processor := jobs.NewProcessor(cfg.Jobs.MaxConcurrentWorkers,
		jobs.WithStore(s),
		jobs.WithHistorySize(cfg.Jobs.HistorySize),
		jobs.WithCleanup(cfg.Jobs.CleanupInterval, cfg.Jobs.CleanupRetention),
	)

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	} else {
		rec = metrics.Noop()
	}

	return &Engine{
		cfg: cfg, Store: s, Embedder: embedder, VectorIndex: idx,
		Search: hybrid, Registry: registry, Plan: planEngine,
		Jobs: processor, Audit: sink, Metrics: rec, extractors: extractors,
	}, nil
}

// Close releases the Engine's resources. The processor must be started
// via Start before Close will have anything to wait on.
func (e *Engine) Close() error {
	e.Jobs.Stop()
	e.Audit.Close()
	return e.Store.Close()
}

// Start brings up the background processor's worker pool. Call once
// before submitting jobs via Ingest's async path.
func (e *Engine) Start(ctx context.Context) { e.Jobs.Start(ctx) }

// Ingest runs every registered extractor (or a filtered subset named in
// sources) in the given mode and returns each source's stats.
func (e *Engine) Ingest(ctx context.Context, mode ingest.Mode, sources []string) []ingest.Stats {
	targets := e.extractors
	if len(sources) > 0 {
		targets = filterExtractors(e.extractors, sources)
	}

	coordinator := ingest.New(e.Store, e.Embedder, e.VectorIndex, ModelID(e.cfg))
	start := time.Now()
	stats := coordinator.Run(ctx, targets, mode)
	for _, st := range stats {
		e.Metrics.Count(metrics.IngestDocuments, map[string]string{"source": st.Source})
		if st.Errors > 0 {
			e.Metrics.Count(metrics.IngestErrors, map[string]string{"source": st.Source})
		}
	}
	e.Metrics.Observe(metrics.IngestDurationMs, float64(time.Since(start).Milliseconds()), map[string]string{"mode": string(mode)})
	return stats
}

// SearchQuery runs hybrid search for the given query text.
func (e *Engine) SearchQuery(ctx context.Context, query string, limit int) (search.Result, error) {
	start := time.Now()
	result, err := e.Search.Search(ctx, query, limit)
	e.Metrics.Observe(metrics.SearchLatencyMs, float64(time.Since(start).Milliseconds()), nil)
	return result, err
}

// Run decomposes a natural-language query into a plan, logging a fresh
// correlation id shared by every audit event the plan produces. It does
// not confirm or execute the plan; callers inspect Plan.Status and the
// operation hash, then call e.Plan.Confirm/Execute explicitly.
func (e *Engine) Run(ctx context.Context, query string) (*plan.Plan, error) {
	correlationID := ids.New()
	p, err := e.Plan.Create(ctx, correlationID, query)
	if err != nil {
		return nil, err
	}
	e.Metrics.Count(metrics.PlanCreated, map[string]string{"origin": string(p.ContentOrigin)})
	return p, nil
}

func buildEmbedder(cfg *config.Config) (embedding.EmbeddingEngine, error) {
	return embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       cfg.Embedding.TaskType,
	})
}

// ModelID returns the embedding model identifier used to scope a
// vector index and its embeddings table rows for the configured provider.
func ModelID(cfg *config.Config) string {
	if cfg.Embedding.Provider == "genai" {
		return cfg.Embedding.GenAIModel
	}
	return cfg.Embedding.OllamaModel
}

func parseTimeout(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

func filterExtractors(all []ingest.Extractor, names []string) []ingest.Extractor {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	out := make([]ingest.Extractor, 0, len(names))
	for _, ex := range all {
		if want[ex.SourceApp()] {
			out = append(out, ex)
		}
	}
	return out
}
