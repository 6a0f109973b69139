// Package search implements Kenny's Hybrid Search: BM25
// keyword retrieval fused with vector similarity, progressive fallback
// thresholds so a query never comes back empty just because one signal was
// weak, and snippet extraction with <mark> markers.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"kenny/internal/kerrors"
	"kenny/internal/logging"
	"kenny/internal/store"
	"kenny/internal/vectorindex"
)

// Embedder turns query text into the vector space the configured
// embedding model and vector index share. internal/embedding.EmbeddingEngine
// satisfies this directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Hit is one ranked hybrid search result.
type Hit struct {
	DocumentID  string
	ChunkID     string
	Title       string
	Snippet     string
	Score       float64
	BM25Score   float64
	VectorScore float64
	SourceApp   string
	SourceURI   string
}

// Result is Search's return value. Partial is true when the wall-clock
// budget ran out before every candidate could be scored and enriched; Hits
// still holds whatever was normalized and ranked up to that point.
type Result struct {
	Hits    []Hit
	Partial bool
}

// Hybrid fuses keyword and vector retrieval over a Store.
type Hybrid struct {
	store       *store.Store
	vectorIndex vectorindex.Index // nil if no embedding backend is configured
	embedder    Embedder          // nil if no embedding backend is configured

	bm25Weight    float64
	vectorWeight  float64
	fallbackTiers []float64     // descending score thresholds tried in order, highest first
	budget        time.Duration // wall-clock budget for one Search call; 0 disables it
}

// Option configures a Hybrid searcher.
type Option func(*Hybrid)

// WithWeights overrides the default 0.5/0.5 BM25/vector fusion weights.
func WithWeights(bm25, vector float64) Option {
	return func(h *Hybrid) { h.bm25Weight, h.vectorWeight = bm25, vector }
}

// WithFallbackTiers overrides the default [0.40, 0.25, 0.15, 0.05] ladder.
// 0.01 is always appended as a final safety net.
func WithFallbackTiers(tiers []float64) Option {
	return func(h *Hybrid) { h.fallbackTiers = tiers }
}

// WithBudget sets the wall-clock budget Search allows itself before cutting
// a query short and returning whatever it has scored so far with
// Result.Partial set. d <= 0 disables the budget.
func WithBudget(d time.Duration) Option {
	return func(h *Hybrid) { h.budget = d }
}

// New builds a Hybrid searcher. vectorIndex and embedder may both be nil,
// in which case Search degrades to keyword-only.
func New(s *store.Store, vectorIndex vectorindex.Index, embedder Embedder, opts ...Option) *Hybrid {
	h := &Hybrid{
		store: s, vectorIndex: vectorIndex, embedder: embedder,
		bm25Weight: 0.5, vectorWeight: 0.5,
		fallbackTiers: []float64{0.40, 0.25, 0.15, 0.05},
		budget:        2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type scored struct {
	hit       Hit
	updatedAt int64
}

// Search runs the full hybrid algorithm and returns up to limit hits. If the
// configured budget elapses before scoring finishes, Search returns whatever
// normalized, ranked hits it has gathered so far with Result.Partial set
// rather than erroring.
func (h *Hybrid) Search(ctx context.Context, queryText string, limit int) (Result, error) {
	timer := logging.StartTimer(logging.CategorySearch, "Hybrid.Search")
	defer timer.Stop()

	if limit <= 0 {
		limit = 10
	}
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return Result{}, nil
	}

	if h.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.budget)
		defer cancel()
	}

	partial := false

	bm25Hits, bm25Max, err := h.keywordCandidates(queryText, 2*limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Partial: true}, nil
		}
		return Result{}, err
	}

	vecHits, vecMax, vecErr := h.vectorCandidates(ctx, queryText, 2*limit)
	if vecErr != nil {
		if errors.Is(vecErr, context.DeadlineExceeded) {
			partial = true
		}
		logging.SearchDebug("vector backend unavailable, falling back to keyword-only: %v", vecErr)
	}

	if bm25Max == 0 && vecMax == 0 {
		return Result{Partial: partial}, nil
	}

	merged := make(map[string]*scored)
	for docID, s := range bm25Hits {
		merged[docID] = &scored{hit: Hit{DocumentID: docID, Title: s.hit.Title, Snippet: s.hit.Snippet, BM25Score: s.hit.BM25Score}}
	}
	for docID, v := range vecHits {
		e, ok := merged[docID]
		if !ok {
			e = &scored{hit: Hit{DocumentID: docID}}
			merged[docID] = e
		}
		e.hit.VectorScore = v.hit.VectorScore
		e.hit.ChunkID = v.hit.ChunkID
		if e.hit.Snippet == "" {
			e.hit.Snippet = v.hit.Snippet
		}
	}

	all := make([]*scored, 0, len(merged))
	for docID, e := range merged {
		if ctx.Err() != nil {
			partial = true
			break
		}

		normBM25, normVec := 0.0, 0.0
		if bm25Max > 0 {
			normBM25 = e.hit.BM25Score / bm25Max
		}
		if vecMax > 0 {
			normVec = e.hit.VectorScore / vecMax
		}
		e.hit.Score = h.bm25Weight*normBM25 + h.vectorWeight*normVec

		doc, err := h.store.GetDocument(docID)
		if err == nil {
			if e.hit.Title == "" {
				e.hit.Title = doc.Title
			}
			e.hit.SourceApp = doc.SourceApp
			e.hit.SourceURI = doc.SourceURI
			e.updatedAt = doc.UpdatedAt
			e.hit.Snippet = snippet(doc.Content, queryText, e.hit.Snippet)
		}
		all = append(all, e)
	}

	tiers := append(append([]float64{}, h.fallbackTiers...), 0.01)
	need := (limit + 1) / 2
	threshold := tiers[len(tiers)-1]
	for _, t := range tiers {
		count := 0
		for _, e := range all {
			if e.hit.Score >= t {
				count++
			}
		}
		if count >= need {
			threshold = t
			break
		}
	}

	filtered := all[:0]
	for _, e := range all {
		if e.hit.Score >= threshold {
			filtered = append(filtered, e)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].hit.Score != filtered[j].hit.Score {
			return filtered[i].hit.Score > filtered[j].hit.Score
		}
		oi := termOverlap(queryText, filtered[i].hit.Title+" "+filtered[i].hit.Snippet)
		oj := termOverlap(queryText, filtered[j].hit.Title+" "+filtered[j].hit.Snippet)
		if oi != oj {
			return oi > oj
		}
		return filtered[i].updatedAt > filtered[j].updatedAt
	})

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	out := make([]Hit, len(filtered))
	for i, e := range filtered {
		out[i] = e.hit
	}
	return Result{Hits: out, Partial: partial}, nil
}

func (h *Hybrid) keywordCandidates(query string, limit int) (map[string]*scored, float64, error) {
	hits, err := h.store.KeywordSearch(query, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make(map[string]*scored, len(hits))
	max := 0.0
	for _, kh := range hits {
		out[kh.DocumentID] = &scored{hit: Hit{DocumentID: kh.DocumentID, Title: kh.Title, BM25Score: kh.Score, Snippet: kh.Content}}
		if kh.Score > max {
			max = kh.Score
		}
	}
	return out, max, nil
}

func (h *Hybrid) vectorCandidates(ctx context.Context, query string, limit int) (map[string]*scored, float64, error) {
	if h.vectorIndex == nil || h.embedder == nil {
		return nil, 0, &kerrors.DependencyUnavailableError{Service: "vector_index"}
	}
	vec, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, 0, &kerrors.DependencyUnavailableError{Service: "embedder", Cause: err}
	}
	hits, err := h.vectorIndex.Search(ctx, vec, limit)
	if err != nil {
		return nil, 0, err
	}

	out := make(map[string]*scored)
	max := 0.0
	for _, vh := range hits {
		c, err := h.store.GetChunk(vh.ChunkID)
		if err != nil {
			continue
		}
		existing, ok := out[c.DocumentID]
		if !ok || vh.Similarity > existing.hit.VectorScore {
			out[c.DocumentID] = &scored{hit: Hit{DocumentID: c.DocumentID, ChunkID: c.ID, VectorScore: vh.Similarity, Snippet: c.Text}}
		}
		if vh.Similarity > max {
			max = vh.Similarity
		}
	}
	return out, max, nil
}

// termOverlap counts how many distinct query terms appear in text, used as
// the first tie-break.
func termOverlap(query, text string) int {
	text = strings.ToLower(text)
	count := 0
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(text, term) {
			count++
		}
	}
	return count
}

// snippet extracts roughly a 32-token window around the first matched
// query term in content, wrapping matches in <mark> tags with ellipses at
// truncation boundaries. fallback is used verbatim if content is empty.
func snippet(content, query, fallback string) string {
	if content == "" {
		return fallback
	}
	terms := strings.Fields(strings.ToLower(query))
	lower := strings.ToLower(content)

	matchAt := -1
	for _, term := range terms {
		if idx := strings.Index(lower, term); idx >= 0 {
			matchAt = idx
			break
		}
	}
	if matchAt < 0 {
		return truncateWords(content, 32)
	}

	words := strings.Fields(content)
	// Find which word index the match falls in by walking cumulative byte length.
	pos, wordIdx := 0, 0
	for i, w := range words {
		start := strings.Index(content[pos:], w) + pos
		if start <= matchAt && matchAt < start+len(w) {
			wordIdx = i
			break
		}
		pos = start + len(w)
	}

	lo := wordIdx - 16
	if lo < 0 {
		lo = 0
	}
	hi := wordIdx + 16
	if hi > len(words) {
		hi = len(words)
	}
	window := strings.Join(words[lo:hi], " ")

	marked := highlightTerms(window, terms)
	if lo > 0 {
		marked = "…" + marked
	}
	if hi < len(words) {
		marked += "…"
	}
	return marked
}

func truncateWords(content string, n int) string {
	words := strings.Fields(content)
	if len(words) <= n {
		return content
	}
	return strings.Join(words[:n], " ") + "…"
}

func highlightTerms(text string, terms []string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	i := 0
	for i < len(text) {
		matched := false
		for _, term := range terms {
			if term == "" {
				continue
			}
			if strings.HasPrefix(lower[i:], term) {
				b.WriteString("<mark>")
				b.WriteString(text[i : i+len(term)])
				b.WriteString("</mark>")
				i += len(term)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(text[i])
			i++
		}
	}
	return b.String()
}
