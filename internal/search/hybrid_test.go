package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kenny/internal/store"
	"kenny/internal/vectorindex"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSearchKeywordOnlyWhenNoEmbedder(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpsertDocument(store.Document{
		Kind: store.KindNote, Title: "Apollo plan", Content: "budget for the Apollo launch",
		SourceApp: "notes", SourceID: "n1", ContentHash: store.ContentHash(store.KindNote, "Apollo plan", "budget for the Apollo launch"),
	}, func() string { return "doc-1" })
	require.NoError(t, err)

	h := New(s, nil, nil)
	result, err := h.Search(context.Background(), "Apollo", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Equal(t, "doc-1", result.Hits[0].DocumentID)
	require.Equal(t, 0.0, result.Hits[0].VectorScore)
	require.False(t, result.Partial)
}

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	h := New(s, nil, nil)
	result, err := h.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	require.Empty(t, result.Hits)
}

type fakeEmbedder struct {
	vec   []float32
	delay time.Duration
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.vec, nil
}

func TestSearchFusesKeywordAndVectorScores(t *testing.T) {
	s := newTestStore(t)
	res, err := s.UpsertDocument(store.Document{
		Kind: store.KindNote, Title: "Apollo plan", Content: "budget for the Apollo launch",
		SourceApp: "notes", SourceID: "n1", ContentHash: store.ContentHash(store.KindNote, "Apollo plan", "budget for the Apollo launch"),
	}, func() string { return "doc-1" })
	require.NoError(t, err)
	require.NoError(t, s.ReplaceChunks(res.Document.ID, []store.Chunk{{ID: "c1", DocumentID: res.Document.ID, Text: "budget for the Apollo launch"}}))

	idx := vectorindex.NewBruteForce(s, "test-model", 2)
	require.NoError(t, idx.Put(context.Background(), "c1", []float32{1, 0}))

	h := New(s, idx, fakeEmbedder{vec: []float32{1, 0}})
	result, err := h.Search(context.Background(), "Apollo", 5)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	require.Greater(t, result.Hits[0].VectorScore, 0.0)
	require.Greater(t, result.Hits[0].Score, 0.0)
	require.False(t, result.Partial)
}

func TestSearchReturnsPartialResultsWhenBudgetExpires(t *testing.T) {
	s := newTestStore(t)
	res, err := s.UpsertDocument(store.Document{
		Kind: store.KindNote, Title: "Apollo plan", Content: "budget for the Apollo launch",
		SourceApp: "notes", SourceID: "n1", ContentHash: store.ContentHash(store.KindNote, "Apollo plan", "budget for the Apollo launch"),
	}, func() string { return "doc-1" })
	require.NoError(t, err)
	require.NoError(t, s.ReplaceChunks(res.Document.ID, []store.Chunk{{ID: "c1", DocumentID: res.Document.ID, Text: "budget for the Apollo launch"}}))

	idx := vectorindex.NewBruteForce(s, "test-model", 2)
	require.NoError(t, idx.Put(context.Background(), "c1", []float32{1, 0}))

	h := New(s, idx, fakeEmbedder{vec: []float32{1, 0}, delay: 50 * time.Millisecond}, WithBudget(time.Millisecond))
	result, err := h.Search(context.Background(), "Apollo", 5)
	require.NoError(t, err)
	require.True(t, result.Partial)
}

func TestSnippetHighlightsMatchedTerm(t *testing.T) {
	s := snippet("the quick brown fox jumps over the lazy dog", "fox", "")
	require.Contains(t, s, "<mark>fox</mark>")
}
