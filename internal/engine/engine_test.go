package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kenny/internal/config"
	"kenny/internal/ingest"
	"kenny/internal/store"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "kenny.db")
	cfg.Audit.Path = filepath.Join(dir, "audit", "events.ndjson")
	cfg.Embedding.Provider = "ollama"
	return cfg
}

type fakeExtractor struct {
	app     string
	records []ingest.Record
}

func (f *fakeExtractor) SourceApp() string                            { return f.app }
func (f *fakeExtractor) RequestAccess(ctx context.Context) error { return nil }
func (f *fakeExtractor) Pull(ctx context.Context, since int64) (<-chan ingest.Record, <-chan error) {
	records := make(chan ingest.Record, len(f.records))
	errs := make(chan error)
	for _, r := range f.records {
		records <- r
	}
	close(records)
	close(errs)
	return records, errs
}

func TestNewBuildsFullyWiredEngine(t *testing.T) {
	cfg := newTestConfig(t)
	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NotNil(t, e.Store)
	require.NotNil(t, e.Search)
	require.NotNil(t, e.Registry)
	require.NotNil(t, e.Plan)
	require.NotNil(t, e.Jobs)
	require.NotNil(t, e.Audit)
	require.NotNil(t, e.Metrics)
	require.True(t, e.Registry.Has("search"))
	require.True(t, e.Registry.Has("create_reminder"))
}

func TestIngestThenSearchFindsDocument(t *testing.T) {
	cfg := newTestConfig(t)
	ex := &fakeExtractor{app: "notes", records: []ingest.Record{
		{Kind: store.KindNote, Title: "Recipe", Content: "sourdough starter needs daily feeding", SourceID: "n1"},
	}}
	e, err := New(cfg, []ingest.Extractor{ex})
	require.NoError(t, err)
	defer e.Close()

	stats := e.Ingest(context.Background(), ingest.ModeFull, nil)
	require.Len(t, stats, 1)
	require.Equal(t, 1, stats[0].Created)

	result, err := e.SearchQuery(context.Background(), "sourdough", 5)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	require.Equal(t, "Recipe", result.Hits[0].Title)
}

func TestRunCreatesPendingPlan(t *testing.T) {
	cfg := newTestConfig(t)
	e, err := New(cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	p, err := e.Run(context.Background(), "remind me to renew my passport")
	require.NoError(t, err)
	require.Equal(t, "pending", p.Status)
	require.NotEmpty(t, p.OperationHash)
}
