package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kenny/internal/store"
	"kenny/internal/tools"
)

func newTestRegistry(t *testing.T) (*tools.Registry, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r := tools.NewRegistry()
	require.NoError(t, RegisterAll(r, Deps{Store: s}))
	return r, s
}

func TestCreateAndDeleteReminder(t *testing.T) {
	r, s := newTestRegistry(t)

	result, err := r.Execute(context.Background(), "create_reminder", map[string]any{
		"title": "call Jane", "due_at": int64(1000),
	})
	require.NoError(t, err)
	docID := result.Result
	require.NotEmpty(t, docID)

	rem, err := s.GetReminder(docID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), rem.DueAt)

	_, err = r.Execute(context.Background(), "delete_reminder", map[string]any{"document_id": docID})
	require.NoError(t, err)

	_, err = s.GetDocument(docID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateEventAndCalendarList(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Execute(context.Background(), "create_event", map[string]any{
		"title": "standup", "starts_at": int64(500), "ends_at": int64(600),
	})
	require.NoError(t, err)

	result, err := r.Execute(context.Background(), "calendar_list", map[string]any{"from": int64(0), "to": int64(1000)})
	require.NoError(t, err)
	require.Contains(t, result.Result, "standup")
}

func TestSearchFallsBackToKeyword(t *testing.T) {
	r, s := newTestRegistry(t)
	_, err := s.UpsertDocument(store.Document{
		Kind: store.KindNote, Title: "Apollo plan", Content: "budget", SourceApp: "notes", SourceID: "n1",
		ContentHash: store.ContentHash(store.KindNote, "Apollo plan", "budget"),
	}, func() string { return "doc-1" })
	require.NoError(t, err)

	result, err := r.Execute(context.Background(), "search", map[string]any{"query": "Apollo"})
	require.NoError(t, err)
	require.Contains(t, result.Result, "doc-1")
}

func TestCreateReminderRequiresTitle(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Execute(context.Background(), "create_reminder", map[string]any{"due_at": int64(1)})
	require.ErrorIs(t, err, tools.ErrMissingRequiredArg)
}
