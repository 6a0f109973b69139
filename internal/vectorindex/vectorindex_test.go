package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kenny/internal/store"
)

func TestBruteForcePutAndSearchRanksBySimilarity(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	idx := NewBruteForce(s, "test-model", 2)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Put(ctx, "b", []float32{0, 1}))
	require.NoError(t, idx.Put(ctx, "c", []float32{0.9, 0.1}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "a", hits[0].ChunkID)
	require.InDelta(t, 1.0, hits[0].Similarity, 1e-3)
}

func TestBruteForceDeleteRemovesFromResults(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	idx := NewBruteForce(s, "test-model", 2)
	ctx := context.Background()
	require.NoError(t, idx.Put(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Delete(ctx, "a"))

	hits, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, hits)
}
