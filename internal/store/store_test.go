package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertDocumentCreatesThenReuses(t *testing.T) {
	s := newTestStore(t)

	d := Document{
		Kind: KindEmail, Title: "Project Apollo kickoff", Content: "budget and milestones",
		SourceApp: "mail", SourceID: "e1",
		CreatedAt: 100, UpdatedAt: 100, LastSeenAt: 100,
	}
	d.ContentHash = ContentHash(d.Kind, d.Title, d.Content)

	r1, err := s.UpsertDocument(d, uuid.NewString)
	require.NoError(t, err)
	require.True(t, r1.Created)
	require.NotEmpty(t, r1.Document.ID)

	d.UpdatedAt = 100 // identical run
	r2, err := s.UpsertDocument(d, uuid.NewString)
	require.NoError(t, err)
	require.True(t, r2.Skipped)
	require.Equal(t, r1.Document.ID, r2.Document.ID, "id must be stable across re-ingestion")
}

func TestUpsertDocumentUpdatesOnContentChange(t *testing.T) {
	s := newTestStore(t)

	d := Document{
		Kind: KindNote, Title: "t", Content: "v1",
		SourceApp: "notes", SourceID: "n1",
		CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1,
	}
	d.ContentHash = ContentHash(d.Kind, d.Title, d.Content)
	r1, err := s.UpsertDocument(d, uuid.NewString)
	require.NoError(t, err)

	d.ID = ""
	d.Content = "v2"
	d.ContentHash = ContentHash(d.Kind, d.Title, d.Content)
	d.UpdatedAt = 2
	r2, err := s.UpsertDocument(d, uuid.NewString)
	require.NoError(t, err)
	require.True(t, r2.Updated)
	require.Equal(t, r1.Document.ID, r2.Document.ID)
}

func TestClearSourceRemovesChildrenFirst(t *testing.T) {
	s := newTestStore(t)

	d1 := mustUpsert(t, s, Document{Kind: KindNote, Title: "a", SourceApp: "notes", SourceID: "1", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})
	d2 := mustUpsert(t, s, Document{Kind: KindNote, Title: "b", SourceApp: "notes", SourceID: "2", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})

	require.NoError(t, s.UpsertRelationship(Relationship{FromID: d1.ID, ToID: d2.ID, Kind: "mentions", Strength: 1, CreatedAt: 1}))
	require.NoError(t, s.ClearSource("notes"))

	_, err := s.GetDocument(d1.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRelationshipRejectsSelfEdge(t *testing.T) {
	s := newTestStore(t)
	d := mustUpsert(t, s, Document{Kind: KindNote, Title: "a", SourceApp: "notes", SourceID: "1", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})
	err := s.UpsertRelationship(Relationship{FromID: d.ID, ToID: d.ID, Kind: "mentions", Strength: 1, CreatedAt: 1})
	require.Error(t, err)
}

func TestRelatedDocumentsBoundedDepth(t *testing.T) {
	s := newTestStore(t)
	a := mustUpsert(t, s, Document{Kind: KindNote, Title: "a", SourceApp: "notes", SourceID: "1", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})
	b := mustUpsert(t, s, Document{Kind: KindNote, Title: "b", SourceApp: "notes", SourceID: "2", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})
	c := mustUpsert(t, s, Document{Kind: KindNote, Title: "c", SourceApp: "notes", SourceID: "3", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})

	require.NoError(t, s.UpsertRelationship(Relationship{FromID: a.ID, ToID: b.ID, Kind: "mentions", Strength: 1, CreatedAt: 1}))
	require.NoError(t, s.UpsertRelationship(Relationship{FromID: b.ID, ToID: c.ID, Kind: "mentions", Strength: 1, CreatedAt: 1}))

	depth1, err := s.RelatedDocuments(a.ID, "", 1)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{b.ID}, depth1)

	depth2, err := s.RelatedDocuments(a.ID, "", 2)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{b.ID, c.ID}, depth2)
}

func TestChunkReplaceInvalidatesEmbeddings(t *testing.T) {
	s := newTestStore(t)
	d := mustUpsert(t, s, Document{Kind: KindNote, Title: "a", SourceApp: "notes", SourceID: "1", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})

	require.NoError(t, s.ReplaceChunks(d.ID, []Chunk{{ID: "c1", DocumentID: d.ID, OrderIndex: 0, Text: "hello", StartOffset: 0, EndOffset: 5}}))
	require.NoError(t, s.PutEmbedding(EmbeddingRow{ChunkID: "c1", ModelID: "m", Dim: 2, Vector: Normalize([]float32{1, 1})}))

	require.NoError(t, s.ReplaceChunks(d.ID, []Chunk{{ID: "c2", DocumentID: d.ID, OrderIndex: 0, Text: "bye", StartOffset: 0, EndOffset: 3}}))

	_, err := s.GetChunk("c1")
	require.ErrorIs(t, err, ErrNotFound)

	embeds, err := s.AllEmbeddings("m")
	require.NoError(t, err)
	for _, e := range embeds {
		require.NotEqual(t, "c1", e.ChunkID)
	}
}

func TestEmbeddingRoundTripIsUnitNorm(t *testing.T) {
	v := Normalize([]float32{3, 4})
	n := Norm(v)
	require.InDelta(t, 1.0, n, 1e-4)

	decoded := DecodeVector(EncodeVector(v))
	require.InDeltaSlice(t, toFloat64(v), toFloat64(decoded), 1e-6)
}

func TestKeywordSearchFindsDocument(t *testing.T) {
	s := newTestStore(t)
	mustUpsert(t, s, Document{Kind: KindEmail, Title: "Project Apollo kickoff", Content: "budget and milestones", SourceApp: "mail", SourceID: "e1", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})
	mustUpsert(t, s, Document{Kind: KindEmail, Title: "Lunch", Content: "pizza", SourceApp: "mail", SourceID: "e2", CreatedAt: 1, UpdatedAt: 1, LastSeenAt: 1})

	hits, err := s.KeywordSearch("Apollo", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Contains(t, hits[0].Title, "Apollo")
}

func TestKeywordSearchEmptyQueryReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	hits, err := s.KeywordSearch("", 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func mustUpsert(t *testing.T, s *Store, d Document) Document {
	t.Helper()
	d.ContentHash = ContentHash(d.Kind, d.Title, d.Content)
	r, err := s.UpsertDocument(d, uuid.NewString)
	require.NoError(t, err)
	return r.Document
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
