package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kenny/internal/store"
)

type fakeExtractor struct {
	app     string
	records []Record
	denied  bool
}

func (f *fakeExtractor) SourceApp() string { return f.app }

func (f *fakeExtractor) RequestAccess(ctx context.Context) error {
	if f.denied {
		return errDenied
	}
	return nil
}

func (f *fakeExtractor) Pull(ctx context.Context, since int64) (<-chan Record, <-chan error) {
	records := make(chan Record, len(f.records))
	errs := make(chan error)
	for _, r := range f.records {
		records <- r
	}
	close(records)
	close(errs)
	return records, errs
}

type deniedErr struct{}

func (deniedErr) Error() string { return "access denied" }

var errDenied = deniedErr{}

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, nil, nil, ""), s
}

func TestRunSourceCreatesDocumentsAndChunks(t *testing.T) {
	c, s := newTestCoordinator(t)
	ex := &fakeExtractor{app: "notes", records: []Record{
		{Kind: store.KindNote, Title: "Groceries", Content: "milk, eggs, bread", SourceID: "n1"},
	}}

	stats := c.RunSource(context.Background(), ex, ModeFull)
	require.Equal(t, 1, stats.Processed)
	require.Equal(t, 1, stats.Created)
	require.Equal(t, 0, stats.Errors)

	doc, err := s.GetDocumentBySource("notes", "n1")
	require.NoError(t, err)
	require.Equal(t, "Groceries", doc.Title)
}

func TestRunSourceSkipsUnchangedDocumentOnRerun(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ex := &fakeExtractor{app: "notes", records: []Record{
		{Kind: store.KindNote, Title: "Groceries", Content: "milk, eggs, bread", SourceID: "n1", UpdatedAt: 100},
	}}

	first := c.RunSource(context.Background(), ex, ModeFull)
	require.Equal(t, 1, first.Created)

	second := c.RunSource(context.Background(), ex, ModeIncremental)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 0, second.Updated)
}

func TestRunSourceDeniedAccessDoesNotPanic(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ex := &fakeExtractor{app: "calendar", denied: true}

	stats := c.RunSource(context.Background(), ex, ModeFull)
	require.Equal(t, 1, stats.Errors)
	require.Equal(t, 0, stats.Processed)
}

func TestRunSourceAssignsSyntheticSourceID(t *testing.T) {
	c, s := newTestCoordinator(t)
	ex := &fakeExtractor{app: "files", records: []Record{
		{Kind: store.KindFile, Title: "untitled", Content: "some content with no stable id"},
	}}

	stats := c.RunSource(context.Background(), ex, ModeFull)
	require.Equal(t, 1, stats.Created)

	doc, err := s.GetDocument(mustFirstDocID(t, s, "files"))
	require.NoError(t, err)
	require.Contains(t, doc.SourceID, "synthetic:")
}

func mustFirstDocID(t *testing.T, s *store.Store, sourceApp string) string {
	t.Helper()
	hits, err := s.KeywordSearch("untitled", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	return hits[0].DocumentID
}

func TestRunSourceLinksEmailToContactByAddress(t *testing.T) {
	c, s := newTestCoordinator(t)
	contacts := &fakeExtractor{app: "contacts", records: []Record{
		{
			Kind: store.KindContact, Title: "Jess Wong", Content: "Jess Wong", SourceID: "c1",
			Side: store.Contact{FullName: "Jess Wong", Emails: `["jess@example.com"]`},
		},
	}}
	require.Equal(t, 1, c.RunSource(context.Background(), contacts, ModeFull).Created)

	contactDoc, err := s.GetDocumentBySource("contacts", "c1")
	require.NoError(t, err)

	mail := &fakeExtractor{app: "mail", records: []Record{
		{
			Kind: store.KindEmail, Title: "Re: lunch", Content: "noon works", SourceID: "e1",
			Side: store.Email{FromAddress: "jess@example.com", ToAddresses: `["me@example.com"]`},
		},
	}}
	require.Equal(t, 1, c.RunSource(context.Background(), mail, ModeFull).Created)

	emailDoc, err := s.GetDocumentBySource("mail", "e1")
	require.NoError(t, err)

	related, err := s.RelatedDocuments(emailDoc.ID, "email_contact", 1)
	require.NoError(t, err)
	require.Contains(t, related, contactDoc.ID)
}

func TestRunMultiSourceContinuesAfterOneSourceFails(t *testing.T) {
	c, _ := newTestCoordinator(t)
	bad := &fakeExtractor{app: "bad", denied: true}
	good := &fakeExtractor{app: "good", records: []Record{
		{Kind: store.KindNote, Title: "ok", Content: "fine", SourceID: "g1"},
	}}

	results := c.Run(context.Background(), []Extractor{bad, good}, ModeFull)
	require.Len(t, results, 2)
	require.Equal(t, 1, results[0].Errors)
	require.Equal(t, 1, results[1].Created)
}
