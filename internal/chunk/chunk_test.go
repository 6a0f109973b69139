package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kenny/internal/store"
)

func TestSplitIsDeterministic(t *testing.T) {
	in := Input{DocumentID: "doc-1", Kind: store.KindNote, Title: "t", Content: strings.Repeat("sentence one. ", 200)}
	a := Split(in)
	b := Split(in)
	require.Equal(t, a, b)
	require.NotEmpty(t, a)
}

func TestSplitEventProducesSingleChunk(t *testing.T) {
	in := Input{DocumentID: "doc-1", Kind: store.KindEvent, Title: "Standup", Content: "daily sync"}
	chunks := Split(in)
	require.Len(t, chunks, 1)
	require.Equal(t, "Standup\n\ndaily sync", chunks[0].Text)
}

func TestSplitCoversContentWithoutOverlap(t *testing.T) {
	content := strings.Repeat("a", 3000)
	in := Input{DocumentID: "doc-1", Kind: store.KindNote, Content: content}
	chunks := Split(in)
	require.NotEmpty(t, chunks)

	var rebuilt strings.Builder
	for i, c := range chunks {
		if i > 0 {
			require.Equal(t, chunks[i-1].EndOffset, c.StartOffset, "chunks must be contiguous and non-overlapping")
		}
		rebuilt.WriteString(content[c.StartOffset:c.EndOffset])
	}
	require.Equal(t, content, rebuilt.String())
}

func TestSplitEmailPrependsHeaderToFirstChunkOnly(t *testing.T) {
	content := strings.Repeat("word ", 400)
	in := Input{DocumentID: "doc-1", Kind: store.KindEmail, Content: content, EmailHeader: "Subject: hi\n\n"}
	chunks := Split(in)
	require.True(t, len(chunks) >= 1)
	require.True(t, strings.HasPrefix(chunks[0].Text, "Subject: hi\n\n"))
	if len(chunks) > 1 {
		require.False(t, strings.HasPrefix(chunks[1].Text, "Subject:"))
	}
}

func TestSplitEmptyContentNoHeaderReturnsNil(t *testing.T) {
	in := Input{DocumentID: "doc-1", Kind: store.KindNote, Content: ""}
	require.Empty(t, Split(in))
}

func TestChunkIDStableAcrossRerun(t *testing.T) {
	in := Input{DocumentID: "doc-1", Kind: store.KindNote, Content: strings.Repeat("x", 2500)}
	first := Split(in)
	second := Split(in)
	for i := range first {
		require.Equal(t, first[i].ID, second[i].ID)
	}
}
