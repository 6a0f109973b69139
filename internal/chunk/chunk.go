// Package chunk implements Kenny's Chunker: it splits a
// Document's content into a finite, ordered, non-overlapping sequence of
// Chunks with deterministic ids, so re-running it over identical content
// always yields identical chunk ids (internal/ids.ChunkID is a pure
// function of document id and start offset).
package chunk

import (
	"strings"
	"unicode/utf8"

	"kenny/internal/ids"
	"kenny/internal/store"
)

const (
	// emailWindowBytes bounds each email body chunk.
	emailWindowBytes = 800

	// noteWindowTargetBytes is the target window size for notes/files/
	// messages; chosen close to the email window for consistent retrieval
	// granularity.
	noteWindowTargetBytes = 1000

	// softOverlapBytes is the lookahead/lookback allowance used to find a
	// sentence boundary near the target cut point. It never causes two
	// stored chunks to cover the same bytes; it only adjusts where one
	// chunk ends and the next begins.
	softOverlapBytes = 40
)

// Input describes the document content to split.
type Input struct {
	DocumentID string
	Kind       store.Kind
	Title      string
	Content    string
	// EmailHeader is prepended to the first chunk's text for KindEmail
	// documents, e.g. "Subject: ...\nFrom: ...\nTo: ...\n\n". Ignored for
	// other kinds.
	EmailHeader string
}

// Split produces the ordered, non-overlapping chunk sequence for a
// document.
func Split(in Input) []store.Chunk {
	switch in.Kind {
	case store.KindEvent, store.KindReminder, store.KindContact:
		return singleChunk(in)
	case store.KindEmail:
		return slidingWindow(in, emailWindowBytes, in.EmailHeader)
	default: // note, message, file
		return slidingWindow(in, noteWindowTargetBytes, "")
	}
}

// singleChunk composes one chunk from title + body, used for kinds whose
// content is inherently atomic.
func singleChunk(in Input) []store.Chunk {
	text := in.Title
	if in.Content != "" {
		if text != "" {
			text += "\n\n"
		}
		text += in.Content
	}
	if text == "" {
		return nil
	}
	return []store.Chunk{{
		ID:          ids.ChunkID(in.DocumentID, 0),
		DocumentID:  in.DocumentID,
		OrderIndex:  0,
		Text:        text,
		StartOffset: 0,
		EndOffset:   len(text),
	}}
}

// slidingWindow splits content into target-byte windows, preferring to cut
// at a sentence boundary within softOverlapBytes of the target, falling
// back to a hard cut aligned to a UTF-8 rune boundary. header, if set, is
// prepended to the first chunk's text only; offsets are always relative to
// the underlying content, not the header.
func slidingWindow(in Input, target int, header string) []store.Chunk {
	content := in.Content
	if content == "" {
		if header == "" {
			return nil
		}
		return []store.Chunk{{
			ID: ids.ChunkID(in.DocumentID, 0), DocumentID: in.DocumentID,
			OrderIndex: 0, Text: header, StartOffset: 0, EndOffset: 0,
		}}
	}

	var chunks []store.Chunk
	start := 0
	order := 0
	for start < len(content) {
		end := nextCut(content, start, target)
		text := content[start:end]
		if order == 0 && header != "" {
			text = header + text
		}
		chunks = append(chunks, store.Chunk{
			ID:          ids.ChunkID(in.DocumentID, start),
			DocumentID:  in.DocumentID,
			OrderIndex:  order,
			Text:        text,
			StartOffset: start,
			EndOffset:   end,
		})
		start = end
		order++
	}
	return chunks
}

// nextCut finds the end offset for a window starting at start, preferring
// a sentence boundary (".", "!", "?" followed by space or end-of-string)
// within softOverlapBytes of start+target, otherwise a hard cut at
// start+target aligned to a rune boundary.
func nextCut(content string, start, target int) int {
	hardEnd := start + target
	if hardEnd >= len(content) {
		return len(content)
	}

	lo := hardEnd - softOverlapBytes
	if lo < start {
		lo = start
	}
	hi := hardEnd + softOverlapBytes
	if hi > len(content) {
		hi = len(content)
	}

	if cut := sentenceBoundary(content, lo, hi); cut > start {
		return cut
	}
	return alignToRuneBoundary(content, hardEnd)
}

// sentenceBoundary returns the byte offset just after the last
// sentence-ending punctuation in content[lo:hi], or -1 if none found.
func sentenceBoundary(content string, lo, hi int) int {
	window := content[lo:hi]
	best := -1
	for _, punct := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(window, punct); idx >= 0 {
			cut := lo + idx + 1 // include the punctuation, not the trailing space/newline
			if cut > best {
				best = cut
			}
		}
	}
	return best
}

// alignToRuneBoundary walks i backward until it does not split a
// multi-byte UTF-8 rune.
func alignToRuneBoundary(content string, i int) int {
	if i >= len(content) {
		return len(content)
	}
	for i > 0 && !utf8.RuneStart(content[i]) {
		i--
	}
	return i
}
