package ids

import "testing"

func TestChunkIDIsDeterministic(t *testing.T) {
	a := ChunkID("doc-1", 40)
	b := ChunkID("doc-1", 40)
	if a != b {
		t.Fatalf("expected identical chunk ids, got %s and %s", a, b)
	}
	c := ChunkID("doc-1", 41)
	if a == c {
		t.Fatalf("expected different offsets to produce different ids")
	}
}

func TestSyntheticSourceIDStablePrefix(t *testing.T) {
	id := SyntheticSourceID("mail", "email", "t", "c")
	if len(id) < len("synthetic:") || id[:len("synthetic:")] != "synthetic:" {
		t.Fatalf("expected synthetic: prefix, got %s", id)
	}
}

func TestCanonicalHashOrderIndependentOfArgOrder(t *testing.T) {
	h1 := CanonicalHash([]MutatingStep{
		{ToolName: "create_reminder", Arguments: map[string]any{"title": "call Jane", "when": "tomorrow 2pm"}},
	})
	h2 := CanonicalHash([]MutatingStep{
		{ToolName: "create_reminder", Arguments: map[string]any{"when": "tomorrow 2pm", "title": "call Jane"}},
	})
	if h1 != h2 {
		t.Fatalf("expected map key order to not affect hash, got %s vs %s", h1, h2)
	}
}

func TestCanonicalHashChangesWithArgValue(t *testing.T) {
	h1 := CanonicalHash([]MutatingStep{{ToolName: "create_reminder", Arguments: map[string]any{"title": "call Jane"}}})
	h2 := CanonicalHash([]MutatingStep{{ToolName: "create_reminder", Arguments: map[string]any{"title": "call Bob"}}})
	if h1 == h2 {
		t.Fatalf("expected differing arguments to produce different hashes")
	}
}

func TestCanonicalHashEmptyStepsStable(t *testing.T) {
	h1 := CanonicalHash(nil)
	h2 := CanonicalHash([]MutatingStep{})
	if h1 != h2 {
		t.Fatalf("expected empty step sets to hash identically")
	}
}
