package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmitWritesNDJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.ndjson")

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	sink.Emit(Event{
		CorrelationID: "corr-1",
		Event:         "plan.confirmed",
		PlanID:        "plan-1",
		RiskLevel:     "high",
	})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("could not read audit file: %v", err)
	}

	var got Event
	lines := splitLines(data)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if err := json.Unmarshal(lines[0], &got); err != nil {
		t.Fatalf("could not unmarshal event: %v", err)
	}
	if got.CorrelationID != "corr-1" || got.Event != "plan.confirmed" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Timestamp == 0 {
		t.Error("expected timestamp to be stamped")
	}
}

func TestEmitOrderPreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.ndjson")

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for i := 0; i < 50; i++ {
		sink.Emit(Event{CorrelationID: "c", Event: "step", Details: map[string]any{"i": i}})
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := splitLines(data)
	if len(lines) != 50 {
		t.Fatalf("expected 50 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if int(e.Details["i"].(float64)) != i {
			t.Errorf("line %d out of order: %v", i, e.Details["i"])
		}
	}
}

func TestRotationOnSizeThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.ndjson")

	sink, err := Open(path, WithMaxBytes(200))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		sink.Emit(Event{CorrelationID: "c", Event: "step-that-is-reasonably-long-to-force-rotation"})
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("expected rotation to produce at least 2 files, got %d", len(entries))
	}
}

func TestPruneRemovesOldRotatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.ndjson")

	old := path + ".100"
	if err := os.WriteFile(old, []byte("{}\n"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	oldTime := time.Now().Add(-60 * 24 * time.Hour)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	sink, err := Open(path, WithRetention(30*24*time.Hour))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sink.Close()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("expected old rotated file to be pruned, stat err=%v", err)
	}
}

func TestNoopSinkDiscardsEvents(t *testing.T) {
	sink := NoopSink()
	sink.Emit(Event{Event: "noop"})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close on noop sink failed: %v", err)
	}
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
