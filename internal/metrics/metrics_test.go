package metrics

import "testing"

func TestNoopRecorderDiscardsWithoutPanic(t *testing.T) {
	r := Noop()
	r.Count(IngestDocuments, map[string]string{"source": "notes"})
	r.Observe(SearchLatencyMs, 12.5, map[string]string{"mode": "hybrid"})
}

func TestNewRecorderRecordsWithoutPanic(t *testing.T) {
	r := New()
	r.Count(PlanCreated, nil)
	r.Observe(JobsRunDurationMs, 3.2, map[string]string{"job": "ingest_notes"})
}
