// Package metrics is a thin OpenTelemetry adapter for Kenny's counters and
// histograms. It is entirely optional: when config.Metrics.Enabled is
// false, Noop() returns a Recorder whose methods do nothing, so callers
// never need to branch on whether metrics are on.
package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records Kenny's operational counters and latency histograms.
// Instruments are created lazily and cached by name on first use.
type Recorder struct {
	meter metric.Meter

	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// New builds a Recorder against the global OpenTelemetry meter provider,
// scoped under the "kenny" instrumentation name.
func New() *Recorder {
	return &Recorder{
		meter:      otel.Meter("kenny"),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// Noop returns a Recorder that discards everything; used when metrics are
// disabled in config so call sites don't need a nil check.
func Noop() *Recorder { return &Recorder{} }

// Count increments a named counter by one, tagged with labels.
func (r *Recorder) Count(name string, labels map[string]string) {
	if r == nil || r.meter == nil {
		return
	}
	c, ok := r.getCounter(name)
	if !ok {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(toAttrs(labels)...))
}

// Observe records a value in a named histogram, tagged with labels. Used
// for search latency, ingest duration and job run time.
func (r *Recorder) Observe(name string, value float64, labels map[string]string) {
	if r == nil || r.meter == nil {
		return
	}
	h, ok := r.getHistogram(name)
	if !ok {
		return
	}
	h.Record(context.Background(), value, metric.WithAttributes(toAttrs(labels)...))
}

// Names of the instruments the engine facade and its components record.
// Kept as constants so callers can't typo a metric name across packages.
const (
	SearchLatencyMs   = "kenny.search.latency_ms"
	SearchDegraded    = "kenny.search.degraded"
	IngestDocuments   = "kenny.ingest.documents"
	IngestErrors      = "kenny.ingest.errors"
	IngestDurationMs  = "kenny.ingest.duration_ms"
	PlanCreated       = "kenny.plan.created"
	PlanExecuted      = "kenny.plan.executed"
	PlanCompensated   = "kenny.plan.compensated"
	JobsSubmitted     = "kenny.jobs.submitted"
	JobsFailed        = "kenny.jobs.failed"
	JobsRunDurationMs = "kenny.jobs.run_duration_ms"
)

func (r *Recorder) getCounter(name string) (metric.Int64Counter, bool) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c, true
	}
	ctr, err := r.meter.Int64Counter(name)
	if err != nil {
		return ctr, false
	}
	r.counters[name] = ctr
	return ctr, true
}

func (r *Recorder) getHistogram(name string) (metric.Float64Histogram, bool) {
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return h, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok = r.histograms[name]; ok {
		return h, true
	}
	hist, err := r.meter.Float64Histogram(name)
	if err != nil {
		return hist, false
	}
	r.histograms[name] = hist
	return hist, true
}

func toAttrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}
