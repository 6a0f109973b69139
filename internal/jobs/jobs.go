// Package jobs implements Kenny's Background Processor: a worker pool that
// runs named closures with typed retry policies and jittered exponential
// backoff, keeps an in-memory ring buffer of finished job history, and
// periodically sweeps old entries out of the active map.
package jobs

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"kenny/internal/ids"
	"kenny/internal/kerrors"
	"kenny/internal/logging"
	"kenny/internal/store"
)

// Priority classifies a job's scheduling preference. The current
// implementation runs all jobs through the same worker pool; priority is
// recorded for observability and available to a future priority queue.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// RetryPolicy controls how a failed job is retried. Delay for attempt n
// (0-indexed) is min(BaseDelay * BackoffMultiplier^n, MaxDelay), jittered by
// up to 20% to avoid thundering-herd retries.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// Retryable reports whether err should trigger a retry. Defaults to
	// "always" if nil.
	Retryable func(error) bool
}

// DefaultPolicy makes up to three attempts, 1s to 30s backoff.
var DefaultPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2}

// AggressivePolicy makes up to five attempts starting from 500ms.
var AggressivePolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 60 * time.Second, BackoffMultiplier: 2}

// ConservativePolicy makes up to two attempts with a long initial delay.
var ConservativePolicy = RetryPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 1.5}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * pow(p.BackoffMultiplier, attempt)
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	jitter := 1 + (rand.Float64()*0.4 - 0.2) // +/-20%
	return time.Duration(d * jitter)
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Func is the work a job performs. It must honor ctx cancellation.
type Func func(ctx context.Context) error

// Record is a job's observable state.
type Record struct {
	ID          string
	Name        string
	Priority    Priority
	Status      Status
	Attempts    int
	SubmittedAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Err         error
}

type job struct {
	record Record
	policy RetryPolicy
	fn     Func
	cancel context.CancelFunc
}

// Processor is a worker pool of background jobs backed by a bounded in-
// memory history and, optionally, a *store.Store for durable bookkeeping
// (required for incremental-ingest "since" tracking). Concurrency is
// bounded by a semaphore.Weighted; an errgroup.Group tracks the dispatcher
// and every in-flight job so Stop can wait for all of them to drain.
type Processor struct {
	store   *store.Store // optional; nil disables durable persistence
	workers int

	queue chan *job
	sem   *semaphore.Weighted
	eg    *errgroup.Group

	mu      sync.Mutex
	active  map[string]*job
	history []Record
	histCap int

	cleanupInterval  time.Duration
	cleanupRetention time.Duration

	cleanupWg sync.WaitGroup
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// Option configures a Processor.
type Option func(*Processor)

// WithStore enables durable job bookkeeping.
func WithStore(s *store.Store) Option { return func(p *Processor) { p.store = s } }

// WithHistorySize overrides the default 1000-entry ring buffer.
func WithHistorySize(n int) Option { return func(p *Processor) { p.histCap = n } }

// WithCleanup overrides the default 5-minute sweep / 1-hour retention.
func WithCleanup(interval, retention time.Duration) Option {
	return func(p *Processor) { p.cleanupInterval, p.cleanupRetention = interval, retention }
}

// NewProcessor builds a Processor with the given worker count.
func NewProcessor(workers int, opts ...Option) *Processor {
	if workers < 1 {
		workers = 1
	}
	p := &Processor{
		workers:          workers,
		queue:            make(chan *job, 256),
		active:           make(map[string]*job),
		histCap:          1000,
		cleanupInterval:  5 * time.Minute,
		cleanupRetention: time.Hour,
		stopCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the dispatcher, bounded to p.workers concurrent jobs via
// a semaphore, and the periodic cleanup sweep. ctx cancellation stops
// accepting new work and drains in-flight jobs.
func (p *Processor) Start(ctx context.Context) {
	p.sem = semaphore.NewWeighted(int64(p.workers))
	eg, egCtx := errgroup.WithContext(ctx)
	p.eg = eg
	eg.Go(func() error { return p.dispatch(egCtx) })

	p.cleanupWg.Add(1)
	go p.cleanupLoop()
}

// Stop signals the dispatcher and cleanup sweep to drain and returns once
// every in-flight job has finished. Safe to call more than once.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.eg != nil {
		_ = p.eg.Wait()
	}
	p.cleanupWg.Wait()
}

// Submit enqueues fn for execution and returns its job id immediately.
func (p *Processor) Submit(name string, priority Priority, policy RetryPolicy, fn Func) string {
	id := ids.New()
	j := &job{
		record: Record{ID: id, Name: name, Priority: priority, Status: StatusPending, SubmittedAt: time.Now()},
		policy: policy,
		fn:     fn,
	}

	p.mu.Lock()
	p.active[id] = j
	p.mu.Unlock()

	if p.store != nil {
		_ = p.store.InsertJob(store.JobRow{
			ID: id, Name: name, Priority: string(priority), Status: string(StatusPending),
			RetryPolicy: fmt.Sprintf("max=%d base=%s max_delay=%s mult=%.1f", policy.MaxAttempts, policy.BaseDelay, policy.MaxDelay, policy.BackoffMultiplier),
			SubmittedAt: j.record.SubmittedAt.Unix(),
		})
	}

	select {
	case p.queue <- j:
	default:
		logging.Jobs("queue saturated, blocking submit for job %s (%s)", id, name)
		p.queue <- j
	}
	return id
}

// Status returns a job's current record, checking the active map first and
// falling back to history.
func (p *Processor) Status(id string) (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if j, ok := p.active[id]; ok {
		return j.record, nil
	}
	for _, r := range p.history {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, &kerrors.NotFoundError{Entity: "job", ID: id}
}

// Cancel requests cooperative cancellation of a pending or running job.
// Cancelling a completed/failed/cancelled job is a typed error.
func (p *Processor) Cancel(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	j, ok := p.active[id]
	if !ok {
		return &kerrors.NotFoundError{Entity: "job", ID: id}
	}
	if j.record.Status != StatusPending && j.record.Status != StatusRunning {
		return &kerrors.StateConflictError{Expected: "pending or running", Actual: string(j.record.Status)}
	}
	if j.cancel != nil {
		j.cancel()
	}
	j.record.Status = StatusCancelled
	return nil
}

// ListActive returns every job still in the active map (pending or running).
func (p *Processor) ListActive() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Record, 0, len(p.active))
	for _, j := range p.active {
		out = append(out, j.record)
	}
	return out
}

// History returns up to limit most-recently-finished jobs, most recent first.
func (p *Processor) History(limit int) []Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = p.history[len(p.history)-1-i]
	}
	return out
}

// dispatch pulls queued jobs and hands each to the errgroup as its own
// goroutine, gated by sem so at most p.workers run concurrently.
func (p *Processor) dispatch(ctx context.Context) error {
	for {
		select {
		case <-p.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		case j := <-p.queue:
			if err := p.sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			p.eg.Go(func() error {
				defer p.sem.Release(1)
				p.run(ctx, j)
				return nil
			})
		}
	}
}

func (p *Processor) run(ctx context.Context, j *job) {
	p.mu.Lock()
	if j.record.Status == StatusCancelled {
		p.mu.Unlock()
		p.finish(j)
		return
	}
	j.record.Status = StatusRunning
	j.record.StartedAt = time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	if p.store != nil {
		_ = p.store.UpdateJobStatus(j.record.ID, string(StatusRunning), j.record.Attempts, j.record.StartedAt.Unix(), 0, "")
	}

	var lastErr error
	for attempt := 0; attempt < maxInt(j.policy.MaxAttempts, 1); attempt++ {
		j.record.Attempts = attempt + 1
		if err := runCtx.Err(); err != nil {
			lastErr = err
			break
		}
		err := j.fn(runCtx)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		logging.Jobs("job %s (%s) attempt %d failed: %v", j.record.ID, j.record.Name, attempt+1, err)
		if attempt+1 >= j.policy.MaxAttempts || !j.policy.retryable(err) {
			break
		}
		select {
		case <-time.After(j.policy.delay(attempt)):
		case <-runCtx.Done():
			lastErr = runCtx.Err()
		}
	}

	p.mu.Lock()
	j.record.CompletedAt = time.Now()
	if j.record.Status == StatusCancelled {
		lastErr = nil
	} else if lastErr != nil {
		j.record.Status = StatusFailed
		j.record.Err = lastErr
	} else {
		j.record.Status = StatusCompleted
	}
	p.mu.Unlock()

	if p.store != nil {
		errMsg := ""
		if j.record.Err != nil {
			errMsg = j.record.Err.Error()
		}
		_ = p.store.UpdateJobStatus(j.record.ID, string(j.record.Status), j.record.Attempts, j.record.StartedAt.Unix(), j.record.CompletedAt.Unix(), errMsg)
	}

	logging.Jobs("job %s (%s) finished: status=%s attempts=%d", j.record.ID, j.record.Name, j.record.Status, j.record.Attempts)
	p.finish(j)
}

func (p *Processor) finish(j *job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, j.record.ID)
	p.history = append(p.history, j.record)
	if len(p.history) > p.histCap {
		p.history = p.history[len(p.history)-p.histCap:]
	}
}

func (p *Processor) cleanupLoop() {
	defer p.cleanupWg.Done()
	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep drops completed/failed/cancelled jobs older than cleanupRetention
// from the active map into history. Jobs normally leave the active map via
// finish() as soon as they terminate; this exists to catch anything left
// behind by a worker that exited without calling finish (e.g. process
// shutdown mid-run on a prior crash-recovered job).
func (p *Processor) sweep() {
	cutoff := time.Now().Add(-p.cleanupRetention)
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, j := range p.active {
		terminal := j.record.Status == StatusCompleted || j.record.Status == StatusFailed || j.record.Status == StatusCancelled
		if terminal && j.record.CompletedAt.Before(cutoff) {
			delete(p.active, id)
			p.history = append(p.history, j.record)
		}
	}
	if len(p.history) > p.histCap {
		p.history = p.history[len(p.history)-p.histCap:]
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
