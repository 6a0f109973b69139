// Package audit implements Kenny's append-only audit stream: one
// correlation-stamped NDJSON record per state transition, buffered
// through a lock-free channel to a dedicated writer goroutine so the
// critical path (plan execution, tool invocation) never blocks on disk I/O.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"kenny/internal/logging"
)

// Event is the immutable record described in "AuditEvent".
type Event struct {
	Timestamp     int64          `json:"ts"`
	CorrelationID string         `json:"correlation_id"`
	PlanID        string         `json:"plan_id,omitempty"`
	StepIndex     *int           `json:"step_index,omitempty"`
	ToolName      string         `json:"tool_name,omitempty"`
	Event         string         `json:"event"`
	RiskLevel     string         `json:"risk_level,omitempty"`
	ContentOrigin string         `json:"content_origin,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

const (
	defaultMaxBytes  = 50 * 1024 * 1024 // 50 MiB per file
	defaultRetention = 30 * 24 * time.Hour
	channelDepth     = 4096
)

// Sink is the single append-only writer for a process's audit stream.
type Sink struct {
	path      string
	maxBytes  int64
	retention time.Duration

	mu   sync.Mutex
	file *os.File
	size int64

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Option configures a Sink.
type Option func(*Sink)

// WithMaxBytes overrides the 50 MiB rotation threshold.
func WithMaxBytes(n int64) Option {
	return func(s *Sink) { s.maxBytes = n }
}

// WithRetention overrides the 30-day pruning window.
func WithRetention(d time.Duration) Option {
	return func(s *Sink) { s.retention = d }
}

// Open creates or appends to the NDJSON audit file at path, starting the
// background writer goroutine.
func Open(path string, opts ...Option) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}

	s := &Sink{
		path:      path,
		maxBytes:  defaultMaxBytes,
		retention: defaultRetention,
		events:    make(chan Event, channelDepth),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.openFile(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.run()

	s.prune()
	return s, nil
}

func (s *Sink) openFile() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("audit: stat %s: %w", s.path, err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// Emit enqueues an event for asynchronous durable write. It never blocks the
// caller on disk I/O; if the channel is saturated it writes synchronously as
// a last resort so no event is silently dropped.
func (s *Sink) Emit(e Event) {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	select {
	case s.events <- e:
	default:
		logging.Get(logging.CategoryAudit).Warn("audit channel saturated, writing synchronously")
		s.writeLocked(e)
	}
}

func (s *Sink) run() {
	defer s.wg.Done()
	for {
		select {
		case e := <-s.events:
			s.writeLocked(e)
		case <-s.done:
			// Drain remaining buffered events before exiting so nothing is
			// lost on shutdown.
			for {
				select {
				case e := <-s.events:
					s.writeLocked(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) writeLocked(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logging.Get(logging.CategoryAudit).Error("failed to marshal audit event: %v", err)
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return
	}
	if s.size+int64(len(data)) > s.maxBytes {
		s.rotateLocked()
	}
	n, err := s.file.Write(data)
	if err != nil {
		logging.Get(logging.CategoryAudit).Error("failed to write audit event: %v", err)
		return
	}
	s.size += int64(n)
}

// rotateLocked renames the current file aside and opens a fresh one. Caller
// must hold s.mu.
func (s *Sink) rotateLocked() {
	if s.file != nil {
		s.file.Close()
	}
	rotated := fmt.Sprintf("%s.%d", s.path, time.Now().Unix())
	if err := os.Rename(s.path, rotated); err != nil {
		logging.Get(logging.CategoryAudit).Warn("audit rotation rename failed: %v", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logging.Get(logging.CategoryAudit).Error("audit rotation reopen failed: %v", err)
		s.file = nil
		return
	}
	s.file = f
	s.size = 0
}

// prune removes rotated audit files older than the retention window.
func (s *Sink) prune() {
	dir := filepath.Dir(s.path)
	base := filepath.Base(s.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.retention)
	var rotated []string
	for _, ent := range entries {
		name := ent.Name()
		if len(name) <= len(base)+1 || name[:len(base)+1] != base+"." {
			continue
		}
		rotated = append(rotated, name)
	}
	sort.Strings(rotated)
	for _, name := range rotated {
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(full)
		}
	}
}

// Close drains any buffered events and closes the underlying file. It is
// safe to call Close more than once.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.file != nil {
			err = s.file.Close()
			s.file = nil
		}
	})
	return err
}

// NoopSink returns a Sink whose Emit discards everything. Useful for tests
// and for --dry-run style commands that must not write to the shared log.
func NoopSink() *Sink {
	return &Sink{events: make(chan Event, 1), done: make(chan struct{})}
}
