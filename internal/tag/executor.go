// Package tag injects or runs tag payloads into the host page.
package tag

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/metrics"
)

// Status is what happened to one tag in one pass.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped" // disabled, or fire-once and already executed
	StatusUnknown  Status = "unknown" // no handler for the payload kind
)

// Outcome reports a single execution attempt.
type Outcome struct {
	TagID  string
	Kind   container.Kind
	Status Status
	Err    error
}

// ExecutionError is a TagExecutionFailure: the payload errored or panicked.
type ExecutionError struct {
	TagID string
	Kind  container.Kind
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tag %s (%s): %v", e.TagID, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// FiredSet is the executed-tag set. It only grows.
type FiredSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewFiredSet() *FiredSet {
	return &FiredSet{ids: make(map[string]struct{})}
}

func (s *FiredSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *FiredSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// IDs returns the executed tag ids, sorted.
func (s *FiredSet) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Executor applies the firing policy and dispatches to a handler.
// It is not safe for concurrent use; the engine serialises all calls.
type Executor struct {
	registry *Registry
	fired    *FiredSet
	logger   *slog.Logger
}

// NewExecutor creates an Executor. A nil logger uses slog.Default.
func NewExecutor(registry *Registry, fired *FiredSet, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{registry: registry, fired: fired, logger: logger}
}

// Fired exposes the executed-tag set.
func (x *Executor) Fired() *FiredSet { return x.fired }

// Execute runs t for ctx. A failing tag is still marked executed when it is
// fire-once; unknown kinds are never marked.
func (x *Executor) Execute(t *container.Tag, ctx event.Context) Outcome {
	out := Outcome{TagID: t.ID, Kind: t.Kind()}
	if !t.Enabled || (t.FireOnce && x.fired.Has(t.ID)) {
		out.Status = StatusSkipped
		return out
	}

	h, err := x.registry.Get(out.Kind)
	if err != nil {
		if up, ok := t.Payload.(container.UnknownPayload); ok && up.Reason != "" {
			err = fmt.Errorf("%w: %s", err, up.Reason)
		}
		x.logger.Warn("unknown tag type, skipping", "tag_id", t.ID, "err", err)
		out.Status = StatusUnknown
		out.Err = err
		metrics.TagExecutions.WithLabelValues(string(out.Kind), string(out.Status)).Inc()
		return out
	}

	if err := safeExecute(h, t, ctx); err != nil {
		out.Status = StatusFailed
		out.Err = &ExecutionError{TagID: t.ID, Kind: out.Kind, Err: err}
		if t.FireOnce {
			x.fired.Add(t.ID)
		}
		x.logger.Error("tag execution failed", "tag_id", t.ID, "tag_name", t.Name, "err", err)
	} else {
		out.Status = StatusExecuted
		x.fired.Add(t.ID)
		x.logger.Info("tag executed", "tag_id", t.ID, "tag_name", t.Name, "kind", out.Kind)
	}
	metrics.TagExecutions.WithLabelValues(string(out.Kind), string(out.Status)).Inc()
	return out
}

func safeExecute(h Handler, t *container.Tag, ctx event.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Execute(t, ctx)
}
