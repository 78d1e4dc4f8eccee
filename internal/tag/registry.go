package tag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/tagmanager/internal/container"
	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
)

// Handler injects or runs one kind of tag payload.
type Handler interface {
	// Kind returns the payload kind this handler is registered under.
	Kind() container.Kind
	// Execute performs the tag for ctx. Any error is a TagExecutionFailure.
	Execute(t *container.Tag, ctx event.Context) error
}

// Registry maps payload kinds to their handlers.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[container.Kind]Handler
}

// NewRegistry creates a Registry holding hs.
func NewRegistry(hs ...Handler) *Registry {
	r := &Registry{handlers: make(map[container.Kind]Handler)}
	for _, h := range hs {
		r.Register(h)
	}
	return r
}

// Register adds a handler. Panics on duplicate kind to surface misconfiguration early.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Kind()]; exists {
		panic(fmt.Sprintf("tag registry: duplicate kind %q", h.Kind()))
	}
	r.handlers[h.Kind()] = h
}

// Get returns the handler for the given kind.
func (r *Registry) Get(kind container.Kind) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("no handler registered for tag kind %q", kind)
	}
	return h, nil
}

// Kinds returns all registered kinds, sorted.
func (r *Registry) Kinds() []container.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]container.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
