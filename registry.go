package toolflow

import (
	"context"
	"sync"
)

// HandlerRegistry maps tool names to handler entries. It is populated during
// startup and read-only afterwards, so lookups from concurrent dispatches
// never contend on writes.
type HandlerRegistry struct {
	mu      sync.RWMutex
	entries map[string]HandlerEntry
	order   []string // preserves registration order
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		entries: make(map[string]HandlerEntry),
	}
}

// Register adds a handler entry under a unique name. Registering an existing
// name fails with a DUPLICATE_TOOL error and leaves the registry unchanged.
func (r *HandlerRegistry) Register(name string, entry HandlerEntry) error {
	if name == "" {
		return ErrValidation("tool name is required")
	}
	if entry.Handler == nil {
		return ErrValidation("handler is required: " + name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return ErrDuplicateTool(name)
	}
	r.entries[name] = entry
	r.order = append(r.order, name)
	return nil
}

// Get returns the entry registered under name.
func (r *HandlerRegistry) Get(name string) (HandlerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// Has reports whether name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// List returns all registered tool names in registration order.
func (r *HandlerRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dispatch looks up name and invokes its handler. An unregistered name
// yields TOOL_NOT_FOUND without invoking anything.
func (r *HandlerRegistry) Dispatch(ctx context.Context, name string, req Request) (Response, error) {
	entry, ok := r.Get(name)
	if !ok {
		return nil, ErrToolNotFound(name)
	}
	return entry.Handler.Handle(ctx, req)
}
