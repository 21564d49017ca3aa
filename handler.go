package toolflow

import (
	"context"
	"time"
)

// Request is the JSON-shaped input to a tool invocation. Keys map to
// null/bool/number/string/map/list values decoded from the transport.
type Request = map[string]any

// Response is the JSON-shaped output of a tool invocation.
type Response = map[string]any

// Handler is the capability contract implementing a tool's logic.
// Implementations take structured input and produce structured output or a
// typed error; transport, subprocess, and HTTP details stay behind it.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// Handle calls the wrapped function.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// HandlerEntry wraps a handler with its registration metadata.
type HandlerEntry struct {
	// Handler executes the tool's logic.
	Handler Handler

	// Description is surfaced by the tool listing API.
	Description string

	// Timeout bounds a single invocation. Zero means no per-tool limit.
	Timeout time.Duration
}

// NewHandlerEntry wraps a handler with no metadata.
func NewHandlerEntry(h Handler) HandlerEntry {
	return HandlerEntry{Handler: h}
}

// WithDescription sets the entry description and returns the entry.
func (e HandlerEntry) WithDescription(desc string) HandlerEntry {
	e.Description = desc
	return e
}

// WithTimeout sets the per-invocation timeout and returns the entry.
func (e HandlerEntry) WithTimeout(d time.Duration) HandlerEntry {
	e.Timeout = d
	return e
}

// Ensure interface compliance at compile time.
var _ Handler = (HandlerFunc)(nil)
