package toolflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxDepth bounds nested dispatches so mutually recursive pipelines
// fail with a structured error instead of exhausting the stack.
const DefaultMaxDepth = 32

type depthKey struct{}

func depthFrom(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

type dispatchIDKey struct{}

// DispatchIDFromContext returns the dispatch ID of the enclosing Dispatch
// call, or empty when called outside one.
func DispatchIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(dispatchIDKey{}).(string); ok {
		return id
	}
	return ""
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithChain sets the middleware chain applied to every dispatch.
func WithChain(chain *Chain) DispatcherOption {
	return func(d *Dispatcher) {
		if chain != nil {
			d.chain = chain
		}
	}
}

// WithEvents attaches an event handler for dispatch lifecycle events.
func WithEvents(h EventHandler) DispatcherOption {
	return func(d *Dispatcher) { d.emit = EmitterFor(h) }
}

// WithMaxDepth overrides the nested-dispatch depth limit.
func WithMaxDepth(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxDepth = n
		}
	}
}

// Dispatcher is the single entry point for tool invocation. It resolves a
// name to either a pipeline or a registered handler, applies the middleware
// chain and per-tool timeout, and emits lifecycle events. All collaborators
// are injected; the dispatcher holds no global state.
type Dispatcher struct {
	registry  *HandlerRegistry
	pipelines map[string][]PipelineStep
	chain     *Chain
	engine    *PipelineEngine
	emit      EventEmitter
	maxDepth  int
}

// NewDispatcher creates a dispatcher over a registry and a set of named
// pipelines. Pipeline names shadow handler names at dispatch time, so
// hydration must reject collisions up front.
func NewDispatcher(registry *HandlerRegistry, pipelines map[string][]PipelineStep, opts ...DispatcherOption) *Dispatcher {
	if registry == nil {
		registry = NewHandlerRegistry()
	}
	d := &Dispatcher{
		registry:  registry,
		pipelines: pipelines,
		chain:     NewChain(),
		maxDepth:  DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.engine = NewPipelineEngine(d.Dispatch).WithEmitter(d.emit)
	return d
}

// Registry returns the underlying handler registry.
func (d *Dispatcher) Registry() *HandlerRegistry {
	return d.registry
}

// Tools returns every dispatchable name: registered handlers in
// registration order followed by pipelines.
func (d *Dispatcher) Tools() []string {
	names := d.registry.List()
	for name := range d.pipelines {
		if !d.registry.Has(name) {
			names = append(names, name)
		}
	}
	return names
}

// Has reports whether name resolves to a pipeline or a handler.
func (d *Dispatcher) Has(name string) bool {
	if _, ok := d.pipelines[name]; ok {
		return true
	}
	return d.registry.Has(name)
}

// Describe returns the description of a registered handler, or empty.
func (d *Dispatcher) Describe(name string) string {
	if entry, ok := d.registry.Get(name); ok {
		return entry.Description
	}
	if _, ok := d.pipelines[name]; ok {
		return "pipeline"
	}
	return ""
}

func (d *Dispatcher) emitEvent(ctx context.Context, ev Event) {
	if d.emit != nil {
		d.emit(ctx, ev)
	}
}

// Dispatch resolves name and invokes it through the middleware chain.
// Pipelines run their steps back through Dispatch, so every nested call is
// depth-guarded and gets the same middleware treatment.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, req Request) (Response, error) {
	depth := depthFrom(ctx)
	if depth >= d.maxDepth {
		return nil, ErrRecursionLimit(name, depth)
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)

	id := uuid.NewString()
	ctx = context.WithValue(ctx, dispatchIDKey{}, id)
	start := time.Now()
	d.emitEvent(ctx, NewEvent(EventDispatchStarted).WithDispatchID(id).WithTool(name))

	resp, err := d.chain.Execute(ctx, req, func(ctx context.Context, req Request) (Response, error) {
		return d.invoke(ctx, name, req)
	})
	if err != nil {
		d.emitEvent(ctx, NewEvent(EventDispatchFailed).
			WithDispatchID(id).WithTool(name).WithElapsed(time.Since(start)).
			WithPayload(Response{"error": err.Error(), "code": CodeOf(err)}))
		return nil, asError(err)
	}

	d.emitEvent(ctx, NewEvent(EventDispatchFinished).
		WithDispatchID(id).WithTool(name).WithElapsed(time.Since(start)))
	return resp, nil
}

// invoke runs the named pipeline or handler, applying the entry's timeout.
func (d *Dispatcher) invoke(ctx context.Context, name string, req Request) (Response, error) {
	if steps, ok := d.pipelines[name]; ok {
		result, err := d.engine.Run(ctx, steps, req)
		if err != nil {
			return nil, err
		}
		return result.ResultResponse(), nil
	}

	entry, ok := d.registry.Get(name)
	if !ok {
		return nil, ErrToolNotFound(name)
	}

	if entry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.Timeout)
		defer cancel()
	}

	resp, err := entry.Handler.Handle(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout(name)
		}
		return nil, err
	}
	return resp, nil
}
