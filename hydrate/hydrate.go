// Package hydrate assembles a runnable dispatcher from a parsed config:
// tool handlers, pipelines, the middleware chain, and the state store.
// It runs once at startup; the resulting dispatcher is immutable.
package hydrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/petal-labs/toolflow"
	"github.com/petal-labs/toolflow/config"
	"github.com/petal-labs/toolflow/handlers"
	"github.com/petal-labs/toolflow/state"
)

// Options customizes hydration.
type Options struct {
	// Natives maps native tool names to their handlers. Builtins (echo,
	// calc) are added automatically and may be overridden here.
	Natives map[string]toolflow.Handler

	// Logger backs the logging middleware. Nil uses slog.Default.
	Logger *slog.Logger

	// Events receives dispatch lifecycle events.
	Events toolflow.EventHandler
}

// Runtime is the hydrated server runtime.
type Runtime struct {
	Dispatcher *toolflow.Dispatcher
	Store      state.Store

	// closers run on shutdown, in reverse order.
	closers []func() error
}

// Close releases runtime resources.
func (r *Runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build hydrates a runtime from a validated config. Config validation is the
// caller's job; Build still fails cleanly on problems validation cannot see,
// such as an unopenable state database or a missing native handler.
func Build(cfg *config.Config, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("hydrate: config is nil")
	}
	rt := &Runtime{}

	store, err := buildStore(cfg, rt)
	if err != nil {
		return nil, err
	}
	rt.Store = store

	natives := map[string]toolflow.Handler{
		"echo": EchoHandler(),
		"calc": CalcHandler(),
	}
	if store != nil {
		natives["state_get"] = state.GetHandler(store)
		natives["state_set"] = state.SetHandler(store)
		natives["state_delete"] = state.DeleteHandler(store)
	}
	for name, h := range opts.Natives {
		natives[name] = h
	}

	registry := toolflow.NewHandlerRegistry()
	pipelines := make(map[string][]toolflow.PipelineStep)

	// Builtins not shadowed by config entries register under their own
	// names so pipelines can use them without declaring them.
	configured := make(map[string]bool, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		configured[tool.Name] = true
	}
	builtinNames := make([]string, 0, len(natives))
	for name := range natives {
		builtinNames = append(builtinNames, name)
	}
	sort.Strings(builtinNames)
	for _, name := range builtinNames {
		if configured[name] {
			continue
		}
		if err := registry.Register(name, toolflow.NewHandlerEntry(natives[name]).WithDescription("builtin")); err != nil {
			return nil, fmt.Errorf("hydrate: register builtin %s: %w", name, err)
		}
	}

	for _, tool := range cfg.Tools {
		if tool.Type == config.ToolPipeline {
			pipelines[tool.Name] = tool.Steps
			continue
		}
		handler, err := buildHandler(tool, natives)
		if err != nil {
			return nil, err
		}
		if len(tool.Required) > 0 {
			handler = requireFields(handler, tool.Required)
		}
		entry := toolflow.NewHandlerEntry(handler).
			WithDescription(tool.Description).
			WithTimeout(tool.Timeout())
		if err := registry.Register(tool.Name, entry); err != nil {
			return nil, fmt.Errorf("hydrate: register %s: %w", tool.Name, err)
		}
	}

	chain, err := buildChain(cfg, opts)
	if err != nil {
		return nil, err
	}

	rt.Dispatcher = toolflow.NewDispatcher(registry, pipelines,
		toolflow.WithChain(chain),
		toolflow.WithEvents(opts.Events),
	)
	return rt, nil
}

func buildStore(cfg *config.Config, rt *Runtime) (state.Store, error) {
	if cfg.State == nil {
		return nil, nil
	}
	switch cfg.State.Backend {
	case "memory":
		return state.NewMemoryStore(), nil
	case "sqlite":
		s, err := state.NewSQLiteStore(cfg.State.Path)
		if err != nil {
			return nil, fmt.Errorf("hydrate: open state store: %w", err)
		}
		rt.closers = append(rt.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("hydrate: unknown state backend: %q", cfg.State.Backend)
	}
}

func buildHandler(tool config.ToolConfig, natives map[string]toolflow.Handler) (toolflow.Handler, error) {
	switch tool.Type {
	case config.ToolNative:
		h, ok := natives[tool.Name]
		if !ok {
			return nil, fmt.Errorf("hydrate: no native handler for tool: %s", tool.Name)
		}
		return h, nil
	case config.ToolCLI:
		return handlers.NewCommandHandler(handlers.CommandConfig{
			Command:     tool.Command,
			Args:        tool.Args,
			Cwd:         tool.Cwd,
			Env:         tool.Env,
			StreamStdin: tool.StreamStdin,
		})
	case config.ToolHTTP:
		hcfg := handlers.HTTPConfig{
			Endpoint: tool.Endpoint,
			Method:   tool.Method,
			Headers:  tool.Headers,
		}
		if tool.Auth != nil {
			hcfg.Auth = handlers.AuthConfig{
				Type:     handlers.AuthType(tool.Auth.Type),
				Token:    tool.Auth.Token,
				Username: tool.Auth.Username,
				Password: tool.Auth.Password,
				Header:   tool.Auth.Header,
			}
		}
		if tool.Retry != nil {
			hcfg.Retry = tool.Retry.Policy()
		}
		return handlers.NewHTTPHandler(hcfg, nil)
	default:
		return nil, fmt.Errorf("hydrate: unknown tool type: %q", tool.Type)
	}
}

func buildChain(cfg *config.Config, opts Options) (*toolflow.Chain, error) {
	chain := toolflow.NewChain()
	for _, mw := range cfg.Middleware {
		switch mw.Type {
		case "logging":
			chain.Add(toolflow.NewLoggingMiddleware(opts.Logger, cfg.Server.Name))
		case "validation":
			chain.Add(toolflow.NewValidationMiddleware(mw.Required...))
		case "breaker":
			chain.Add(toolflow.NewBreakerMiddleware(toolflow.BreakerConfig{
				FailureThreshold: mw.FailureThreshold,
				SuccessThreshold: mw.SuccessThreshold,
				CoolDown:         time.Duration(mw.CoolDownMS) * time.Millisecond,
			}))
		default:
			return nil, fmt.Errorf("hydrate: unknown middleware type: %q", mw.Type)
		}
	}
	return chain, nil
}

// requireFields wraps a handler with per-tool required-field validation.
func requireFields(h toolflow.Handler, required []string) toolflow.Handler {
	return toolflow.HandlerFunc(func(ctx context.Context, req toolflow.Request) (toolflow.Response, error) {
		for _, field := range required {
			if _, ok := req[field]; !ok {
				return nil, toolflow.ErrValidation("missing required field: " + field)
			}
		}
		return h.Handle(ctx, req)
	})
}
