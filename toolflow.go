// Package toolflow is a declarative tool-calling runtime: named tools backed
// by handlers, an onion-model middleware chain around every invocation, and
// pipelines that sequence tool calls with conditional, variable-threaded
// steps.
//
// The core pieces compose through explicit injection:
//
//	reg := toolflow.NewHandlerRegistry()
//	reg.Register("echo", toolflow.NewHandlerEntry(toolflow.HandlerFunc(echo)))
//	d := toolflow.NewDispatcher(reg, pipelines,
//		toolflow.WithChain(toolflow.NewChain(logging, validator)))
//	resp, err := d.Dispatch(ctx, "echo", toolflow.Request{"msg": "hi"})
//
// Subpackages supply the boundary collaborators: config loads YAML tool
// definitions, hydrate assembles a Dispatcher from them, handlers provides
// subprocess and HTTP-backed tools, state adds a key/value store, server
// exposes the dispatcher over HTTP with cron scheduling, and otel translates
// dispatch events into traces and metrics.
package toolflow
