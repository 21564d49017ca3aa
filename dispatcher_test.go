package toolflow

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherInvokesOnce(t *testing.T) {
	calls := 0
	reg := NewHandlerRegistry()
	reg.Register("tool", NewHandlerEntry(HandlerFunc(func(_ context.Context, _ Request) (Response, error) {
		calls++
		return Response{"ok": true}, nil
	})))
	d := NewDispatcher(reg, nil)

	resp, err := d.Dispatch(context.Background(), "tool", Request{})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("resp = %v", resp)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestDispatcherUnknownTool(t *testing.T) {
	d := NewDispatcher(NewHandlerRegistry(), nil)
	_, err := d.Dispatch(context.Background(), "ghost", Request{})
	if CodeOf(err) != CodeToolNotFound {
		t.Fatalf("Dispatch() code = %q, want %q", CodeOf(err), CodeToolNotFound)
	}
}

func TestDispatcherRunsPipeline(t *testing.T) {
	reg := NewHandlerRegistry()
	reg.Register("echo", NewHandlerEntry(echoHandler()))
	pipelines := map[string][]PipelineStep{
		"greet": {
			{Tool: "echo", Input: Request{"msg": "{{who}}"}, OutputVar: "greeting"},
		},
	}
	d := NewDispatcher(reg, pipelines)

	resp, err := d.Dispatch(context.Background(), "greet", Request{"who": "sam"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	results := resp["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results len = %d, want 1", len(results))
	}
	vars := resp["variables"].(map[string]any)
	greeting := vars["greeting"].(map[string]any)
	if greeting["msg"] != "sam" {
		t.Errorf("greeting.msg = %v, want sam", greeting["msg"])
	}
}

func TestDispatcherRecursionLimit(t *testing.T) {
	// A pipeline that dispatches itself must stop at the depth limit.
	pipelines := map[string][]PipelineStep{
		"loop": {{Tool: "loop"}},
	}
	d := NewDispatcher(NewHandlerRegistry(), pipelines, WithMaxDepth(5))

	_, err := d.Dispatch(context.Background(), "loop", Request{})
	if CodeOf(err) != CodeRecursionLimit {
		t.Fatalf("Dispatch() code = %q, want %q", CodeOf(err), CodeRecursionLimit)
	}
}

func TestDispatcherTimeout(t *testing.T) {
	reg := NewHandlerRegistry()
	reg.Register("slow", NewHandlerEntry(HandlerFunc(func(ctx context.Context, _ Request) (Response, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return Response{}, nil
		}
	})).WithTimeout(10 * time.Millisecond))
	d := NewDispatcher(reg, nil)

	_, err := d.Dispatch(context.Background(), "slow", Request{})
	if CodeOf(err) != CodeTimeout {
		t.Fatalf("Dispatch() code = %q, want %q", CodeOf(err), CodeTimeout)
	}
}

func TestDispatcherTimeoutThroughChain(t *testing.T) {
	// A timeout must travel the on_error path like any other failure.
	var sawCode string
	reg := NewHandlerRegistry()
	reg.Register("slow", NewHandlerEntry(HandlerFunc(func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})).WithTimeout(5 * time.Millisecond))

	mw := &errorCodeRecorder{code: &sawCode}
	d := NewDispatcher(reg, nil, WithChain(NewChain(mw)))

	_, err := d.Dispatch(context.Background(), "slow", Request{})
	if CodeOf(err) != CodeTimeout {
		t.Fatalf("Dispatch() code = %q, want %q", CodeOf(err), CodeTimeout)
	}
	if sawCode != CodeTimeout {
		t.Errorf("middleware saw code %q, want %q", sawCode, CodeTimeout)
	}
}

type errorCodeRecorder struct {
	PassthroughMiddleware
	code *string
}

func (m *errorCodeRecorder) OnError(_ context.Context, _ Request, err error) (Response, error) {
	*m.code = CodeOf(err)
	return nil, err
}

func TestDispatcherChainWrapsDispatch(t *testing.T) {
	var log []string
	a := &traceMiddleware{name: "A", log: &log}
	reg := NewHandlerRegistry()
	reg.Register("tool", NewHandlerEntry(HandlerFunc(func(_ context.Context, _ Request) (Response, error) {
		log = append(log, "handler")
		return Response{}, nil
	})))
	d := NewDispatcher(reg, nil, WithChain(NewChain(a)))

	if _, err := d.Dispatch(context.Background(), "tool", Request{}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	want := []string{"A.before", "handler", "A.after"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestDispatcherEvents(t *testing.T) {
	events := NewChannelEventHandler(16)
	reg := NewHandlerRegistry()
	reg.Register("tool", NewHandlerEntry(echoHandler()))
	d := NewDispatcher(reg, nil, WithEvents(events))

	if _, err := d.Dispatch(context.Background(), "tool", Request{"x": 1}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	var kinds []EventKind
	for len(events.Events()) > 0 {
		ev := <-events.Events()
		kinds = append(kinds, ev.Kind)
		if ev.Tool != "tool" {
			t.Errorf("event tool = %q, want tool", ev.Tool)
		}
		if ev.DispatchID == "" {
			t.Error("event missing dispatch ID")
		}
	}
	want := []EventKind{EventDispatchStarted, EventDispatchFinished}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestDispatcherTools(t *testing.T) {
	reg := NewHandlerRegistry()
	reg.Register("a", NewHandlerEntry(echoHandler()))
	reg.Register("b", NewHandlerEntry(echoHandler()))
	d := NewDispatcher(reg, map[string][]PipelineStep{"p": {{Tool: "a"}}})

	names := d.Tools()
	if len(names) != 3 {
		t.Fatalf("Tools() = %v, want 3 names", names)
	}
	if !d.Has("p") || !d.Has("a") || d.Has("ghost") {
		t.Error("Has() results inconsistent")
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, func(_ context.Context) (Response, error) {
		calls++
		return nil, ErrValidation("bad input")
	})
	if CodeOf(err) != CodeValidation {
		t.Fatalf("Retry() code = %q, want %q", CodeOf(err), CodeValidation)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	resp, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}, func(_ context.Context) (Response, error) {
		calls++
		if calls < 3 {
			return nil, ErrHandler("transient")
		}
		return Response{"ok": true}, nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if resp["ok"] != true || calls != 3 {
		t.Errorf("resp = %v, calls = %d", resp, calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}, func(_ context.Context) (Response, error) {
		calls++
		return nil, ErrHandler("always")
	})
	if err == nil {
		t.Fatal("Retry() error = nil, want exhaustion")
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
}
