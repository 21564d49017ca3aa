package toolflow

import (
	"context"
	"errors"
	"testing"
)

// traceMiddleware appends markers to a shared log so tests can assert hook
// ordering.
type traceMiddleware struct {
	name      string
	log       *[]string
	beforeErr error
	afterErr  error
	recover   Response
}

func (m *traceMiddleware) Before(_ context.Context, req Request) (Request, error) {
	*m.log = append(*m.log, m.name+".before")
	if m.beforeErr != nil {
		return nil, m.beforeErr
	}
	return req, nil
}

func (m *traceMiddleware) After(_ context.Context, _ Request, resp Response) (Response, error) {
	*m.log = append(*m.log, m.name+".after")
	if m.afterErr != nil {
		return nil, m.afterErr
	}
	return resp, nil
}

func (m *traceMiddleware) OnError(_ context.Context, _ Request, err error) (Response, error) {
	*m.log = append(*m.log, m.name+".on_error")
	if m.recover != nil {
		return m.recover, nil
	}
	return nil, err
}

func TestChainOnionOrdering(t *testing.T) {
	var log []string
	a := &traceMiddleware{name: "A", log: &log}
	b := &traceMiddleware{name: "B", log: &log}
	chain := NewChain(a, b)

	resp, err := chain.Execute(context.Background(), Request{}, func(_ context.Context, _ Request) (Response, error) {
		log = append(log, "handler")
		return Response{"ok": true}, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("resp = %v, want ok:true", resp)
	}

	want := []string{"A.before", "B.before", "handler", "B.after", "A.after"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestChainRecoveryShortCircuits(t *testing.T) {
	var log []string
	recovered := Response{"recovered": true}
	a := &traceMiddleware{name: "A", log: &log}
	b := &traceMiddleware{name: "B", log: &log, recover: recovered}
	chain := NewChain(a, b)

	handlerErr := ErrHandler("boom")
	resp, err := chain.Execute(context.Background(), Request{}, func(_ context.Context, _ Request) (Response, error) {
		log = append(log, "handler")
		return nil, handlerErr
	})
	if err != nil {
		t.Fatalf("Execute() error = %v, want recovery", err)
	}
	if resp["recovered"] != true {
		t.Errorf("resp = %v, want recovered:true", resp)
	}

	// B recovers; A's on_error and after hooks never run.
	want := []string{"A.before", "B.before", "handler", "B.on_error"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestChainBeforeFailureWalksPrefix(t *testing.T) {
	var log []string
	a := &traceMiddleware{name: "A", log: &log}
	b := &traceMiddleware{name: "B", log: &log, beforeErr: ErrValidation("rejected")}
	c := &traceMiddleware{name: "C", log: &log}
	chain := NewChain(a, b, c)

	_, err := chain.Execute(context.Background(), Request{}, func(_ context.Context, _ Request) (Response, error) {
		log = append(log, "handler")
		return Response{}, nil
	})
	if CodeOf(err) != CodeValidation {
		t.Fatalf("Execute() code = %q, want %q", CodeOf(err), CodeValidation)
	}

	// B's before fails: handler and C never run; on_error walks B then A.
	want := []string{"A.before", "B.before", "B.on_error", "A.on_error"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestChainAfterFailureWalksSuffix(t *testing.T) {
	var log []string
	a := &traceMiddleware{name: "A", log: &log}
	b := &traceMiddleware{name: "B", log: &log, afterErr: errors.New("after failed")}
	c := &traceMiddleware{name: "C", log: &log}
	chain := NewChain(a, b, c)

	_, err := chain.Execute(context.Background(), Request{}, func(_ context.Context, _ Request) (Response, error) {
		return Response{}, nil
	})
	if err == nil {
		t.Fatal("Execute() error = nil, want after failure")
	}

	// C's after ran; B's after fails; on_error covers B and A only.
	want := []string{"A.before", "B.before", "C.before", "C.after", "B.after", "B.on_error", "A.on_error"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestChainRequestRewriting(t *testing.T) {
	addField := NewTransformMiddleware(func(req Request) (Request, error) {
		out := make(Request, len(req)+1)
		for k, v := range req {
			out[k] = v
		}
		out["injected"] = "yes"
		return out, nil
	}, nil)

	chain := NewChain(addField)
	var seen Request
	_, err := chain.Execute(context.Background(), Request{"orig": 1}, func(_ context.Context, req Request) (Response, error) {
		seen = req
		return Response{}, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if seen["injected"] != "yes" || seen["orig"] != 1 {
		t.Errorf("handler saw %v, want injected request", seen)
	}
}

func TestChainEmpty(t *testing.T) {
	chain := NewChain()
	resp, err := chain.Execute(context.Background(), Request{}, func(_ context.Context, _ Request) (Response, error) {
		return Response{"ok": true}, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("resp = %v, want ok:true", resp)
	}

	wantErr := ErrHandler("boom")
	_, err = chain.Execute(context.Background(), Request{}, func(_ context.Context, _ Request) (Response, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Execute() error = %v, want %v", err, wantErr)
	}
}

func TestValidationMiddleware(t *testing.T) {
	m := NewValidationMiddleware("name", "value")

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"all present", Request{"name": "a", "value": 1}, false},
		{"missing one", Request{"name": "a"}, true},
		{"empty", Request{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Before(context.Background(), tt.req)
			if tt.wantErr && CodeOf(err) != CodeValidation {
				t.Errorf("Before() code = %q, want %q", CodeOf(err), CodeValidation)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Before() error = %v", err)
			}
		})
	}
}
