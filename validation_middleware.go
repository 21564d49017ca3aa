package toolflow

import (
	"context"
	"fmt"
)

// ValidationMiddleware rejects requests that lack required top-level fields.
type ValidationMiddleware struct {
	PassthroughMiddleware

	required []string
}

// NewValidationMiddleware creates a middleware requiring the given fields.
func NewValidationMiddleware(required ...string) *ValidationMiddleware {
	return &ValidationMiddleware{required: required}
}

func (m *ValidationMiddleware) Before(_ context.Context, req Request) (Request, error) {
	for _, field := range m.required {
		if _, ok := req[field]; !ok {
			return nil, ErrValidation(fmt.Sprintf("missing required field: %s", field))
		}
	}
	return req, nil
}

// TransformMiddleware rewrites requests and responses with caller-supplied
// functions. Nil functions pass values through untouched.
type TransformMiddleware struct {
	PassthroughMiddleware

	beforeFn func(Request) (Request, error)
	afterFn  func(Response) (Response, error)
}

// NewTransformMiddleware creates a transform middleware. Either function may
// be nil.
func NewTransformMiddleware(before func(Request) (Request, error), after func(Response) (Response, error)) *TransformMiddleware {
	return &TransformMiddleware{beforeFn: before, afterFn: after}
}

func (m *TransformMiddleware) Before(_ context.Context, req Request) (Request, error) {
	if m.beforeFn == nil {
		return req, nil
	}
	return m.beforeFn(req)
}

func (m *TransformMiddleware) After(_ context.Context, _ Request, resp Response) (Response, error) {
	if m.afterFn == nil {
		return resp, nil
	}
	return m.afterFn(resp)
}
