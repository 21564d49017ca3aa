package toolflow

import "context"

// Middleware wraps tool execution with hooks on the request path, the
// response path, and the error path. Hooks may rewrite the value they are
// given; returning an error from Before or After aborts the invocation.
type Middleware interface {
	// Before runs prior to the handler, in registration order. The returned
	// request replaces the one passed in for everything downstream.
	Before(ctx context.Context, req Request) (Request, error)

	// After runs once the handler succeeds, in reverse registration order.
	// The returned response replaces the one passed in.
	After(ctx context.Context, req Request, resp Response) (Response, error)

	// OnError runs when the handler or a hook fails. Returning a non-nil
	// response with a nil error recovers the invocation.
	OnError(ctx context.Context, req Request, err error) (Response, error)
}

// PassthroughMiddleware is a no-op Middleware for embedding. Types that only
// care about one hook embed it and override what they need.
type PassthroughMiddleware struct{}

func (PassthroughMiddleware) Before(_ context.Context, req Request) (Request, error) {
	return req, nil
}

func (PassthroughMiddleware) After(_ context.Context, _ Request, resp Response) (Response, error) {
	return resp, nil
}

func (PassthroughMiddleware) OnError(_ context.Context, _ Request, err error) (Response, error) {
	return nil, err
}

// Chain runs middlewares around a handler in onion order: Before hooks
// first-to-last, the handler, then After hooks last-to-first. On failure the
// OnError hooks walk backwards from the failure point; the first one to
// return a response with a nil error recovers the call.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from the given middlewares.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Add appends a middleware to the end of the chain.
func (c *Chain) Add(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Execute runs fn inside the chain. A Before failure at position i skips the
// handler and walks OnError from i back to the front. A handler failure
// walks OnError through the whole chain in reverse. An After failure at
// position i walks OnError from i back to the front, covering only hooks
// whose After had not yet run.
func (c *Chain) Execute(ctx context.Context, req Request, fn HandlerFunc) (Response, error) {
	for i, m := range c.middlewares {
		next, err := m.Before(ctx, req)
		if err != nil {
			return c.recover(ctx, req, err, i)
		}
		req = next
	}

	resp, err := fn(ctx, req)
	if err != nil {
		return c.recover(ctx, req, err, len(c.middlewares)-1)
	}

	for i := len(c.middlewares) - 1; i >= 0; i-- {
		next, err := c.middlewares[i].After(ctx, req, resp)
		if err != nil {
			return c.recover(ctx, req, err, i)
		}
		resp = next
	}
	return resp, nil
}

// recover walks OnError hooks from position `from` down to the front of the
// chain, threading a single error accumulator. The first hook to return a
// nil error wins and its response is returned as the invocation's result.
func (c *Chain) recover(ctx context.Context, req Request, err error, from int) (Response, error) {
	for i := from; i >= 0; i-- {
		resp, next := c.middlewares[i].OnError(ctx, req, err)
		if next == nil {
			return resp, nil
		}
		err = next
	}
	return nil, err
}

var _ Middleware = PassthroughMiddleware{}
