package toolflow

import (
	"context"
	"sync"
	"time"
)

// BreakerState identifies the circuit breaker's position.
type BreakerState string

const (
	// BreakerClosed lets all requests through.
	BreakerClosed BreakerState = "closed"
	// BreakerOpen rejects requests until the cool-down elapses.
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen lets trial requests through to probe recovery.
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig tunes a BreakerMiddleware.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Defaults to 5.
	FailureThreshold int

	// CoolDown is how long the circuit stays open before allowing trial
	// requests. Defaults to 60s.
	CoolDown time.Duration

	// SuccessThreshold is the consecutive-success count in half-open state
	// that closes the circuit. Defaults to 2.
	SuccessThreshold int

	// Now overrides the clock for tests.
	Now func() time.Time
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// BreakerMiddleware is a circuit breaker. While open it rejects requests in
// Before; After and OnError feed success/failure counts back into the state
// machine.
type BreakerMiddleware struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewBreakerMiddleware creates a closed circuit breaker.
func NewBreakerMiddleware(cfg BreakerConfig) *BreakerMiddleware {
	return &BreakerMiddleware{cfg: cfg.withDefaults(), state: BreakerClosed}
}

// State returns the breaker's current state.
func (m *BreakerMiddleware) State() BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *BreakerMiddleware) Before(_ context.Context, req Request) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == BreakerOpen {
		if m.cfg.Now().Sub(m.openedAt) < m.cfg.CoolDown {
			return nil, ErrHandler("circuit breaker is open")
		}
		m.state = BreakerHalfOpen
		m.successes = 0
	}
	return req, nil
}

func (m *BreakerMiddleware) After(_ context.Context, _ Request, resp Response) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case BreakerHalfOpen:
		m.successes++
		if m.successes >= m.cfg.SuccessThreshold {
			m.state = BreakerClosed
			m.failures = 0
		}
	case BreakerClosed:
		m.failures = 0
	}
	return resp, nil
}

func (m *BreakerMiddleware) OnError(_ context.Context, _ Request, err error) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case BreakerHalfOpen:
		m.state = BreakerOpen
		m.openedAt = m.cfg.Now()
	case BreakerClosed:
		m.failures++
		if m.failures >= m.cfg.FailureThreshold {
			m.state = BreakerOpen
			m.openedAt = m.cfg.Now()
		}
	}
	return nil, err
}

var _ Middleware = (*BreakerMiddleware)(nil)
