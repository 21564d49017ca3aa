package toolflow

import (
	"context"
	"log/slog"
)

// LoggingMiddleware logs requests, responses, and errors with slog.
type LoggingMiddleware struct {
	PassthroughMiddleware

	logger *slog.Logger
	tool   string
}

// NewLoggingMiddleware creates a logging middleware for the named tool.
// A nil logger falls back to slog.Default.
func NewLoggingMiddleware(logger *slog.Logger, tool string) *LoggingMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware{logger: logger, tool: tool}
}

func (m *LoggingMiddleware) Before(ctx context.Context, req Request) (Request, error) {
	m.logger.DebugContext(ctx, "tool request", "tool", m.tool, "keys", len(req))
	return req, nil
}

func (m *LoggingMiddleware) After(ctx context.Context, _ Request, resp Response) (Response, error) {
	m.logger.DebugContext(ctx, "tool response", "tool", m.tool, "keys", len(resp))
	return resp, nil
}

func (m *LoggingMiddleware) OnError(ctx context.Context, _ Request, err error) (Response, error) {
	m.logger.WarnContext(ctx, "tool error", "tool", m.tool, "code", CodeOf(err), "error", err)
	return nil, err
}
