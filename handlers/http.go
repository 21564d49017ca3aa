package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/petal-labs/toolflow"
)

// AuthType selects how HTTPHandler authenticates outgoing requests.
type AuthType string

const (
	AuthNone   AuthType = ""
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api_key"
)

// AuthConfig carries credentials for an HTTP-backed tool.
type AuthConfig struct {
	Type AuthType

	// Token is the bearer token or API key value.
	Token string

	// Username/Password are used for basic auth.
	Username string
	Password string

	// Header names the API key header. Defaults to X-API-Key.
	Header string
}

// HTTPConfig describes an HTTP-backed tool.
type HTTPConfig struct {
	// Endpoint is the target URL.
	Endpoint string

	// Method defaults to POST.
	Method string

	// Headers are set on every request.
	Headers map[string]string

	// Auth configures request authentication.
	Auth AuthConfig

	// Retry, when non-zero, wraps the call with backoff retries.
	Retry toolflow.RetryPolicy
}

// HTTPHandler proxies tool requests to an HTTP endpoint: the request is
// sent as a JSON body and the JSON response body becomes the tool response.
type HTTPHandler struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPHandler creates a handler for the given endpoint config. A nil
// client uses http.DefaultClient; per-tool deadlines arrive via context.
func NewHTTPHandler(cfg HTTPConfig, client *http.Client) (*HTTPHandler, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, toolflow.ErrValidation("endpoint is required")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPHandler{cfg: cfg, client: client}, nil
}

func (h *HTTPHandler) Handle(ctx context.Context, req toolflow.Request) (toolflow.Response, error) {
	if h.cfg.Retry.MaxAttempts > 1 {
		return toolflow.Retry(ctx, h.cfg.Retry, func(ctx context.Context) (toolflow.Response, error) {
			return h.call(ctx, req)
		})
	}
	return h.call(ctx, req)
}

func (h *HTTPHandler) call(ctx context.Context, req toolflow.Request) (toolflow.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, toolflow.ErrValidation(fmt.Sprintf("request is not JSON-encodable: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, h.cfg.Method, h.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, toolflow.WrapError(toolflow.CodeHandler, "build HTTP request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range h.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	h.applyAuth(httpReq)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, toolflow.WrapError(toolflow.CodeTimeout, "HTTP call canceled: "+h.cfg.Endpoint, ctx.Err())
		}
		return nil, toolflow.WrapError(toolflow.CodeHandler, "HTTP call failed: "+h.cfg.Endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, toolflow.WrapError(toolflow.CodeHandler, "read HTTP response", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := strings.TrimSpace(string(respBody))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, toolflow.ErrHandler(fmt.Sprintf("HTTP %d from %s: %s", resp.StatusCode, h.cfg.Endpoint, message)).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return toolflow.Response{}, nil
	}
	var out toolflow.Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		// Non-object bodies are wrapped rather than rejected.
		return toolflow.Response{"body": string(respBody)}, nil
	}
	return out, nil
}

func (h *HTTPHandler) applyAuth(req *http.Request) {
	switch h.cfg.Auth.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+h.cfg.Auth.Token)
	case AuthBasic:
		req.SetBasicAuth(h.cfg.Auth.Username, h.cfg.Auth.Password)
	case AuthAPIKey:
		header := h.cfg.Auth.Header
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, h.cfg.Auth.Token)
	}
}

var _ toolflow.Handler = (*HTTPHandler)(nil)
