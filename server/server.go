// Package server exposes a dispatcher over HTTP and runs scheduled tool
// invocations.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/petal-labs/toolflow"
)

// Config configures a Server instance.
type Config struct {
	Dispatcher *toolflow.Dispatcher
	CORSOrigin string
	MaxBody    int64
	Logger     *slog.Logger
}

// Server is the toolflow HTTP API server.
type Server struct {
	dispatcher *toolflow.Dispatcher
	corsOrigin string
	maxBody    int64
	logger     *slog.Logger
}

// NewServer creates a Server with the given configuration.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	return &Server{
		dispatcher: cfg.Dispatcher,
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
		logger:     logger,
	}
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts API routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("POST /api/tools/{name}", s.handleCallTool)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	names := s.dispatcher.Tools()
	tools := make([]map[string]any, 0, len(names))
	for _, name := range names {
		tools = append(tools, map[string]any{
			"name":        name,
			"description": s.dispatcher.Describe(name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req toolflow.Request
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, toolflow.CodeValidation, "unable to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, toolflow.CodeValidation, "request body must be a JSON object")
			return
		}
	}
	if req == nil {
		req = toolflow.Request{}
	}

	start := time.Now()
	resp, err := s.dispatcher.Dispatch(r.Context(), name, req)
	if err != nil {
		s.logger.WarnContext(r.Context(), "dispatch failed",
			"tool", name, "code", toolflow.CodeOf(err), "elapsed", time.Since(start))
		writeDispatchError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "dispatch ok", "tool", name, "elapsed", time.Since(start))
	writeJSON(w, http.StatusOK, resp)
}

// writeDispatchError maps structured dispatch errors onto HTTP status codes:
// 404 for unknown tools, 400 for other caller errors, 504 for timeouts, and
// 500 for everything else.
func writeDispatchError(w http.ResponseWriter, err error) {
	code := toolflow.CodeOf(err)
	status := http.StatusInternalServerError
	switch {
	case code == toolflow.CodeToolNotFound:
		status = http.StatusNotFound
	case code == toolflow.CodeTimeout:
		status = http.StatusGatewayTimeout
	case toolflow.IsCallerError(err):
		status = http.StatusBadRequest
	}

	var details map[string]any
	var te *toolflow.Error
	if errors.As(err, &te) {
		details = te.Details
	}
	writeError(w, status, code, err.Error(), details)
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the standard error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...map[string]any) {
	body := apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
	if len(details) > 0 && details[0] != nil {
		body.Error.Details = details[0]
	}
	writeJSON(w, status, body)
}
