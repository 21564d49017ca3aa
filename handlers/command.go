// Package handlers provides tool handlers backed by external processes and
// HTTP endpoints. Both implement toolflow.Handler, so configured tools and
// native Go tools dispatch identically.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/petal-labs/toolflow"
)

// CommandConfig describes a subprocess-backed tool.
type CommandConfig struct {
	// Command is the executable to run.
	Command string

	// Args are passed verbatim; no shell interpretation.
	Args []string

	// Cwd is the working directory. Empty means inherit.
	Cwd string

	// Env entries in KEY=VALUE form, appended to the parent environment.
	Env []string

	// StreamStdin, when set, writes the JSON-encoded request to the
	// process's stdin.
	StreamStdin bool
}

// CommandHandler runs a configured command per invocation. The response is
// {"stdout", "stderr", "exit_code"}; stdout that parses as a JSON object is
// additionally merged under "output".
type CommandHandler struct {
	cfg CommandConfig
}

// NewCommandHandler creates a handler for the given command config.
func NewCommandHandler(cfg CommandConfig) (*CommandHandler, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, toolflow.ErrValidation("command is required")
	}
	return &CommandHandler{cfg: cfg}, nil
}

func (h *CommandHandler) Handle(ctx context.Context, req toolflow.Request) (toolflow.Response, error) {
	cmd := exec.CommandContext(ctx, h.cfg.Command, h.cfg.Args...)
	cmd.Dir = h.cfg.Cwd
	if len(h.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), h.cfg.Env...)
	}

	if h.cfg.StreamStdin {
		input, err := json.Marshal(req)
		if err != nil {
			return nil, toolflow.ErrValidation(fmt.Sprintf("request is not JSON-encodable: %v", err))
		}
		cmd.Stdin = bytes.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, toolflow.WrapError(toolflow.CodeTimeout, "command canceled: "+h.cfg.Command, ctx.Err())
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, toolflow.WrapError(toolflow.CodeHandler, "command failed to start: "+h.cfg.Command, runErr)
		}
	}

	resp := toolflow.Response{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	}

	// Structured output: a stdout that is a JSON object is surfaced as-is.
	trimmed := bytes.TrimSpace(stdout.Bytes())
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var decoded map[string]any
		if json.Unmarshal(trimmed, &decoded) == nil {
			resp["output"] = decoded
		}
	}

	if exitCode != 0 {
		return nil, toolflow.ErrHandler(fmt.Sprintf("command exited with code %d: %s", exitCode, h.cfg.Command)).
			WithDetails(map[string]any{"exit_code": exitCode, "stderr": stderr.String()})
	}
	return resp, nil
}

var _ toolflow.Handler = (*CommandHandler)(nil)
