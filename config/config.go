// Package config loads and validates the YAML definition of a toolflow
// server: tools, pipelines, middleware, state backend, and schedules.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/toolflow"
)

// ToolType identifies how a configured tool is implemented.
type ToolType string

const (
	ToolNative   ToolType = "native"
	ToolCLI      ToolType = "cli"
	ToolHTTP     ToolType = "http"
	ToolPipeline ToolType = "pipeline"
)

// Config is the root of a server definition file.
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Tools      []ToolConfig       `yaml:"tools"`
	Middleware []MiddlewareConfig `yaml:"middleware,omitempty"`
	State      *StateConfig       `yaml:"state,omitempty"`
	Schedules  []ScheduleConfig   `yaml:"schedules,omitempty"`
}

// ServerConfig names the server.
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// ToolConfig defines one tool. The Type field decides which of the
// type-specific sections applies.
type ToolConfig struct {
	Name        string   `yaml:"name"`
	Type        ToolType `yaml:"type"`
	Description string   `yaml:"description,omitempty"`

	// TimeoutMS bounds one invocation. Zero means no per-tool limit.
	TimeoutMS int `yaml:"timeout_ms,omitempty"`

	// Required lists request fields enforced before the handler runs.
	Required []string `yaml:"required,omitempty"`

	// CLI tool fields.
	Command     string   `yaml:"command,omitempty"`
	Args        []string `yaml:"args,omitempty"`
	Cwd         string   `yaml:"cwd,omitempty"`
	Env         []string `yaml:"env,omitempty"`
	StreamStdin bool     `yaml:"stream_stdin,omitempty"`

	// HTTP tool fields.
	Endpoint string            `yaml:"endpoint,omitempty"`
	Method   string            `yaml:"method,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Auth     *AuthConfig       `yaml:"auth,omitempty"`
	Retry    *RetryConfig      `yaml:"retry,omitempty"`

	// Pipeline tool fields.
	Steps []toolflow.PipelineStep `yaml:"steps,omitempty"`
}

// Timeout converts TimeoutMS to a duration.
func (t ToolConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMS) * time.Millisecond
}

// AuthConfig configures HTTP tool authentication.
type AuthConfig struct {
	Type     string `yaml:"type"` // bearer | basic | api_key
	Token    string `yaml:"token,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Header   string `yaml:"header,omitempty"`
}

// RetryConfig configures retry behavior for a tool.
type RetryConfig struct {
	MaxAttempts  int     `yaml:"max_attempts"`
	BackoffMS    int     `yaml:"backoff_ms,omitempty"`
	MaxBackoffMS int     `yaml:"max_backoff_ms,omitempty"`
	Multiplier   float64 `yaml:"multiplier,omitempty"`
	Jitter       float64 `yaml:"jitter,omitempty"`
}

// Policy converts the config into a runtime retry policy.
func (r RetryConfig) Policy() toolflow.RetryPolicy {
	return toolflow.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		Backoff:     time.Duration(r.BackoffMS) * time.Millisecond,
		MaxBackoff:  time.Duration(r.MaxBackoffMS) * time.Millisecond,
		Multiplier:  r.Multiplier,
		Jitter:      r.Jitter,
	}
}

// MiddlewareConfig enables one middleware in chain order.
type MiddlewareConfig struct {
	Type string `yaml:"type"` // logging | validation | breaker

	// Validation settings.
	Required []string `yaml:"required,omitempty"`

	// Breaker settings.
	FailureThreshold int `yaml:"failure_threshold,omitempty"`
	SuccessThreshold int `yaml:"success_threshold,omitempty"`
	CoolDownMS       int `yaml:"cool_down_ms,omitempty"`
}

// StateConfig selects the key/value backend.
type StateConfig struct {
	Backend string `yaml:"backend"` // memory | sqlite
	Path    string `yaml:"path,omitempty"`
}

// ScheduleConfig runs a tool on a cron schedule.
type ScheduleConfig struct {
	Tool  string           `yaml:"tool"`
	Cron  string           `yaml:"cron"`
	Input toolflow.Request `yaml:"input,omitempty"`
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return &cfg, nil
}
