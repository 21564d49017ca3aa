package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
server:
  name: demo
  version: "1.0"
tools:
  - name: echo
    type: native
    description: echoes input
  - name: lookup
    type: http
    endpoint: https://api.example.com/lookup
    timeout_ms: 2000
    auth:
      type: bearer
      token: abc
    retry:
      max_attempts: 3
      backoff_ms: 100
  - name: convert
    type: cli
    command: convert-tool
    args: ["--json"]
    stream_stdin: true
  - name: enrich
    type: pipeline
    steps:
      - tool: lookup
        input:
          q: "{{query}}"
        output_var: found
      - tool: echo
        condition: found.ok
        error_policy: continue
middleware:
  - type: logging
  - type: validation
    required: [query]
state:
  backend: sqlite
  path: /tmp/state.db
schedules:
  - tool: echo
    cron: "*/5 * * * *"
    input:
      msg: tick
`

func TestParseSampleConfig(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Server.Name != "demo" {
		t.Errorf("server.name = %q", cfg.Server.Name)
	}
	if len(cfg.Tools) != 4 {
		t.Fatalf("tools len = %d, want 4", len(cfg.Tools))
	}

	lookup := cfg.Tools[1]
	if lookup.Type != ToolHTTP || lookup.Endpoint == "" {
		t.Errorf("lookup = %+v", lookup)
	}
	if lookup.Timeout() != 2*time.Second {
		t.Errorf("lookup.Timeout() = %v", lookup.Timeout())
	}
	if lookup.Auth == nil || lookup.Auth.Type != "bearer" {
		t.Errorf("lookup.Auth = %+v", lookup.Auth)
	}
	if lookup.Retry == nil || lookup.Retry.Policy().MaxAttempts != 3 {
		t.Errorf("lookup.Retry = %+v", lookup.Retry)
	}

	enrich := cfg.Tools[3]
	if enrich.Type != ToolPipeline || len(enrich.Steps) != 2 {
		t.Fatalf("enrich = %+v", enrich)
	}
	if enrich.Steps[1].Condition != "found.ok" {
		t.Errorf("step condition = %q", enrich.Steps[1].Condition)
	}

	if cfg.State == nil || cfg.State.Backend != "sqlite" {
		t.Errorf("state = %+v", cfg.State)
	}
	if len(cfg.Schedules) != 1 || cfg.Schedules[0].Cron != "*/5 * * * *" {
		t.Errorf("schedules = %+v", cfg.Schedules)
	}

	if diags := Validate(cfg); len(diags) != 0 {
		t.Errorf("Validate() = %v, want clean", diags)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Name != "demo" {
		t.Errorf("server.name = %q", cfg.Server.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing file returned nil error")
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	if _, err := Parse([]byte("tools: [")); err == nil {
		t.Error("Parse() of invalid YAML returned nil error")
	}
}

func TestValidateBuiltinTargets(t *testing.T) {
	yaml := `
server: {name: s}
tools:
  - name: p
    type: pipeline
    steps:
      - tool: calc
schedules:
  - {tool: echo, cron: "* * * * *"}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diags := Validate(cfg); len(diags) != 0 {
		t.Errorf("Validate() = %v, want clean", diags)
	}
}

func TestValidateFindings(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string // substring of an expected diagnostic
	}{
		{
			"missing server name",
			"tools: []",
			"server name is required",
		},
		{
			"duplicate tool",
			"server: {name: s}\ntools:\n  - {name: a, type: native}\n  - {name: a, type: native}",
			"duplicate tool name",
		},
		{
			"cli without command",
			"server: {name: s}\ntools:\n  - {name: a, type: cli}",
			"requires a command",
		},
		{
			"http without endpoint",
			"server: {name: s}\ntools:\n  - {name: a, type: http}",
			"requires an endpoint",
		},
		{
			"unknown tool type",
			"server: {name: s}\ntools:\n  - {name: a, type: magic}",
			"unknown tool type",
		},
		{
			"pipeline unknown target",
			"server: {name: s}\ntools:\n  - name: p\n    type: pipeline\n    steps:\n      - tool: ghost",
			"unknown tool: ghost",
		},
		{
			"pipeline self reference",
			"server: {name: s}\ntools:\n  - name: p\n    type: pipeline\n    steps:\n      - tool: p",
			"references itself",
		},
		{
			"bad error policy",
			"server: {name: s}\ntools:\n  - {name: a, type: native}\n  - name: p\n    type: pipeline\n    steps:\n      - {tool: a, error_policy: explode}",
			"unknown error policy",
		},
		{
			"bad cron",
			"server: {name: s}\ntools:\n  - {name: a, type: native}\nschedules:\n  - {tool: a, cron: nonsense}",
			"invalid cron expression",
		},
		{
			"cron tz prefix",
			"server: {name: s}\ntools:\n  - {name: a, type: native}\nschedules:\n  - {tool: a, cron: \"CRON_TZ=UTC * * * * *\"}",
			"UTC-only",
		},
		{
			"schedule unknown tool",
			"server: {name: s}\nschedules:\n  - {tool: ghost, cron: \"* * * * *\"}",
			"unknown tool: ghost",
		},
		{
			"sqlite without path",
			"server: {name: s}\nstate: {backend: sqlite}",
			"requires a path",
		},
		{
			"unknown backend",
			"server: {name: s}\nstate: {backend: redis}",
			"unknown state backend",
		},
		{
			"unknown middleware",
			"server: {name: s}\nmiddleware:\n  - {type: caching}",
			"unknown middleware type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			diags := Validate(cfg)
			for _, d := range diags {
				if strings.Contains(d.Message, tt.want) {
					return
				}
			}
			t.Errorf("Validate() = %v, want a diagnostic containing %q", diags, tt.want)
		})
	}
}
