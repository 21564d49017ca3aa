package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var scheduleCronParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// builtinTools are registered by hydration without a config entry, so step
// and schedule targets may reference them freely.
var builtinTools = map[string]bool{
	"echo":         true,
	"calc":         true,
	"state_get":    true,
	"state_set":    true,
	"state_delete": true,
}

// Diagnostic is one validation finding, located by config path.
type Diagnostic struct {
	Path    string
	Message string
}

func (d Diagnostic) String() string {
	return d.Path + ": " + d.Message
}

// Validate checks a parsed config for structural problems: duplicate tool
// names, missing type-specific fields, pipeline steps targeting unknown or
// self-referential tools, bad cron expressions, and unknown backends. It
// returns all findings rather than stopping at the first.
func Validate(cfg *Config) []Diagnostic {
	var diags []Diagnostic
	add := func(path, format string, args ...any) {
		diags = append(diags, Diagnostic{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(cfg.Server.Name) == "" {
		add("server.name", "server name is required")
	}

	// Config names may shadow builtins, so the duplicate check runs against
	// config entries only while step and schedule targets resolve against both.
	names := make(map[string]bool, len(cfg.Tools))
	for i, tool := range cfg.Tools {
		path := fmt.Sprintf("tools[%d]", i)
		if strings.TrimSpace(tool.Name) == "" {
			add(path+".name", "tool name is required")
			continue
		}
		if names[tool.Name] {
			add(path+".name", "duplicate tool name: %s", tool.Name)
		}
		names[tool.Name] = true

		switch tool.Type {
		case ToolNative:
			// Implementation is injected at hydration time.
		case ToolCLI:
			if strings.TrimSpace(tool.Command) == "" {
				add(path+".command", "cli tool requires a command")
			}
		case ToolHTTP:
			if strings.TrimSpace(tool.Endpoint) == "" {
				add(path+".endpoint", "http tool requires an endpoint")
			}
		case ToolPipeline:
			if len(tool.Steps) == 0 {
				add(path+".steps", "pipeline requires at least one step")
			}
		default:
			add(path+".type", "unknown tool type: %q", tool.Type)
		}

		if tool.TimeoutMS < 0 {
			add(path+".timeout_ms", "timeout must not be negative")
		}
	}

	resolvable := func(name string) bool {
		return names[name] || builtinTools[name]
	}

	// Step targets resolve against the full tool set, so this pass runs
	// after all names are collected.
	for i, tool := range cfg.Tools {
		if tool.Type != ToolPipeline {
			continue
		}
		for j, step := range tool.Steps {
			path := fmt.Sprintf("tools[%d].steps[%d]", i, j)
			if strings.TrimSpace(step.Tool) == "" {
				add(path+".tool", "step requires a tool name")
				continue
			}
			if step.Tool == tool.Name {
				add(path+".tool", "pipeline %s references itself", tool.Name)
			}
			if !resolvable(step.Tool) {
				add(path+".tool", "step targets unknown tool: %s", step.Tool)
			}
			if step.ErrorPolicy != "" && step.ErrorPolicy != "fail_fast" && step.ErrorPolicy != "continue" {
				add(path+".error_policy", "unknown error policy: %q", step.ErrorPolicy)
			}
		}
	}

	for i, mw := range cfg.Middleware {
		path := fmt.Sprintf("middleware[%d]", i)
		switch mw.Type {
		case "logging", "breaker":
		case "validation":
			if len(mw.Required) == 0 {
				add(path+".required", "validation middleware requires fields")
			}
		default:
			add(path+".type", "unknown middleware type: %q", mw.Type)
		}
	}

	if cfg.State != nil {
		switch cfg.State.Backend {
		case "memory":
		case "sqlite":
			if strings.TrimSpace(cfg.State.Path) == "" {
				add("state.path", "sqlite backend requires a path")
			}
		default:
			add("state.backend", "unknown state backend: %q", cfg.State.Backend)
		}
	}

	for i, sched := range cfg.Schedules {
		path := fmt.Sprintf("schedules[%d]", i)
		if strings.TrimSpace(sched.Tool) == "" {
			add(path+".tool", "schedule requires a tool name")
		} else if !resolvable(sched.Tool) {
			add(path+".tool", "schedule targets unknown tool: %s", sched.Tool)
		}
		if err := validateCron(sched.Cron); err != nil {
			add(path+".cron", "%v", err)
		}
	}

	return diags
}

// validateCron accepts standard five-field UTC cron expressions only.
func validateCron(expr string) error {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		return fmt.Errorf("cron expression is required")
	}
	upper := strings.ToUpper(clean)
	if strings.Contains(upper, "CRON_TZ=") || strings.Contains(upper, "TZ=") {
		return fmt.Errorf("cron expression must be UTC-only (timezone prefixes are not allowed)")
	}
	if _, err := scheduleCronParser.Parse(clean); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
