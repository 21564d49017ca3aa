package toolflow

import (
	"context"
	"fmt"
)

// ErrorPolicy controls what a pipeline does when a step fails.
type ErrorPolicy string

const (
	// ErrorPolicyFailFast stops the pipeline at the first failing step.
	ErrorPolicyFailFast ErrorPolicy = "fail_fast"
	// ErrorPolicyContinue records the failure and proceeds to later steps.
	ErrorPolicyContinue ErrorPolicy = "continue"
)

// PipelineStep is one tool call in a pipeline definition.
type PipelineStep struct {
	// Tool names the tool to dispatch.
	Tool string `json:"tool" yaml:"tool"`

	// Input is the request template; placeholders are resolved against the
	// pipeline's variable store before dispatch.
	Input Request `json:"input,omitempty" yaml:"input,omitempty"`

	// OutputVar names the variable the step's response is stored under.
	OutputVar string `json:"output_var,omitempty" yaml:"output_var,omitempty"`

	// Condition gates the step; a false condition skips it silently.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// ErrorPolicy defaults to fail_fast when empty.
	ErrorPolicy ErrorPolicy `json:"error_policy,omitempty" yaml:"error_policy,omitempty"`
}

// StepResult records the outcome of one executed step. Skipped steps do not
// produce results.
type StepResult struct {
	Tool    string   `json:"tool"`
	Success bool     `json:"success"`
	Output  Response `json:"output,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PipelineResult is the outcome of a pipeline run: per-step results in
// execution order plus the final variable store.
type PipelineResult struct {
	Results   []StepResult   `json:"results"`
	Variables map[string]any `json:"variables"`
}

// ResultResponse converts the result into a tool response shape.
func (r PipelineResult) ResultResponse() Response {
	results := make([]any, len(r.Results))
	for i, sr := range r.Results {
		entry := map[string]any{
			"tool":    sr.Tool,
			"success": sr.Success,
		}
		if sr.Output != nil {
			entry["output"] = sr.Output
		}
		if sr.Error != "" {
			entry["error"] = sr.Error
		}
		results[i] = entry
	}
	return Response{
		"results":   results,
		"variables": r.Variables,
	}
}

// DispatchFunc dispatches a tool call. The pipeline engine routes step
// execution back through it so nested calls get the full middleware
// treatment.
type DispatchFunc func(ctx context.Context, tool string, req Request) (Response, error)

// PipelineEngine runs pipeline definitions: sequential steps with condition
// gates, template-threaded variables, and per-step error policies.
type PipelineEngine struct {
	dispatch DispatchFunc
	emit     EventEmitter
}

// NewPipelineEngine creates an engine that executes steps via dispatch.
func NewPipelineEngine(dispatch DispatchFunc) *PipelineEngine {
	return &PipelineEngine{dispatch: dispatch}
}

// WithEmitter attaches an event emitter for step lifecycle events.
func (e *PipelineEngine) WithEmitter(emit EventEmitter) *PipelineEngine {
	e.emit = emit
	return e
}

func (e *PipelineEngine) emitEvent(ctx context.Context, ev Event) {
	if e.emit == nil {
		return
	}
	if ev.DispatchID == "" {
		ev.DispatchID = DispatchIDFromContext(ctx)
	}
	e.emit(ctx, ev)
}

// Run executes steps in order against a copy of initialVars. Steps whose
// condition is false are skipped without a result entry. A failing step is
// recorded; under fail_fast the run stops and the error is returned
// alongside the partial result, under continue the run proceeds and the
// step's output variable is left unset.
func (e *PipelineEngine) Run(ctx context.Context, steps []PipelineStep, initialVars map[string]any) (PipelineResult, error) {
	vars := make(map[string]any, len(initialVars))
	for k, v := range initialVars {
		vars[k] = v
	}
	result := PipelineResult{
		Results:   make([]StepResult, 0, len(steps)),
		Variables: vars,
	}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, WrapError(CodeTimeout, fmt.Sprintf("pipeline canceled before step %d (%s)", i, step.Tool), err)
		}

		if !EvaluateCondition(step.Condition, vars) {
			e.emitEvent(ctx, NewEvent(EventStepSkipped).WithTool(step.Tool))
			continue
		}

		req := RenderRequest(step.Input, vars)
		e.emitEvent(ctx, NewEvent(EventStepStarted).WithTool(step.Tool))

		resp, err := e.dispatch(ctx, step.Tool, req)
		if err != nil {
			result.Results = append(result.Results, StepResult{
				Tool:  step.Tool,
				Error: err.Error(),
			})
			e.emitEvent(ctx, NewEvent(EventStepFailed).WithTool(step.Tool).WithPayload(Response{"error": err.Error()}))
			if step.ErrorPolicy != ErrorPolicyContinue {
				return result, err
			}
			continue
		}

		if step.OutputVar != "" {
			vars[step.OutputVar] = resp
		}
		result.Results = append(result.Results, StepResult{
			Tool:    step.Tool,
			Success: true,
			Output:  resp,
		})
		e.emitEvent(ctx, NewEvent(EventStepFinished).WithTool(step.Tool))
	}
	return result, nil
}
