package hydrate

import (
	"context"
	"fmt"

	"github.com/petal-labs/toolflow"
)

// EchoHandler returns its input verbatim.
func EchoHandler() toolflow.Handler {
	return toolflow.HandlerFunc(func(_ context.Context, req toolflow.Request) (toolflow.Response, error) {
		out := make(toolflow.Response, len(req))
		for k, v := range req {
			out[k] = v
		}
		return out, nil
	})
}

// CalcHandler performs basic arithmetic. Request: {"op": "add|sub|mul|div",
// "a": number, "b": number}. Division by zero is a validation error.
func CalcHandler() toolflow.Handler {
	return toolflow.HandlerFunc(func(_ context.Context, req toolflow.Request) (toolflow.Response, error) {
		op, ok := req["op"].(string)
		if !ok {
			return nil, toolflow.ErrValidation("op must be a string")
		}
		a, err := numberField(req, "a")
		if err != nil {
			return nil, err
		}
		b, err := numberField(req, "b")
		if err != nil {
			return nil, err
		}

		var result float64
		switch op {
		case "add":
			result = a + b
		case "sub":
			result = a - b
		case "mul":
			result = a * b
		case "div":
			if b == 0 {
				return nil, toolflow.ErrValidation("division by zero")
			}
			result = a / b
		default:
			return nil, toolflow.ErrValidation(fmt.Sprintf("unknown op: %q", op))
		}
		return toolflow.Response{"result": result}, nil
	})
}

func numberField(req toolflow.Request, field string) (float64, error) {
	switch v := req[field].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, toolflow.ErrValidation("missing required field: " + field)
	default:
		return 0, toolflow.ErrValidation(field + " must be a number")
	}
}
