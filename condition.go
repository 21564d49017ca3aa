package toolflow

import "strings"

// EvaluateCondition evaluates a step condition against the variable store.
// The language is deliberately small: `name` is true when the variable is
// truthy, `!name` negates, and `name.path` navigates nested maps. Missing
// variables and missing path segments evaluate to false. An empty condition
// is always true.
func EvaluateCondition(condition string, vars map[string]any) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true
	}
	if strings.HasPrefix(condition, "!") {
		return !EvaluateCondition(condition[1:], vars)
	}
	val, ok := lookupPath(condition, vars)
	if !ok {
		return false
	}
	return isTruthy(val)
}

// lookupPath resolves a dotted path against the variable store. Navigation
// descends through map[string]any values only; any other intermediate type
// fails the lookup.
func lookupPath(path string, vars map[string]any) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = vars
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// isTruthy reports whether a JSON-shaped value counts as true: nil, false,
// numeric zero, empty strings, and empty collections are false.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
