package toolflow

import (
	"fmt"
	"regexp"
	"strconv"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// RenderTemplate substitutes `{{var}}` and `{{var.path}}` placeholders in a
// JSON-shaped value, recursing through maps and lists. A string that is
// exactly one placeholder is replaced by the raw variable value, preserving
// its type; placeholders embedded in longer strings are stringified in
// place. Unresolved placeholders are left untouched.
func RenderTemplate(value any, vars map[string]any) any {
	switch v := value.(type) {
	case string:
		return renderString(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = RenderTemplate(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RenderTemplate(item, vars)
		}
		return out
	default:
		return value
	}
}

// RenderRequest renders a request template. A nil template yields an empty
// request.
func RenderRequest(tmpl Request, vars map[string]any) Request {
	if tmpl == nil {
		return Request{}
	}
	return RenderTemplate(tmpl, vars).(map[string]any)
}

func renderString(s string, vars map[string]any) any {
	// Whole-string placeholder: substitute the raw value to keep its type.
	if m := placeholderPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		if val, ok := lookupPath(m[1], vars); ok {
			return val
		}
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := lookupPath(name, vars)
		if !ok {
			return match
		}
		return stringify(val)
	})
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
