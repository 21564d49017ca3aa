package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/petal-labs/toolflow"
)

// GetHandler exposes Store.Get as a tool. Request: {"key": string}.
// Response: {"key", "value", "found"}; value is JSON-decoded when possible.
func GetHandler(store Store) toolflow.Handler {
	return toolflow.HandlerFunc(func(ctx context.Context, req toolflow.Request) (toolflow.Response, error) {
		key, err := stringField(req, "key")
		if err != nil {
			return nil, err
		}

		raw, found, err := store.Get(ctx, key)
		if err != nil {
			return nil, toolflow.WrapError(toolflow.CodeHandler, "state get failed", err)
		}
		resp := toolflow.Response{"key": key, "found": found}
		if found {
			var decoded any
			if json.Unmarshal(raw, &decoded) == nil {
				resp["value"] = decoded
			} else {
				resp["value"] = string(raw)
			}
		}
		return resp, nil
	})
}

// SetHandler exposes Store.Set as a tool. Request: {"key": string,
// "value": any, "ttl_ms": optional number}.
func SetHandler(store Store) toolflow.Handler {
	return toolflow.HandlerFunc(func(ctx context.Context, req toolflow.Request) (toolflow.Response, error) {
		key, err := stringField(req, "key")
		if err != nil {
			return nil, err
		}
		value, ok := req["value"]
		if !ok {
			return nil, toolflow.ErrValidation("missing required field: value")
		}

		raw, err := json.Marshal(value)
		if err != nil {
			return nil, toolflow.ErrValidation(fmt.Sprintf("value is not JSON-encodable: %v", err))
		}

		var ttl time.Duration
		if ms, ok := req["ttl_ms"].(float64); ok && ms > 0 {
			ttl = time.Duration(ms) * time.Millisecond
		}

		if err := store.Set(ctx, key, raw, ttl); err != nil {
			return nil, toolflow.WrapError(toolflow.CodeHandler, "state set failed", err)
		}
		return toolflow.Response{"key": key, "ok": true}, nil
	})
}

// DeleteHandler exposes Store.Delete as a tool. Request: {"key": string}.
func DeleteHandler(store Store) toolflow.Handler {
	return toolflow.HandlerFunc(func(ctx context.Context, req toolflow.Request) (toolflow.Response, error) {
		key, err := stringField(req, "key")
		if err != nil {
			return nil, err
		}
		if err := store.Delete(ctx, key); err != nil {
			return nil, toolflow.WrapError(toolflow.CodeHandler, "state delete failed", err)
		}
		return toolflow.Response{"key": key, "ok": true}, nil
	})
}

func stringField(req toolflow.Request, field string) (string, error) {
	val, ok := req[field]
	if !ok {
		return "", toolflow.ErrValidation("missing required field: " + field)
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return "", toolflow.ErrValidation(field + " must be a non-empty string")
	}
	return s, nil
}
