package primitives

import (
	"fmt"

	"github.com/nibzard/agrama/internal/agramaerr"
)

// Argument helpers for the JSON-shaped args maps the transport hands in.
// Numbers arrive as float64 after JSON decoding; the helpers accept native
// Go ints too so in-process callers don't need to round-trip through JSON.

func requireString(args map[string]any, key, op string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", agramaerr.New(agramaerr.Validation, op, "missing required argument: "+key)
	}
	s, ok := v.(string)
	if !ok {
		return "", agramaerr.New(agramaerr.Validation, op, "argument must be a string: "+key)
	}
	return s, nil
}

func optString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func optBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func optInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func optFloat(args map[string]any, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

func optMap(args map[string]any, key string) map[string]any {
	v, _ := args[key].(map[string]any)
	return v
}

// stringifyMap flattens a JSON metadata object into the string-valued attr
// maps the stores keep.
func stringifyMap(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
