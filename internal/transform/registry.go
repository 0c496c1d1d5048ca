// Package transform implements the transform registry behind the transform
// primitive: a name-to-handler table with four built-ins (parse_functions,
// extract_imports, generate_summary, compress_text) that callers can extend
// with their own entries.
package transform

import (
	"context"
	"sync"

	"github.com/nibzard/agrama/internal/agramaerr"
)

// Func is one registered transform. data is the raw input; options carry
// transform-specific knobs (language, target ratio). The returned value
// must be JSON-serializable.
type Func func(ctx context.Context, data []byte, options map[string]any) (any, error)

// Registry maps transform names to handlers.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{transforms: make(map[string]Func)}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[name] = fn
}

// Names returns the registered transform names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		out = append(out, name)
	}
	return out
}

// Apply runs the named transform. An unregistered name fails with a
// Validation error (unknown transform).
func (r *Registry) Apply(ctx context.Context, name string, data []byte, options map[string]any) (any, error) {
	const op = "transform.Apply"
	r.mu.RLock()
	fn, ok := r.transforms[name]
	r.mu.RUnlock()
	if !ok {
		return nil, agramaerr.New(agramaerr.Validation, op, "unknown transform: "+name)
	}
	return fn(ctx, data, options)
}

// RegisterBuiltins installs the four standard transforms.
func RegisterBuiltins(r *Registry) {
	p := newSourceParser()
	r.Register("parse_functions", p.ParseFunctions)
	r.Register("extract_imports", p.ExtractImports)
	r.Register("generate_summary", GenerateSummary)
	r.Register("compress_text", CompressText)
}

func stringOption(options map[string]any, key, fallback string) string {
	if options == nil {
		return fallback
	}
	if v, ok := options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func floatOption(options map[string]any, key string, fallback float64) float64 {
	if options == nil {
		return fallback
	}
	switch v := options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}
