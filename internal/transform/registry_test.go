package transform

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibzard/agrama/internal/agramaerr"
)

func builtins(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

func TestUnknownTransformFailsWithValidation(t *testing.T) {
	r := builtins(t)
	_, err := r.Apply(context.Background(), "no_such_transform", nil, nil)
	require.Error(t, err)
	assert.True(t, agramaerr.Is(err, agramaerr.Validation))
}

func TestRegisterCustomTransform(t *testing.T) {
	r := NewRegistry()
	r.Register("upper", func(_ context.Context, data []byte, _ map[string]any) (any, error) {
		return strings.ToUpper(string(data)), nil
	})
	out, err := r.Apply(context.Background(), "upper", []byte("abc"), nil)
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}

const goSample = `package demo

import (
	"fmt"
	"strings"
)

func Greet(name string) string {
	return fmt.Sprintf("hello %s", strings.TrimSpace(name))
}

type T struct{}

func (t *T) Method(x int) int {
	return x + 1
}
`

func TestParseFunctionsGo(t *testing.T) {
	r := builtins(t)
	out, err := r.Apply(context.Background(), "parse_functions", []byte(goSample), map[string]any{"language": "go"})
	require.NoError(t, err)

	functions, ok := out.([]FunctionInfo)
	require.True(t, ok)
	require.Len(t, functions, 2)
	assert.Equal(t, "Greet", functions[0].Name)
	assert.Contains(t, functions[0].Signature, "func Greet(name string) string")
	assert.Equal(t, "Method", functions[1].Name)
	assert.Greater(t, functions[1].StartLine, functions[0].EndLine)
}

func TestParseFunctionsPython(t *testing.T) {
	r := builtins(t)
	src := "def top(a, b):\n    return a + b\n\nclass C:\n    def method(self):\n        pass\n"
	out, err := r.Apply(context.Background(), "parse_functions", []byte(src), map[string]any{"language": "python"})
	require.NoError(t, err)
	functions := out.([]FunctionInfo)
	require.Len(t, functions, 2)
	assert.Equal(t, "top", functions[0].Name)
	assert.Equal(t, "method", functions[1].Name)
}

func TestParseFunctionsRejectsUnsupportedLanguage(t *testing.T) {
	r := builtins(t)
	_, err := r.Apply(context.Background(), "parse_functions", []byte("x"), map[string]any{"language": "cobol"})
	require.Error(t, err)
	assert.True(t, agramaerr.Is(err, agramaerr.Validation))
}

func TestExtractImportsGo(t *testing.T) {
	r := builtins(t)
	out, err := r.Apply(context.Background(), "extract_imports", []byte(goSample), map[string]any{"language": "go"})
	require.NoError(t, err)
	imports := out.([]ImportInfo)
	require.Len(t, imports, 2)
	assert.Equal(t, "fmt", imports[0].Path)
	assert.Equal(t, "strings", imports[1].Path)
}

func TestExtractImportsJavaScript(t *testing.T) {
	r := builtins(t)
	src := "import fs from 'fs';\nimport { join } from 'path';\n"
	out, err := r.Apply(context.Background(), "extract_imports", []byte(src), map[string]any{"language": "javascript"})
	require.NoError(t, err)
	imports := out.([]ImportInfo)
	require.Len(t, imports, 2)
	assert.Equal(t, "fs", imports[0].Path)
	assert.Equal(t, "path", imports[1].Path)
}

func TestGenerateSummaryShrinksLongText(t *testing.T) {
	r := builtins(t)
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("The storage engine keeps every version of every path it has seen. ")
		b.WriteString("Older versions are reconstructed from reverse deltas on demand. ")
	}
	out, err := r.Apply(context.Background(), "generate_summary", []byte(b.String()), map[string]any{"target_ratio": 4.0})
	require.NoError(t, err)

	res := out.(SummaryResult)
	assert.NotEmpty(t, res.Summary)
	assert.Less(t, res.SummarySize, res.OriginalSize)
	assert.Greater(t, res.Ratio, 1.0)
}

func TestGenerateSummaryEmptyInputPassesThrough(t *testing.T) {
	r := builtins(t)
	out, err := r.Apply(context.Background(), "generate_summary", nil, nil)
	require.NoError(t, err)
	res := out.(SummaryResult)
	assert.Equal(t, "", res.Summary)
}

func TestCompressTextNormalizesWhitespaceAndDuplicates(t *testing.T) {
	r := builtins(t)
	in := "line  one\t\t here\n\n\n\nline two\nline two\nline three\n"
	out, err := r.Apply(context.Background(), "compress_text", []byte(in), nil)
	require.NoError(t, err)

	res := out.(CompressResult)
	assert.Equal(t, "line one here\n\nline two\nline three\n", res.Output)
	assert.Less(t, res.CompressedSize, res.OriginalSize)
}
