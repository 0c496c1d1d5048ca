package transform

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/nibzard/agrama/internal/agramaerr"
)

// sourceParser backs the parse_functions and extract_imports transforms
// with Tree-sitter ASTs. Parsers are not thread-safe, so each language
// keeps a sync.Pool of them.
type sourceParser struct {
	pools map[string]*sync.Pool
}

func newSourceParser() *sourceParser {
	mk := func(lang *sitter.Language) *sync.Pool {
		return &sync.Pool{New: func() any {
			p := sitter.NewParser()
			p.SetLanguage(lang)
			return p
		}}
	}
	return &sourceParser{pools: map[string]*sync.Pool{
		"go":         mk(golang.GetLanguage()),
		"python":     mk(python.GetLanguage()),
		"javascript": mk(javascript.GetLanguage()),
		"typescript": mk(typescript.GetLanguage()),
	}}
}

// FunctionInfo is one extracted function or method.
type FunctionInfo struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// ImportInfo is one extracted import.
type ImportInfo struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (p *sourceParser) parse(ctx context.Context, op string, data []byte, options map[string]any) (*sitter.Tree, string, error) {
	lang := stringOption(options, "language", "go")
	pool, ok := p.pools[lang]
	if !ok {
		return nil, "", agramaerr.New(agramaerr.Validation, op, "unsupported language: "+lang)
	}
	parser := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, data)
	if err != nil {
		return nil, "", agramaerr.Wrap(agramaerr.Internal, op, "parse failed", err)
	}
	return tree, lang, nil
}

// ParseFunctions extracts the function and method declarations from source
// code. options: language ∈ {go, python, javascript, typescript}, default
// go.
func (p *sourceParser) ParseFunctions(ctx context.Context, data []byte, options map[string]any) (any, error) {
	const op = "transform.parse_functions"
	tree, lang, err := p.parse(ctx, op, data, options)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	functionTypes := map[string]bool{}
	switch lang {
	case "go":
		functionTypes["function_declaration"] = true
		functionTypes["method_declaration"] = true
	case "python":
		functionTypes["function_definition"] = true
	case "javascript", "typescript":
		functionTypes["function_declaration"] = true
		functionTypes["method_definition"] = true
	}

	functions := make([]FunctionInfo, 0)
	walk(tree.RootNode(), func(n *sitter.Node) bool {
		if !functionTypes[n.Type()] {
			return true
		}
		name := ""
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			name = nameNode.Content(data)
		}
		sig := n.Content(data)
		if body := n.ChildByFieldName("body"); body != nil {
			sig = string(data[n.StartByte():body.StartByte()])
		}
		functions = append(functions, FunctionInfo{
			Name:      name,
			Signature: trimSignature(sig),
			StartLine: int(n.StartPoint().Row) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
		})
		return true // nested functions are extracted too
	})
	return functions, nil
}

// ExtractImports extracts import paths from source code. Same language
// options as ParseFunctions.
func (p *sourceParser) ExtractImports(ctx context.Context, data []byte, options map[string]any) (any, error) {
	const op = "transform.extract_imports"
	tree, lang, err := p.parse(ctx, op, data, options)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	imports := make([]ImportInfo, 0)
	record := func(n *sitter.Node, text string) {
		imports = append(imports, ImportInfo{Path: text, Line: int(n.StartPoint().Row) + 1})
	}

	walk(tree.RootNode(), func(n *sitter.Node) bool {
		switch lang {
		case "go":
			if n.Type() == "import_spec" {
				if path := n.ChildByFieldName("path"); path != nil {
					record(n, unquote(path.Content(data)))
				} else {
					record(n, unquote(n.Content(data)))
				}
				return false
			}
		case "python":
			if n.Type() == "import_statement" || n.Type() == "import_from_statement" {
				record(n, n.Content(data))
				return false
			}
		case "javascript", "typescript":
			if n.Type() == "import_statement" {
				if src := n.ChildByFieldName("source"); src != nil {
					record(n, unquote(src.Content(data)))
				} else {
					record(n, n.Content(data))
				}
				return false
			}
		}
		return true
	})
	return imports, nil
}

// walk visits every node depth-first; visit returning false prunes the
// subtree.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func trimSignature(sig string) string {
	for len(sig) > 0 {
		last := sig[len(sig)-1]
		if last == ' ' || last == '\t' || last == '\n' || last == '\r' || last == '{' {
			sig = sig[:len(sig)-1]
			continue
		}
		break
	}
	return sig
}
