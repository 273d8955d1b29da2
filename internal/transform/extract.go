// SPDX-License-Identifier: MPL-2.0

package transform

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/deltagraph/deltagraph/internal/graph"
)

// ErrSyntax is wrapped by *SyntaxError.
var ErrSyntax = errors.New("syntax error")

// SyntaxError reports the first position tree-sitter could not parse.
type SyntaxError struct {
	Line, Column int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at %d:%d", ErrSyntax, e.Line, e.Column)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// ExtractDependencies parses source and returns the modules it imports, in
// source order. The grammar is picked from the extension of path: TypeScript
// for .ts, TSX for .tsx and JavaScript (with JSX) otherwise. Recognized forms:
//
//   - import ... from "x" and import "x", except import type
//   - export ... from "x", except export type
//   - require("x"), optional when it sits inside a try block
//   - import("x"), marked async
//
// A name that appears more than once is reported once, at its first
// position; it is only async or optional if every occurrence is.
func ExtractDependencies(ctx context.Context, path string, source []byte) ([]graph.TransformDependency, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(languageFor(path))

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, firstSyntaxError(root)
	}

	e := &extractor{source: source, index: make(map[string]int)}
	e.walk(root, false)
	return e.deps, nil
}

func languageFor(path string) *sitter.Language {
	switch filepath.Ext(path) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

type extractor struct {
	source []byte
	deps   []graph.TransformDependency
	index  map[string]int
}

func (e *extractor) walk(n *sitter.Node, inTry bool) {
	switch n.Type() {
	case "import_statement", "export_statement":
		if src := n.ChildByFieldName("source"); src != nil && !typeOnly(n) {
			e.add(src, false, false)
		}
	case "call_expression":
		e.call(n, inTry)
	case "try_statement":
		body := n.ChildByFieldName("body")
		for i := range int(n.ChildCount()) {
			child := n.Child(i)
			e.walk(child, inTry || sameNode(child, body))
		}
		return
	}

	for i := range int(n.ChildCount()) {
		e.walk(n.Child(i), inTry)
	}
}

func (e *extractor) call(n *sitter.Node, inTry bool) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil || args.NamedChildCount() == 0 {
		return
	}
	arg := args.NamedChild(0)

	switch {
	case fn.Type() == "import":
		e.add(arg, true, false)
	case fn.Type() == "identifier" && fn.Content(e.source) == "require":
		e.add(arg, false, inTry)
	}
}

// add records the module named by a string literal node.
func (e *extractor) add(lit *sitter.Node, async, optional bool) {
	name, ok := stringValue(lit, e.source)
	if !ok {
		return
	}
	if i, seen := e.index[name]; seen {
		e.deps[i].Async = e.deps[i].Async && async
		e.deps[i].Optional = e.deps[i].Optional && optional
		return
	}
	e.index[name] = len(e.deps)
	e.deps = append(e.deps, graph.TransformDependency{
		Name:     name,
		Async:    async,
		Optional: optional,
		Line:     int(lit.StartPoint().Row) + 1,
	})
}

// stringValue returns the value of a string literal or of a template
// literal without substitutions.
func stringValue(n *sitter.Node, source []byte) (string, bool) {
	switch n.Type() {
	case "string":
	case "template_string":
		for i := range int(n.NamedChildCount()) {
			if n.NamedChild(i).Type() == "template_substitution" {
				return "", false
			}
		}
	default:
		return "", false
	}
	content := n.Content(source)
	if len(content) < 2 {
		return "", false
	}
	value := content[1 : len(content)-1]
	if value == "" || strings.ContainsAny(value, "\\\n") {
		return "", false
	}
	return value, true
}

// typeOnly reports TypeScript's import type and export type forms, which
// are erased at compile time.
func typeOnly(n *sitter.Node) bool {
	for i := range int(n.ChildCount()) {
		if n.Child(i).Type() == "type" {
			return true
		}
	}
	return false
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func firstSyntaxError(n *sitter.Node) error {
	if n.Type() == "ERROR" || n.IsMissing() {
		p := n.StartPoint()
		return &SyntaxError{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
	}
	for i := range int(n.ChildCount()) {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstSyntaxError(child)
		}
	}
	p := n.StartPoint()
	return &SyntaxError{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}
