package pyast

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParseAnnotation parses the text of a string annotation ("forward
// reference") such as "list[EchoRequest]" or "Foo | None" with the same
// grammar as inline annotations. Every node of the result is placed at pos.
func ParseAnnotation(ctx context.Context, s string, pos Position) *TypeExpr {
	s = strings.TrimSpace(s)
	other := &TypeExpr{Pos: pos, Kind: ExprOther, Text: s}
	if s == "" {
		return other
	}
	src := []byte("_: " + s + "\n")
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return other
	}
	root := tree.RootNode()
	if root.HasError() || root.NamedChildCount() != 1 {
		return other
	}
	stmt := root.NamedChild(0)
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return other
	}
	assign := stmt.NamedChild(0)
	if assign.Type() != "assignment" || assign.ChildByFieldName("right") != nil {
		return other
	}
	typ := assign.ChildByFieldName("type")
	if typ == nil {
		return other
	}
	r := &reader{ctx: ctx, src: src}
	return placeAt(r.typeExpr(typ), pos)
}

func placeAt(t *TypeExpr, pos Position) *TypeExpr {
	t.Pos = pos
	for _, a := range t.Args {
		placeAt(a, pos)
	}
	return t
}

// unquote strips a Python string literal's prefix and quotes.
func unquote(raw string) string {
	s := strings.TrimLeft(raw, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// docLines splits a docstring into lines with common indentation removed
// and surrounding blank lines trimmed.
func docLines(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(unquote(raw), "\r\n", "\n"), "\n")
	minIndent := -1
	for i, l := range lines {
		if i == 0 || strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	for i, l := range lines {
		if i == 0 {
			lines[i] = strings.TrimSpace(l)
			continue
		}
		if minIndent > 0 && len(l) >= minIndent {
			l = l[minIndent:]
		}
		lines[i] = strings.TrimRight(l, " \t")
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
