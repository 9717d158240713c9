package pyast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is wrapped by Parse when the source does not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// Parse reads the declaration surface of src. path is recorded on the File
// as given. A source with any syntax error is rejected as a whole.
func Parse(ctx context.Context, path string, src []byte) (*File, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		pos := firstError(root)
		return nil, fmt.Errorf("%s:%s: %w", path, pos, ErrSyntax)
	}

	r := &reader{ctx: ctx, src: src}
	f := &File{Path: path}
	children := namedChildren(root)
	if len(children) > 0 {
		f.Doc = r.docstring(children[0])
	}
	for _, n := range children {
		switch n.Type() {
		case "import_statement":
			f.Imports = append(f.Imports, r.importStatement(n)...)
		case "import_from_statement":
			f.Imports = append(f.Imports, r.importFrom(n)...)
		case "function_definition":
			f.Funcs = append(f.Funcs, r.function(n, nil))
		case "class_definition":
			f.Classes = append(f.Classes, r.class(n, nil))
		case "decorated_definition":
			decs := r.decorators(n)
			def := n.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			switch def.Type() {
			case "function_definition":
				f.Funcs = append(f.Funcs, r.function(def, decs))
			case "class_definition":
				f.Classes = append(f.Classes, r.class(def, decs))
			}
		}
	}
	return f, nil
}

type reader struct {
	ctx context.Context
	src []byte
}

func (r *reader) text(n *sitter.Node) string { return n.Content(r.src) }

func position(n *sitter.Node) Position {
	p := n.StartPoint()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func firstError(n *sitter.Node) Position {
	if n.IsError() || n.IsMissing() {
		return position(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.IsMissing() {
			return firstError(c)
		}
	}
	return position(n)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func (r *reader) importStatement(n *sitter.Node) []Import {
	var out []Import
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "dotted_name":
			mod := r.text(c)
			alias, _, _ := strings.Cut(mod, ".")
			out = append(out, Import{Pos: position(c), Module: mod, Alias: alias})
		case "aliased_import":
			name := c.ChildByFieldName("name")
			alias := c.ChildByFieldName("alias")
			if name == nil || alias == nil {
				continue
			}
			out = append(out, Import{Pos: position(c), Module: r.text(name), Alias: r.text(alias)})
		}
	}
	return out
}

func (r *reader) importFrom(n *sitter.Node) []Import {
	modNode := n.ChildByFieldName("module_name")
	if modNode == nil {
		return nil
	}
	level := 0
	mod := r.text(modNode)
	if modNode.Type() == "relative_import" {
		trimmed := strings.TrimLeft(mod, ".")
		level = len(mod) - len(trimmed)
		mod = trimmed
	}
	var out []Import
	add := func(c *sitter.Node) {
		switch c.Type() {
		case "dotted_name":
			name := r.text(c)
			out = append(out, Import{Pos: position(c), Level: level, Module: mod, Name: name, Alias: name})
		case "aliased_import":
			name := c.ChildByFieldName("name")
			alias := c.ChildByFieldName("alias")
			if name == nil {
				return
			}
			imp := Import{Pos: position(c), Level: level, Module: mod, Name: r.text(name), Alias: r.text(name)}
			if alias != nil {
				imp.Alias = r.text(alias)
			}
			out = append(out, imp)
		}
	}
	for _, c := range namedChildren(n) {
		if c.StartByte() == modNode.StartByte() {
			continue
		}
		add(c)
	}
	return out
}

func (r *reader) decorators(n *sitter.Node) []Decorator {
	var out []Decorator
	for _, c := range namedChildren(n) {
		if c.Type() != "decorator" || c.NamedChildCount() == 0 {
			continue
		}
		expr := c.NamedChild(0)
		d := Decorator{Pos: position(c)}
		switch expr.Type() {
		case "identifier", "attribute":
			d.Name = r.text(expr)
		case "call":
			fn := expr.ChildByFieldName("function")
			if fn == nil {
				continue
			}
			d.Name = r.text(fn)
			if args := expr.ChildByFieldName("arguments"); args != nil {
				for _, a := range namedChildren(args) {
					if a.Type() != "keyword_argument" {
						continue
					}
					name, value := a.ChildByFieldName("name"), a.ChildByFieldName("value")
					if name == nil || value == nil {
						continue
					}
					if d.Keywords == nil {
						d.Keywords = make(map[string]string)
					}
					d.Keywords[r.text(name)] = r.text(value)
				}
			}
		default:
			d.Name = r.text(expr)
		}
		d.Name = stripSpace(d.Name)
		out = append(out, d)
	}
	return out
}

func (r *reader) function(n *sitter.Node, decs []Decorator) *FuncDecl {
	fn := &FuncDecl{Pos: position(n), Decorators: decs}
	if len(decs) > 0 {
		fn.Pos = decs[0].Pos
	}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = r.text(name)
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Params = r.params(params)
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		fn.Returns = r.typeExpr(ret)
	}
	if body := n.ChildByFieldName("body"); body != nil && body.NamedChildCount() > 0 {
		fn.Doc = r.docstring(body.NamedChild(0))
	}
	return fn
}

func (r *reader) params(n *sitter.Node) []Param {
	var out []Param
	for _, c := range namedChildren(n) {
		p := Param{Pos: position(c)}
		switch c.Type() {
		case "identifier":
			p.Name = r.text(c)
		case "typed_parameter":
			// identifier ":" type, or a splat pattern in place of the identifier
			for _, cc := range namedChildren(c) {
				switch cc.Type() {
				case "identifier":
					if p.Name == "" {
						p.Name = r.text(cc)
					}
				case "list_splat_pattern", "dictionary_splat_pattern":
					p.Name = r.text(cc)
					p.Variadic = true
				}
			}
			if t := c.ChildByFieldName("type"); t != nil {
				p.Type = r.typeExpr(t)
			}
		case "default_parameter":
			if name := c.ChildByFieldName("name"); name != nil {
				p.Name = r.text(name)
			}
		case "typed_default_parameter":
			if name := c.ChildByFieldName("name"); name != nil {
				p.Name = r.text(name)
			}
			if t := c.ChildByFieldName("type"); t != nil {
				p.Type = r.typeExpr(t)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			p.Name = r.text(c)
			p.Variadic = true
		default:
			// positional/keyword separators
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *reader) class(n *sitter.Node, decs []Decorator) *ClassDecl {
	c := &ClassDecl{Pos: position(n), Decorators: decs}
	if len(decs) > 0 {
		c.Pos = decs[0].Pos
	}
	if name := n.ChildByFieldName("name"); name != nil {
		c.Name = r.text(name)
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return c
	}
	stmts := namedChildren(body)
	if len(stmts) > 0 {
		c.Doc = r.docstring(stmts[0])
	}
	for _, stmt := range stmts {
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != "assignment" {
			continue
		}
		left, typ := assign.ChildByFieldName("left"), assign.ChildByFieldName("type")
		if left == nil || typ == nil || left.Type() != "identifier" {
			continue
		}
		c.Fields = append(c.Fields, FieldDecl{
			Pos:  position(stmt),
			Name: r.text(left),
			Type: r.typeExpr(typ),
		})
	}
	return c
}

// docstring returns the lines of n if it is a bare string statement.
func (r *reader) docstring(n *sitter.Node) []string {
	if n.Type() != "expression_statement" || n.NamedChildCount() != 1 {
		return nil
	}
	s := n.NamedChild(0)
	if s.Type() != "string" {
		return nil
	}
	return docLines(r.text(s))
}

func (r *reader) typeExpr(n *sitter.Node) *TypeExpr {
	pos := position(n)
	switch n.Type() {
	case "type":
		if n.NamedChildCount() == 1 {
			return r.typeExpr(n.NamedChild(0))
		}
	case "identifier", "attribute":
		name := stripSpace(r.text(n))
		if name == "None" {
			return &TypeExpr{Pos: pos, Kind: ExprNone, Text: name}
		}
		return &TypeExpr{Pos: pos, Kind: ExprName, Name: name, Text: name}
	case "none":
		return &TypeExpr{Pos: pos, Kind: ExprNone, Text: "None"}
	case "member_type":
		name := stripSpace(r.text(n))
		return &TypeExpr{Pos: pos, Kind: ExprName, Name: name, Text: name}
	case "subscript":
		value := n.ChildByFieldName("value")
		if value == nil || (value.Type() != "identifier" && value.Type() != "attribute") {
			break
		}
		t := &TypeExpr{Pos: pos, Kind: ExprName, Name: stripSpace(r.text(value)), Text: r.text(n)}
		for _, c := range namedChildren(n) {
			if c.StartByte() == value.StartByte() {
				continue
			}
			t.Args = append(t.Args, r.typeArgs(c)...)
		}
		return t
	case "generic_type":
		var t *TypeExpr
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "identifier", "attribute":
				t = &TypeExpr{Pos: pos, Kind: ExprName, Name: stripSpace(r.text(c)), Text: r.text(n)}
			case "type_parameter":
				if t == nil {
					continue
				}
				for _, a := range namedChildren(c) {
					t.Args = append(t.Args, r.typeExpr(a))
				}
			}
		}
		if t != nil {
			return t
		}
	case "binary_operator", "union_type":
		left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
		if left == nil || right == nil {
			kids := namedChildren(n)
			if len(kids) != 2 {
				break
			}
			left, right = kids[0], kids[1]
		}
		if n.Type() == "binary_operator" {
			op := n.ChildByFieldName("operator")
			if op == nil || r.text(op) != "|" {
				break
			}
		}
		u := &TypeExpr{Pos: pos, Kind: ExprUnion, Text: r.text(n)}
		for _, side := range []*TypeExpr{r.typeExpr(left), r.typeExpr(right)} {
			if side.Kind == ExprUnion {
				u.Args = append(u.Args, side.Args...)
			} else {
				u.Args = append(u.Args, side)
			}
		}
		return u
	case "string":
		return ParseAnnotation(r.ctx, unquote(r.text(n)), pos)
	}
	return &TypeExpr{Pos: pos, Kind: ExprOther, Text: r.text(n)}
}

// typeArgs flattens a subscript argument: dict[str, int] may surface the
// arguments as a tuple or as separate children depending on the grammar.
func (r *reader) typeArgs(n *sitter.Node) []*TypeExpr {
	if n.Type() == "tuple" || n.Type() == "expression_list" {
		var out []*TypeExpr
		for _, c := range namedChildren(n) {
			out = append(out, r.typeExpr(c))
		}
		return out
	}
	return []*TypeExpr{r.typeExpr(n)}
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
