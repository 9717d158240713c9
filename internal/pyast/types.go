// Package pyast reads the declaration surface of a Python source file:
// imports, top-level functions and classes, decorators, annotations and
// docstrings. The tree-sitter tree is converted into plain values while
// parsing, so a *File is immutable and safe to share between goroutines.
package pyast

import (
	"fmt"
	"strings"
)

// Position is a 1-based line and column.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// File is the parsed declaration surface of one source file.
type File struct {
	// Path is the slash-separated path relative to the module root.
	Path    string
	Doc     []string
	Imports []Import
	Funcs   []*FuncDecl
	Classes []*ClassDecl
}

// Import is one bound name of an import statement.
//
//	import ftl                     -> {Module: "ftl", Alias: "ftl"}
//	import typing as t             -> {Module: "typing", Alias: "t"}
//	from ftl.echo import Echo      -> {Module: "ftl.echo", Name: "Echo", Alias: "Echo"}
//	from .models import Req as R   -> {Level: 1, Module: "models", Name: "Req", Alias: "R"}
type Import struct {
	Pos Position
	// Level counts the leading dots of a relative import.
	Level  int
	Module string
	// Name is empty for plain "import x" statements.
	Name  string
	Alias string
}

// IsFrom reports whether the import came from a "from ... import" statement.
func (i Import) IsFrom() bool { return i.Name != "" }

// Decorator is one "@expr" line above a definition.
type Decorator struct {
	Pos Position
	// Name is the dotted callee, e.g. "verb" or "ftl.verb".
	Name string
	// Keywords holds keyword arguments as source text, e.g. {"export": "True"}.
	Keywords map[string]string
}

// Keyword returns the source text of a keyword argument.
func (d Decorator) Keyword(name string) (string, bool) {
	v, ok := d.Keywords[name]
	return v, ok
}

type Param struct {
	Pos  Position
	Name string
	// Type is nil when the parameter has no annotation.
	Type *TypeExpr
	// Variadic marks *args and **kwargs.
	Variadic bool
}

type FuncDecl struct {
	Pos        Position
	Name       string
	Decorators []Decorator
	Params     []Param
	// Returns is nil when the function has no return annotation.
	Returns *TypeExpr
	Doc     []string
}

type FieldDecl struct {
	Pos  Position
	Name string
	Type *TypeExpr
}

type ClassDecl struct {
	Pos        Position
	Name       string
	Decorators []Decorator
	// Fields are the class-level annotated attributes in source order.
	Fields []FieldDecl
	Doc    []string
}

// HasDecorator reports whether any decorator's dotted name is one of names.
func HasDecorator(decs []Decorator, names ...string) (Decorator, bool) {
	for _, d := range decs {
		for _, n := range names {
			if d.Name == n {
				return d, true
			}
		}
	}
	return Decorator{}, false
}

// ExprKind classifies a type annotation.
type ExprKind int

const (
	// ExprName is a possibly dotted name with optional type arguments,
	// e.g. str, typing.List[int], dict[str, Foo].
	ExprName ExprKind = iota
	// ExprUnion is "A | B".
	ExprUnion
	// ExprNone is the literal None.
	ExprNone
	// ExprOther is any annotation this package does not model.
	ExprOther
)

// TypeExpr is a parsed type annotation.
type TypeExpr struct {
	Pos  Position
	Kind ExprKind
	// Name is the dotted name for ExprName.
	Name string
	// Args holds type arguments for ExprName and members for ExprUnion.
	Args []*TypeExpr
	// Text is the annotation as written, after unquoting forward references.
	Text string
}

func (t *TypeExpr) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case ExprName:
		if len(t.Args) == 0 {
			return t.Name
		}
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}
		return t.Name + "[" + strings.Join(parts, ", ") + "]"
	case ExprUnion:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}
		return strings.Join(parts, " | ")
	case ExprNone:
		return "None"
	default:
		return t.Text
	}
}
