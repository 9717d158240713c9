// Package typemap maps Python type annotations onto the schema type algebra.
package typemap

import (
	"strings"

	"schemaextract/internal/pyast"
	"schemaextract/internal/schema"
)

// Registrar records refs that still need a declaration.
type Registrar interface {
	AddNeedsExtraction(ref schema.Ref)
}

// Mapper resolves annotations in the context of one file. It has a single
// side effect: every local record or function it maps to a Ref is passed to
// Pending.
type Mapper struct {
	// Module is the name of the module being extracted.
	Module  string
	Scope   *Scope
	Pending Registrar
}

var (
	arrayNames = set("list", "List", "Sequence", "typing.List", "typing.Sequence", "collections.abc.Sequence")
	mapNames   = set("dict", "Dict", "Mapping", "typing.Dict", "typing.Mapping", "collections.abc.Mapping")
	anyNames   = set("Any", "typing.Any")
	basicNames = map[string]schema.BasicKind{
		"str":   schema.BasicString,
		"int":   schema.BasicInt,
		"bool":  schema.BasicBool,
		"float": schema.BasicFloat,
	}
)

const ftlPrefix = "ftl."

// Map returns the schema type for expr. ok is false when the annotation has
// no representation; that is not an error.
func (m *Mapper) Map(expr *pyast.TypeExpr) (schema.Type, bool) {
	if expr == nil || expr.Kind != pyast.ExprName {
		return nil, false
	}
	name, bound := m.Scope.Qualify(expr.Name)

	switch {
	case arrayNames.has(name):
		if len(expr.Args) != 1 {
			return nil, false
		}
		el, ok := m.Map(expr.Args[0])
		if !ok {
			return nil, false
		}
		return &schema.Array{Element: el}, true

	case mapNames.has(name):
		if len(expr.Args) != 2 {
			return nil, false
		}
		k, ok := m.Map(expr.Args[0])
		if !ok {
			return nil, false
		}
		v, ok := m.Map(expr.Args[1])
		if !ok {
			return nil, false
		}
		return &schema.Map{Key: k, Value: v}, true
	}

	if len(expr.Args) > 0 {
		return nil, false
	}
	if anyNames.has(name) {
		return &schema.Any{}, true
	}
	if kind, ok := basicNames[name]; ok && !bound {
		return &schema.Basic{Kind: kind}, true
	}
	if !bound {
		if m.Scope.HasClass(name) || m.Scope.HasFunc(name) {
			return m.pending(name), true
		}
		return nil, false
	}
	return m.imported(name)
}

// imported maps a fully qualified name reached through an import.
func (m *Mapper) imported(qualified string) (schema.Type, bool) {
	i := strings.LastIndexByte(qualified, '.')
	if i < 0 {
		return nil, false
	}
	mod, name := qualified[:i], qualified[i+1:]
	if other, ok := strings.CutPrefix(mod, ftlPrefix); ok && other != "" && !strings.Contains(other, ".") {
		// declared by another FTL module
		return schema.NewRef(other, name), true
	}
	if m.Scope.IsLocalModule(mod) {
		return m.pending(name), true
	}
	return nil, false
}

func (m *Mapper) pending(name string) schema.Type {
	ref := schema.Ref{Module: m.Module, Name: name}
	if m.Pending != nil {
		m.Pending.AddNeedsExtraction(ref)
	}
	return &schema.TypeRef{Ref: ref}
}

type nameSet map[string]struct{}

func set(names ...string) nameSet {
	s := make(nameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}
