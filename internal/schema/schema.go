// Package schema holds the module schema produced by extraction: verbs, data
// records and the small closed type algebra they reference.
package schema

import (
	"fmt"
	"sort"
)

// Ref identifies a named declaration. It is a value type and is safe to use
// as a map key.
type Ref struct {
	Module string
	Name   string
}

func (r Ref) String() string {
	if r.Module == "" {
		return r.Name
	}
	return r.Module + "." + r.Name
}

// Less orders refs by module, then name.
func (r Ref) Less(o Ref) bool {
	if r.Module != o.Module {
		return r.Module < o.Module
	}
	return r.Name < o.Name
}

// Position is a 1-based source location. Filename is relative to the module
// root and uses forward slashes.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Less orders positions by filename, then line, then column.
func (p Position) Less(o Position) bool {
	if p.Filename != o.Filename {
		return p.Filename < o.Filename
	}
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// BasicKind enumerates the builtin scalars.
type BasicKind int

const (
	BasicString BasicKind = iota + 1
	BasicInt
	BasicBool
	BasicFloat
)

func (k BasicKind) String() string {
	switch k {
	case BasicString:
		return "String"
	case BasicInt:
		return "Int"
	case BasicBool:
		return "Bool"
	case BasicFloat:
		return "Float"
	default:
		return "unknown"
	}
}

// Type is one of *Basic, *Array, *Map, *TypeRef or *Any.
//
//sumtype:decl
type Type interface {
	schemaType()
	String() string
}

type Basic struct {
	Kind BasicKind
}

type Array struct {
	Element Type
}

type Map struct {
	Key   Type
	Value Type
}

// TypeRef is a reference to a declaration used in type position.
type TypeRef struct {
	Ref
}

type Any struct{}

func (*Basic) schemaType() {}
func (*Array) schemaType() {}
func (*Map) schemaType() {}
func (*TypeRef) schemaType() {}
func (*Any) schemaType() {}

func (b *Basic) String() string   { return b.Kind.String() }
func (a *Array) String() string   { return "[" + a.Element.String() + "]" }
func (m *Map) String() string     { return "{" + m.Key.String() + ": " + m.Value.String() + "}" }
func (t *TypeRef) String() string { return t.Ref.String() }
func (*Any) String() string       { return "Any" }

// NewRef returns a TypeRef for module.name.
func NewRef(module, name string) *TypeRef {
	return &TypeRef{Ref: Ref{Module: module, Name: name}}
}

type Field struct {
	Pos  Position
	Name string
	Type Type
}

// Decl is one of *Verb or *Data.
//
//sumtype:decl
type Decl interface {
	schemaDecl()
	GetName() string
}

// Verb is a declared entry point taking one request and returning one
// response.
type Verb struct {
	Pos      Position
	Comments []string
	Export   bool
	Name     string
	Request  Type
	Response Type
}

// Data is a declared record with ordered, typed fields.
type Data struct {
	Pos      Position
	Comments []string
	Export   bool
	Name     string
	Fields   []*Field
}

func (*Verb) schemaDecl() {}
func (*Data) schemaDecl() {}

func (v *Verb) GetName() string { return v.Name }
func (d *Data) GetName() string { return d.Name }

// Module is the consolidated schema of one FTL module.
type Module struct {
	Name     string
	Comments []string
	Decls    []Decl
}

// Verbs returns the module's verbs in declaration order.
func (m *Module) Verbs() []*Verb {
	var out []*Verb
	for _, d := range m.Decls {
		if v, ok := d.(*Verb); ok {
			out = append(out, v)
		}
	}
	return out
}

// Data returns the module's data declarations in declaration order.
func (m *Module) Data() []*Data {
	var out []*Data
	for _, d := range m.Decls {
		if v, ok := d.(*Data); ok {
			out = append(out, v)
		}
	}
	return out
}

// Sort orders declarations by Ref so that encoding is reproducible. Data sorts
// before a verb with the same name.
func (m *Module) Sort() {
	sort.SliceStable(m.Decls, func(i, j int) bool {
		a, b := m.Decls[i], m.Decls[j]
		ra := Ref{Module: m.Name, Name: a.GetName()}
		rb := Ref{Module: m.Name, Name: b.GetName()}
		if ra != rb {
			return ra.Less(rb)
		}
		return declRank(a) < declRank(b)
	})
}

func declRank(d Decl) int {
	switch d.(type) {
	case *Data:
		return 0
	default:
		return 1
	}
}
