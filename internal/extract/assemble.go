package extract

import (
	"schemaextract/internal/schema"
)

// Assemble builds the module schema from a snapshot. Declarations are sorted
// by ref so that encoding the result is reproducible.
func Assemble(module string, snap Snapshot) *schema.Module {
	m := &schema.Module{Name: module}
	for _, d := range snap.Data {
		m.Decls = append(m.Decls, d)
	}
	for _, v := range snap.Verbs {
		m.Decls = append(m.Decls, v)
	}
	m.Sort()
	return m
}
