package schema

import (
	"strings"
)

// String renders the module in FTL schema text form.
func (m *Module) String() string {
	w := &strings.Builder{}
	writeComments(w, "", m.Comments)
	w.WriteString("module " + m.Name + " {\n")
	for i, d := range m.Decls {
		if i > 0 {
			w.WriteString("\n")
		}
		switch d := d.(type) {
		case *Data:
			w.WriteString(indent(d.String()))
		case *Verb:
			w.WriteString(indent(d.String()))
		}
	}
	w.WriteString("}\n")
	return w.String()
}

func (d *Data) String() string {
	w := &strings.Builder{}
	writeComments(w, "", d.Comments)
	if d.Export {
		w.WriteString("export ")
	}
	w.WriteString("data " + d.Name + " {\n")
	for _, f := range d.Fields {
		w.WriteString("  " + f.Name + " " + typeText(f.Type) + "\n")
	}
	w.WriteString("}\n")
	return w.String()
}

func (v *Verb) String() string {
	w := &strings.Builder{}
	writeComments(w, "", v.Comments)
	if v.Export {
		w.WriteString("export ")
	}
	w.WriteString("verb " + v.Name + "(" + typeText(v.Request) + ") " + typeText(v.Response) + "\n")
	return w.String()
}

func typeText(t Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

func writeComments(w *strings.Builder, prefix string, comments []string) {
	for _, c := range comments {
		if c == "" {
			w.WriteString(prefix + "//\n")
			continue
		}
		w.WriteString(prefix + "// " + c + "\n")
	}
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		if l != "\n" {
			b.WriteString("  ")
		}
		b.WriteString(l)
	}
	return b.String()
}
