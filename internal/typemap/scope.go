package typemap

import (
	"path"
	"strings"

	"schemaextract/internal/pyast"
)

// LocalModules is the set of dotted Python module names that belong to the
// module root, derived from the discovered source files.
type LocalModules map[string]struct{}

// NewLocalModules indexes slash-separated .py paths relative to the root:
// "pkg/models.py" becomes "pkg.models", "pkg/__init__.py" becomes "pkg".
func NewLocalModules(paths []string) LocalModules {
	out := make(LocalModules, len(paths))
	for _, p := range paths {
		if name := ModuleName(p); name != "" {
			out[name] = struct{}{}
		}
	}
	return out
}

// ModuleName converts a source path to its dotted module name.
func ModuleName(p string) string {
	p = strings.TrimSuffix(path.Clean(p), ".py")
	p = strings.TrimSuffix(p, "/__init__")
	if p == "__init__" || p == "." {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}

func (l LocalModules) Contains(name string) bool {
	_, ok := l[name]
	return ok
}

// Scope is the name environment of one file: its top-level declarations and
// the fully qualified target of every imported name.
type Scope struct {
	classes  map[string]struct{}
	funcs    map[string]struct{}
	bindings map[string]string
	local    LocalModules
}

// NewScope builds the scope for f. Relative imports are resolved against f.Path.
func NewScope(f *pyast.File, local LocalModules) *Scope {
	s := &Scope{
		classes:  make(map[string]struct{}, len(f.Classes)),
		funcs:    make(map[string]struct{}, len(f.Funcs)),
		bindings: make(map[string]string, len(f.Imports)),
		local:    local,
	}
	for _, c := range f.Classes {
		s.classes[c.Name] = struct{}{}
	}
	for _, fn := range f.Funcs {
		s.funcs[fn.Name] = struct{}{}
	}
	for _, imp := range f.Imports {
		mod := imp.Module
		if imp.Level > 0 {
			mod = resolveRelative(f.Path, imp.Level, imp.Module)
		}
		switch {
		case imp.IsFrom():
			if mod == "" {
				s.bindings[imp.Alias] = imp.Name
			} else {
				s.bindings[imp.Alias] = mod + "." + imp.Name
			}
		case imp.Alias == mod || strings.HasPrefix(mod, imp.Alias+"."):
			// "import a.b" binds "a"
			s.bindings[imp.Alias] = imp.Alias
		default:
			s.bindings[imp.Alias] = mod
		}
	}
	return s
}

// resolveRelative turns a relative import seen in file into an absolute
// dotted module name.
func resolveRelative(file string, level int, module string) string {
	dir := path.Dir(path.Clean(file))
	var parts []string
	if dir != "." {
		parts = strings.Split(dir, "/")
	}
	up := level - 1
	if up > len(parts) {
		up = len(parts)
	}
	parts = parts[:len(parts)-up]
	if module != "" {
		parts = append(parts, module)
	}
	return strings.Join(parts, ".")
}

// HasClass reports whether name is a class declared at the top level of the file.
func (s *Scope) HasClass(name string) bool {
	_, ok := s.classes[name]
	return ok
}

// HasFunc reports whether name is a function declared at the top level of the file.
func (s *Scope) HasFunc(name string) bool {
	_, ok := s.funcs[name]
	return ok
}

// Qualify resolves a dotted name through the file's imports. bound is false
// when the first segment is not an imported name.
func (s *Scope) Qualify(name string) (qualified string, bound bool) {
	head, rest, dotted := strings.Cut(name, ".")
	target, ok := s.bindings[head]
	if !ok {
		return name, false
	}
	if dotted {
		return target + "." + rest, true
	}
	return target, true
}

// IsLocalModule reports whether the dotted module lives under the module root.
func (s *Scope) IsLocalModule(mod string) bool {
	return s.local.Contains(mod)
}
