package schema

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts the module into a generic protobuf Struct, mirroring the
// shape of the wire messages. It backs JSON output via protojson.
func ToStruct(m *Module) (*structpb.Struct, error) {
	decls := make([]any, 0, len(m.Decls))
	for _, d := range m.Decls {
		switch d := d.(type) {
		case *Data:
			fields := make([]any, 0, len(d.Fields))
			for _, f := range d.Fields {
				fields = append(fields, map[string]any{
					"pos":  positionValue(f.Pos),
					"name": f.Name,
					"type": typeValue(f.Type),
				})
			}
			decls = append(decls, map[string]any{"data": map[string]any{
				"pos":      positionValue(d.Pos),
				"comments": stringsValue(d.Comments),
				"export":   d.Export,
				"name":     d.Name,
				"fields":   fields,
			}})
		case *Verb:
			decls = append(decls, map[string]any{"verb": map[string]any{
				"pos":      positionValue(d.Pos),
				"comments": stringsValue(d.Comments),
				"export":   d.Export,
				"name":     d.Name,
				"request":  typeValue(d.Request),
				"response": typeValue(d.Response),
			}})
		}
	}
	return structpb.NewStruct(map[string]any{
		"name":     m.Name,
		"comments": stringsValue(m.Comments),
		"decls":    decls,
	})
}

func positionValue(p Position) map[string]any {
	return map[string]any{
		"filename": p.Filename,
		"line":     p.Line,
		"column":   p.Column,
	}
}

func stringsValue(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func typeValue(t Type) map[string]any {
	switch t := t.(type) {
	case *Basic:
		return map[string]any{lowerKind(t.Kind): map[string]any{}}
	case *Array:
		return map[string]any{"array": map[string]any{"element": typeValue(t.Element)}}
	case *Map:
		return map[string]any{"map": map[string]any{
			"key":   typeValue(t.Key),
			"value": typeValue(t.Value),
		}}
	case *TypeRef:
		return map[string]any{"ref": map[string]any{"module": t.Module, "name": t.Name}}
	case *Any:
		return map[string]any{"any": map[string]any{}}
	}
	return map[string]any{}
}

func lowerKind(k BasicKind) string {
	switch k {
	case BasicString:
		return "string"
	case BasicInt:
		return "int"
	case BasicBool:
		return "bool"
	case BasicFloat:
		return "float"
	}
	return "unknown"
}
