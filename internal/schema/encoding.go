package schema

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the FTL schema protobuf messages.
const (
	moduleComments = 2
	moduleBuiltin  = 3
	moduleName     = 4
	moduleDecls    = 5

	declData = 1
	declVerb = 2

	dataPos      = 1
	dataComments = 2
	dataExport   = 3
	dataName     = 4
	dataFields   = 6

	verbPos      = 1
	verbComments = 2
	verbExport   = 3
	verbName     = 4
	verbRequest  = 5
	verbResponse = 6

	fieldPos      = 1
	fieldName     = 2
	fieldComments = 3
	fieldType     = 4

	posFilename = 1
	posLine     = 2
	posColumn   = 3

	typeInt    = 1
	typeFloat  = 2
	typeString = 3
	typeBool   = 5
	typeArray  = 7
	typeMap    = 8
	typeAny    = 9
	typeRef    = 11

	arrayElement = 2

	mapKey   = 2
	mapValue = 3

	refName   = 2
	refModule = 3
)

// Encode serializes the module in protobuf wire format. Declarations are
// sorted first, so equal modules always encode to equal bytes.
func Encode(m *Module) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("schema: encode nil module")
	}
	m.Sort()
	var b []byte
	b = appendStrings(b, moduleComments, m.Comments)
	b = appendString(b, moduleName, m.Name)
	for _, d := range m.Decls {
		msg, err := encodeDecl(d)
		if err != nil {
			return nil, fmt.Errorf("schema: encode %s: %w", d.GetName(), err)
		}
		b = appendMessage(b, moduleDecls, msg)
	}
	return b, nil
}

func encodeDecl(d Decl) ([]byte, error) {
	switch d := d.(type) {
	case *Data:
		msg, err := encodeData(d)
		if err != nil {
			return nil, err
		}
		return appendMessage(nil, declData, msg), nil
	case *Verb:
		msg, err := encodeVerb(d)
		if err != nil {
			return nil, err
		}
		return appendMessage(nil, declVerb, msg), nil
	default:
		return nil, fmt.Errorf("unknown declaration %T", d)
	}
}

func encodeData(d *Data) ([]byte, error) {
	var b []byte
	b = appendMessage(b, dataPos, encodePosition(d.Pos))
	b = appendStrings(b, dataComments, d.Comments)
	b = appendBool(b, dataExport, d.Export)
	b = appendString(b, dataName, d.Name)
	for _, f := range d.Fields {
		msg, err := encodeField(f)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		b = appendMessage(b, dataFields, msg)
	}
	return b, nil
}

func encodeVerb(v *Verb) ([]byte, error) {
	var b []byte
	b = appendMessage(b, verbPos, encodePosition(v.Pos))
	b = appendStrings(b, verbComments, v.Comments)
	b = appendBool(b, verbExport, v.Export)
	b = appendString(b, verbName, v.Name)
	req, err := encodeType(v.Request)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	resp, err := encodeType(v.Response)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	b = appendMessage(b, verbRequest, req)
	b = appendMessage(b, verbResponse, resp)
	return b, nil
}

func encodeField(f *Field) ([]byte, error) {
	t, err := encodeType(f.Type)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendMessage(b, fieldPos, encodePosition(f.Pos))
	b = appendString(b, fieldName, f.Name)
	b = appendMessage(b, fieldType, t)
	return b, nil
}

func encodePosition(p Position) []byte {
	var b []byte
	b = appendString(b, posFilename, p.Filename)
	b = appendInt(b, posLine, p.Line)
	b = appendInt(b, posColumn, p.Column)
	return b
}

func encodeType(t Type) ([]byte, error) {
	switch t := t.(type) {
	case *Basic:
		num, ok := basicField(t.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown basic kind %d", t.Kind)
		}
		return appendMessage(nil, num, nil), nil
	case *Array:
		el, err := encodeType(t.Element)
		if err != nil {
			return nil, err
		}
		return appendMessage(nil, typeArray, appendMessage(nil, arrayElement, el)), nil
	case *Map:
		k, err := encodeType(t.Key)
		if err != nil {
			return nil, err
		}
		v, err := encodeType(t.Value)
		if err != nil {
			return nil, err
		}
		var body []byte
		body = appendMessage(body, mapKey, k)
		body = appendMessage(body, mapValue, v)
		return appendMessage(nil, typeMap, body), nil
	case *TypeRef:
		var body []byte
		body = appendString(body, refName, t.Name)
		body = appendString(body, refModule, t.Module)
		return appendMessage(nil, typeRef, body), nil
	case *Any:
		return appendMessage(nil, typeAny, nil), nil
	case nil:
		return nil, fmt.Errorf("missing type")
	default:
		return nil, fmt.Errorf("unknown type %T", t)
	}
}

func basicField(k BasicKind) (protowire.Number, bool) {
	switch k {
	case BasicInt:
		return typeInt, true
	case BasicFloat:
		return typeFloat, true
	case BasicString:
		return typeString, true
	case BasicBool:
		return typeBool, true
	}
	return 0, false
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendStrings(b []byte, num protowire.Number, ss []string) []byte {
	for _, s := range ss {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendInt(b []byte, num protowire.Number, v int) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}
