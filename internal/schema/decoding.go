package schema

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned by Decode for input that is not a valid encoded
// module.
var ErrMalformed = errors.New("schema: malformed module")

// Decode parses bytes produced by Encode. Unknown fields are skipped.
func Decode(b []byte) (*Module, error) {
	m := &Module{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		switch num {
		case moduleComments:
			m.Comments = append(m.Comments, string(v))
		case moduleName:
			m.Name = string(v)
		case moduleDecls:
			d, err := decodeDecl(v)
			if err != nil {
				return err
			}
			m.Decls = append(m.Decls, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeDecl(b []byte) (Decl, error) {
	var out Decl
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, _ uint64) error {
		var err error
		switch num {
		case declData:
			out, err = decodeData(v)
		case declVerb:
			out, err = decodeVerb(v)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty declaration", ErrMalformed)
	}
	return out, nil
}

func decodeData(b []byte) (*Data, error) {
	d := &Data{}
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, n uint64) error {
		switch num {
		case dataPos:
			p, err := decodePosition(v)
			if err != nil {
				return err
			}
			d.Pos = p
		case dataComments:
			d.Comments = append(d.Comments, string(v))
		case dataExport:
			d.Export = protowire.DecodeBool(n)
		case dataName:
			d.Name = string(v)
		case dataFields:
			f, err := decodeField(v)
			if err != nil {
				return err
			}
			d.Fields = append(d.Fields, f)
		}
		return nil
	})
	return d, err
}

func decodeVerb(b []byte) (*Verb, error) {
	vb := &Verb{}
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, n uint64) error {
		var err error
		switch num {
		case verbPos:
			vb.Pos, err = decodePosition(v)
		case verbComments:
			vb.Comments = append(vb.Comments, string(v))
		case verbExport:
			vb.Export = protowire.DecodeBool(n)
		case verbName:
			vb.Name = string(v)
		case verbRequest:
			vb.Request, err = decodeType(v)
		case verbResponse:
			vb.Response, err = decodeType(v)
		}
		return err
	})
	if err == nil && (vb.Request == nil || vb.Response == nil) {
		err = fmt.Errorf("%w: verb %s without request or response", ErrMalformed, vb.Name)
	}
	return vb, err
}

func decodeField(b []byte) (*Field, error) {
	f := &Field{}
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, _ uint64) error {
		var err error
		switch num {
		case fieldPos:
			f.Pos, err = decodePosition(v)
		case fieldName:
			f.Name = string(v)
		case fieldType:
			f.Type, err = decodeType(v)
		}
		return err
	})
	if err == nil && f.Type == nil {
		err = fmt.Errorf("%w: field %s without type", ErrMalformed, f.Name)
	}
	return f, err
}

func decodePosition(b []byte) (Position, error) {
	var p Position
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, n uint64) error {
		switch num {
		case posFilename:
			p.Filename = string(v)
		case posLine:
			p.Line = int(int64(n))
		case posColumn:
			p.Column = int(int64(n))
		}
		return nil
	})
	return p, err
}

func decodeType(b []byte) (Type, error) {
	var out Type
	err := walkFields(b, func(num protowire.Number, _ protowire.Type, v []byte, _ uint64) error {
		switch num {
		case typeInt:
			out = &Basic{Kind: BasicInt}
		case typeFloat:
			out = &Basic{Kind: BasicFloat}
		case typeString:
			out = &Basic{Kind: BasicString}
		case typeBool:
			out = &Basic{Kind: BasicBool}
		case typeAny:
			out = &Any{}
		case typeArray:
			a := &Array{}
			err := walkFields(v, func(num protowire.Number, _ protowire.Type, v []byte, _ uint64) error {
				if num != arrayElement {
					return nil
				}
				el, err := decodeType(v)
				a.Element = el
				return err
			})
			if err != nil {
				return err
			}
			if a.Element == nil {
				return fmt.Errorf("%w: array without element", ErrMalformed)
			}
			out = a
		case typeMap:
			mp := &Map{}
			err := walkFields(v, func(num protowire.Number, _ protowire.Type, v []byte, _ uint64) error {
				var err error
				switch num {
				case mapKey:
					mp.Key, err = decodeType(v)
				case mapValue:
					mp.Value, err = decodeType(v)
				}
				return err
			})
			if err != nil {
				return err
			}
			if mp.Key == nil || mp.Value == nil {
				return fmt.Errorf("%w: map without key or value", ErrMalformed)
			}
			out = mp
		case typeRef:
			r := &TypeRef{}
			err := walkFields(v, func(num protowire.Number, _ protowire.Type, v []byte, _ uint64) error {
				switch num {
				case refName:
					r.Name = string(v)
				case refModule:
					r.Module = string(v)
				}
				return nil
			})
			if err != nil {
				return err
			}
			out = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty type", ErrMalformed)
	}
	return out, nil
}

// walkFields calls fn for each field of a message. Length-delimited values
// arrive in v, varints in n; other wire types are skipped.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n uint64) error) error {
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(tagLen))
		}
		b = b[tagLen:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(num, typ, v, 0); err != nil {
				return err
			}
		case protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(num, typ, nil, x); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
