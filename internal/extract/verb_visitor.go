package extract

import (
	"context"
	"fmt"

	"schemaextract/internal/pyast"
	"schemaextract/internal/schema"
)

// VerbVisitor finds top-level functions carrying the verb marker.
type VerbVisitor struct{}

func (VerbVisitor) Kind() VisitorKind { return KindVerb }

func (VerbVisitor) Visit(ctx context.Context, lc *LocalContext) error {
	mapper := lc.Mapper()
	for _, fn := range lc.File.Funcs {
		if err := ctx.Err(); err != nil {
			return err
		}
		marker, ok := pyast.HasDecorator(fn.Decorators, verbMarkers...)
		if !ok {
			continue
		}
		req, resp, err := verbSignature(fn)
		if err != nil {
			lc.Reject(fn.Pos, fn.Name, err)
			continue
		}
		reqType, ok := mapper.Map(req)
		if !ok {
			lc.Reject(fn.Pos, fn.Name, fmt.Errorf("request %q: %w", req.String(), ErrUnmappedType))
			continue
		}
		respType, ok := mapper.Map(resp)
		if !ok {
			lc.Reject(fn.Pos, fn.Name, fmt.Errorf("response %q: %w", resp.String(), ErrUnmappedType))
			continue
		}
		lc.AddVerb(&schema.Verb{
			Pos:      lc.Position(fn.Pos),
			Comments: fn.Doc,
			Export:   isTrue(marker, "export"),
			Name:     fn.Name,
			Request:  reqType,
			Response: respType,
		})
	}
	return nil
}

// verbSignature returns the annotations of the single parameter and of the
// return value.
func verbSignature(fn *pyast.FuncDecl) (req, resp *pyast.TypeExpr, err error) {
	if len(fn.Params) != 1 || fn.Params[0].Variadic {
		return nil, nil, fmt.Errorf("%w, got %d", ErrParamCount, len(fn.Params))
	}
	p := fn.Params[0]
	if p.Type == nil {
		return nil, nil, fmt.Errorf("%q: %w", p.Name, ErrMissingAnnotation)
	}
	if fn.Returns == nil {
		return nil, nil, ErrMissingReturn
	}
	return p.Type, fn.Returns, nil
}

func isTrue(d pyast.Decorator, keyword string) bool {
	v, ok := d.Keyword(keyword)
	return ok && v == "True"
}
