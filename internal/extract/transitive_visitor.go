package extract

import (
	"context"

	"schemaextract/internal/pyast"
	"schemaextract/internal/schema"
)

// TransitiveVisitor extracts the top-level classes that earlier batches
// referenced.
type TransitiveVisitor struct{}

func (TransitiveVisitor) Kind() VisitorKind { return KindTransitive }

func (TransitiveVisitor) Visit(ctx context.Context, lc *LocalContext) error {
	mapper := lc.Mapper()
	for _, c := range lc.File.Classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !lc.MustExtract(c.Name) {
			continue
		}
		d := &schema.Data{
			Pos:      lc.Position(c.Pos),
			Comments: c.Doc,
			Name:     c.Name,
		}
		_, d.Export = pyast.HasDecorator(c.Decorators, exportMarkers...)
		for _, f := range c.Fields {
			t, ok := mapper.Map(f.Type)
			if !ok {
				lc.Logger().Debug().
					Str("decl", c.Name).
					Str("field", f.Name).
					Str("type", f.Type.String()).
					Msg("field omitted, unmapped type")
				continue
			}
			d.Fields = append(d.Fields, &schema.Field{
				Pos:  lc.Position(f.Pos),
				Name: f.Name,
				Type: t,
			})
		}
		lc.AddData(d)
	}
	return nil
}
