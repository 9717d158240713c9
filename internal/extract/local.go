package extract

import (
	"sync"

	"github.com/rs/zerolog"

	"schemaextract/internal/pyast"
	"schemaextract/internal/schema"
	"schemaextract/internal/typemap"
)

// LocalContext is the per-file, per-batch view handed to visitors. Findings
// are staged here and pushed to the global context by Flush once every
// visitor of the batch succeeded on the file.
type LocalContext struct {
	Module string
	Path   string
	Batch  int
	File   *pyast.File
	Scope  *typemap.Scope

	global *GlobalContext
	log    zerolog.Logger

	mu    sync.Mutex
	verbs []*schema.Verb
	data  []*schema.Data
}

func newLocalContext(g *GlobalContext, module string, batch int, f *pyast.File, local typemap.LocalModules, log zerolog.Logger) *LocalContext {
	return &LocalContext{
		Module: module,
		Path:   f.Path,
		Batch:  batch,
		File:   f,
		Scope:  typemap.NewScope(f, local),
		global: g,
		log:    log,
	}
}

// Mapper returns a type mapper whose pending registrations go straight to
// the global context.
func (lc *LocalContext) Mapper() *typemap.Mapper {
	return &typemap.Mapper{Module: lc.Module, Scope: lc.Scope, Pending: lc.global}
}

func (lc *LocalContext) MustExtract(name string) bool {
	return lc.global.MustExtract(lc.Module, name)
}

// Position converts a parse position into a schema position in this file.
func (lc *LocalContext) Position(p pyast.Position) schema.Position {
	return schema.Position{Filename: lc.Path, Line: p.Line, Column: p.Column}
}

func (lc *LocalContext) Logger() *zerolog.Logger { return &lc.log }

func (lc *LocalContext) AddVerb(v *schema.Verb) {
	lc.mu.Lock()
	lc.verbs = append(lc.verbs, v)
	lc.mu.Unlock()
}

func (lc *LocalContext) AddData(d *schema.Data) {
	lc.mu.Lock()
	lc.data = append(lc.data, d)
	lc.mu.Unlock()
}

// Reject logs and records a declaration that was skipped.
func (lc *LocalContext) Reject(pos pyast.Position, name string, err error) {
	lc.record(&DeclarationError{Pos: lc.Position(pos), Name: name, Err: err})
}

func (lc *LocalContext) record(de *DeclarationError) {
	lc.log.Warn().Str("decl", de.Name).Str("pos", de.Pos.String()).Err(de.Err).Msg("declaration skipped")
	lc.global.Report(Diagnostic{Batch: lc.Batch, Path: de.Pos.Filename, Err: de})
}

// Flush publishes the staged findings. A name already declared elsewhere in
// the module is kept at its lowest position; the other copy is recorded.
func (lc *LocalContext) Flush() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for _, v := range lc.verbs {
		if de := lc.global.AddVerb(lc.Module, v); de != nil {
			lc.record(de)
		}
		lc.global.RemoveNeedsExtraction(lc.Module, v.Name)
	}
	for _, d := range lc.data {
		if de := lc.global.AddData(lc.Module, d); de != nil {
			lc.record(de)
		}
		lc.global.RemoveNeedsExtraction(lc.Module, d.Name)
	}
	lc.verbs, lc.data = nil, nil
}
