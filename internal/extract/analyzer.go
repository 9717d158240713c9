// Package extract finds verbs and the records they reference in a tree of
// Python sources and assembles them into one module schema.
//
// Analysis runs in ordered batches. Within a batch every file is analysed in
// parallel; a batch starts only after the previous one finished for all
// files. The default configuration runs two batches: entry points first, then
// the records they reference. A record first referenced during the second
// batch is left pending.
package extract

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"schemaextract/internal/safeio"
	"schemaextract/internal/scan"
	"schemaextract/internal/schema"
	"schemaextract/internal/typemap"
)

// Analyzer runs the batches over a set of files.
type Analyzer struct {
	module    string
	root      *safeio.SafeFS
	workers   int
	batches   [][]VisitorKind
	visitors  map[VisitorKind]Visitor
	cacheSize int
	log       zerolog.Logger
}

type Option func(*Analyzer)

// WithWorkers bounds the number of files analysed concurrently. <=0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

// WithBatches replaces DefaultBatches.
func WithBatches(batches [][]VisitorKind) Option {
	return func(a *Analyzer) { a.batches = batches }
}

// WithVisitor registers or replaces the visitor for v.Kind().
func WithVisitor(v Visitor) Option {
	return func(a *Analyzer) { a.visitors[v.Kind()] = v }
}

// WithCacheSize bounds the parse cache. <=0 uses DefaultCacheSize.
func WithCacheSize(n int) Option {
	return func(a *Analyzer) { a.cacheSize = n }
}

func New(module string, root *safeio.SafeFS, opts ...Option) *Analyzer {
	a := &Analyzer{
		module:   module,
		root:     root,
		batches:  DefaultBatches,
		visitors: defaultVisitors(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers <= 0 {
		a.workers = runtime.GOMAXPROCS(0)
	}
	a.log = a.log.With().Str("component", "extract").Str("module", module).Logger()
	return a
}

// Result is the outcome of one run.
type Result struct {
	Module *schema.Module
	// Pending lists refs that were referenced but never resolved, sorted.
	Pending     []schema.Ref
	Diagnostics []Diagnostic
}

// Run analyses files, given relative to the analyzer's root. Per-file and
// per-declaration failures are recovered and returned as diagnostics; an
// error is returned only for invalid configuration or a cancelled ctx.
func (a *Analyzer) Run(ctx context.Context, files []scan.SourceFile) (*Result, error) {
	if a.module == "" {
		return nil, errors.New("extract: module name is empty")
	}
	if a.root == nil {
		return nil, errors.New("extract: root filesystem is nil")
	}
	for i, kinds := range a.batches {
		for _, k := range kinds {
			if _, ok := a.visitors[k]; !ok {
				return nil, fmt.Errorf("extract: batch %d: no visitor for kind %s", i, k)
			}
		}
	}

	gc := NewGlobalContext(a.root, a.cacheSize)
	local := typemap.NewLocalModules(scan.Paths(files))
	ordered := heaviestFirst(files)

	for i, kinds := range a.batches {
		gc.BeginBatch(i)
		start := time.Now()

		var g errgroup.Group
		g.SetLimit(a.workers)
		for _, f := range ordered {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				a.analyzeFile(ctx, gc, local, i, kinds, f.Path)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.log.Info().
			Int("batch", i).
			Stringer("visitors", kindList(kinds)).
			Int("files", len(ordered)).
			Dur("took", time.Since(start)).
			Msg("batch complete")
	}

	snap := gc.Snapshot()
	for _, ref := range snap.Pending {
		a.log.Warn().Stringer("ref", ref).Msg("reference left unresolved")
	}
	return &Result{
		Module:      Assemble(a.module, snap),
		Pending:     snap.Pending,
		Diagnostics: snap.Diagnostics,
	}, nil
}

// analyzeFile runs one batch over one file. Nothing escapes it: failures,
// including panics, are logged and recorded.
func (a *Analyzer) analyzeFile(ctx context.Context, gc *GlobalContext, local typemap.LocalModules, batch int, kinds []VisitorKind, path string) {
	log := a.log.With().Str("file", path).Int("batch", batch).Logger()
	fail := func(err error) {
		log.Warn().Err(err).Msg("file analysis failed")
		gc.Report(Diagnostic{Batch: batch, Path: path, Err: &FileAnalysisError{Path: path, Batch: batch, Err: err}})
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
		}
	}()

	f, err := gc.LoadDeclaration(ctx, a.module, path)
	if err != nil {
		fail(err)
		return
	}
	lc := newLocalContext(gc, a.module, batch, f, local, log)

	if len(kinds) == 1 {
		err = runVisitor(ctx, a.visitors[kinds[0]], lc)
	} else {
		var g errgroup.Group
		for _, k := range kinds {
			v := a.visitors[k]
			g.Go(func() error { return runVisitor(ctx, v, lc) })
		}
		err = g.Wait()
	}
	if err != nil {
		fail(err)
		return
	}
	lc.Flush()
}

func runVisitor(ctx context.Context, v Visitor, lc *LocalContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s visitor panic: %v", v.Kind(), r)
		}
	}()
	return v.Visit(ctx, lc)
}

// heaviestFirst orders files by size, largest first, so the longest parses
// start early.
func heaviestFirst(files []scan.SourceFile) []scan.SourceFile {
	out := append([]scan.SourceFile(nil), files...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].Path < out[j].Path
	})
	return out
}

type kindList []VisitorKind

func (k kindList) String() string {
	s := ""
	for i, kind := range k {
		if i > 0 {
			s += ","
		}
		s += kind.String()
	}
	return s
}
