package extract

import (
	"context"
	"sort"
	"sync"

	"schemaextract/internal/pyast"
	"schemaextract/internal/safeio"
	"schemaextract/internal/schema"
)

type pendingEntry struct {
	// batch is the batch during which the ref was first referenced.
	batch      int
	needed     bool
	referenced bool
}

// GlobalContext is the run-wide store of discovered declarations and of
// refs that still need one. Every method is a single critical section.
type GlobalContext struct {
	mu      sync.Mutex
	batch   int
	verbs   map[schema.Ref]*schema.Verb
	data    map[schema.Ref]*schema.Data
	pending map[schema.Ref]*pendingEntry
	diags   []Diagnostic

	loader *loader
}

func NewGlobalContext(fs *safeio.SafeFS, cacheSize int) *GlobalContext {
	return &GlobalContext{
		verbs:   make(map[schema.Ref]*schema.Verb),
		data:    make(map[schema.Ref]*schema.Data),
		pending: make(map[schema.Ref]*pendingEntry),
		loader:  newLoader(fs, cacheSize),
	}
}

// BeginBatch marks the start of batch i. Refs registered from now on are
// invisible to MustExtract until the next batch begins.
func (g *GlobalContext) BeginBatch(i int) {
	g.mu.Lock()
	g.batch = i
	g.mu.Unlock()
}

// AddVerb stores v under its name. When two declarations share a name the
// one with the lowest position wins and the other is returned as a
// DeclarationError; re-adding at the same position replaces silently.
func (g *GlobalContext) AddVerb(module string, v *schema.Verb) *DeclarationError {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := schema.Ref{Module: module, Name: v.Name}
	if old, ok := g.verbs[ref]; ok && old.Pos != v.Pos {
		if old.Pos.Less(v.Pos) {
			return duplicate(v.Pos, v.Name)
		}
		g.verbs[ref] = v
		return duplicate(old.Pos, old.Name)
	}
	g.verbs[ref] = v
	return nil
}

// AddData is AddVerb for records.
func (g *GlobalContext) AddData(module string, d *schema.Data) *DeclarationError {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := schema.Ref{Module: module, Name: d.Name}
	if old, ok := g.data[ref]; ok && old.Pos != d.Pos {
		if old.Pos.Less(d.Pos) {
			return duplicate(d.Pos, d.Name)
		}
		g.data[ref] = d
		return duplicate(old.Pos, old.Name)
	}
	g.data[ref] = d
	return nil
}

func duplicate(pos schema.Position, name string) *DeclarationError {
	return &DeclarationError{Pos: pos, Name: name, Err: ErrDuplicateDecl}
}

// AddNeedsExtraction registers ref if it is not known yet. An existing
// entry, satisfied or not, keeps its state.
func (g *GlobalContext) AddNeedsExtraction(ref schema.Ref) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.pending[ref]
	if !ok {
		g.pending[ref] = &pendingEntry{batch: g.batch, needed: true, referenced: true}
		return
	}
	if !e.referenced {
		e.referenced = true
		e.batch = g.batch
	}
}

// RemoveNeedsExtraction marks the ref satisfied. A ref nobody asked for yet
// is recorded as satisfied so a later registration does not reopen it.
func (g *GlobalContext) RemoveNeedsExtraction(module, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := schema.Ref{Module: module, Name: name}
	if e, ok := g.pending[ref]; ok {
		e.needed = false
		return
	}
	g.pending[ref] = &pendingEntry{batch: g.batch}
}

// MustExtract reports whether the ref was referenced before the current
// batch began, whether or not it has been satisfied since.
func (g *GlobalContext) MustExtract(module, name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.pending[schema.Ref{Module: module, Name: name}]
	return ok && e.referenced && e.batch < g.batch
}

// LoadDeclaration returns the parsed declarations of the file at path,
// parsing it at most once per cache lifetime.
func (g *GlobalContext) LoadDeclaration(ctx context.Context, module, path string) (*pyast.File, error) {
	return g.loader.load(ctx, path)
}

func (g *GlobalContext) Report(d Diagnostic) {
	g.mu.Lock()
	g.diags = append(g.diags, d)
	g.mu.Unlock()
}

// Snapshot is a sorted copy of the context's contents.
type Snapshot struct {
	Verbs []*schema.Verb
	Data  []*schema.Data
	// Pending lists refs that were never satisfied.
	Pending     []schema.Ref
	Diagnostics []Diagnostic
}

func (g *GlobalContext) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	var s Snapshot
	for _, ref := range sortedRefs(g.verbs) {
		s.Verbs = append(s.Verbs, g.verbs[ref])
	}
	for _, ref := range sortedRefs(g.data) {
		s.Data = append(s.Data, g.data[ref])
	}
	for ref, e := range g.pending {
		if e.needed {
			s.Pending = append(s.Pending, ref)
		}
	}
	sort.Slice(s.Pending, func(i, j int) bool { return s.Pending[i].Less(s.Pending[j]) })

	s.Diagnostics = append([]Diagnostic(nil), g.diags...)
	sort.SliceStable(s.Diagnostics, func(i, j int) bool {
		a, b := s.Diagnostics[i], s.Diagnostics[j]
		if a.Batch != b.Batch {
			return a.Batch < b.Batch
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Err.Error() < b.Err.Error()
	})
	return s
}

func sortedRefs[T any](m map[schema.Ref]T) []schema.Ref {
	out := make([]schema.Ref, 0, len(m))
	for ref := range m {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
