package extract

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaextract/internal/safeio"
	"schemaextract/internal/schema"
)

func newTestGlobal(t *testing.T) (*GlobalContext, string) {
	t.Helper()
	root := t.TempDir()
	fs, err := safeio.NewSafeFS(root)
	require.NoError(t, err)
	return NewGlobalContext(fs, 0), root
}

func TestAddNeedsExtractionIsInsertIfAbsent(t *testing.T) {
	g, _ := newTestGlobal(t)
	ref := schema.Ref{Module: "m", Name: "A"}

	g.AddNeedsExtraction(ref)
	g.RemoveNeedsExtraction("m", "A")
	g.AddNeedsExtraction(ref)

	assert.Empty(t, g.Snapshot().Pending, "a satisfied entry is not reopened")
}

func TestRemoveNeedsExtractionIsIdempotent(t *testing.T) {
	g, _ := newTestGlobal(t)
	g.AddNeedsExtraction(schema.Ref{Module: "m", Name: "A"})
	g.AddNeedsExtraction(schema.Ref{Module: "m", Name: "B"})

	g.RemoveNeedsExtraction("m", "A")
	g.RemoveNeedsExtraction("m", "A")
	g.RemoveNeedsExtraction("m", "Unknown")

	assert.Equal(t, []schema.Ref{{Module: "m", Name: "B"}}, g.Snapshot().Pending)
}

func TestMustExtractSeesOnlyEarlierBatches(t *testing.T) {
	g, _ := newTestGlobal(t)
	g.BeginBatch(0)
	g.AddNeedsExtraction(schema.Ref{Module: "m", Name: "A"})
	assert.False(t, g.MustExtract("m", "A"), "registered in the running batch")

	g.BeginBatch(1)
	assert.True(t, g.MustExtract("m", "A"))
	g.AddNeedsExtraction(schema.Ref{Module: "m", Name: "B"})
	assert.False(t, g.MustExtract("m", "B"))

	g.RemoveNeedsExtraction("m", "A")
	assert.True(t, g.MustExtract("m", "A"), "membership ignores the satisfied flag")
	assert.False(t, g.MustExtract("other", "A"))
}

func TestDeclarationsUpsert(t *testing.T) {
	g, _ := newTestGlobal(t)
	g.AddData("m", &schema.Data{Name: "B"})
	g.AddData("m", &schema.Data{Name: "A"})
	g.AddData("m", &schema.Data{Name: "A", Export: true})
	g.AddVerb("m", &schema.Verb{Name: "v"})

	snap := g.Snapshot()
	require.Len(t, snap.Data, 2)
	assert.Equal(t, "A", snap.Data[0].Name)
	assert.True(t, snap.Data[0].Export, "last write wins")
	assert.Equal(t, "B", snap.Data[1].Name)
	require.Len(t, snap.Verbs, 1)
}

func TestDuplicateDeclarationKeepsLowestPosition(t *testing.T) {
	g, _ := newTestGlobal(t)
	at := func(file string, line int) schema.Position {
		return schema.Position{Filename: file, Line: line, Column: 1}
	}

	assert.Nil(t, g.AddData("m", &schema.Data{Pos: at("b.py", 1), Name: "Req"}))
	de := g.AddData("m", &schema.Data{Pos: at("a.py", 9), Name: "Req"})
	require.NotNil(t, de)
	assert.Equal(t, at("b.py", 1), de.Pos, "the displaced declaration is reported")
	de = g.AddData("m", &schema.Data{Pos: at("a.py", 12), Name: "Req"})
	require.NotNil(t, de)
	assert.Equal(t, at("a.py", 12), de.Pos, "a later position loses")
	assert.ErrorIs(t, de, ErrDuplicateDecl)
	assert.Nil(t, g.AddData("m", &schema.Data{Pos: at("a.py", 9), Name: "Req", Export: true}))

	assert.Nil(t, g.AddVerb("m", &schema.Verb{Pos: at("z.py", 1), Name: "v"}))
	assert.NotNil(t, g.AddVerb("m", &schema.Verb{Pos: at("c.py", 1), Name: "v"}))

	snap := g.Snapshot()
	require.Len(t, snap.Data, 1)
	assert.Equal(t, at("a.py", 9), snap.Data[0].Pos)
	assert.True(t, snap.Data[0].Export)
	require.Len(t, snap.Verbs, 1)
	assert.Equal(t, "c.py", snap.Verbs[0].Pos.Filename)
}

func TestRemoveBeforeRegistrationStaysSatisfied(t *testing.T) {
	g, _ := newTestGlobal(t)
	g.BeginBatch(0)
	g.RemoveNeedsExtraction("m", "ping")
	g.RemoveNeedsExtraction("m", "unused")
	g.AddNeedsExtraction(schema.Ref{Module: "m", Name: "ping"})
	assert.Empty(t, g.Snapshot().Pending)

	g.BeginBatch(1)
	assert.True(t, g.MustExtract("m", "ping"), "referenced in an earlier batch")
	assert.False(t, g.MustExtract("m", "unused"), "declared but never referenced")
}

func TestGlobalContextConcurrentUse(t *testing.T) {
	g, _ := newTestGlobal(t)
	g.BeginBatch(1)
	names := []string{"A", "B", "C", "D"}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := names[i%len(names)]
			g.AddNeedsExtraction(schema.Ref{Module: "m", Name: n})
			g.AddData("m", &schema.Data{Name: n})
			_ = g.MustExtract("m", n)
			if n != "D" {
				g.RemoveNeedsExtraction("m", n)
			}
		}()
	}
	wg.Wait()

	snap := g.Snapshot()
	assert.Len(t, snap.Data, 4)
	assert.Equal(t, []schema.Ref{{Module: "m", Name: "D"}}, snap.Pending)
}

func TestLoadDeclarationParsesOnce(t *testing.T) {
	g, root := newTestGlobal(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("class A:\n    x: int\n"), 0o644))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := g.LoadDeclaration(context.Background(), "m", "a.py")
			assert.NoError(t, err)
			assert.Len(t, f.Classes, 1)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, g.loader.parses.Load())
}

func TestLoadDeclarationErrors(t *testing.T) {
	g, root := newTestGlobal(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.py"), []byte("class (:\n"), 0o644))

	_, err := g.LoadDeclaration(context.Background(), "m", "bad.py")
	assert.ErrorIs(t, err, ErrSyntax)

	_, err = g.LoadDeclaration(context.Background(), "m", "missing.py")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
