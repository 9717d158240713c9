package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaextract/internal/safeio"
	"schemaextract/internal/scan"
	"schemaextract/internal/schema"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func run(t *testing.T, root string, opts ...Option) *Result {
	t.Helper()
	fs, err := safeio.NewSafeFS(root)
	require.NoError(t, err)
	files, err := scan.SourceFiles(root, scan.Options{})
	require.NoError(t, err)
	res, err := New("test", fs, opts...).Run(context.Background(), files)
	require.NoError(t, err)
	return res
}

func findData(m *schema.Module, name string) (*schema.Data, bool) {
	for _, d := range m.Data() {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

func data(t *testing.T, m *schema.Module, name string) *schema.Data {
	t.Helper()
	d, ok := findData(m, name)
	require.True(t, ok, "missing data %s", name)
	return d
}

func fieldTypes(d *schema.Data) map[string]string {
	out := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		out[f.Name] = f.Type.String()
	}
	return out
}

const echoPy = `from ftl import verb


class EchoRequest:
    name: str


class EchoResponse:
    message: str


@verb
def echo(req: EchoRequest) -> EchoResponse:
    """Echo a greeting."""
    return EchoResponse(message=f"Hello, {req.name}!")
`

func TestScenarioEcho(t *testing.T) {
	root := t.TempDir()
	write(t, root, "echo.py", echoPy)

	res := run(t, root)
	m := res.Module

	require.Len(t, m.Decls, 3)
	verbs := m.Verbs()
	require.Len(t, verbs, 1)
	echo := verbs[0]
	assert.Equal(t, "echo", echo.Name)
	assert.Equal(t, schema.NewRef("test", "EchoRequest"), echo.Request)
	assert.Equal(t, schema.NewRef("test", "EchoResponse"), echo.Response)
	assert.Equal(t, []string{"Echo a greeting."}, echo.Comments)
	assert.Equal(t, schema.Position{Filename: "echo.py", Line: 12, Column: 1}, echo.Pos)

	assert.Equal(t, map[string]string{"name": "String"}, fieldTypes(data(t, m, "EchoRequest")))
	assert.Equal(t, map[string]string{"message": "String"}, fieldTypes(data(t, m, "EchoResponse")))
	assert.Empty(t, res.Pending)
	assert.Empty(t, res.Diagnostics)
}

func TestScenarioTimeOmitsUnmappedField(t *testing.T) {
	root := t.TempDir()
	write(t, root, "time.py", `from datetime import datetime
from ftl import verb


class TimeRequest:
    pass


class TimeResponse:
    time: datetime


@verb
def time(req: TimeRequest) -> TimeResponse:
    return TimeResponse(time=datetime.now())
`)

	res := run(t, root)
	m := res.Module

	verbs := m.Verbs()
	require.Len(t, verbs, 1)
	assert.Equal(t, "time", verbs[0].Name)
	assert.Equal(t, schema.NewRef("test", "TimeResponse"), verbs[0].Response)
	assert.Empty(t, data(t, m, "TimeResponse").Fields)
	assert.Empty(t, data(t, m, "TimeRequest").Fields)
	assert.Empty(t, res.Diagnostics, "an unmapped field is not an error")
}

func TestTransitiveResolutionAcrossFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "shop/__init__.py", "")
	write(t, root, "shop/models.py", `from ftl import export


@export
class Order:
    """An order."""
    id: int
    items: list[str]


class Receipt:
    total: float
`)
	write(t, root, "shop/api.py", `from ftl import verb
from .models import Order
from shop.models import Receipt


@verb(export=True)
def place(order: Order) -> Receipt:
    pass
`)

	res := run(t, root)
	m := res.Module

	verbs := m.Verbs()
	require.Len(t, verbs, 1)
	assert.True(t, verbs[0].Export)

	order := data(t, m, "Order")
	assert.True(t, order.Export)
	assert.Equal(t, []string{"An order."}, order.Comments)
	assert.Equal(t, "shop/models.py", order.Pos.Filename)
	assert.Equal(t, map[string]string{"id": "Int", "items": "[String]"}, fieldTypes(order))

	receipt := data(t, m, "Receipt")
	assert.False(t, receipt.Export)
	assert.Equal(t, map[string]string{"total": "Float"}, fieldTypes(receipt))
	assert.Empty(t, res.Pending)
}

func TestDanglingSecondHopStaysPending(t *testing.T) {
	root := t.TempDir()
	write(t, root, "api.py", `from ftl import verb


class Outer:
    inner: Inner


class Inner:
    value: str


@verb
def call(req: Outer) -> Outer:
    pass
`)

	res := run(t, root)
	m := res.Module

	outer := data(t, m, "Outer")
	assert.Equal(t, map[string]string{"inner": "test.Inner"}, fieldTypes(outer))
	_, ok := findData(m, "Inner")
	assert.False(t, ok, "a record first referenced in the transitive batch is not resolved")
	assert.Equal(t, []schema.Ref{{Module: "test", Name: "Inner"}}, res.Pending)
}

func TestScalarFieldMapping(t *testing.T) {
	root := t.TempDir()
	write(t, root, "scalars.py", `from typing import Any, Optional
from ftl import verb


class Scalars:
    s: str
    i: int
    b: bool
    f: float
    a: Any
    m: dict[str, int]
    maybe: Optional[str]
    untyped = 3


@verb
def scalars(req: Scalars) -> Scalars:
    pass
`)

	res := run(t, root)
	d := data(t, res.Module, "Scalars")
	names := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"s", "i", "b", "f", "a", "m"}, names, "declaration order kept, unmapped fields omitted")
	assert.Equal(t, &schema.Basic{Kind: schema.BasicString}, d.Fields[0].Type)
	assert.Equal(t, &schema.Basic{Kind: schema.BasicInt}, d.Fields[1].Type)
	assert.Equal(t, &schema.Basic{Kind: schema.BasicBool}, d.Fields[2].Type)
	assert.Equal(t, &schema.Basic{Kind: schema.BasicFloat}, d.Fields[3].Type)
	assert.Equal(t, &schema.Any{}, d.Fields[4].Type)
	assert.Equal(t, "{String: Int}", d.Fields[5].Type.String())
}

func TestFailureIsolation(t *testing.T) {
	root := t.TempDir()
	write(t, root, "echo.py", echoPy)
	write(t, root, "broken.py", "from ftl import verb\n\n@verb\ndef broken(req: int -> int:\n    pass\n")

	var logs bytes.Buffer
	res := run(t, root, WithLogger(zerolog.New(&logs)))

	assert.Len(t, res.Module.Verbs(), 1)
	data(t, res.Module, "EchoRequest")
	data(t, res.Module, "EchoResponse")

	require.NotEmpty(t, res.Diagnostics)
	for _, d := range res.Diagnostics {
		assert.Equal(t, "broken.py", d.Path)
		var fe *FileAnalysisError
		require.True(t, errors.As(d.Err, &fe))
		assert.ErrorIs(t, fe, ErrSyntax)
	}
	assert.Contains(t, logs.String(), `"file":"broken.py"`)
	assert.Contains(t, logs.String(), "file analysis failed")
}

func TestMalformedVerbsAreSkippedIndividually(t *testing.T) {
	root := t.TempDir()
	write(t, root, "verbs.py", `from datetime import datetime
import ftl


@ftl.verb
def two(a: int, b: int) -> int:
    pass


@ftl.verb
def noreturn(a: int):
    pass


@ftl.verb
def untyped(a) -> int:
    pass


@ftl.verb
def stamp(a: datetime) -> int:
    pass


def unmarked(a: int) -> int:
    pass


@ftl.verb
def good(a: int) -> str:
    pass
`)

	res := run(t, root)
	verbs := res.Module.Verbs()
	require.Len(t, verbs, 1)
	assert.Equal(t, "good", verbs[0].Name)
	assert.Equal(t, "Int", verbs[0].Request.String())

	want := map[string]error{
		"two":      ErrParamCount,
		"noreturn": ErrMissingReturn,
		"untyped":  ErrMissingAnnotation,
		"stamp":    ErrUnmappedType,
	}
	require.Len(t, res.Diagnostics, len(want))
	for _, d := range res.Diagnostics {
		var de *DeclarationError
		require.True(t, errors.As(d.Err, &de))
		assert.ErrorIs(t, de, want[de.Name], de.Name)
		assert.Equal(t, "verbs.py", de.Pos.Filename)
	}
}

func TestDeterministicOutput(t *testing.T) {
	root := t.TempDir()
	write(t, root, "echo.py", echoPy)
	write(t, root, "shop/models.py", "class Order:\n    id: int\n    note: str\n")
	write(t, root, "shop/api.py", "from ftl import verb\nfrom shop.models import Order\n\n@verb\ndef place(o: Order) -> Order:\n    pass\n")
	write(t, root, "zeta.py", "from ftl import verb\n\n@verb\ndef zeta(a: int) -> list[float]:\n    pass\n")

	first, err := schema.Encode(run(t, root, WithWorkers(1)).Module)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := schema.Encode(run(t, root, WithWorkers(8)).Module)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDuplicateRecordNamesResolveDeterministically(t *testing.T) {
	root := t.TempDir()
	write(t, root, "api.py", "from ftl import verb\nfrom m00 import Req\n\n@verb\ndef call(r: Req) -> Req:\n    pass\n")
	for i := 0; i < 16; i++ {
		write(t, root, fmt.Sprintf("m%02d.py", i), fmt.Sprintf("class Req:\n    f%02d: str\n", i))
	}

	first := run(t, root, WithWorkers(16))
	want, err := schema.Encode(first.Module)
	require.NoError(t, err)

	req := data(t, first.Module, "Req")
	assert.Equal(t, "m00.py", req.Pos.Filename)
	assert.Equal(t, map[string]string{"f00": "String"}, fieldTypes(req))
	require.Len(t, first.Diagnostics, 15)
	for i, d := range first.Diagnostics {
		assert.Equal(t, fmt.Sprintf("m%02d.py", i+1), d.Path)
		assert.ErrorIs(t, d.Err, ErrDuplicateDecl)
	}

	for i := 0; i < 20; i++ {
		res := run(t, root, WithWorkers(16))
		got, err := schema.Encode(res.Module)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, first.Diagnostics, res.Diagnostics)
	}
}

func TestVerbUsedAsTypeIsNotPending(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.py", "from ftl import verb\n\n@verb\ndef ping(x: int) -> int:\n    pass\n")
	write(t, root, "b.py", "from ftl import verb\nfrom a import ping\n\n@verb\ndef use(x: ping) -> int:\n    pass\n")

	for i := 0; i < 10; i++ {
		res := run(t, root, WithWorkers(2))
		assert.Len(t, res.Module.Verbs(), 2)
		assert.Empty(t, res.Pending)
	}
}

type panicVisitor struct{ file string }

func (panicVisitor) Kind() VisitorKind { return VisitorKind(99) }

func (p panicVisitor) Visit(_ context.Context, lc *LocalContext) error {
	if lc.Path == p.file {
		panic("boom")
	}
	return nil
}

func TestPanickingVisitorIsContained(t *testing.T) {
	root := t.TempDir()
	write(t, root, "echo.py", echoPy)
	write(t, root, "other.py", "from ftl import verb\n\n@verb\ndef other(a: int) -> int:\n    pass\n")

	res := run(t, root,
		WithVisitor(panicVisitor{file: "other.py"}),
		WithBatches([][]VisitorKind{{KindVerb, VisitorKind(99)}, {KindTransitive}}),
	)

	verbs := res.Module.Verbs()
	require.Len(t, verbs, 1, "the panicking file contributes nothing to its batch")
	assert.Equal(t, "echo", verbs[0].Name)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].String(), "boom")
}

func TestRunRejectsUnknownVisitorKind(t *testing.T) {
	fs, err := safeio.NewSafeFS(t.TempDir())
	require.NoError(t, err)
	_, err = New("test", fs, WithBatches([][]VisitorKind{{VisitorKind(7)}})).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestHeaviestFirst(t *testing.T) {
	got := heaviestFirst([]scan.SourceFile{{Path: "a", Size: 1}, {Path: "c", Size: 5}, {Path: "b", Size: 5}})
	assert.Equal(t, []string{"b", "c", "a"}, scan.Paths(got))
}
