package typemap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaextract/internal/pyast"
	"schemaextract/internal/schema"
)

type recorder struct {
	refs []schema.Ref
}

func (r *recorder) AddNeedsExtraction(ref schema.Ref) { r.refs = append(r.refs, ref) }

const source = `
import typing
import typing as t
import ftl.time
from typing import List, Dict, Any, Optional
from datetime import datetime
from ftl.payments import Invoice
from .models import Customer
from pkg import orders


class Order:
    pass


def handler(x: int) -> int:
    return x
`

func newMapper(t *testing.T) (*Mapper, *recorder) {
	t.Helper()
	f, err := pyast.Parse(context.Background(), "pkg/echo.py", []byte(source))
	require.NoError(t, err)
	local := NewLocalModules([]string{"pkg/__init__.py", "pkg/echo.py", "pkg/models.py", "pkg/orders.py"})
	rec := &recorder{}
	return &Mapper{Module: "shop", Scope: NewScope(f, local), Pending: rec}, rec
}

func mapText(m *Mapper, text string) (schema.Type, bool) {
	return m.Map(pyast.ParseAnnotation(context.Background(), text, pyast.Position{Line: 1, Column: 1}))
}

func TestMapScalars(t *testing.T) {
	m, rec := newMapper(t)
	for text, kind := range map[string]schema.BasicKind{
		"str":   schema.BasicString,
		"int":   schema.BasicInt,
		"bool":  schema.BasicBool,
		"float": schema.BasicFloat,
	} {
		got, ok := mapText(m, text)
		require.True(t, ok, text)
		assert.Equal(t, &schema.Basic{Kind: kind}, got, text)
	}
	assert.Empty(t, rec.refs)
}

func TestMapCollections(t *testing.T) {
	m, _ := newMapper(t)
	cases := map[string]string{
		"list[str]":                "[String]",
		"List[int]":                "[Int]",
		"typing.List[bool]":        "[Bool]",
		"t.Sequence[float]":        "[Float]",
		"dict[str, int]":           "{String: Int}",
		"Dict[str, list[float]]":   "{String: [Float]}",
		"typing.Mapping[str, Any]": "{String: Any}",
		"Any":                      "Any",
		"typing.Any":               "Any",
	}
	for text, want := range cases {
		got, ok := mapText(m, text)
		require.True(t, ok, text)
		assert.Equal(t, want, got.String(), text)
	}
}

func TestMapUnrepresentable(t *testing.T) {
	m, rec := newMapper(t)
	for _, text := range []string{
		"list",
		"dict[str]",
		"list[datetime]",
		"datetime",
		"Optional[str]",
		"str | None",
		"None",
		"Unknown",
		"typing.Callable",
		"str[int]",
	} {
		_, ok := mapText(m, text)
		assert.False(t, ok, text)
	}
	assert.Empty(t, rec.refs)
}

func TestMapLocalDeclarationsRegisterPending(t *testing.T) {
	m, rec := newMapper(t)
	cases := map[string]schema.Ref{
		"Order":          {Module: "shop", Name: "Order"},
		"handler":        {Module: "shop", Name: "handler"},
		"Customer":       {Module: "shop", Name: "Customer"},
		"orders.Receipt": {Module: "shop", Name: "Receipt"},
	}
	for text, want := range cases {
		got, ok := mapText(m, text)
		require.True(t, ok, text)
		assert.Equal(t, &schema.TypeRef{Ref: want}, got, text)
	}
	assert.ElementsMatch(t, []schema.Ref{
		{Module: "shop", Name: "Order"},
		{Module: "shop", Name: "handler"},
		{Module: "shop", Name: "Customer"},
		{Module: "shop", Name: "Receipt"},
	}, rec.refs)
}

func TestMapNestedRefRegistersOnce(t *testing.T) {
	m, rec := newMapper(t)
	got, ok := mapText(m, "dict[str, list[Order]]")
	require.True(t, ok)
	assert.Equal(t, "{String: [shop.Order]}", got.String())
	assert.Equal(t, []schema.Ref{{Module: "shop", Name: "Order"}}, rec.refs)
}

func TestMapOtherModuleRefs(t *testing.T) {
	m, rec := newMapper(t)
	got, ok := mapText(m, "Invoice")
	require.True(t, ok)
	assert.Equal(t, schema.NewRef("payments", "Invoice"), got)

	got, ok = mapText(m, "ftl.time.TimeResponse")
	require.True(t, ok)
	assert.Equal(t, schema.NewRef("time", "TimeResponse"), got)

	assert.Empty(t, rec.refs, "refs into other modules are not extracted here")
}

func TestModuleName(t *testing.T) {
	assert.Equal(t, "pkg.models", ModuleName("pkg/models.py"))
	assert.Equal(t, "pkg", ModuleName("pkg/__init__.py"))
	assert.Equal(t, "echo", ModuleName("echo.py"))
	assert.Equal(t, "", ModuleName("__init__.py"))
}

func TestResolveRelative(t *testing.T) {
	assert.Equal(t, "pkg.models", resolveRelative("pkg/echo.py", 1, "models"))
	assert.Equal(t, "models", resolveRelative("pkg/echo.py", 2, "models"))
	assert.Equal(t, "models", resolveRelative("echo.py", 1, "models"))
	assert.Equal(t, "pkg", resolveRelative("pkg/echo.py", 1, ""))
}
