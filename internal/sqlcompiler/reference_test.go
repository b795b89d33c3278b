package sqlcompiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/types"
)

func TestCompileReferenceBareColumn(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64, name: string}>
		export let q = select id from users
	`)

	mt, _ := declExpr(t, schema, "q")
	require.Equal(t, types.KindList, mt.Kind)

	row, err := mt.Elem.Must()
	require.NoError(t, err)
	require.Equal(t, types.KindRecord, row.Kind)

	f, ok := fieldNamed(row, "id")
	require.True(t, ok)
	assert.True(t, f.Nullable)
	assert.Equal(t, types.AtomInt64, mustAtom(t, f.Type))
}

func TestCompileReferenceAmbiguousColumn(t *testing.T) {
	_, err := compileSource(t, `
		extern a: list<struct{id: int64}>
		extern b: list<struct{id: int64}>
		export let q = select id from a, b
	`)

	require.Error(t, err)
	assert.ErrorIs(t, err, qs.ErrAmbiguousColumn)
}

func TestCompileReferenceRelationAliasWholeRow(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64, name: string}>
		export let q = select u from users u
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "u")
	require.True(t, ok)

	inner, err := f.Type.Must()
	require.NoError(t, err)
	assert.Equal(t, types.KindRecord, inner.Kind)
	_, ok = fieldNamed(inner, "id")
	assert.True(t, ok)
}

func TestCompileReferenceQualifiedColumnAcrossJoin(t *testing.T) {
	schema := mustCompile(t, `
		extern a: list<struct{id: int64}>
		extern b: list<struct{id: int64, a_id: int64}>
		export let q = select a.id, b.a_id from a join b on b.a_id = a.id
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)
	require.Len(t, row.Fields, 2)
}

func TestCompileReferenceCorrelatedSubquery(t *testing.T) {
	schema := mustCompile(t, `
		extern orders: list<struct{id: int64, user_id: int64}>
		extern users: list<struct{id: int64}>
		export let q = select (select id from orders o where o.user_id = u.id) as oid from users u
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "oid")
	require.True(t, ok)
	assert.Equal(t, types.AtomInt64, mustAtom(t, f.Type))
}

func TestCompileReferenceProgramScopeFallback(t *testing.T) {
	schema := mustCompile(t, `
		extern region: string
		extern users: list<struct{id: int64}>
		export let q = select id from users where region = 'west'
	`)

	_, e := declExpr(t, schema, "q")
	q := queryOf(t, e)
	require.NotNil(t, q.Select)
}
