package sqlcompiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs/internal/types"
)

func TestCompileProjectionWildcard(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64, name: string}>
		export let q = select * from users
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)
	require.Len(t, row.Fields, 2)

	for _, f := range row.Fields {
		assert.True(t, f.Nullable)
	}
}

func TestCompileProjectionQualifiedWildcard(t *testing.T) {
	schema := mustCompile(t, `
		extern a: list<struct{id: int64}>
		extern b: list<struct{name: string}>
		export let q = select a.* from a, b
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)
	require.Len(t, row.Fields, 1)
	assert.Equal(t, "id", row.Fields[0].Name)
}

func TestCompileProjectionInfersBareColumnName(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64}>
		export let q = select id from users
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)
	require.Len(t, row.Fields, 1)
	assert.Equal(t, "id", row.Fields[0].Name)
}

func TestCompileQueryResultAlwaysListOfNullableRecord(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64}>
		export let q = select id from users
	`)

	mt, _ := declExpr(t, schema, "q")
	require.Equal(t, types.KindList, mt.Kind)

	row, err := mt.Elem.Must()
	require.NoError(t, err)
	require.Equal(t, types.KindRecord, row.Kind)
	assert.True(t, row.Fields[0].Nullable)
}

func TestCompileQueryLimitMustBeIntegral(t *testing.T) {
	_, err := compileSource(t, `
		extern users: list<struct{id: int64}>
		export let q = select id from users limit 1.5
	`)

	require.Error(t, err)
}

func TestCompileQueryOrderByDescend(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64}>
		export let q = select id from users order by id desc limit 10
	`)

	_, e := declExpr(t, schema, "q")
	q := queryOf(t, e)
	require.Len(t, q.OrderBy, 1)
	assert.True(t, q.OrderBy[0].Desc)
}
