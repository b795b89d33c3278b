package sqlcompiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs/internal/types"
)

func TestCompileValueNumericLiteralWidths(t *testing.T) {
	schema := mustCompile(t, `
		export let q = select 1 as small, 9999999999 as big, 1.5 as dec
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	small, ok := fieldNamed(row, "small")
	require.True(t, ok)
	assert.Equal(t, types.AtomInt32, mustAtom(t, small.Type))

	big, ok := fieldNamed(row, "big")
	require.True(t, ok)
	assert.Equal(t, types.AtomInt64, mustAtom(t, big.Type))

	dec, ok := fieldNamed(row, "dec")
	require.True(t, ok)
	assert.Equal(t, types.AtomDecimal, mustAtom(t, dec.Type))
}

func TestCompileBinaryOpCoercesOperands(t *testing.T) {
	schema := mustCompile(t, `
		export let q = select 1 + 2.5 as total
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "total")
	require.True(t, ok)
	assert.Equal(t, types.AtomDecimal, mustAtom(t, f.Type))
}

func TestCompileUnaryNotRequiresBoolean(t *testing.T) {
	_, err := compileSource(t, `
		export let q = select not 1 as x
	`)

	require.Error(t, err)
}

func TestCompileCaseCommonType(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64}>
		export let q = select case when id = 1 then 1 else 2.5 end as x from users
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "x")
	require.True(t, ok)
	assert.Equal(t, types.AtomDecimal, mustAtom(t, f.Type))
}

func TestCompileTupleSynthesizesFieldNames(t *testing.T) {
	schema := mustCompile(t, `
		export let q = select (1, 'a') as t
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "t")
	require.True(t, ok)

	tup, err := f.Type.Must()
	require.NoError(t, err)
	require.Len(t, tup.Fields, 2)
	assert.Equal(t, "f1", tup.Fields[0].Name)
	assert.Equal(t, "f2", tup.Fields[1].Name)
}

func TestCompileArrayCommonElementType(t *testing.T) {
	schema := mustCompile(t, `
		export let q = select array[1, 2.5] as xs
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "xs")
	require.True(t, ok)

	arr, err := f.Type.Must()
	require.NoError(t, err)
	require.Equal(t, types.KindList, arr.Kind)
	assert.Equal(t, types.AtomDecimal, mustAtom(t, arr.Elem))
}

func TestCompileSubqueryRejectsMultipleColumns(t *testing.T) {
	_, err := compileSource(t, `
		extern a: list<struct{id: int64, name: string}>
		export let q = select (select id, name from a) as x from a
	`)

	require.Error(t, err)
}
