package sqlcompiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/types"
)

func TestCompileFunctionCallCountStarRewritesToCountOne(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64}>
		export let q = select count(*) as n from users
	`)

	_, e := declExpr(t, schema, "q")
	q := queryOf(t, e)

	fn := q.Select.Projection[0].Expr
	require.Len(t, fn.Args, 1)
	assert.False(t, fn.Args[0].Star)
	assert.Equal(t, "1", fn.Args[0].Expr.Literal)
}

func TestCompileFunctionCallStarOnlyLegalInCount(t *testing.T) {
	_, err := compileSource(t, `
		extern users: list<struct{id: int64}>
		export let q = select sum(*) as n from users
	`)

	require.Error(t, err)
	assert.ErrorIs(t, err, qs.ErrUnimplemented)
}

func TestCompileFunctionCallBuiltinTypes(t *testing.T) {
	schema := mustCompile(t, `
		extern sales: list<struct{amount: int64}>
		export let q = select sum(amount) as s, avg(amount) as a, min(amount) as mn, max(amount) as mx from sales
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	s, ok := fieldNamed(row, "s")
	require.True(t, ok)
	assert.Equal(t, types.AtomDecimal, mustAtom(t, s.Type))

	a, ok := fieldNamed(row, "a")
	require.True(t, ok)
	assert.Equal(t, types.AtomFloat64, mustAtom(t, a.Type))

	mn, ok := fieldNamed(row, "mn")
	require.True(t, ok)
	assert.Equal(t, types.AtomInt64, mustAtom(t, mn.Type))
}

func TestCompileFunctionCallCoalesceCommonType(t *testing.T) {
	schema := mustCompile(t, `
		export let q = select coalesce(1, 2.5) as x
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "x")
	require.True(t, ok)
	assert.Equal(t, types.AtomDecimal, mustAtom(t, f.Type))
}

func TestCompileFunctionCallUnknownBuiltinIsUnimplemented(t *testing.T) {
	_, err := compileSource(t, `
		export let q = select frobnicate(1) as x
	`)

	require.Error(t, err)
	assert.ErrorIs(t, err, qs.ErrUnimplemented)
}

func TestCompileFunctionCallNowTakesNoArguments(t *testing.T) {
	_, err := compileSource(t, `
		export let q = select now(1) as x
	`)

	require.Error(t, err)
}

func TestCompileFunctionCallPositionalThenNamed(t *testing.T) {
	schema := mustCompile(t, `
		fn add(a: int64, b: int64) -> int64 = a + b
		export let q = select add(1, b => 2) as x
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "x")
	require.True(t, ok)
	assert.Equal(t, types.AtomInt64, mustAtom(t, f.Type))
}

func TestCompileFunctionCallDuplicateArgumentBinding(t *testing.T) {
	_, err := compileSource(t, `
		fn add(a: int64, b: int64) -> int64 = a + b
		export let q = select add(1, a => 2) as x
	`)

	require.Error(t, err)
	assert.ErrorIs(t, err, qs.ErrDuplicateEntry)
}

func TestCompileFunctionCallMissingArgument(t *testing.T) {
	_, err := compileSource(t, `
		fn add(a: int64, b: int64) -> int64 = a + b
		export let q = select add(1) as x
	`)

	require.Error(t, err)
	assert.ErrorIs(t, err, qs.ErrMissingArg)
}

func TestCompileFunctionCallUnknownNamedArgument(t *testing.T) {
	_, err := compileSource(t, `
		fn add(a: int64, b: int64) -> int64 = a + b
		export let q = select add(1, c => 2) as x
	`)

	require.Error(t, err)
	assert.ErrorIs(t, err, qs.ErrNoSuchEntry)
}

func TestCompileFunctionCallSQLBodyPassesThrough(t *testing.T) {
	schema := mustCompile(t, `
		fn my_sql_fn(x: int64) -> int64 sql
		export let q = select my_sql_fn(1) as x
	`)

	_, e := declExpr(t, schema, "q")
	q := queryOf(t, e)

	item := q.Select.Projection[0].Expr
	require.Equal(t, "my_sql_fn", item.FuncName.Last().Name)
	require.Len(t, item.Args, 1)
	assert.Equal(t, "1", item.Args[0].Expr.Literal)
}

func TestCompileFunctionCallExprBodyLiftsToPlaceholder(t *testing.T) {
	schema := mustCompile(t, `
		fn add(a: int64, b: int64) -> int64 = a + b
		export let q = select add(1, 2) as x
	`)

	_, e := declExpr(t, schema, "q")
	q := queryOf(t, e)

	item := q.Select.Projection[0].Expr
	require.Equal(t, "x", q.Select.Projection[0].Alias)
	assert.True(t, strings.HasPrefix(item.Path.Last().Name, "@call"))
}

func TestCompileFunctionCallNativeBodyLiftsToPlaceholder(t *testing.T) {
	schema := mustCompile(t, `
		fn square(x: int64) -> int64 native
		export let q = select square(2) as x
	`)

	_, e := declExpr(t, schema, "q")
	q := queryOf(t, e)

	item := q.Select.Projection[0].Expr
	assert.True(t, strings.HasPrefix(item.Path.Last().Name, "@call"))
}
