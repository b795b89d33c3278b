package sqlcompiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs/internal/types"
)

func TestCompileFromBaseTableRewritesToPlaceholder(t *testing.T) {
	schema := mustCompile(t, `
		extern users: list<struct{id: int64}>
		export let q = select id from users
	`)

	_, e := declExpr(t, schema, "q")
	q := queryOf(t, e)

	require.Len(t, q.Select.From, 1)
	name := q.Select.From[0].Relation.Name.String()
	assert.True(t, strings.HasPrefix(name, "@__qvmrel"))
	assert.Equal(t, "users", q.Select.From[0].Relation.Alias)
}

func TestCompileFromJoinRequiresBooleanCondition(t *testing.T) {
	_, err := compileSource(t, `
		extern a: list<struct{id: int64}>
		extern b: list<struct{id: int64}>
		export let q = select a.id from a join b on a.id
	`)

	require.Error(t, err)
}

func TestCompileFromDerivedTableDefaultAlias(t *testing.T) {
	schema := mustCompile(t, `
		extern a: list<struct{id: int64}>
		export let q = select id from (select id from a)
	`)

	_, e := declExpr(t, schema, "q")
	q := queryOf(t, e)

	require.Len(t, q.Select.From, 1)
	assert.True(t, strings.HasPrefix(q.Select.From[0].Relation.Alias, "__qvmderived"))
}

func TestCompileFromDerivedTablePreservesRowType(t *testing.T) {
	schema := mustCompile(t, `
		extern a: list<struct{id: int64, name: string}>
		export let q = select x.name from (select id, name from a) x
	`)

	mt, _ := declExpr(t, schema, "q")
	row, err := mt.Elem.Must()
	require.NoError(t, err)

	f, ok := fieldNamed(row, "name")
	require.True(t, ok)
	assert.Equal(t, types.AtomString, mustAtom(t, f.Type))
}
