package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleSelect(t *testing.T) {
	q, err := Parse(`SELECT id, name AS n FROM users WHERE id = 1`)
	require.NoError(t, err)
	require.Len(t, q.Select.Projection, 2)
	assert.Equal(t, "id", q.Select.Projection[0].Expr.Path.String())
	assert.Equal(t, "n", q.Select.Projection[1].Alias)
	require.Len(t, q.Select.From, 1)
	assert.Equal(t, "users", q.Select.From[0].Relation.Name.String())
	assert.Equal(t, ExprBinaryOp, q.Select.Where.Kind)
	assert.Equal(t, "=", q.Select.Where.Op)
}

func TestParseJoinAndOrderBy(t *testing.T) {
	q, err := Parse(`SELECT a.id FROM a LEFT JOIN b ON a.id = b.a_id ORDER BY a.id DESC LIMIT 10`)
	require.NoError(t, err)
	require.Len(t, q.Select.From[0].Joins, 1)
	assert.Equal(t, JoinLeftOuter, q.Select.From[0].Joins[0].Kind)
	require.Len(t, q.OrderBy, 1)
	assert.True(t, q.OrderBy[0].Desc)
	require.NotNil(t, q.Limit)
	assert.Equal(t, "10", q.Limit.Literal)
}

func TestParseCaseExpr(t *testing.T) {
	e, err := ParseExpr(`CASE WHEN x > 0 THEN 'pos' ELSE 'non-pos' END`)
	require.NoError(t, err)
	assert.Equal(t, ExprCase, e.Kind)
	require.Len(t, e.WhenThen, 1)
	require.NotNil(t, e.ElseResult)
}

func TestParseFunctionCallWithWindow(t *testing.T) {
	e, err := ParseExpr(`sum(amount) OVER (PARTITION BY customer_id ORDER BY ts ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)`)
	require.NoError(t, err)
	require.Equal(t, ExprFunctionCall, e.Kind)
	require.NotNil(t, e.Over)
	require.NotNil(t, e.Over.Frame)
	assert.Equal(t, BoundUnboundedPreceding, e.Over.Frame.StartKind)
	assert.Equal(t, BoundCurrentRow, e.Over.Frame.EndKind)
}

func TestParseSubqueryInFrom(t *testing.T) {
	q, err := Parse(`SELECT t.x FROM (SELECT x FROM y) AS t`)
	require.NoError(t, err)
	require.Equal(t, TableFactorDerived, q.Select.From[0].Relation.Kind)
	assert.Equal(t, "t", q.Select.From[0].Relation.Alias)
}

func TestParseNamedFunctionArg(t *testing.T) {
	e, err := ParseExpr(`coalesce(default@x, 0)`)
	require.NoError(t, err)
	require.Equal(t, ExprFunctionCall, e.Kind)
	require.Len(t, e.Args, 2)
	assert.Equal(t, "default", e.Args[0].Name)
}
