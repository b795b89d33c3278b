package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs/internal/sqlast"
)

func TestParseTypeDefStruct(t *testing.T) {
	schema, err := Parse(`type user = struct { id: int64, name: string?, include other.fields }`)
	require.NoError(t, err)
	require.Len(t, schema.Stmts, 1)

	stmt := schema.Stmts[0]
	assert.Equal(t, StmtTypeDef, stmt.Kind)
	assert.Equal(t, "user", stmt.TypeDefName.Name)
	require.Equal(t, TypeStruct, stmt.TypeDefBody.Kind)
	require.Len(t, stmt.TypeDefBody.Fields, 3)
	assert.True(t, stmt.TypeDefBody.Fields[1].Nullable)
	assert.True(t, stmt.TypeDefBody.Fields[2].IsInclude)
}

func TestParseLetWithSQLQuery(t *testing.T) {
	schema, err := Parse(`export let active_users = select id, name from users where active = true`)
	require.NoError(t, err)
	require.Len(t, schema.Stmts, 1)

	stmt := schema.Stmts[0]
	assert.True(t, stmt.Export)
	assert.Equal(t, StmtLet, stmt.Kind)
	require.Equal(t, ExprSQLQuery, stmt.LetBody.Kind)
	require.NotNil(t, stmt.LetBody.Query)
	assert.Len(t, stmt.LetBody.Query.Select.Projection, 2)
}

func TestParseExternAndFnDef(t *testing.T) {
	schema, err := Parse(`
		extern region: string
		fn total_for(customer: int64) -> float64 = sum(amount)
	`)
	require.NoError(t, err)
	require.Len(t, schema.Stmts, 2)

	assert.Equal(t, StmtExtern, schema.Stmts[0].Kind)
	assert.Equal(t, "region", schema.Stmts[0].ExternName.Name)

	fn := schema.Stmts[1]
	assert.Equal(t, StmtFnDef, fn.Kind)
	assert.Equal(t, "total_for", fn.FnName.Name)
	require.Len(t, fn.FnArgs, 1)
	assert.Equal(t, "customer", fn.FnArgs[0].Name.Name)
	require.NotNil(t, fn.FnRet)
	require.Equal(t, ExprSQLExpr, fn.FnBody.Expr.Kind)
}

func TestParseImportWithItemsAndArgs(t *testing.T) {
	schema, err := Parse(`import billing.reports.{monthly, yearly}(region = region)`)
	require.NoError(t, err)
	require.Len(t, schema.Stmts, 1)

	stmt := schema.Stmts[0]
	assert.Equal(t, StmtImport, stmt.Kind)
	assert.Equal(t, "billing.reports", stmt.ImportPath.String())
	assert.Equal(t, ImportItems, stmt.ImportList.Kind)
	require.Len(t, stmt.ImportList.Items, 2)
	require.Len(t, stmt.ImportArgs, 1)
	assert.Equal(t, "region", stmt.ImportArgs[0].Name.Name)
}

func TestParseListAndGenericType(t *testing.T) {
	schema, err := Parse(`type orders = list<external<order_row>>`)
	require.NoError(t, err)

	body := schema.Stmts[0].TypeDefBody
	require.Equal(t, TypeList, body.Kind)
	require.Equal(t, TypeExternal, body.Elem.Kind)
}

func TestParseBareExprStatementIsQuery(t *testing.T) {
	schema, err := Parse(`select 1`)
	require.NoError(t, err)
	require.Len(t, schema.Stmts, 1)
	assert.Equal(t, StmtExpr, schema.Stmts[0].Kind)
	assert.Equal(t, ExprSQLQuery, schema.Stmts[0].Expr.Kind)
	assert.IsType(t, &sqlast.Query{}, schema.Stmts[0].Expr.Query)
}
