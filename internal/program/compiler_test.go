package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/lang"
	"github.com/queryscript/qs/internal/types"
)

// stubExprCompiler stands in for the SQL compiler in these tests: it
// wraps any expression as an ExprSQL body of the type it was built with
// (int64 in these tests), so program.Compiler's
// statement dispatch can be exercised without internal/sqlcompiler.
type stubExprCompiler struct {
	t types.MType
}

func (s stubExprCompiler) CompileExpr(c *Compiler, schema *Schema, e *lang.Expr, multipleRows bool) (*TypedExpr, error) {
	return &TypedExpr{Type: cell.Known(s.t), Expr: cell.Known(Expr{Kind: ExprSQL, SQLBody: e})}, nil
}

func parseSchema(t *testing.T, src string) *lang.Schema {
	t.Helper()

	s, err := lang.Parse(src)
	require.NoError(t, err)

	return s
}

func TestCompileTypeDefStruct(t *testing.T) {
	parsed := parseSchema(t, `type user = struct { id: int64, name: string? }`)
	c := NewCompiler(NewMapLoader(nil), nil, nil)

	schema, err := c.CompileSchema("root", nil, parsed)
	require.NoError(t, err)

	d, ok := schema.GetDecl("user")
	require.True(t, ok)
	require.Equal(t, SchemaEntryType, d.Value.Kind)

	mt, err := d.Value.Type.Must()
	require.NoError(t, err)
	require.Equal(t, types.KindRecord, mt.Kind)
	require.Len(t, mt.Fields, 2)
	assert.Equal(t, "id", mt.Fields[0].Name)
	assert.True(t, mt.Fields[1].Nullable)
}

func TestCompileExternRegistersUnresolvedExtern(t *testing.T) {
	parsed := parseSchema(t, `extern region: string`)
	c := NewCompiler(NewMapLoader(nil), nil, nil)

	schema, err := c.CompileSchema("root", nil, parsed)
	require.NoError(t, err)

	d, ok := schema.GetDecl("region")
	require.True(t, ok)
	assert.True(t, d.Extern)
	require.Equal(t, SchemaEntryExpr, d.Value.Kind)

	e, err := d.Value.Expr.Expr.Must()
	require.NoError(t, err)
	assert.Equal(t, ExprUnknown, e.Kind)
}

func TestCompileLetUsesInjectedExprCompiler(t *testing.T) {
	parsed := parseSchema(t, `export let n = select 1`)
	c := NewCompiler(NewMapLoader(nil), nil, stubExprCompiler{t: types.Atom(types.AtomInt64)})

	schema, err := c.CompileSchema("root", nil, parsed)
	require.NoError(t, err)

	d, ok := schema.GetDecl("n")
	require.True(t, ok)
	assert.True(t, d.Public)

	mt, err := d.Value.Expr.Expr.Must()
	require.NoError(t, err)
	assert.Equal(t, ExprSQL, mt.Kind)
}

func TestCompileFnDefNativeBindsArgTypes(t *testing.T) {
	parsed := parseSchema(t, `fn total_for(customer: int64) -> float64 native`)
	c := NewCompiler(NewMapLoader(nil), nil, nil)

	schema, err := c.CompileSchema("root", nil, parsed)
	require.NoError(t, err)

	d, ok := schema.GetDecl("total_for")
	require.True(t, ok)

	fnType, err := d.Value.Expr.Type.Body.Must()
	require.NoError(t, err)
	require.Equal(t, types.KindFn, fnType.Kind)
	require.Len(t, fnType.Fields, 1)
	assert.Equal(t, "customer", fnType.Fields[0].Name)

	retType, err := fnType.FnRet.Must()
	require.NoError(t, err)
	assert.Equal(t, types.AtomFloat64, retType.Atom)
}

func TestCompileImportStarPullsPublicDecls(t *testing.T) {
	billing := NewSchema("billing", nil)
	require.NoError(t, billing.AddDecl(&Decl{
		Public: true,
		Name:   qs.NewIdent("monthly"),
		Value:  SchemaEntry{Kind: SchemaEntryType, Type: cell.Known(types.Atom(types.AtomInt64))},
	}))
	require.NoError(t, billing.AddDecl(&Decl{
		Public: false,
		Name:   qs.NewIdent("internal_only"),
		Value:  SchemaEntry{Kind: SchemaEntryType, Type: cell.Known(types.Atom(types.AtomInt64))},
	}))

	loader := NewMapLoader(map[string]*Schema{"billing": billing})
	c := NewCompiler(loader, nil, nil)

	parsed := parseSchema(t, `import billing.*`)
	schema, err := c.CompileSchema("root", nil, parsed)
	require.NoError(t, err)

	_, ok := schema.GetDecl("monthly")
	assert.True(t, ok)
	_, ok = schema.GetDecl("internal_only")
	assert.False(t, ok)
}

func TestLookupPathWalksNestedSchemas(t *testing.T) {
	leaf := NewSchema("leaf", nil)
	require.NoError(t, leaf.AddDecl(&Decl{
		Public: true,
		Name:   qs.NewIdent("monthly"),
		Value:  SchemaEntry{Kind: SchemaEntryType, Type: cell.Known(types.Atom(types.AtomInt64))},
	}))

	root := NewSchema("root", nil)
	require.NoError(t, root.AddDecl(&Decl{
		Name:  qs.NewIdent("billing"),
		Value: SchemaEntry{Kind: SchemaEntrySchema, Schema: leaf},
	}))

	c := NewCompiler(NewMapLoader(nil), nil, nil)

	res, err := LookupPath(c, root, qs.NewPath("billing", "monthly"), true, true)
	require.NoError(t, err)
	require.NotNil(t, res.Decl)
	assert.Equal(t, "monthly", res.Decl.Name.Name)
}

func TestLookupPathNoSuchEntry(t *testing.T) {
	root := NewSchema("root", nil)
	c := NewCompiler(NewMapLoader(nil), nil, nil)

	_, err := LookupPath(c, root, qs.NewPath("missing"), true, true)
	assert.Error(t, err)
}
