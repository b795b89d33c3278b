package sqlcompiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/lang"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/scheduler"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// compileSource runs src through the full program compiler with this
// package wired in as the ExprCompiler, driving the scheduler to a
// fixpoint so any deferred (e.g. load()) resolution completes.
func compileSource(t *testing.T, src string) (*program.Schema, error) {
	t.Helper()

	parsed, err := lang.Parse(src)
	require.NoError(t, err)

	sched := scheduler.New(100)
	c := program.NewCompiler(program.NewMapLoader(nil), sched, New())

	schema, err := c.CompileSchema("root", nil, parsed)
	if err != nil {
		return schema, err
	}

	return schema, sched.Drive()
}

// compileSourceInlined is compileSource with the scheduler's global
// inlining bit set before the schema is compiled (spec §4.H), exercising
// the compiler's inline branch instead of its default lift branch.
func compileSourceInlined(t *testing.T, src string) (*program.Schema, error) {
	t.Helper()

	parsed, err := lang.Parse(src)
	require.NoError(t, err)

	sched := scheduler.New(100)
	sched.SetAllowInlining(true)
	c := program.NewCompiler(program.NewMapLoader(nil), sched, New())

	schema, err := c.CompileSchema("root", nil, parsed)
	if err != nil {
		return schema, err
	}

	return schema, sched.Drive()
}

func mustCompileInlined(t *testing.T, src string) *program.Schema {
	t.Helper()

	schema, err := compileSourceInlined(t, src)
	require.NoError(t, err)

	return schema
}

func mustCompile(t *testing.T, src string) *program.Schema {
	t.Helper()

	schema, err := compileSource(t, src)
	require.NoError(t, err)

	return schema
}

func declExpr(t *testing.T, schema *program.Schema, name string) (types.MType, program.Expr) {
	t.Helper()

	d, ok := schema.GetDecl(name)
	require.True(t, ok, "no decl named %s", name)

	mt, err := d.Value.Expr.Type.Body.Must()
	require.NoError(t, err)

	e, err := d.Value.Expr.Expr.Must()
	require.NoError(t, err)

	return mt, e
}

func fieldNamed(mt types.MType, name string) (types.Field, bool) {
	for _, f := range mt.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return types.Field{}, false
}

func mustAtom(t *testing.T, c *cell.CRef[types.MType]) types.AtomicType {
	t.Helper()

	mt, err := c.Must()
	require.NoError(t, err)
	require.Equal(t, types.KindAtom, mt.Kind)

	return mt.Atom
}

func queryOf(t *testing.T, e program.Expr) *sqlast.Query {
	t.Helper()

	require.Equal(t, program.ExprSQL, e.Kind)

	q, ok := e.SQLBody.(*sqlast.Query)
	require.True(t, ok)

	return q
}
