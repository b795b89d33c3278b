package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/engine"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// fakeEngine is a scripted engine.SQLEngine test double: it records the
// rendered query/params it was handed and returns a pre-built relation.
type fakeEngine struct {
	gotQuery  string
	gotParams map[qs.Ident]engine.SQLParam
	result    engine.Relation
	err       error
}

func (f *fakeEngine) Eval(_ context.Context, query string, params map[qs.Ident]engine.SQLParam) (engine.Relation, error) {
	f.gotQuery = query
	f.gotParams = params

	return f.result, f.err
}

func scalarRelation(colName string, t types.AtomicType, v any) engine.Relation {
	return engine.NewMemRelation(
		types.RuntimeType{Kind: types.KindRecord, Fields: []types.RuntimeField{{Name: colName, Type: types.RuntimeType{Kind: types.KindAtom, Atom: t}}}},
		[]string{colName},
		[]map[string]any{{colName: v}},
	)
}

func identExpr(path string) *sqlast.Expr {
	return &sqlast.Expr{Kind: sqlast.ExprIdent, Path: sqlast.ObjectName{{Name: path}}}
}

// TestEvalContextRefHitAndMiss covers spec §4.I's ContextRef hit/miss cases.
func TestEvalContextRefHitAndMiss(t *testing.T) {
	rc := NewContext(program.NewSchema("root", nil), nil, nil, NewRegistry(nil), false)
	rc.Values["x"] = 7

	v, err := Eval(context.Background(), rc, program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprContextRef, ContextName: "x"}))
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = Eval(context.Background(), rc, program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprContextRef, ContextName: "missing"}))
	assert.ErrorIs(t, err, qs.ErrNoSuchContextValue)
}

// TestEvalSQLExpressionBodyBoxesParamAndReturnsScalar exercises spec §8
// scenario 1 ("Scalar binding lifted into SQL"): a bound param is
// evaluated, boxed into an engine.SQLParam, and the scalar result
// returned unwrapped.
func TestEvalSQLExpressionBodyBoxesParamAndReturnsScalar(t *testing.T) {
	fe := &fakeEngine{result: scalarRelation("x", types.AtomInt64, 4)}
	rc := NewContext(program.NewSchema("root", nil), nil, fe, NewRegistry(nil), false)

	body := identExpr("@p1")
	names := &program.SQLNames{
		Params:  map[string]*program.TypedExpr{"p1": program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprContextRef, ContextName: "bound"})},
		Unbound: map[string]struct{}{},
	}
	rc.Values["bound"] = 3

	te := program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprSQL, SQLBody: body, SQLNames: names})

	v, err := Eval(context.Background(), rc, te)
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	require.Contains(t, fe.gotParams, qs.NewIdent("p1"))
	assert.Equal(t, 3, fe.gotParams[qs.NewIdent("p1")].Value)
	assert.Equal(t, "select @p1", fe.gotQuery)
}

// TestEvalSQLQueryBodyTypeMismatchErrors covers the post-execution
// typecheck spec §4.I requires when disable_typechecks is false.
func TestEvalSQLQueryBodyTypeMismatchErrors(t *testing.T) {
	fe := &fakeEngine{result: scalarRelation("name", types.AtomString, "alice")}
	rc := NewContext(program.NewSchema("root", nil), nil, fe, NewRegistry(nil), false)

	query := &sqlast.Query{Select: &sqlast.SelectStatement{Projection: []sqlast.SelectItem{{Expr: *identExpr("name")}}}}

	rowType := types.Record([]types.Field{{Name: "name", Type: cell.Known(types.Atom(types.AtomInt64))}})
	te := program.KnownTypedExpr(types.List(cell.Known(rowType)), program.Expr{Kind: program.ExprSQL, SQLBody: query, SQLNames: &program.SQLNames{Params: map[string]*program.TypedExpr{}}})

	_, err := Eval(context.Background(), rc, te)
	assert.ErrorIs(t, err, qs.ErrWrongType)
}

// TestEvalSQLQueryBodyDisabledTypechecksSkipsMismatch confirms the
// disable_typechecks escape hatch actually disables the check.
func TestEvalSQLQueryBodyDisabledTypechecksSkipsMismatch(t *testing.T) {
	fe := &fakeEngine{result: scalarRelation("name", types.AtomString, "alice")}
	rc := NewContext(program.NewSchema("root", nil), nil, fe, NewRegistry(nil), true)

	query := &sqlast.Query{Select: &sqlast.SelectStatement{Projection: []sqlast.SelectItem{{Expr: *identExpr("name")}}}}
	rowType := types.Record([]types.Field{{Name: "name", Type: cell.Known(types.Atom(types.AtomInt64))}})
	te := program.KnownTypedExpr(types.List(cell.Known(rowType)), program.Expr{Kind: program.ExprSQL, SQLBody: query, SQLNames: &program.SQLNames{Params: map[string]*program.TypedExpr{}}})

	v, err := Eval(context.Background(), rc, te)
	require.NoError(t, err)
	assert.Equal(t, fe.result, v)
}

// buildNativeFn constructs the ExprFn{FnBody:{InnerSchema, CompiledBody:
// ExprNativeFn}} shape compileFnDef produces for `fn name(args...) native`.
func buildNativeFn(name string, argNames []string) *program.TypedExpr {
	inner := program.NewSchema("root", nil)

	for _, a := range argNames {
		argExpr := &program.TypedExpr{Type: cell.Known(types.Atom(types.AtomInt64)), Expr: cell.Known(program.Expr{Kind: program.ExprContextRef, ContextName: a})}
		_ = inner.AddDecl(&program.Decl{Name: qs.NewIdent(a), FnArg: true, Value: program.SchemaEntry{Kind: program.SchemaEntryExpr, Expr: &program.STypedExpr{Type: types.Mono(argExpr.Type), Expr: argExpr.Expr}}})
	}

	compiledBody := program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprNativeFn, NativeFnName: name})

	return program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprFn, FnBody: &program.FnExpr{InnerSchema: inner, CompiledBody: compiledBody}})
}

// TestEvalFnCallDispatchesCELNative wires a full FnCall→closure→native
// path through to a registered CEL expression.
func TestEvalFnCallDispatchesCELNative(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.RegisterCEL("add", []string{"a", "b"}, "a + b"))

	rc := NewContext(program.NewSchema("root", nil), nil, nil, reg, false)

	fnTE := buildNativeFn("add", []string{"a", "b"})

	call := program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{
		Kind: program.ExprFnCall,
		FnCall: &program.FnCallExpr{
			Func: fnTE,
			Args: []*program.TypedExpr{
				program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprContextRef, ContextName: "one"}),
				program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprContextRef, ContextName: "two"}),
			},
		},
	})

	rc.Values["one"] = int64(1)
	rc.Values["two"] = int64(2)

	v, err := Eval(context.Background(), rc, call)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
}

// TestEvalFnCallNativeIdentityPassesThrough covers the `__native_identity`
// coercion builtin (spec §6).
func TestEvalFnCallNativeIdentityPassesThrough(t *testing.T) {
	rc := NewContext(program.NewSchema("root", nil), nil, nil, NewRegistry(nil), false)

	fnTE := buildNativeFn("__native_identity", []string{"x"})
	call := program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{
		Kind: program.ExprFnCall,
		FnCall: &program.FnCallExpr{
			Func: fnTE,
			Args: []*program.TypedExpr{
				program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprContextRef, ContextName: "v"}),
			},
		},
	})

	rc.Values["v"] = "hello"

	v, err := Eval(context.Background(), rc, call)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

// TestEvalLoadDispatchesToLoader covers the load() builtin (spec §6).
func TestEvalLoadDispatchesToLoader(t *testing.T) {
	rel := scalarRelation("name", types.AtomString, "alice")
	reg := NewRegistry(mapLoader{relations: map[string]engine.Relation{"people.json": rel}})
	rc := NewContext(program.NewSchema("root", nil), nil, nil, reg, false)

	fnTE := buildNativeFn("load", []string{"path", "format"})
	call := program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{
		Kind: program.ExprFnCall,
		FnCall: &program.FnCallExpr{
			Func: fnTE,
			Args: []*program.TypedExpr{
				program.KnownTypedExpr(types.Atom(types.AtomString), program.Expr{Kind: program.ExprContextRef, ContextName: "path"}),
				program.KnownTypedExpr(types.Atom(types.AtomString), program.Expr{Kind: program.ExprContextRef, ContextName: "format"}),
			},
		},
	})

	rc.Values["path"] = "people.json"
	rc.Values["format"] = ""

	v, err := Eval(context.Background(), rc, call)
	require.NoError(t, err)
	assert.Equal(t, rel, v)
}

// TestEvalLoadWithoutLoaderConfiguredErrors confirms the out-of-scope
// file-loader boundary fails loudly instead of silently.
func TestEvalLoadWithoutLoaderConfiguredErrors(t *testing.T) {
	rc := NewContext(program.NewSchema("root", nil), nil, nil, NewRegistry(nil), false)

	fnTE := buildNativeFn("load", []string{"path"})
	call := program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{
		Kind: program.ExprFnCall,
		FnCall: &program.FnCallExpr{
			Func: fnTE,
			Args: []*program.TypedExpr{
				program.KnownTypedExpr(types.Atom(types.AtomString), program.Expr{Kind: program.ExprContextRef, ContextName: "path"}),
			},
		},
	})

	rc.Values["path"] = "x.json"

	_, err := Eval(context.Background(), rc, call)
	assert.ErrorIs(t, err, qs.ErrUnimplemented)
}

// TestEvalUnknownIsUnresolvedExtern covers the Unknown→error case.
func TestEvalUnknownIsUnresolvedExtern(t *testing.T) {
	rc := NewContext(program.NewSchema("root", nil), nil, nil, NewRegistry(nil), false)

	_, err := Eval(context.Background(), rc, program.KnownTypedExpr(types.Atom(types.AtomInt64), program.Expr{Kind: program.ExprUnknown}))
	assert.ErrorIs(t, err, qs.ErrUnresolvedExtern)
}
