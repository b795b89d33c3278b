package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// Eval evaluates a compiled TypedExpr under rc (spec §4.I). Every cell
// read here is expected to already be Known: runtime dispatch only ever
// runs after the compilation scheduler has driven the program to a
// fixpoint, so an unresolved cell at this point is a genuine bug rather
// than a suspension to retry.
func Eval(ctx context.Context, rc Context, te *program.TypedExpr) (any, error) {
	e, err := te.Expr.Must()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", qs.ErrUnresolved, err)
	}

	switch e.Kind {
	case program.ExprUnknown:
		return nil, qs.ErrUnresolvedExtern

	case program.ExprContextRef:
		v, ok := rc.Values[e.ContextName]
		if !ok {
			return nil, fmt.Errorf("%w: %s", qs.ErrNoSuchContextValue, e.ContextName)
		}

		return v, nil

	case program.ExprSchemaEntry:
		return evalSchemaEntry(ctx, rc, e.SchemaRef)

	case program.ExprFn:
		return &FnValue{Def: e.FnBody}, nil

	case program.ExprNativeFn:
		// Reached only as a FnCall's already-invoked body (compileFnDef
		// always wraps a `native` fn's body in an outer ExprFn), so by
		// this point rc.Values already holds the callee's bound
		// arguments: "construct the corresponding native function value"
		// (spec §4.I) and immediately apply it, there being no further
		// call boundary left to cross.
		return rc.Natives.Call(ctx, e.NativeFnName, rc.Values)

	case program.ExprFnCall:
		return evalFnCall(ctx, rc, e.FnCall)

	case program.ExprSQL:
		expectedType, typeErr := te.Type.Must()
		if typeErr != nil {
			return nil, fmt.Errorf("%w: %v", qs.ErrUnresolved, typeErr)
		}

		return evalSQL(ctx, rc, &e, expectedType)

	default:
		return nil, fmt.Errorf("%w: expr kind %d", qs.ErrUnimplemented, e.Kind)
	}
}

// evalSchemaEntry resolves a cross-schema reference (spec §4.I
// "SchemaEntry → project to its runtime-type form and recurse"):
// lookup_path walks from rc.Schema to the referenced decl, and its
// already-compiled value is evaluated in turn. No example in this
// module ever constructs an ExprSchemaEntry node yet (nothing in
// internal/program does so today); this follows the spec text directly
// as the closest available grounding.
func evalSchemaEntry(ctx context.Context, rc Context, path qs.Path) (any, error) {
	if rc.Compiler == nil {
		return nil, fmt.Errorf("%w: cross-schema reference %s requires a compiler", qs.ErrRuntime, path)
	}

	res, err := program.LookupPath(rc.Compiler, rc.Schema, path, false, true)
	if err != nil {
		return nil, err
	}

	if res.Decl == nil || res.Decl.Value.Kind != program.SchemaEntryExpr {
		return nil, fmt.Errorf("%w: %s is not a value", qs.ErrWrongKind, path)
	}

	return Eval(ctx, rc, &program.TypedExpr{Type: res.Decl.Value.Expr.Type.Body, Expr: res.Decl.Value.Expr.Expr})
}

func evalFnCall(ctx context.Context, rc Context, fc *program.FnCallExpr) (any, error) {
	funcVal, err := Eval(ctx, rc, fc.Func)
	if err != nil {
		return nil, err
	}

	fv, ok := funcVal.(*FnValue)
	if !ok {
		return nil, fmt.Errorf("%w: call target is not a function", qs.ErrWrongKind)
	}

	if fv.Def.CompiledBody == nil {
		return nil, fmt.Errorf("%w: function has no callable body", qs.ErrUnimplemented)
	}

	argVals := make([]any, len(fc.Args))
	for i, a := range fc.Args {
		v, err := Eval(ctx, rc, a)
		if err != nil {
			return nil, err
		}

		argVals[i] = v
	}

	callee := rc.withFrame(fv.Def.InnerSchema, bindArgs(fv.Def.InnerSchema, argVals))

	return Eval(ctx, callee, fv.Def.CompiledBody)
}

// bindArgs maps a function call's positional argument values onto the
// callee's InnerSchema fn-arg decl names, in declaration order (spec
// §4.E "FnDef... args bound as decls with fn_arg=true").
func bindArgs(inner *program.Schema, argVals []any) map[string]any {
	values := make(map[string]any, len(argVals))

	if inner == nil {
		return values
	}

	i := 0

	for _, name := range inner.DeclOrder {
		d, ok := inner.GetDecl(name)
		if !ok || !d.FnArg {
			continue
		}

		if i >= len(argVals) {
			break
		}

		values[name] = argVals[i]
		i++
	}

	return values
}

// evalSQL implements spec §4.I's ExprSQL case: evaluate every named
// parameter in the current context, box each as an engine.SQLParam, and
// hand the rendered SQL text to rc.Engine. The compiled body is printed
// back to text via sqlast.Print/PrintExpr (see that package's doc
// comment for why this bridge exists at all) rather than handed to the
// engine as a native AST.
func evalSQL(ctx context.Context, rc Context, e *program.Expr, expectedType types.MType) (any, error) {
	if rc.Engine == nil {
		return nil, fmt.Errorf("%w: no SQL engine configured", qs.ErrRuntime)
	}

	params, err := boxParams(ctx, rc, e.SQLNames)
	if err != nil {
		return nil, err
	}

	query, isQuery, err := renderSQLBody(e.SQLBody)
	if err != nil {
		return nil, err
	}

	rel, err := rc.Engine.Eval(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", qs.ErrRuntime, err)
	}

	var result any

	if isQuery {
		result = rel
	} else {
		result, err = scalarOf(rel)
		if err != nil {
			return nil, err
		}
	}

	if !rc.DisableTypechecks {
		if err := typeCheckResult(expectedType, rel, isQuery); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func renderSQLBody(body any) (query string, isQuery bool, err error) {
	switch b := body.(type) {
	case *sqlast.Query:
		return sqlast.Print(b), true, nil
	case *sqlast.Expr:
		return "select " + sqlast.PrintExpr(b), false, nil
	default:
		return "", false, fmt.Errorf("%w: unrecognized SQL body %T", qs.ErrRuntime, body)
	}
}

// boxParams evaluates every interned name in names.Params under rc and
// boxes each into an engine.SQLParam, keyed by qs.Ident (spec §4.I "box
// each into SQLParam{name,value,type}"). A name still marked Unbound
// with no resolvable value (the spec §9 known-limitation case: a
// nonLiftableCall placeholder function value reaching SQL text) fails
// with ErrUnimplemented rather than silently sending garbage to the
// engine.
func boxParams(ctx context.Context, rc Context, names *program.SQLNames) (map[qs.Ident]engine.SQLParam, error) {
	params := map[qs.Ident]engine.SQLParam{}

	if names == nil {
		return params, nil
	}

	for name, te := range names.Params {
		v, err := Eval(ctx, rc, te)
		if err != nil {
			if _, unbound := names.Unbound[name]; unbound {
				return nil, fmt.Errorf("%w: placeholder function value %q cannot be evaluated outside SQL text", qs.ErrUnimplemented, name)
			}

			return nil, err
		}

		paramType, terr := te.Type.Must()
		if terr != nil {
			return nil, fmt.Errorf("%w: %v", qs.ErrUnresolved, terr)
		}

		runtimeType, terr := types.ToRuntimeType(paramType)
		if terr != nil {
			return nil, terr
		}

		p := engine.SQLParam{Name: name, Type: runtimeType}

		if rel, ok := v.(engine.Relation); ok {
			p.Relation = rel
		} else {
			p.Value = normalizeParamValue(v)
		}

		params[qs.NewIdent(name)] = p
	}

	return params, nil
}

// normalizeParamValue converts Go values a driver can't bind directly
// into a form it can (SPEC_FULL §B: uuid used for "SQLParam boxing").
func normalizeParamValue(v any) any {
	if id, ok := v.(uuid.UUID); ok {
		return id.String()
	}

	return v
}

// scalarOf extracts the single row/column value an expression-bodied
// SQL value must produce (spec §4.I "expression-bodies must return
// exactly one row of one column").
func scalarOf(rel engine.Relation) (any, error) {
	if rel.NumBatches() == 0 {
		return nil, fmt.Errorf("%w: expression body returned no rows", qs.ErrScalarSubselect)
	}

	batch := rel.Batch(0)
	records := batch.Records()

	if len(records) != 1 {
		return nil, fmt.Errorf("%w: expression body returned %d rows, want 1", qs.ErrScalarSubselect, len(records))
	}

	rec := records[0]
	if len(rec) != 1 {
		return nil, fmt.Errorf("%w: expression body returned %d columns, want 1", qs.ErrScalarSubselect, len(rec))
	}

	for _, v := range rec {
		return v, nil
	}

	return nil, fmt.Errorf("%w: expression body returned an empty row", qs.ErrScalarSubselect)
}

// typeCheckResult verifies the engine's result shape against the
// compiled expected type (spec §4.I "If disable_typechecks is false,
// the result's type is checked against the expected type and a
// TypeMismatch is raised on divergence").
func typeCheckResult(expected types.MType, rel engine.Relation, isQuery bool) error {
	expectedRuntime, err := types.ToRuntimeType(expected)
	if err != nil {
		return err
	}

	if isQuery {
		if expected.Kind != types.KindList {
			return fmt.Errorf("%w: query body's declared type is not a relation", qs.ErrWrongType)
		}

		rowType, err := expected.Elem.Must()
		if err != nil {
			return err
		}

		rowRuntime, err := types.ToRuntimeType(rowType)
		if err != nil {
			return err
		}

		return recordShapeMatches(rowRuntime, rel.Schema())
	}

	// Expression body: rel.Schema() is a one-field record wrapping the
	// scalar's column; compare against the expected scalar type directly.
	schema := rel.Schema()
	if len(schema.Fields) != 1 {
		return fmt.Errorf("%w: expression body result has %d columns, want 1", qs.ErrScalarSubselect, len(schema.Fields))
	}

	if schema.Fields[0].Type.Kind != expectedRuntime.Kind || schema.Fields[0].Type.Atom != expectedRuntime.Atom {
		return fmt.Errorf("%w: expected %v, engine returned %v", qs.ErrWrongType, expectedRuntime, schema.Fields[0].Type)
	}

	return nil
}

func recordShapeMatches(expected, actual types.RuntimeType) error {
	if len(expected.Fields) != len(actual.Fields) {
		return fmt.Errorf("%w: expected %d columns, engine returned %d", qs.ErrWrongType, len(expected.Fields), len(actual.Fields))
	}

	for i, ef := range expected.Fields {
		af := actual.Fields[i]
		if ef.Name != af.Name {
			return fmt.Errorf("%w: column %d: expected %q, engine returned %q", qs.ErrWrongType, i, ef.Name, af.Name)
		}

		if ef.Type.Kind != af.Type.Kind || ef.Type.Atom != af.Type.Atom {
			return fmt.Errorf("%w: column %q: expected %v, engine returned %v", qs.ErrWrongType, ef.Name, ef.Type, af.Type)
		}
	}

	return nil
}
