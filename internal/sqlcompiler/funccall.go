package sqlcompiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/generics"
	"github.com/queryscript/qs/internal/inline"
	"github.com/queryscript/qs/internal/lang"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// compileFunctionCall lowers a SQL function call (spec §4.F "Function
// calls"). A name that resolves against the program scope is a
// QueryScript fn: its body decides whether the call passes straight
// through to the SQL engine (FnBodySQL) or must be lifted out of the
// SQL text as a deferred FnCall node (FnBodyExpr/FnBodyNative, spec §4.I
// "FnCall"). A name that does not resolve is assumed to be a SQL
// built-in (count, sum, coalesce, ...); only a name this package knows
// the return-type rule for is accepted.
func (qc *queryCompiler) compileFunctionCall(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	if len(e.Args) == 1 && e.Args[0].Star {
		if !strings.EqualFold(e.FuncName.Last().Name, "count") {
			return sqlast.Expr{}, nil, fmt.Errorf("%w: * is only legal as count(*)'s sole argument", qs.ErrUnimplemented)
		}

		e = &sqlast.Expr{
			Kind:     sqlast.ExprFunctionCall,
			Pos:      e.Pos,
			FuncName: e.FuncName,
			Args:     []sqlast.FuncArg{{Expr: sqlast.Expr{Kind: sqlast.ExprValue, ValueKind: sqlast.ValueNumber, Literal: "1"}}},
			Over:     e.Over,
		}
	}

	args := make([]sqlast.FuncArg, len(e.Args))
	argTypes := make([]*cell.CRef[types.MType], len(e.Args))

	for i, a := range e.Args {
		if a.Star {
			return sqlast.Expr{}, nil, fmt.Errorf("%w: * is only legal as count(*)'s sole argument", qs.ErrUnimplemented)
		}

		compiled, t, err := qc.compileExpr(&a.Expr)
		if err != nil {
			return sqlast.Expr{}, nil, fmt.Errorf("argument %d: %w", i, err)
		}

		args[i] = sqlast.FuncArg{Name: a.Name, Expr: compiled}
		argTypes[i] = t
	}

	over, err := qc.compileWindowSpec(e.Over)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	fnTE, fnDecl, err := qc.lookupFn(e.FuncName)
	if err != nil {
		if errors.Is(err, qs.ErrNoSuchEntry) {
			return qc.compileBuiltinCall(e, args, argTypes, over)
		}

		return sqlast.Expr{}, nil, err
	}

	fnType, err := fnTE.Type.Must()
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	if fnType.Kind != types.KindFn {
		return sqlast.Expr{}, nil, fmt.Errorf("%w: %s is not a function", qs.ErrWrongType, e.FuncName)
	}

	boundArgs, boundExprs, err := bindArgs(e.FuncName, fnType.Fields, e.Args, args, argTypes)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	body, err := fnDecl.Value.Expr.Expr.Must()
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	bodyKind := body.FnBody.Body.Kind

	if bodyKind == lang.FnBodySQL {
		orderedArgs := make([]sqlast.FuncArg, len(e.Args))
		copy(orderedArgs, args)

		return sqlast.Expr{Kind: sqlast.ExprFunctionCall, Pos: e.Pos, FuncName: e.FuncName, Args: orderedArgs, Over: over}, fnType.FnRet, nil
	}

	// Lift vs inline vs SQL-call (spec §4.F): a call can only be lifted
	// out of the SQL body if none of its arguments (or the OVER clause)
	// reference a still-unbound SQL name — one bound to an enclosing fn's
	// own argument, which only resolves once that outer call itself
	// substitutes it in. When inlining is disabled, both Native and Expr
	// bodies lift (only a SQLBuiltin call, already handled above, never
	// does); when it's enabled, only Native lifts and Expr instead
	// inlines, since the whole point of allow_inlining is to fold
	// SQL-referencing Expr bodies into the surrounding query text rather
	// than ship them out to the host.
	canLift := !argsReferenceUnbound(args, over, qc.names.unbound)
	allowInlining := qc.program.Scheduler.AllowInlining()

	shouldLift := bodyKind == lang.FnBodyNative || !allowInlining

	if canLift && shouldLift {
		return qc.liftFnCall(e, fnTE, fnType, boundArgs, boundExprs)
	}

	if bodyKind == lang.FnBodyExpr && allowInlining {
		return qc.inlineFnCall(e, body.FnBody.CompiledBody, fnType, boundArgs, boundExprs)
	}

	return qc.nonLiftableCall(e, fnTE, fnType, args, over)
}

// argsReferenceUnbound reports whether any argument (or OVER clause)
// references a placeholder the name table has marked as an unbound
// fn-argument reference (spec §4.F "can_lift").
func argsReferenceUnbound(args []sqlast.FuncArg, over *sqlast.WindowSpec, unbound map[string]struct{}) bool {
	for i := range args {
		if exprReferencesUnbound(&args[i].Expr, unbound) {
			return true
		}
	}

	if over == nil {
		return false
	}

	for i := range over.PartitionBy {
		if exprReferencesUnbound(&over.PartitionBy[i], unbound) {
			return true
		}
	}

	for i := range over.OrderBy {
		if exprReferencesUnbound(&over.OrderBy[i].Expr, unbound) {
			return true
		}
	}

	if over.Frame != nil {
		if exprReferencesUnbound(over.Frame.StartExpr, unbound) || exprReferencesUnbound(over.Frame.EndExpr, unbound) {
			return true
		}
	}

	return false
}

func exprReferencesUnbound(e *sqlast.Expr, unbound map[string]struct{}) bool {
	if e == nil {
		return false
	}

	if (e.Kind == sqlast.ExprIdent || e.Kind == sqlast.ExprCompoundIdent) && len(e.Path) == 1 {
		if _, ok := unbound[strings.TrimPrefix(e.Path[0].Name, "@")]; ok {
			return true
		}
	}

	switch e.Kind {
	case sqlast.ExprBinaryOp:
		return exprReferencesUnbound(e.Left, unbound) || exprReferencesUnbound(e.Right, unbound)

	case sqlast.ExprUnaryOp:
		return exprReferencesUnbound(e.Left, unbound)

	case sqlast.ExprCase:
		if exprReferencesUnbound(e.Operand, unbound) {
			return true
		}

		for _, wt := range e.WhenThen {
			if exprReferencesUnbound(&wt.When, unbound) || exprReferencesUnbound(&wt.Then, unbound) {
				return true
			}
		}

		return exprReferencesUnbound(e.ElseResult, unbound)

	case sqlast.ExprIsNotNull, sqlast.ExprIsNull:
		return exprReferencesUnbound(e.Operand1, unbound)

	case sqlast.ExprTuple, sqlast.ExprArray:
		for i := range e.Items {
			if exprReferencesUnbound(&e.Items[i], unbound) {
				return true
			}
		}

	case sqlast.ExprFunctionCall:
		for i := range e.Args {
			if exprReferencesUnbound(&e.Args[i].Expr, unbound) {
				return true
			}
		}
	}

	return false
}

// lookupFn resolves a call target against the program scope, returning
// both its instantiated value and the underlying Decl (needed to
// inspect the FnExpr body kind, which isn't carried on TypedExpr).
func (qc *queryCompiler) lookupFn(name sqlast.ObjectName) (*program.TypedExpr, *program.Decl, error) {
	res, err := program.LookupPath(qc.program, qc.schema, qsPath(name), true, true)
	if err != nil {
		return nil, nil, err
	}

	if res.Decl == nil || len(res.Remainder) > 0 || res.Decl.Value.Kind != program.SchemaEntryExpr {
		return nil, nil, fmt.Errorf("%w: %s is not a value", qs.ErrWrongKind, name)
	}

	bodyType, err := types.Instantiate(res.Decl.Value.Expr.Type)
	if err != nil {
		return nil, nil, err
	}

	return &program.TypedExpr{Type: bodyType, Expr: res.Decl.Value.Expr.Expr}, res.Decl, nil
}

// bindArgs matches a call's positional-then-named arguments against a
// Fn type's parameter list (spec §4.F "Function calls": "position then
// by name"), unifying each bound argument's compiled type with its
// parameter's declared type. It also reorders the already-compiled
// argument expressions into parameter order, since callers (e.g. a named
// argument reordering the call) may not have listed them that way.
func bindArgs(name sqlast.ObjectName, params []types.Field, rawArgs []sqlast.FuncArg, compiledArgs []sqlast.FuncArg, argTypes []*cell.CRef[types.MType]) ([]*cell.CRef[types.MType], []sqlast.Expr, error) {
	bound := make([]*cell.CRef[types.MType], len(params))
	boundExprs := make([]sqlast.Expr, len(params))
	usedParam := make([]bool, len(params))

	next := 0
	for i, a := range rawArgs {
		if a.Name != "" {
			continue
		}

		if next >= len(params) {
			return nil, nil, fmt.Errorf("%w: %s: too many positional arguments", qs.ErrMissingArg, name)
		}

		bound[next] = argTypes[i]
		boundExprs[next] = compiledArgs[i].Expr
		usedParam[next] = true
		next++
	}

	paramByName := make(map[string]int, len(params))
	for i, p := range params {
		paramByName[p.Name] = i
	}

	for i, a := range rawArgs {
		if a.Name == "" {
			continue
		}

		pi, ok := paramByName[a.Name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s: no argument named %s", qs.ErrNoSuchEntry, name, a.Name)
		}

		if usedParam[pi] {
			return nil, nil, fmt.Errorf("%w: %s: argument %s bound twice", qs.ErrDuplicateEntry, name, a.Name)
		}

		bound[pi] = argTypes[i]
		boundExprs[pi] = compiledArgs[i].Expr
		usedParam[pi] = true
	}

	for i, used := range usedParam {
		if !used {
			return nil, nil, fmt.Errorf("%w: %s: missing argument %s", qs.ErrMissingArg, name, params[i].Name)
		}

		if err := cell.Unify(params[i].Type, bound[i]); err != nil {
			return nil, nil, fmt.Errorf("%s: argument %s: %w", name, params[i].Name, err)
		}
	}

	return bound, boundExprs, nil
}

// liftFnCall builds a deferred FnCall node for a function whose body
// cannot be expressed as SQL text (FnBodyExpr/FnBodyNative), interning
// it as a fresh placeholder (spec §4.I "FnCall{func,args,ctx_folder}").
// load() is recognized here by its return type rather than its name:
// any call resolving to Generic(External(T)) needs its row type filled
// in by an external resolver before the program can finish compiling
// (spec §4.H "add_external_type").
func (qc *queryCompiler) liftFnCall(e *sqlast.Expr, fnTE *program.TypedExpr, fnType types.MType, boundArgs []*cell.CRef[types.MType], args []sqlast.FuncArg) (sqlast.Expr, *cell.CRef[types.MType], error) {
	argTEs := make([]*program.TypedExpr, len(args))

	for i, a := range args {
		argExpr := a.Expr
		argTEs[i] = &program.TypedExpr{Type: boundArgs[i], Expr: cell.Known(program.Expr{Kind: program.ExprSQL, SQLBody: &argExpr})}
	}

	call := program.Expr{
		Kind: program.ExprFnCall,
		FnCall: &program.FnCallExpr{
			Func:      fnTE,
			Args:      argTEs,
			CtxFolder: qc.schema.Folder,
		},
	}

	te := &program.TypedExpr{Type: fnType.FnRet, Expr: cell.Known(call)}

	if retType, err := fnType.FnRet.Must(); err == nil && retType.Kind == types.KindGeneric && retType.Generic.Name() == "External" {
		if inner, ok := generics.InnerType(retType.Generic); ok {
			qc.program.Scheduler.AddExternalResolver(0, func() (bool, error) {
				if qc.program.Externals == nil {
					return false, fmt.Errorf("%w: no external type resolver configured", qs.ErrUnsupportedExternal)
				}

				mt, err := qc.program.Externals.ResolveExternalType(argTEs)
				if err != nil {
					return false, err
				}

				return true, cell.Unify(inner, cell.Known(mt))
			})
		}
	}

	placeholder := qc.scope.NextPlaceholder("call")
	qc.names.intern(placeholder, te, false)

	return sqlast.Expr{Kind: sqlast.ExprIdent, Pos: e.Pos, Path: sqlast.ObjectName{{Name: "@" + placeholder}}}, fnType.FnRet, nil
}

// inlineFnCall folds a FnBodyExpr function's already-compiled body
// directly into the SQL text at this call site (spec §4.G): each
// ContextRef(argname) in the body is replaced by the corresponding
// argument, then any argument that is itself SQL is spliced straight
// into the body text. The body's own remaining placeholders are merged
// into this query's name table so they stay resolvable by name.
func (qc *queryCompiler) inlineFnCall(e *sqlast.Expr, compiledBody *program.TypedExpr, fnType types.MType, boundArgs []*cell.CRef[types.MType], boundExprs []sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	if compiledBody == nil {
		return sqlast.Expr{}, nil, fmt.Errorf("%w: %s has no inlinable body", qs.ErrUnimplemented, e.FuncName)
	}

	subst := make(map[string]*program.TypedExpr, len(fnType.Fields))

	for i, field := range fnType.Fields {
		argExpr := boundExprs[i]
		subst[field.Name] = &program.TypedExpr{Type: boundArgs[i], Expr: cell.Known(program.Expr{Kind: program.ExprSQL, SQLBody: &argExpr})}
	}

	withContext, err := inline.Context(compiledBody, subst)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	inlined, err := inline.Params(withContext)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	inlinedExpr, err := inlined.Expr.Must()
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	body, ok := inlinedExpr.SQLBody.(*sqlast.Expr)
	if !ok {
		return sqlast.Expr{}, nil, fmt.Errorf("%w: %s's body did not inline to a scalar expression", qs.ErrUnimplemented, e.FuncName)
	}

	if inlinedExpr.SQLNames != nil {
		for name, te := range inlinedExpr.SQLNames.Params {
			_, unbound := inlinedExpr.SQLNames.Unbound[name]
			qc.names.intern(name, te, unbound)
		}
	}

	return *body, fnType.FnRet, nil
}

// nonLiftableCall emits a SQL function call whose name is itself an
// interned placeholder standing for the function value, for a call that
// could neither lift nor inline (spec §4.F: "non-builtins that couldn't
// be lifted become a placeholder call"). This still has to type-check
// and compile; only the runtime rejects it, since there is no UDF
// dispatch yet (spec §9, a known limitation).
func (qc *queryCompiler) nonLiftableCall(e *sqlast.Expr, fnTE *program.TypedExpr, fnType types.MType, args []sqlast.FuncArg, over *sqlast.WindowSpec) (sqlast.Expr, *cell.CRef[types.MType], error) {
	placeholder := qc.scope.NextPlaceholder("func")
	qc.names.intern(placeholder, fnTE, false)

	return sqlast.Expr{Kind: sqlast.ExprFunctionCall, Pos: e.Pos, FuncName: sqlast.ObjectName{{Name: "@" + placeholder}}, Args: args, Over: over}, fnType.FnRet, nil
}

// compileBuiltinCall computes the return type of a SQL built-in
// aggregate or scalar function this package knows how to type; anything
// else is rejected rather than guessed at.
func (qc *queryCompiler) compileBuiltinCall(e *sqlast.Expr, args []sqlast.FuncArg, argTypes []*cell.CRef[types.MType], over *sqlast.WindowSpec) (sqlast.Expr, *cell.CRef[types.MType], error) {
	name := strings.ToLower(e.FuncName.Last().Name)

	atoms := make([]types.AtomicType, len(argTypes))
	for i, t := range argTypes {
		a, err := requireAtom(t)
		if err != nil {
			return sqlast.Expr{}, nil, fmt.Errorf("%s: argument %d: %w", name, i, err)
		}

		atoms[i] = a
	}

	var result types.AtomicType

	switch name {
	case "count":
		result = types.AtomInt64

	case "sum":
		if len(atoms) != 1 || !isNumericAtom(atoms[0]) {
			return sqlast.Expr{}, nil, fmt.Errorf("%w: sum requires one numeric argument", qs.ErrWrongType)
		}

		result = types.AtomDecimal

	case "avg":
		if len(atoms) != 1 || !isNumericAtom(atoms[0]) {
			return sqlast.Expr{}, nil, fmt.Errorf("%w: avg requires one numeric argument", qs.ErrWrongType)
		}

		result = types.AtomFloat64

	case "min", "max":
		if len(atoms) != 1 {
			return sqlast.Expr{}, nil, fmt.Errorf("%w: %s requires one argument", qs.ErrWrongType, name)
		}

		result = atoms[0]

	case "coalesce":
		c, err := types.CoerceEquality(atoms)
		if err != nil {
			return sqlast.Expr{}, nil, err
		}

		result = c

	case "now", "current_timestamp":
		if len(atoms) != 0 {
			return sqlast.Expr{}, nil, fmt.Errorf("%w: %s takes no arguments", qs.ErrWrongType, name)
		}

		result = types.AtomTimestamp

	default:
		return sqlast.Expr{}, nil, fmt.Errorf("%w: unknown function %s", qs.ErrUnimplemented, e.FuncName)
	}

	return sqlast.Expr{Kind: sqlast.ExprFunctionCall, Pos: e.Pos, FuncName: e.FuncName, Args: args, Over: over}, cell.Known(types.Atom(result)), nil
}
