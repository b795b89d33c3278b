// Package inline implements spec §4.G: folding a user-defined function's
// body directly into the SQL text at its call site, as an alternative to
// lifting the call out as a host-evaluated FnCall. Whether this runs at
// all is gated by the compilation scheduler's allow_inlining bit (spec
// §4.H); the SQL compiler (internal/sqlcompiler) decides when to invoke
// it and owns the lift/inline/SQL-call decision tree itself (spec §4.F).
// Grounded on spec §4.G's prose directly: the original Rust source's
// inline_context/inline_params definitions did not survive into
// original_source (only their call sites did, in qvm/src/compile/sql.rs).
package inline

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/sqlast"
)

// Context replaces every ContextRef(name) reachable from body with the
// corresponding entry of subst (spec §4.G: "walk an Expr tree, replacing
// every ContextRef(name) with its expression"). Function-argument
// references never appear as bare identifiers in the rewritten SQL text
// itself: the SQL compiler already interns them as placeholders backed
// by a SQLNames.Params entry whose Expr is ContextRef, so this only
// needs to rewrite that table, not walk the SQL AST (spec §4.G: "Walks
// into... SQL.names.params").
func Context(body *program.TypedExpr, subst map[string]*program.TypedExpr) (*program.TypedExpr, error) {
	bodyExpr, err := body.Expr.Must()
	if err != nil {
		return nil, err
	}

	if bodyExpr.Kind != program.ExprSQL || bodyExpr.SQLNames == nil {
		return body, nil
	}

	names := bodyExpr.SQLNames

	newParams := make(map[string]*program.TypedExpr, len(names.Params))
	newUnbound := make(map[string]struct{}, len(names.Unbound))

	for name, pte := range names.Params {
		pe, err := pte.Expr.Must()
		if err != nil {
			return nil, err
		}

		if pe.Kind == program.ExprContextRef {
			if repl, ok := subst[pe.ContextName]; ok {
				newParams[name] = repl
				continue
			}
		}

		newParams[name] = pte

		if _, unbound := names.Unbound[name]; unbound {
			newUnbound[name] = struct{}{}
		}
	}

	return &program.TypedExpr{
		Type: body.Type,
		Expr: cell.Known(program.Expr{
			Kind:     bodyExpr.Kind,
			SQLBody:  bodyExpr.SQLBody,
			SQLNames: &program.SQLNames{Params: newParams, Unbound: newUnbound},
		}),
	}, nil
}

// Params repeatedly folds any SQLNames.Params entry that is itself a
// scalar SQL expression into body's own SQL text in place of the
// identifier that named it, merging the folded entry's own params/
// unbound names up into body's (spec §4.G: "rewrite its body by
// substituting each params[name] whose value is itself a SQL into the
// body at that identifier's position, and merging names; non-SQL params
// are left as placeholders. Runs to fixpoint"). body's own AST is never
// mutated — Params clones it before the first substitution, since the
// same compiled fn body is shared across every call site.
func Params(body *program.TypedExpr) (*program.TypedExpr, error) {
	bodyExpr, err := body.Expr.Must()
	if err != nil {
		return nil, err
	}

	if bodyExpr.Kind != program.ExprSQL || bodyExpr.SQLNames == nil {
		return body, nil
	}

	root, ok := bodyExpr.SQLBody.(*sqlast.Expr)
	if !ok {
		return nil, fmt.Errorf("%w: inline_params only supports scalar SQL fn bodies", qs.ErrUnimplemented)
	}

	root = cloneExpr(root)

	params := make(map[string]*program.TypedExpr, len(bodyExpr.SQLNames.Params))
	for k, v := range bodyExpr.SQLNames.Params {
		params[k] = v
	}

	unbound := make(map[string]struct{}, len(bodyExpr.SQLNames.Unbound))
	for k := range bodyExpr.SQLNames.Unbound {
		unbound[k] = struct{}{}
	}

	for {
		progressed := false

		for name, pte := range params {
			pe, err := pte.Expr.Must()
			if err != nil {
				return nil, err
			}

			if pe.Kind != program.ExprSQL {
				continue
			}

			inner, ok := pe.SQLBody.(*sqlast.Expr)
			if !ok {
				continue
			}

			if !substituteIdent(root, name, *inner) {
				continue
			}

			delete(params, name)
			delete(unbound, name)

			if pe.SQLNames != nil {
				for n, v := range pe.SQLNames.Params {
					params[n] = v
				}

				for n := range pe.SQLNames.Unbound {
					unbound[n] = struct{}{}
				}
			}

			progressed = true
		}

		if !progressed {
			break
		}
	}

	return &program.TypedExpr{
		Type: body.Type,
		Expr: cell.Known(program.Expr{
			Kind:     program.ExprSQL,
			SQLBody:  root,
			SQLNames: &program.SQLNames{Params: params, Unbound: unbound},
		}),
	}, nil
}
