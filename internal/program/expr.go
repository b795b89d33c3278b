// Package program implements the program compiler (spec §4.E): it walks
// a parsed statement list and eagerly compiles each statement into a
// Decl registered in a Schema, delegating SQL body compilation to an
// injected ExprCompiler so this package never needs to import the SQL
// compiler (which itself depends on program for Schema/Decl lookups).
// Grounded on original_source/qvm/src/compile/schema.rs for the shape of
// Decl/SchemaEntry/Expr/TypedExpr/FnExpr/FnCallExpr/SchemaInstance.
package program

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/lang"
	"github.com/queryscript/qs/internal/types"
)

// ExprKind discriminates Expr (spec §3 "Expr variants").
type ExprKind int

const (
	ExprUnknown ExprKind = iota
	ExprSchemaEntry
	ExprContextRef
	ExprFn
	ExprNativeFn
	ExprFnCall
	ExprSQL
)

// SQLNames is the side-table attached to an ExprSQL body (spec §3
// "Names"): params are locally-interned substitutions with fresh names;
// unbound are identifiers referenced in the SQL text but not yet
// resolved by an enclosing scope.
type SQLNames struct {
	Params  map[string]*TypedExpr
	Unbound map[string]struct{}
}

// FnExpr is a function value body (spec §3 "Fn(body)"): the schema
// introduced for its arguments, the parsed body, and (for FnBodyExpr)
// the already-compiled TypedExpr the inliner substitutes into call
// sites (spec §4.G "inline_context... walk an Expr tree").
type FnExpr struct {
	InnerSchema  *Schema
	Body         lang.FnBody
	CompiledBody *TypedExpr
}

// FnCallExpr is a deferred function application (spec §3
// "FnCall{func,args,ctx_folder}"); CtxFolder records which folder the
// call should execute in at runtime (spec §4.I).
type FnCallExpr struct {
	Func      *TypedExpr
	Args      []*TypedExpr
	CtxFolder string
}

// Expr is one node of the compiled (non-SQL-AST) expression tree. Only
// the field(s) matching Kind are meaningful.
type Expr struct {
	Kind ExprKind

	SchemaRef qs.Path // ExprSchemaEntry

	ContextName string // ExprContextRef

	FnBody *FnExpr // ExprFn

	NativeFnName string // ExprNativeFn

	FnCall *FnCallExpr // ExprFnCall

	SQLBody  any // ExprSQL: *sqlast.Query or *sqlast.Expr, set by the SQL compiler
	SQLNames *SQLNames
}

// Unify implements cell.Unifier[Expr]. Expr cells are almost always
// resolved directly (Known) rather than unified against one another;
// this only needs to reject a genuine kind mismatch, which would
// indicate two different compile paths disagreeing about what a cell
// holds.
func (e Expr) Unify(other Expr) error {
	if e.Kind != other.Kind {
		return fmt.Errorf("%w: expr kind %d vs %d", qs.ErrTypesystem, e.Kind, other.Kind)
	}

	return nil
}

// TypedExpr pairs an MType cell with an Expr cell (spec §3).
type TypedExpr struct {
	Type *cell.CRef[types.MType]
	Expr *cell.CRef[Expr]
}

// KnownTypedExpr builds a TypedExpr whose type and expr are both
// already resolved, for call sites that have the full value in hand
// synchronously (externs, literals lowered elsewhere).
func KnownTypedExpr(t types.MType, e Expr) *TypedExpr {
	return &TypedExpr{Type: cell.Known(t), Expr: cell.Known(e)}
}

// STypedExpr is a TypedExpr whose type has been generalized into a
// scheme (spec §3 "Decl... value ∈ {... | Expr(stypedexpr)}").
type STypedExpr struct {
	Type types.SType
	Expr *cell.CRef[Expr]
}
