// Package sqlcompiler lowers parsed SQL (internal/sqlast) into typed,
// rewritten SQL bodies (spec §4.F). It is the program compiler's
// ExprCompiler: program.Compiler holds a reference to it through that
// interface rather than importing this package directly, since
// sqlcompiler itself needs program.Decl/Schema/LookupPath to resolve
// identifiers against the surrounding program scope.
package sqlcompiler

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/lang"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/scope"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// Compiler implements program.ExprCompiler. It carries no state of its
// own; every call builds a fresh queryCompiler rooted at the schema and
// scope appropriate to that call.
type Compiler struct{}

// New creates a sqlcompiler.Compiler.
func New() *Compiler {
	return &Compiler{}
}

// CompileExpr implements program.ExprCompiler (spec §4.E delegating to
// §4.F for the SQL body itself).
func (c *Compiler) CompileExpr(pc *program.Compiler, schema *program.Schema, e *lang.Expr, multipleRows bool) (*program.TypedExpr, error) {
	qc := &queryCompiler{
		program: pc,
		schema:  schema,
		scope:   scope.New(pc.Counters, multipleRows),
		names:   newNameTable(),
	}

	switch e.Kind {
	case lang.ExprSQLQuery:
		return qc.compileQuery(e.Query)
	case lang.ExprSQLExpr:
		return qc.compileScalarExpr(e.SQLExpr)
	default:
		return nil, fmt.Errorf("%w: expr kind %d", qs.ErrUnimplemented, e.Kind)
	}
}

// queryCompiler threads the state shared across one recursive descent
// into a SQL body: the program compiler (for identifier lookups), the
// schema the body was written in, the current relational scope, and the
// accumulated interned parameters/unbound names for the whole body
// (spec §3 "Names").
type queryCompiler struct {
	program *program.Compiler
	schema  *program.Schema
	scope   *scope.Scope
	names   *nameTable
}

// child builds a queryCompiler for a nested scope level (a derived
// table or a subquery expression), sharing the same names table so
// interned placeholders and fn-arg references stay globally unique and
// visible to the root body (spec §4.D nested scopes, §3 "Names").
func (qc *queryCompiler) child(multipleRows bool) *queryCompiler {
	return &queryCompiler{
		program: qc.program,
		schema:  qc.schema,
		scope:   scope.NewChild(qc.scope, multipleRows),
		names:   qc.names,
	}
}

// nameTable accumulates, for one top-level SQL body, every non-SQL-native
// value interned as a placeholder (spec §3 "Names... params") and every
// interned name that refers to a function-argument decl rather than a
// permanently bound value — the inliner needs that subset to know which
// placeholders substitution should replace (spec §4.G "inline_context").
type nameTable struct {
	params  map[string]*program.TypedExpr
	unbound map[string]struct{}
}

func newNameTable() *nameTable {
	return &nameTable{
		params:  map[string]*program.TypedExpr{},
		unbound: map[string]struct{}{},
	}
}

func (n *nameTable) intern(name string, te *program.TypedExpr, fnArg bool) {
	n.params[name] = te

	if fnArg {
		n.unbound[name] = struct{}{}
	}
}

func (n *nameTable) sqlNames() *program.SQLNames {
	return &program.SQLNames{Params: n.params, Unbound: n.unbound}
}

// rowTypeOf extracts the per-row element type of a value used as a FROM
// relation: a List's element directly, or a generic's declared row type
// (spec §4.C "get_rowtype", e.g. load()'s External(T)).
func rowTypeOf(mt types.MType) (*cell.CRef[types.MType], error) {
	switch mt.Kind {
	case types.KindList:
		return mt.Elem, nil
	case types.KindGeneric:
		rt, err := mt.Generic.RowType()
		if err != nil {
			return nil, err
		}

		if rt == nil {
			return nil, fmt.Errorf("%w: %s cannot be used as a relation", qs.ErrWrongType, mt.Generic.Name())
		}

		return rt, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a relation", qs.ErrWrongType, mt)
	}
}

// qsPath converts a SQL AST object name into the qs.Path key program
// lookups use.
func qsPath(o sqlast.ObjectName) qs.Path {
	p := make(qs.Path, len(o))
	for i, id := range o {
		p[i] = qs.Ident{Name: id.Name, Pos: qs.Position{Line: id.Pos.Line, Column: id.Pos.Column, Offset: id.Pos.Offset}}
	}

	return p
}

// lookupProgramValue resolves path to a program-scope value decl,
// instantiating its scheme fresh (let-polymorphism: each reference gets
// its own type variables, spec §5) without interning it as a
// placeholder — callers decide the placeholder prefix and whether
// interning is needed at all.
func (qc *queryCompiler) lookupProgramValue(path sqlast.ObjectName) (*program.TypedExpr, bool, error) {
	res, err := program.LookupPath(qc.program, qc.schema, qsPath(path), true, true)
	if err != nil {
		return nil, false, err
	}

	if res.Decl == nil || len(res.Remainder) > 0 || res.Decl.Value.Kind != program.SchemaEntryExpr {
		return nil, false, fmt.Errorf("%w: %s is not a value", qs.ErrWrongKind, path)
	}

	bodyType, err := types.Instantiate(res.Decl.Value.Expr.Type)
	if err != nil {
		return nil, false, err
	}

	te := &program.TypedExpr{Type: bodyType, Expr: res.Decl.Value.Expr.Expr}

	return te, res.Decl.FnArg, nil
}

// compileProgramReference resolves path against the program scope
// (compile_sqlreference's case 3, and a length-2 path's scope-fallback),
// interning the resolved value as a fresh placeholder and returning the
// SQL identifier text that should replace it in the rewritten tree.
func (qc *queryCompiler) compileProgramReference(path sqlast.ObjectName) (*program.TypedExpr, string, error) {
	te, fnArg, err := qc.lookupProgramValue(path)
	if err != nil {
		return nil, "", err
	}

	name := qc.scope.NextPlaceholder("p")
	qc.names.intern(name, te, fnArg)

	return te, name, nil
}

// sqlBodyAsQuery extracts the rewritten *sqlast.Query out of an ExprSQL
// body cell, for splicing a compiled derived-table subquery back into
// the enclosing TableFactor.
func sqlBodyAsQuery(e *cell.CRef[program.Expr]) (*sqlast.Query, error) {
	v, err := e.Must()
	if err != nil {
		return nil, err
	}

	q, ok := v.SQLBody.(*sqlast.Query)
	if !ok {
		return nil, fmt.Errorf("%w: derived table body is not a query", qs.ErrTypesystem)
	}

	return q, nil
}

// toScopePos adapts a sqlast.Pos into qs.Position.
func toScopePos(p sqlast.Pos) qs.Position {
	return qs.Position{Line: p.Line, Column: p.Column, Offset: p.Offset}
}
