package sqlcompiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// compileScalarExpr lowers a standalone SQL scalar expression body (a
// FnBodyExpr or a `let` whose body is a bare expression rather than a
// query) into a program.TypedExpr, per spec §4.F.
func (qc *queryCompiler) compileScalarExpr(e *sqlast.Expr) (*program.TypedExpr, error) {
	rewritten, t, err := qc.compileExpr(e)
	if err != nil {
		return nil, err
	}

	return &program.TypedExpr{
		Type: t,
		Expr: cell.Known(program.Expr{Kind: program.ExprSQL, SQLBody: &rewritten, SQLNames: qc.names.sqlNames()}),
	}, nil
}

// compileExpr lowers one SQL scalar expression node, returning the
// rewritten node (identifiers resolved/qualified, placeholders
// substituted in) and its monotype.
func (qc *queryCompiler) compileExpr(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	switch e.Kind {
	case sqlast.ExprIdent, sqlast.ExprCompoundIdent:
		t, rewritten, err := qc.compileReference(e.Path)
		return rewritten, t, err

	case sqlast.ExprValue:
		return qc.compileValue(e)

	case sqlast.ExprBinaryOp:
		return qc.compileBinaryOp(e)

	case sqlast.ExprUnaryOp:
		return qc.compileUnaryOp(e)

	case sqlast.ExprCase:
		return qc.compileCase(e)

	case sqlast.ExprIsNull, sqlast.ExprIsNotNull:
		return qc.compileIsNull(e)

	case sqlast.ExprTuple:
		return qc.compileTuple(e)

	case sqlast.ExprArray:
		return qc.compileArray(e)

	case sqlast.ExprSubquery:
		return qc.compileSubquery(e)

	case sqlast.ExprFunctionCall:
		return qc.compileFunctionCall(e)

	case sqlast.ExprWildcard:
		return sqlast.Expr{}, nil, fmt.Errorf("%w: * is only legal as count(*)'s sole argument", qs.ErrUnimplemented)

	default:
		return sqlast.Expr{}, nil, fmt.Errorf("%w: sql expr kind %d", qs.ErrUnimplemented, e.Kind)
	}
}

// compileValue lowers a literal (spec §4.F "Values"): numbers are tagged
// with their parsed numeric type at the smallest exact representation
// that holds them; strings, booleans and NULL carry their obvious atomic
// type. The literal is returned unchanged: no cast is placed around it.
func (qc *queryCompiler) compileValue(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	switch e.ValueKind {
	case sqlast.ValueNumber:
		atom, err := numericLiteralType(e.Literal)
		if err != nil {
			return sqlast.Expr{}, nil, err
		}

		return *e, cell.Known(types.Atom(atom)), nil

	case sqlast.ValueString:
		return *e, cell.Known(types.Atom(types.AtomString)), nil

	case sqlast.ValueBoolean:
		return *e, cell.Known(types.Atom(types.AtomBool)), nil

	case sqlast.ValueNull:
		return *e, cell.Known(types.Atom(types.AtomNull)), nil

	default:
		return sqlast.Expr{}, nil, fmt.Errorf("%w: value kind %d", qs.ErrUnimplemented, e.ValueKind)
	}
}

// numericLiteralType picks the smallest exact atomic type that can hold
// a numeric literal's text: an integer fits int32 if it's in range,
// otherwise int64; anything with a fractional part or exponent is taken
// as decimal (an exact type), never float, since the source text is an
// exact decimal representation and float would silently lose precision.
func numericLiteralType(lit string) (types.AtomicType, error) {
	if strings.ContainsAny(lit, ".eE") {
		return types.AtomDecimal, nil
	}

	if _, err := strconv.ParseInt(lit, 10, 32); err == nil {
		return types.AtomInt32, nil
	}

	if _, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return types.AtomInt64, nil
	}

	return types.AtomDecimal, nil
}

// compileBinaryOp lowers a binary operator expression, consulting the
// coercion table for the result type and any casts the operands need
// (spec §4.B, §4.F "Binary ops").
func (qc *queryCompiler) compileBinaryOp(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	left, leftType, err := qc.compileExpr(e.Left)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	right, rightType, err := qc.compileExpr(e.Right)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	leftAtom, err := requireAtom(leftType)
	if err != nil {
		return sqlast.Expr{}, nil, fmt.Errorf("left operand of %s: %w", e.Op, err)
	}

	rightAtom, err := requireAtom(rightType)
	if err != nil {
		return sqlast.Expr{}, nil, fmt.Errorf("right operand of %s: %w", e.Op, err)
	}

	result, err := types.Coerce(types.Op(e.Op), leftAtom, rightAtom)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	left = applyCast(left, result.LeftCast)
	right = applyCast(right, result.RightCast)

	return sqlast.Expr{
		Kind:  sqlast.ExprBinaryOp,
		Pos:   e.Pos,
		Op:    e.Op,
		Left:  &left,
		Right: &right,
	}, cell.Known(types.Atom(result.ResultType)), nil
}

func (qc *queryCompiler) compileUnaryOp(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	operand, operandType, err := qc.compileExpr(e.Left)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	atom, err := requireAtom(operandType)
	if err != nil {
		return sqlast.Expr{}, nil, fmt.Errorf("operand of unary %s: %w", e.Op, err)
	}

	if e.Op == "NOT" {
		if atom != types.AtomBool && atom != types.AtomNull {
			return sqlast.Expr{}, nil, fmt.Errorf("%w: NOT requires bool, got %s", qs.ErrWrongType, atom)
		}

		return sqlast.Expr{Kind: sqlast.ExprUnaryOp, Pos: e.Pos, Op: e.Op, Left: &operand}, cell.Known(types.Atom(types.AtomBool)), nil
	}

	if !isNumericAtom(atom) {
		return sqlast.Expr{}, nil, fmt.Errorf("%w: unary %s requires a numeric operand, got %s", qs.ErrWrongType, e.Op, atom)
	}

	return sqlast.Expr{Kind: sqlast.ExprUnaryOp, Pos: e.Pos, Op: e.Op, Left: &operand}, cell.Known(types.Atom(atom)), nil
}

// compileCase lowers a CASE expression (spec §4.F "CASE"): the optional
// operand and each WHEN guard must be boolean (or, with an operand,
// comparable to it); THEN/ELSE arms unify to their common type via
// CoerceEquality.
func (qc *queryCompiler) compileCase(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	out := sqlast.Expr{Kind: sqlast.ExprCase, Pos: e.Pos}

	var operandAtom *types.AtomicType

	if e.Operand != nil {
		operand, operandType, err := qc.compileExpr(e.Operand)
		if err != nil {
			return sqlast.Expr{}, nil, err
		}

		atom, err := requireAtom(operandType)
		if err != nil {
			return sqlast.Expr{}, nil, fmt.Errorf("CASE operand: %w", err)
		}

		out.Operand = &operand
		operandAtom = &atom
	}

	branches := make([]types.AtomicType, 0, len(e.WhenThen)+1)
	out.WhenThen = make([]sqlast.WhenThen, len(e.WhenThen))

	for i, wt := range e.WhenThen {
		when, whenType, err := qc.compileExpr(&wt.When)
		if err != nil {
			return sqlast.Expr{}, nil, err
		}

		whenAtom, err := requireAtom(whenType)
		if err != nil {
			return sqlast.Expr{}, nil, fmt.Errorf("WHEN guard: %w", err)
		}

		if operandAtom != nil {
			if _, err := types.Coerce(types.OpEq, *operandAtom, whenAtom); err != nil {
				return sqlast.Expr{}, nil, fmt.Errorf("WHEN guard: %w", err)
			}
		} else if whenAtom != types.AtomBool && whenAtom != types.AtomNull {
			return sqlast.Expr{}, nil, fmt.Errorf("%w: WHEN guard must be bool, got %s", qs.ErrWrongType, whenAtom)
		}

		then, thenType, err := qc.compileExpr(&wt.Then)
		if err != nil {
			return sqlast.Expr{}, nil, err
		}

		thenAtom, err := requireAtom(thenType)
		if err != nil {
			return sqlast.Expr{}, nil, fmt.Errorf("THEN arm: %w", err)
		}

		branches = append(branches, thenAtom)
		out.WhenThen[i] = sqlast.WhenThen{When: when, Then: then}
	}

	if e.ElseResult != nil {
		elseExpr, elseType, err := qc.compileExpr(e.ElseResult)
		if err != nil {
			return sqlast.Expr{}, nil, err
		}

		elseAtom, err := requireAtom(elseType)
		if err != nil {
			return sqlast.Expr{}, nil, fmt.Errorf("ELSE arm: %w", err)
		}

		branches = append(branches, elseAtom)
		out.ElseResult = &elseExpr
	}

	common, err := types.CoerceEquality(branches)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	return out, cell.Known(types.Atom(common)), nil
}

func (qc *queryCompiler) compileIsNull(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	operand, _, err := qc.compileExpr(e.Operand1)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	return sqlast.Expr{Kind: e.Kind, Pos: e.Pos, Operand1: &operand}, cell.Known(types.Atom(types.AtomBool)), nil
}

// compileTuple lowers a tuple literal to a Record with synthesized
// positional field names (spec §4.F "Tuple": "f1...fN").
func (qc *queryCompiler) compileTuple(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	items := make([]sqlast.Expr, len(e.Items))
	fields := make([]types.Field, len(e.Items))

	for i := range e.Items {
		item, itemType, err := qc.compileExpr(&e.Items[i])
		if err != nil {
			return sqlast.Expr{}, nil, err
		}

		items[i] = item
		fields[i] = types.Field{Name: fmt.Sprintf("f%d", i+1), Type: itemType}
	}

	return sqlast.Expr{Kind: sqlast.ExprTuple, Pos: e.Pos, Items: items}, cell.Known(types.Record(fields)), nil
}

// compileArray lowers an array literal to List(common element type); an
// empty array's element type is the null atom, which unifies only with
// null.
func (qc *queryCompiler) compileArray(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	if len(e.Items) == 0 {
		return sqlast.Expr{Kind: sqlast.ExprArray, Pos: e.Pos}, cell.Known(types.List(cell.Known(types.Atom(types.AtomNull)))), nil
	}

	items := make([]sqlast.Expr, len(e.Items))
	atoms := make([]types.AtomicType, len(e.Items))

	for i := range e.Items {
		item, itemType, err := qc.compileExpr(&e.Items[i])
		if err != nil {
			return sqlast.Expr{}, nil, err
		}

		atom, err := requireAtom(itemType)
		if err != nil {
			return sqlast.Expr{}, nil, fmt.Errorf("array element %d: %w", i, err)
		}

		items[i] = item
		atoms[i] = atom
	}

	common, err := types.CoerceEquality(atoms)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	for i := range items {
		if atoms[i] != common {
			items[i] = applyCast(items[i], &types.Cast{To: common})
		}
	}

	return sqlast.Expr{Kind: sqlast.ExprArray, Pos: e.Pos, Items: items}, cell.Known(types.List(cell.Known(types.Atom(common)))), nil
}

// compileSubquery lowers a scalar subquery (spec §4.F "Subquery"): its
// result must be List(Record{single field}), else ErrScalarSubselect;
// the compiled expression's type is that one field's type.
func (qc *queryCompiler) compileSubquery(e *sqlast.Expr) (sqlast.Expr, *cell.CRef[types.MType], error) {
	child := qc.child(false)

	te, err := child.compileQuery(e.Subquery)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	listType, err := te.Type.Must()
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	rowType, err := listType.Elem.Must()
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	if rowType.Kind != types.KindRecord || len(rowType.Fields) != 1 {
		return sqlast.Expr{}, nil, fmt.Errorf("%w: scalar subquery must return exactly one column", qs.ErrScalarSubselect)
	}

	q, err := sqlBodyAsQuery(te.Expr)
	if err != nil {
		return sqlast.Expr{}, nil, err
	}

	return sqlast.Expr{Kind: sqlast.ExprSubquery, Pos: e.Pos, Subquery: q}, rowType.Fields[0].Type, nil
}

func requireAtom(t *cell.CRef[types.MType]) (types.AtomicType, error) {
	mt, err := t.Must()
	if err != nil {
		return 0, err
	}

	if mt.Kind != types.KindAtom {
		return 0, fmt.Errorf("%w: expected a scalar, got %s", qs.ErrWrongType, mt)
	}

	return mt.Atom, nil
}

func isNumericAtom(a types.AtomicType) bool {
	switch a {
	case types.AtomInt8, types.AtomInt16, types.AtomInt32, types.AtomInt64,
		types.AtomFloat32, types.AtomFloat64, types.AtomDecimal:
		return true
	default:
		return false
	}
}

// applyCast wraps e in a `cast(e, totype)` function call (spec §4.B
// "[optional cast]"). The grammar has no dedicated CAST(x AS t) node, so
// this is the internal representation an engine adapter's SQL renderer
// recognizes and turns into the target dialect's cast syntax.
func applyCast(e sqlast.Expr, c *types.Cast) sqlast.Expr {
	if c == nil {
		return e
	}

	return sqlast.Expr{
		Kind:     sqlast.ExprFunctionCall,
		Pos:      e.Pos,
		FuncName: sqlast.ObjectName{{Name: "cast"}},
		Args:     []sqlast.FuncArg{{Expr: e}, {Expr: sqlast.Expr{Kind: sqlast.ExprIdent, Path: sqlast.ObjectName{{Name: c.To.String()}}}}},
	}
}
