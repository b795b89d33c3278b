// Package sqlast is the third-party-shaped SQL grammar QueryScript's SQL
// compiler walks (spec §1, §4.F): a query/expression AST built by
// parsing with github.com/shibukawa/parsercombinator over the
// sqltoken lexer, in the same combinator style as the teacher's
// parser/parsercommon and parser/parserstep4 packages.
package sqlast

import "github.com/queryscript/qs/internal/sqlast/sqltoken"

// Pos is re-exported for callers that only need a source location
// without importing sqltoken directly.
type Pos = sqltoken.Position

// Ident is a single SQL identifier, case as written; the parser neither
// lower-cases it nor records whether it was quoted.
type Ident struct {
	Name string
	Pos  Pos
}

// ObjectName is a dotted identifier path, e.g. `schema.table.column`.
type ObjectName []Ident

// Last returns the object name's final identifier, or the zero Ident if
// empty.
func (o ObjectName) Last() Ident {
	if len(o) == 0 {
		return Ident{}
	}

	return o[len(o)-1]
}

func (o ObjectName) String() string {
	s := ""
	for i, id := range o {
		if i > 0 {
			s += "."
		}

		s += id.Name
	}

	return s
}

// Query is a full SELECT statement (the only statement kind the SQL
// compiler rewrites; spec §4.F only ever says "SQL expression/query").
type Query struct {
	Select  *SelectStatement
	OrderBy []OrderByItem
	Limit   *Expr
	Offset  *Expr
}

// SelectStatement is the SELECT...FROM...WHERE...GROUP BY core.
type SelectStatement struct {
	Distinct   bool
	Projection []SelectItem
	From       []TableWithJoins
	Where      Expr
	GroupBy    []Expr
}

// SelectItem is one projection entry.
type SelectItem struct {
	Kind     SelectItemKind
	Expr     Expr    // for UnnamedExpr / ExprWithAlias
	Alias    string  // for ExprWithAlias
	Wildcard bool    // Kind == Wildcard
	Qualify  ObjectName // Kind == QualifiedWildcard
}

type SelectItemKind int

const (
	UnnamedExpr SelectItemKind = iota
	ExprWithAlias
	Wildcard
	QualifiedWildcard
)

// OrderByItem is one ORDER BY entry.
type OrderByItem struct {
	Expr Expr
	Desc bool
}

// TableWithJoins is one FROM-clause entry: a base table/derived
// table/subquery plus zero or more joins chained onto it.
type TableWithJoins struct {
	Relation TableFactor
	Joins    []Join
}

// TableFactorKind discriminates TableFactor.
type TableFactorKind int

const (
	TableFactorTable TableFactorKind = iota
	TableFactorDerived
)

// TableFactor is one FROM-clause relation reference.
type TableFactor struct {
	Kind  TableFactorKind
	Name  ObjectName // TableFactorTable
	Alias string
	Query *Query // TableFactorDerived
	Pos   Pos
}

type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeftOuter
	JoinRightOuter
	JoinFullOuter
)

// Join is one JOIN clause attached to a TableWithJoins.
type Join struct {
	Kind  JoinKind
	Right TableFactor
	On    Expr
}

// ExprKind discriminates Expr.
type ExprKind int

const (
	ExprIdent ExprKind = iota
	ExprCompoundIdent
	ExprValue
	ExprBinaryOp
	ExprUnaryOp
	ExprCase
	ExprIsNotNull
	ExprIsNull
	ExprTuple
	ExprArray
	ExprSubquery
	ExprFunctionCall
	ExprWildcard // bare `*`, only legal inside count(*)
)

// ValueKind discriminates Expr.Value when Kind == ExprValue.
type ValueKind int

const (
	ValueNumber ValueKind = iota
	ValueString
	ValueBoolean
	ValueNull
)

// Expr is a SQL scalar expression node.
type Expr struct {
	Kind ExprKind
	Pos  Pos

	// ExprIdent / ExprCompoundIdent
	Path ObjectName

	// ExprValue
	ValueKind ValueKind
	Literal   string

	// ExprBinaryOp / ExprUnaryOp
	Op    string
	Left  *Expr
	Right *Expr // nil for unary

	// ExprCase
	Operand    *Expr // optional
	WhenThen   []WhenThen
	ElseResult *Expr

	// ExprIsNotNull / ExprIsNull
	Operand1 *Expr

	// ExprTuple / ExprArray
	Items []Expr

	// ExprSubquery
	Subquery *Query

	// ExprFunctionCall
	FuncName ObjectName
	Args     []FuncArg
	Over     *WindowSpec
}

// WhenThen is one WHEN...THEN arm of a CASE expression.
type WhenThen struct {
	When Expr
	Then Expr
}

// FuncArg is one function-call argument, optionally named (parsed from
// `name => expr` or `name@expr`, printed as `name => expr`; spec §4.F "Function calls":
// "position then by name").
type FuncArg struct {
	Name string // empty if positional
	Expr Expr
	Star bool // true for the literal `*` argument (only legal for count)
}

// WindowSpec is an OVER(...) clause.
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *WindowFrame
}

type FrameUnit int

const (
	FrameRows FrameUnit = iota
	FrameRange
)

type FrameBoundKind int

const (
	BoundUnboundedPreceding FrameBoundKind = iota
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

// WindowFrame is a ROWS/RANGE BETWEEN ... AND ... clause.
type WindowFrame struct {
	Unit       FrameUnit
	StartKind  FrameBoundKind
	StartExpr  *Expr
	EndKind    FrameBoundKind
	EndExpr    *Expr
}
