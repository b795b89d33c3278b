package sqlast

import (
	"strings"
)

// Print renders a compiled Query back into SQL text. This bridges the
// gap the original implementation never had to cross: the Rust original
// fed its AST straight into DataFusion's query planner (see
// original_source/qvm/src/runtime/sql.rs), never back through a text
// form. SPEC_FULL's `SQLEngine` contract takes a plain query string (so
// any `database/sql` driver can serve it), so the runtime needs this
// printer to turn a rewritten AST - placeholders and all, written as
// `@name` idents - back into literal SQL before handing it to an engine.
func Print(q *Query) string {
	var b strings.Builder
	printQuery(&b, q)

	return b.String()
}

// PrintExpr renders a single scalar expression, for SQL bodies whose
// compiled form is *Expr rather than *Query (spec §3 "SQL{body,names}":
// an expression-bodied SQL value has no FROM clause of its own).
func PrintExpr(e *Expr) string {
	var b strings.Builder
	printExpr(&b, e)

	return b.String()
}

// IsAbsentWhere reports whether a SelectStatement's Where is the
// parser's zero value for "no WHERE clause" (the parser only ever
// produces a zero-length Path on an ExprIdent by leaving Where
// untouched; a real parsed identifier always carries at least one Ident).
func IsAbsentWhere(e Expr) bool {
	return e.Kind == ExprIdent && len(e.Path) == 0
}

func printQuery(b *strings.Builder, q *Query) {
	printSelect(b, q.Select)

	if len(q.OrderBy) > 0 {
		b.WriteString(" order by ")

		for i, ob := range q.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, &ob.Expr)

			if ob.Desc {
				b.WriteString(" desc")
			}
		}
	}

	if q.Limit != nil {
		b.WriteString(" limit ")
		printExpr(b, q.Limit)
	}

	if q.Offset != nil {
		b.WriteString(" offset ")
		printExpr(b, q.Offset)
	}
}

func printSelect(b *strings.Builder, s *SelectStatement) {
	b.WriteString("select ")

	if s.Distinct {
		b.WriteString("distinct ")
	}

	for i, item := range s.Projection {
		if i > 0 {
			b.WriteString(", ")
		}

		printSelectItem(b, &item)
	}

	if len(s.From) > 0 {
		b.WriteString(" from ")

		for i, t := range s.From {
			if i > 0 {
				b.WriteString(", ")
			}

			printTableWithJoins(b, &t)
		}
	}

	if !IsAbsentWhere(s.Where) {
		b.WriteString(" where ")
		printExpr(b, &s.Where)
	}

	if len(s.GroupBy) > 0 {
		b.WriteString(" group by ")

		for i, e := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, &e)
		}
	}
}

func printSelectItem(b *strings.Builder, item *SelectItem) {
	switch item.Kind {
	case Wildcard:
		b.WriteString("*")

	case QualifiedWildcard:
		printObjectName(b, item.Qualify)
		b.WriteString(".*")

	case ExprWithAlias:
		printExpr(b, &item.Expr)
		b.WriteString(" as ")
		printIdentName(b, item.Alias)

	default: // UnnamedExpr
		printExpr(b, &item.Expr)
	}
}

func printTableWithJoins(b *strings.Builder, t *TableWithJoins) {
	printTableFactor(b, &t.Relation)

	for _, j := range t.Joins {
		switch j.Kind {
		case JoinLeftOuter:
			b.WriteString(" left join ")
		case JoinRightOuter:
			b.WriteString(" right join ")
		case JoinFullOuter:
			b.WriteString(" full join ")
		default:
			b.WriteString(" join ")
		}

		printTableFactor(b, &j.Right)
		b.WriteString(" on ")
		printExpr(b, &j.On)
	}
}

func printTableFactor(b *strings.Builder, t *TableFactor) {
	switch t.Kind {
	case TableFactorDerived:
		b.WriteString("(")
		printQuery(b, t.Query)
		b.WriteString(")")

	default: // TableFactorTable
		printObjectName(b, t.Name)
	}

	if t.Alias != "" {
		b.WriteString(" as ")
		printIdentName(b, t.Alias)
	}
}

func printExpr(b *strings.Builder, e *Expr) {
	if e == nil {
		return
	}

	switch e.Kind {
	case ExprIdent, ExprCompoundIdent:
		printObjectName(b, e.Path)

	case ExprValue:
		printValue(b, e)

	case ExprBinaryOp:
		b.WriteString("(")
		printExpr(b, e.Left)
		b.WriteString(" ")
		b.WriteString(e.Op)
		b.WriteString(" ")
		printExpr(b, e.Right)
		b.WriteString(")")

	case ExprUnaryOp:
		b.WriteString("(")
		b.WriteString(e.Op)
		b.WriteString(" ")
		printExpr(b, e.Left)
		b.WriteString(")")

	case ExprCase:
		b.WriteString("case")

		if e.Operand != nil {
			b.WriteString(" ")
			printExpr(b, e.Operand)
		}

		for _, wt := range e.WhenThen {
			b.WriteString(" when ")
			printExpr(b, &wt.When)
			b.WriteString(" then ")
			printExpr(b, &wt.Then)
		}

		if e.ElseResult != nil {
			b.WriteString(" else ")
			printExpr(b, e.ElseResult)
		}

		b.WriteString(" end")

	case ExprIsNull:
		printExpr(b, e.Operand1)
		b.WriteString(" is null")

	case ExprIsNotNull:
		printExpr(b, e.Operand1)
		b.WriteString(" is not null")

	case ExprTuple:
		b.WriteString("(")

		for i, item := range e.Items {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, &item)
		}

		b.WriteString(")")

	case ExprArray:
		b.WriteString("array[")

		for i, item := range e.Items {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, &item)
		}

		b.WriteString("]")

	case ExprSubquery:
		b.WriteString("(")
		printQuery(b, e.Subquery)
		b.WriteString(")")

	case ExprFunctionCall:
		printObjectName(b, e.FuncName)
		b.WriteString("(")

		for i, a := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}

			printFuncArg(b, &a)
		}

		b.WriteString(")")

		if e.Over != nil {
			b.WriteString(" over (")
			printWindowSpec(b, e.Over)
			b.WriteString(")")
		}

	case ExprWildcard:
		b.WriteString("*")
	}
}

func printFuncArg(b *strings.Builder, a *FuncArg) {
	if a.Star {
		b.WriteString("*")
		return
	}

	if a.Name != "" {
		printIdentName(b, a.Name)
		b.WriteString(" => ")
	}

	printExpr(b, &a.Expr)
}

func printWindowSpec(b *strings.Builder, w *WindowSpec) {
	wrote := false

	if len(w.PartitionBy) > 0 {
		b.WriteString("partition by ")

		for i, e := range w.PartitionBy {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, &e)
		}

		wrote = true
	}

	if len(w.OrderBy) > 0 {
		if wrote {
			b.WriteString(" ")
		}

		b.WriteString("order by ")

		for i, ob := range w.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, &ob.Expr)

			if ob.Desc {
				b.WriteString(" desc")
			}
		}

		wrote = true
	}

	if w.Frame != nil {
		if wrote {
			b.WriteString(" ")
		}

		printWindowFrame(b, w.Frame)
	}
}

func printWindowFrame(b *strings.Builder, f *WindowFrame) {
	if f.Unit == FrameRange {
		b.WriteString("range between ")
	} else {
		b.WriteString("rows between ")
	}

	printFrameBound(b, f.StartKind, f.StartExpr)
	b.WriteString(" and ")
	printFrameBound(b, f.EndKind, f.EndExpr)
}

func printFrameBound(b *strings.Builder, kind FrameBoundKind, e *Expr) {
	switch kind {
	case BoundUnboundedPreceding:
		b.WriteString("unbounded preceding")
	case BoundPreceding:
		printExpr(b, e)
		b.WriteString(" preceding")
	case BoundCurrentRow:
		b.WriteString("current row")
	case BoundFollowing:
		printExpr(b, e)
		b.WriteString(" following")
	case BoundUnboundedFollowing:
		b.WriteString("unbounded following")
	}
}

func printValue(b *strings.Builder, e *Expr) {
	switch e.ValueKind {
	case ValueString:
		b.WriteString("'")
		b.WriteString(strings.ReplaceAll(e.Literal, "'", "''"))
		b.WriteString("'")

	case ValueNull:
		b.WriteString("null")

	case ValueBoolean:
		b.WriteString(e.Literal)

	default: // ValueNumber
		b.WriteString(e.Literal)
	}
}

func printObjectName(b *strings.Builder, o ObjectName) {
	for i, id := range o {
		if i > 0 {
			b.WriteString(".")
		}

		printIdentName(b, id.Name)
	}
}

// printIdentName writes name verbatim for a placeholder (`@...`) or a
// plain unquoted-safe identifier, and double-quotes anything else (spec
// §6 "Identifiers are lowercased unless double-quoted").
func printIdentName(b *strings.Builder, name string) {
	if name == "" {
		return
	}

	if strings.HasPrefix(name, "@") || isSafeIdent(name) {
		b.WriteString(name)
		return
	}

	b.WriteString(`"`)
	b.WriteString(strings.ReplaceAll(name, `"`, `""`))
	b.WriteString(`"`)
}

func isSafeIdent(name string) bool {
	for i, r := range name {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'

		if i == 0 && !isAlpha {
			return false
		}

		if !isAlpha && !isDigit {
			return false
		}
	}

	return true
}
