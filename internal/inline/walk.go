package inline

import "github.com/queryscript/qs/internal/sqlast"

// substituteIdent replaces every single-segment identifier named
// "@"+name under root with repl, mutating root in place. It reports
// whether any replacement was made. Covers the scalar-expression node
// kinds a fn body can realistically be built from; a bare subquery is
// left untouched (its own references were already resolved to SQL text
// at compile time, not deferred) rather than risked on a half-built
// walker.
func substituteIdent(root *sqlast.Expr, name string, repl sqlast.Expr) bool {
	if root == nil {
		return false
	}

	if isPlaceholderIdent(root, name) {
		*root = repl

		return true
	}

	found := false

	switch root.Kind {
	case sqlast.ExprBinaryOp:
		found = substituteIdent(root.Left, name, repl) || found
		found = substituteIdent(root.Right, name, repl) || found

	case sqlast.ExprUnaryOp:
		found = substituteIdent(root.Left, name, repl) || found

	case sqlast.ExprCase:
		found = substituteIdent(root.Operand, name, repl) || found

		for i := range root.WhenThen {
			found = substituteIdent(&root.WhenThen[i].When, name, repl) || found
			found = substituteIdent(&root.WhenThen[i].Then, name, repl) || found
		}

		found = substituteIdent(root.ElseResult, name, repl) || found

	case sqlast.ExprIsNotNull, sqlast.ExprIsNull:
		found = substituteIdent(root.Operand1, name, repl) || found

	case sqlast.ExprTuple, sqlast.ExprArray:
		for i := range root.Items {
			found = substituteIdent(&root.Items[i], name, repl) || found
		}

	case sqlast.ExprFunctionCall:
		for i := range root.Args {
			found = substituteIdent(&root.Args[i].Expr, name, repl) || found
		}

		if root.Over != nil {
			for i := range root.Over.PartitionBy {
				found = substituteIdent(&root.Over.PartitionBy[i], name, repl) || found
			}

			for i := range root.Over.OrderBy {
				found = substituteIdent(&root.Over.OrderBy[i].Expr, name, repl) || found
			}

			if f := root.Over.Frame; f != nil {
				found = substituteIdent(f.StartExpr, name, repl) || found
				found = substituteIdent(f.EndExpr, name, repl) || found
			}
		}
	}

	return found
}

func isPlaceholderIdent(e *sqlast.Expr, name string) bool {
	if e.Kind != sqlast.ExprIdent && e.Kind != sqlast.ExprCompoundIdent {
		return false
	}

	return len(e.Path) == 1 && e.Path[0].Name == "@"+name
}

// cloneExpr deep-copies e so in-place substitution never mutates a fn
// body shared across multiple call sites.
func cloneExpr(e *sqlast.Expr) *sqlast.Expr {
	if e == nil {
		return nil
	}

	out := *e

	out.Left = cloneExpr(e.Left)
	out.Right = cloneExpr(e.Right)
	out.Operand = cloneExpr(e.Operand)
	out.ElseResult = cloneExpr(e.ElseResult)
	out.Operand1 = cloneExpr(e.Operand1)

	if e.WhenThen != nil {
		out.WhenThen = make([]sqlast.WhenThen, len(e.WhenThen))

		for i, wt := range e.WhenThen {
			out.WhenThen[i] = sqlast.WhenThen{When: *cloneExpr(&wt.When), Then: *cloneExpr(&wt.Then)}
		}
	}

	if e.Items != nil {
		out.Items = make([]sqlast.Expr, len(e.Items))

		for i := range e.Items {
			out.Items[i] = *cloneExpr(&e.Items[i])
		}
	}

	if e.Args != nil {
		out.Args = make([]sqlast.FuncArg, len(e.Args))

		for i, a := range e.Args {
			out.Args[i] = sqlast.FuncArg{Name: a.Name, Star: a.Star, Expr: *cloneExpr(&a.Expr)}
		}
	}

	out.Over = cloneWindowSpec(e.Over)

	// Subquery and ExprValue/ExprIdent carry no further mutable pointer
	// structure that substitution needs to see through (see
	// substituteIdent's doc comment on subqueries).
	return &out
}

func cloneWindowSpec(ws *sqlast.WindowSpec) *sqlast.WindowSpec {
	if ws == nil {
		return nil
	}

	out := &sqlast.WindowSpec{}

	if ws.PartitionBy != nil {
		out.PartitionBy = make([]sqlast.Expr, len(ws.PartitionBy))

		for i := range ws.PartitionBy {
			out.PartitionBy[i] = *cloneExpr(&ws.PartitionBy[i])
		}
	}

	if ws.OrderBy != nil {
		out.OrderBy = make([]sqlast.OrderByItem, len(ws.OrderBy))

		for i, ob := range ws.OrderBy {
			out.OrderBy[i] = sqlast.OrderByItem{Expr: *cloneExpr(&ob.Expr), Desc: ob.Desc}
		}
	}

	if ws.Frame != nil {
		out.Frame = &sqlast.WindowFrame{
			Unit:      ws.Frame.Unit,
			StartKind: ws.Frame.StartKind,
			StartExpr: cloneExpr(ws.Frame.StartExpr),
			EndKind:   ws.Frame.EndKind,
			EndExpr:   cloneExpr(ws.Frame.EndExpr),
		}
	}

	return out
}
