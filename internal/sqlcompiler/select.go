package sqlcompiler

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// compileQuery lowers a full SELECT...FROM...WHERE...GROUP BY...ORDER
// BY...LIMIT...OFFSET statement (spec §4.F). The result type is always
// List(Record(...)), every field nullable (spec: "the result type of a
// query is always List(Record(...)), every field nullable, since SQL
// execution can project NULL through arbitrary expressions").
func (qc *queryCompiler) compileQuery(q *sqlast.Query) (*program.TypedExpr, error) {
	sel, rowType, err := qc.compileSelectStatement(q.Select)
	if err != nil {
		return nil, err
	}

	orderBy := make([]sqlast.OrderByItem, len(q.OrderBy))
	for i, ob := range q.OrderBy {
		e, t, err := qc.compileExpr(&ob.Expr)
		if err != nil {
			return nil, fmt.Errorf("order by %d: %w", i, err)
		}

		if _, err := requireAtom(t); err != nil {
			return nil, fmt.Errorf("order by %d: %w", i, err)
		}

		orderBy[i] = sqlast.OrderByItem{Expr: e, Desc: ob.Desc}
	}

	out := &sqlast.Query{Select: sel, OrderBy: orderBy}

	if q.Limit != nil {
		e, t, err := qc.compileExpr(q.Limit)
		if err != nil {
			return nil, fmt.Errorf("limit: %w", err)
		}

		if err := requireIntegral(t); err != nil {
			return nil, fmt.Errorf("limit: %w", err)
		}

		out.Limit = &e
	}

	if q.Offset != nil {
		e, t, err := qc.compileExpr(q.Offset)
		if err != nil {
			return nil, fmt.Errorf("offset: %w", err)
		}

		if err := requireIntegral(t); err != nil {
			return nil, fmt.Errorf("offset: %w", err)
		}

		out.Offset = &e
	}

	resultType := cell.Known(types.List(cell.Known(rowType)))

	return &program.TypedExpr{
		Type: resultType,
		Expr: cell.Known(program.Expr{Kind: program.ExprSQL, SQLBody: out, SQLNames: qc.names.sqlNames()}),
	}, nil
}

// compileSelectStatement lowers the SELECT...FROM...WHERE...GROUP BY
// core. Constructs the grammar cannot produce (HAVING, QUALIFY, TOP,
// INTO, CLUSTER/DISTRIBUTE/SORT BY, lateral views) have no field on
// SelectStatement to carry them, so the absence is enforced by the
// parser rather than rechecked here.
func (qc *queryCompiler) compileSelectStatement(sel *sqlast.SelectStatement) (*sqlast.SelectStatement, types.MType, error) {
	from, err := qc.compileFrom(sel.From)
	if err != nil {
		return nil, types.MType{}, err
	}

	out := &sqlast.SelectStatement{Distinct: sel.Distinct, From: from}

	if !isAbsentWhere(sel.Where) {
		where, whereType, err := qc.compileExpr(&sel.Where)
		if err != nil {
			return nil, types.MType{}, fmt.Errorf("where: %w", err)
		}

		if err := requireBoolean(whereType); err != nil {
			return nil, types.MType{}, fmt.Errorf("where: %w", err)
		}

		out.Where = where
	}

	groupBy := make([]sqlast.Expr, len(sel.GroupBy))
	for i := range sel.GroupBy {
		e, _, err := qc.compileExpr(&sel.GroupBy[i])
		if err != nil {
			return nil, types.MType{}, fmt.Errorf("group by %d: %w", i, err)
		}

		groupBy[i] = e
	}
	out.GroupBy = groupBy

	projection, fields, err := qc.compileProjection(sel.Projection)
	if err != nil {
		return nil, types.MType{}, err
	}
	out.Projection = projection

	return out, types.Record(fields), nil
}

// isAbsentWhere delegates to sqlast.IsAbsentWhere (also used by the SQL
// printer, which needs the same "was this ever set" test at runtime).
func isAbsentWhere(e sqlast.Expr) bool {
	return sqlast.IsAbsentWhere(e)
}

// compileProjection lowers the SELECT list (spec §4.F "Projection"):
// unnamed expressions take an inferred name, aliased expressions keep
// their alias, bare `*` and `t.*` expand to every column currently in
// scope (or the named qualifier's columns). EXCEPT/EXCLUDE/RENAME
// modifiers have no representation in the grammar, so wildcard expansion
// is always a straight copy of the available columns.
func (qc *queryCompiler) compileProjection(items []sqlast.SelectItem) ([]sqlast.SelectItem, []types.Field, error) {
	var out []sqlast.SelectItem
	var fields []types.Field

	for _, item := range items {
		switch item.Kind {
		case sqlast.Wildcard:
			refs, err := qc.scope.GetAvailableReferences("")
			if err != nil {
				return nil, nil, err
			}

			for _, ref := range refs {
				if ref.Type == nil {
					return nil, nil, fmt.Errorf("%w: %s", qs.ErrAmbiguousColumn, ref.Field)
				}

				out = append(out, sqlast.SelectItem{
					Kind: sqlast.UnnamedExpr,
					Expr: sqlast.Expr{Kind: sqlast.ExprCompoundIdent, Path: sqlast.ObjectName{{Name: ref.Relation}, {Name: ref.Field}}},
				})
				fields = append(fields, types.Field{Name: ref.Field, Type: ref.Type, Nullable: true})
			}

		case sqlast.QualifiedWildcard:
			qualifier := item.Qualify.String()

			refs, err := qc.scope.GetAvailableReferences(qualifier)
			if err != nil {
				return nil, nil, err
			}

			if len(refs) == 0 {
				return nil, nil, fmt.Errorf("%w: %s", qs.ErrNoSuchEntry, qualifier)
			}

			for _, ref := range refs {
				out = append(out, sqlast.SelectItem{
					Kind: sqlast.UnnamedExpr,
					Expr: sqlast.Expr{Kind: sqlast.ExprCompoundIdent, Path: sqlast.ObjectName{{Name: ref.Relation}, {Name: ref.Field}}},
				})
				fields = append(fields, types.Field{Name: ref.Field, Type: ref.Type, Nullable: true})
			}

		case sqlast.UnnamedExpr, sqlast.ExprWithAlias:
			e, t, err := qc.compileExpr(&item.Expr)
			if err != nil {
				return nil, nil, err
			}

			name := item.Alias
			if name == "" {
				name = inferColumnName(item.Expr)
			}

			out = append(out, sqlast.SelectItem{Kind: sqlast.ExprWithAlias, Expr: e, Alias: name})
			fields = append(fields, types.Field{Name: name, Type: t, Nullable: true})

		default:
			return nil, nil, fmt.Errorf("%w: select item kind %d", qs.ErrUnimplemented, item.Kind)
		}
	}

	return out, fields, nil
}

// inferColumnName names an unaliased projection item the way SQL
// engines conventionally do: a bare column reference keeps its own
// name, anything else gets a synthesized one.
func inferColumnName(e sqlast.Expr) string {
	switch e.Kind {
	case sqlast.ExprIdent, sqlast.ExprCompoundIdent:
		return e.Path.Last().Name
	default:
		return "column"
	}
}

func requireIntegral(t *cell.CRef[types.MType]) error {
	atom, err := requireAtom(t)
	if err != nil {
		return err
	}

	switch atom {
	case types.AtomInt8, types.AtomInt16, types.AtomInt32, types.AtomInt64:
		return nil
	default:
		return fmt.Errorf("%w: expected an integer, got %s", qs.ErrWrongType, atom)
	}
}
