package sqlcompiler

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/scope"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// compileReference resolves an identifier or compound identifier
// appearing in scalar position (spec §4.F "Reference resolution
// (compile_sqlreference)"), returning its type and the rewritten SQL
// expression to splice back into the tree.
//
// A path of length 1 is resolved in priority order: a relation alias
// bound in scope (the whole row, as a record); a column name available
// in the current scope level, rewritten to its qualified form or failing
// AmbiguousColumn; finally a program-scope decl, interned as a fresh
// placeholder.
//
// A path of length 2 first tries `<relation>.<column>` against any
// scope level (supporting a correlated reference to an enclosing
// query's FROM), then falls through to program scope the same way a
// length-1 path's final case does. Longer paths go straight to program
// scope: SQL has no notion of a 3-part qualified column.
func (qc *queryCompiler) compileReference(path sqlast.ObjectName) (*cell.CRef[types.MType], sqlast.Expr, error) {
	switch len(path) {
	case 1:
		return qc.compileReference1(path[0])
	case 2:
		return qc.compileReference2(path[0], path[1])
	default:
		te, name, err := qc.compileProgramReference(path)
		if err != nil {
			return nil, sqlast.Expr{}, err
		}

		return te.Type, sqlast.Expr{Kind: sqlast.ExprIdent, Pos: path[0].Pos, Path: sqlast.ObjectName{{Name: "@" + name}}}, nil
	}
}

func (qc *queryCompiler) compileReference1(id sqlast.Ident) (*cell.CRef[types.MType], sqlast.Expr, error) {
	if rel, ok := qc.scope.GetRelation(id.Name); ok {
		rowType, err := rowTypeOf1(rel)
		if err != nil {
			return nil, sqlast.Expr{}, err
		}

		return rowType, sqlast.Expr{Kind: sqlast.ExprIdent, Pos: id.Pos, Path: sqlast.ObjectName{id}}, nil
	}

	refs, err := qc.scope.GetAvailableReferences("")
	if err != nil {
		return nil, sqlast.Expr{}, err
	}

	for _, ref := range refs {
		if ref.Field != id.Name {
			continue
		}

		if ref.Type == nil {
			return nil, sqlast.Expr{}, fmt.Errorf("%w: %s", qs.ErrAmbiguousColumn, id.Name)
		}

		return ref.Type, sqlast.Expr{
			Kind: sqlast.ExprCompoundIdent,
			Pos:  id.Pos,
			Path: sqlast.ObjectName{{Name: ref.Relation}, id},
		}, nil
	}

	te, name, err := qc.compileProgramReference(sqlast.ObjectName{id})
	if err != nil {
		return nil, sqlast.Expr{}, err
	}

	return te.Type, sqlast.Expr{Kind: sqlast.ExprIdent, Pos: id.Pos, Path: sqlast.ObjectName{{Name: "@" + name}}}, nil
}

func (qc *queryCompiler) compileReference2(relID, colID sqlast.Ident) (*cell.CRef[types.MType], sqlast.Expr, error) {
	for level := qc.scope; level != nil; level = level.Parent() {
		rel, ok := level.GetRelation(relID.Name)
		if !ok {
			continue
		}

		fieldType, err := fieldOf(rel, colID.Name)
		if err != nil {
			return nil, sqlast.Expr{}, err
		}

		if fieldType == nil {
			return nil, sqlast.Expr{}, fmt.Errorf("%w: %s.%s", qs.ErrNoSuchEntry, relID.Name, colID.Name)
		}

		return fieldType, sqlast.Expr{
			Kind: sqlast.ExprCompoundIdent,
			Pos:  relID.Pos,
			Path: sqlast.ObjectName{relID, colID},
		}, nil
	}

	path := sqlast.ObjectName{relID, colID}

	te, name, err := qc.compileProgramReference(path)
	if err != nil {
		return nil, sqlast.Expr{}, err
	}

	return te.Type, sqlast.Expr{Kind: sqlast.ExprIdent, Pos: relID.Pos, Path: sqlast.ObjectName{{Name: "@" + name}}}, nil
}

func rowTypeOf1(rel scope.Relation) (*cell.CRef[types.MType], error) {
	relType, err := rel.Type.Must()
	if err != nil {
		return nil, err
	}

	return rowTypeOf(relType)
}

// fieldOf returns the named field's type out of rel's row record, or a
// nil cell (no error) if the relation simply doesn't carry that field.
func fieldOf(rel scope.Relation, name string) (*cell.CRef[types.MType], error) {
	rowType, err := rowTypeOf1(rel)
	if err != nil {
		return nil, err
	}

	row, err := rowType.Must()
	if err != nil {
		return nil, err
	}

	if row.Kind != types.KindRecord {
		return nil, fmt.Errorf("%w: relation %q's rows are not a record", qs.ErrWrongType, rel.Name)
	}

	for _, f := range row.Fields {
		if f.Name == name {
			return f.Type, nil
		}
	}

	return nil, nil
}
