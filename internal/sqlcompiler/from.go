package sqlcompiler

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/sqlast"
	"github.com/queryscript/qs/internal/types"
)

// compileFrom lowers a FROM clause (spec §4.F "FROM clause"), binding
// each relation (and each join's right side) into qc.scope as it goes,
// so later entries' ON clauses and the statement's WHERE/projection see
// everything bound so far.
func (qc *queryCompiler) compileFrom(from []sqlast.TableWithJoins) ([]sqlast.TableWithJoins, error) {
	out := make([]sqlast.TableWithJoins, len(from))

	for i, twj := range from {
		rel, err := qc.compileTableFactor(twj.Relation)
		if err != nil {
			return nil, err
		}

		joins := make([]sqlast.Join, len(twj.Joins))

		for j, join := range twj.Joins {
			right, err := qc.compileTableFactor(join.Right)
			if err != nil {
				return nil, err
			}

			on, onType, err := qc.compileExpr(&join.On)
			if err != nil {
				return nil, err
			}

			if err := requireBoolean(onType); err != nil {
				return nil, fmt.Errorf("join condition: %w", err)
			}

			joins[j] = sqlast.Join{Kind: join.Kind, Right: right, On: on}
		}

		out[i] = sqlast.TableWithJoins{Relation: rel, Joins: joins}
	}

	return out, nil
}

// compileTableFactor lowers one FROM-clause relation reference, adding
// its alias to qc.scope. A base table resolves as a program-scope value
// whose type must be (or produce) a relation row type; it is rewritten
// to a synthesized placeholder since the program value it names is not
// itself SQL text. A derived table recurses into its own child scope.
func (qc *queryCompiler) compileTableFactor(tf sqlast.TableFactor) (sqlast.TableFactor, error) {
	switch tf.Kind {
	case sqlast.TableFactorTable:
		return qc.compileTableFactorTable(tf)
	case sqlast.TableFactorDerived:
		return qc.compileTableFactorDerived(tf)
	default:
		return sqlast.TableFactor{}, fmt.Errorf("%w: table factor kind %d", qs.ErrUnimplemented, tf.Kind)
	}
}

func (qc *queryCompiler) compileTableFactorTable(tf sqlast.TableFactor) (sqlast.TableFactor, error) {
	te, _, err := qc.lookupProgramValue(tf.Name)
	if err != nil {
		return sqlast.TableFactor{}, err
	}

	rowType, err := te.Type.Then(func(mt types.MType) (*cell.CRef[types.MType], error) {
		return rowTypeOf(mt)
	})
	if err != nil {
		return sqlast.TableFactor{}, fmt.Errorf("relation %s: %w", tf.Name, err)
	}

	placeholder := qc.scope.NextPlaceholder("__qvmrel")
	qc.names.intern(placeholder, te, false)

	alias := tf.Alias
	if alias == "" {
		alias = tf.Name.Last().Name
	}

	qc.scope.AddReference(alias, toScopePos(tf.Pos), cell.Known(types.List(rowType)))

	return sqlast.TableFactor{
		Kind:  sqlast.TableFactorTable,
		Name:  sqlast.ObjectName{{Name: "@" + placeholder}},
		Alias: alias,
		Pos:   tf.Pos,
	}, nil
}

func (qc *queryCompiler) compileTableFactorDerived(tf sqlast.TableFactor) (sqlast.TableFactor, error) {
	child := qc.child(true)

	te, err := child.compileQuery(tf.Query)
	if err != nil {
		return sqlast.TableFactor{}, err
	}

	alias := tf.Alias
	if alias == "" {
		alias = qc.scope.NextPlaceholder("__qvmderived")
	}

	qc.scope.AddReference(alias, toScopePos(tf.Pos), te.Type)

	q, err := sqlBodyAsQuery(te.Expr)
	if err != nil {
		return sqlast.TableFactor{}, err
	}

	return sqlast.TableFactor{
		Kind:  sqlast.TableFactorDerived,
		Alias: alias,
		Query: q,
		Pos:   tf.Pos,
	}, nil
}

func requireBoolean(t *cell.CRef[types.MType]) error {
	mt, err := t.Must()
	if err != nil {
		return err
	}

	if mt.Kind != types.KindAtom || (mt.Atom != types.AtomBool && mt.Atom != types.AtomNull) {
		return fmt.Errorf("%w: expected bool, got %s", qs.ErrWrongType, mt)
	}

	return nil
}
