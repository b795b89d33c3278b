package sqlcompiler

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/sqlast"
)

// compileWindowSpec lowers an OVER(...) clause (spec §4.F "Window
// specs"): PARTITION BY and ORDER BY expressions compile like any other
// scalar expression; frame bounds that carry an expression (PRECEDING/
// FOLLOWING with a count) must be integral.
func (qc *queryCompiler) compileWindowSpec(ws *sqlast.WindowSpec) (*sqlast.WindowSpec, error) {
	if ws == nil {
		return nil, nil
	}

	out := &sqlast.WindowSpec{}

	out.PartitionBy = make([]sqlast.Expr, len(ws.PartitionBy))
	for i := range ws.PartitionBy {
		e, _, err := qc.compileExpr(&ws.PartitionBy[i])
		if err != nil {
			return nil, fmt.Errorf("partition by %d: %w", i, err)
		}

		out.PartitionBy[i] = e
	}

	out.OrderBy = make([]sqlast.OrderByItem, len(ws.OrderBy))
	for i, ob := range ws.OrderBy {
		e, _, err := qc.compileExpr(&ob.Expr)
		if err != nil {
			return nil, fmt.Errorf("order by %d: %w", i, err)
		}

		out.OrderBy[i] = sqlast.OrderByItem{Expr: e, Desc: ob.Desc}
	}

	if ws.Frame != nil {
		frame, err := qc.compileWindowFrame(ws.Frame)
		if err != nil {
			return nil, err
		}

		out.Frame = frame
	}

	return out, nil
}

func (qc *queryCompiler) compileWindowFrame(f *sqlast.WindowFrame) (*sqlast.WindowFrame, error) {
	out := &sqlast.WindowFrame{Unit: f.Unit, StartKind: f.StartKind, EndKind: f.EndKind}

	var err error
	if out.StartExpr, err = qc.compileFrameBound(f.StartKind, f.StartExpr); err != nil {
		return nil, fmt.Errorf("frame start: %w", err)
	}

	if out.EndExpr, err = qc.compileFrameBound(f.EndKind, f.EndExpr); err != nil {
		return nil, fmt.Errorf("frame end: %w", err)
	}

	return out, nil
}

func (qc *queryCompiler) compileFrameBound(kind sqlast.FrameBoundKind, e *sqlast.Expr) (*sqlast.Expr, error) {
	if e == nil {
		return nil, nil
	}

	switch kind {
	case sqlast.BoundPreceding, sqlast.BoundFollowing:
		compiled, t, err := qc.compileExpr(e)
		if err != nil {
			return nil, err
		}

		if err := requireIntegral(t); err != nil {
			return nil, err
		}

		return &compiled, nil

	default:
		return nil, fmt.Errorf("%w: frame bound kind %d does not take an expression", qs.ErrUnimplemented, kind)
	}
}
