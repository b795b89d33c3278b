package generics

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/types"
)

// sumAgg models the SQL sum() aggregate's return type (spec §4.C). The
// promotion table below is carried over verbatim from
// original_source/qvm/src/compile/generics.rs's SumGeneric::to_runtime_type:
// integer widths widen to Decimal128(38, 0); float widens to Float64;
// decimal passes through unchanged.
type sumAgg struct {
	inner *cell.CRef[types.MType]
}

type sumAggFactory struct{}

func (sumAggFactory) Name() string { return "SumAgg" }

func (sumAggFactory) New(args []*cell.CRef[types.MType]) (types.GenericType, error) {
	if err := validateArity("SumAgg", args, 1); err != nil {
		return nil, err
	}

	return &sumAgg{inner: args[0]}, nil
}

func (s *sumAgg) Name() string { return "SumAgg" }

func (s *sumAgg) String() string { return "SumAgg<" + s.inner.String() + ">" }

func (s *sumAgg) ToRuntimeType() (types.RuntimeType, error) {
	arg, err := s.inner.Must()
	if err != nil {
		return types.RuntimeType{}, err
	}

	if arg.Kind != types.KindAtom {
		return types.RuntimeType{}, fmt.Errorf("%w: sum() expects an atomic argument type, got %s", qs.ErrWrongType, arg)
	}

	switch arg.Atom {
	case types.AtomInt8, types.AtomInt16, types.AtomInt32, types.AtomInt64:
		// Widens to Decimal128(38, 0) per original_source. Precision/Scale
		// are Field-level metadata (see AtomDecimal's doc comment); a bare
		// atomic RuntimeType has nowhere to carry them, so the (38, 0)
		// here is documentation, not a value read by any caller - a
		// projection that embeds this result into a record Field is
		// responsible for setting Precision/Scale there.
		return types.RuntimeType{Kind: types.KindAtom, Atom: types.AtomDecimal}, nil
	case types.AtomFloat32, types.AtomFloat64:
		return types.RuntimeType{Kind: types.KindAtom, Atom: types.AtomFloat64}, nil
	case types.AtomDecimal:
		return types.RuntimeType{Kind: types.KindAtom, Atom: types.AtomDecimal}, nil
	default:
		return types.RuntimeType{}, fmt.Errorf("%w: sum() expected a numeric argument type, got %s", qs.ErrWrongType, arg.Atom)
	}
}

// SubstituteWith clones the inner cell per types.Substitute's env, per
// spec §4.C.
func (s *sumAgg) SubstituteWith(env map[string]*cell.CRef[types.MType]) (types.GenericType, error) {
	nc, err := types.Substitute(s.inner, env)
	if err != nil {
		return nil, err
	}

	return &sumAgg{inner: nc}, nil
}

// UnifyWith only constrains other once the inner element type is known:
// it projects to its runtime type and unifies the resulting concrete
// MType against other, matching the "approximate" note in the original
// source (SumGeneric::unify).
func (s *sumAgg) UnifyWith(other types.MType) error {
	if !s.inner.IsKnown() {
		return nil
	}

	rt, err := s.ToRuntimeType()
	if err != nil {
		return err
	}

	final := types.FromRuntimeType(rt)

	return final.Unify(other)
}

func (s *sumAgg) RowType() (*cell.CRef[types.MType], error) {
	return nil, nil
}
