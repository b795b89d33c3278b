package generics

import (
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/types"
)

// external is a placeholder type representing "I will learn T from
// running an external resolver" (spec §4.C). InnerType exposes the cell
// the scheduler's external-type resolver (spec §4.H, SPEC_FULL §C.5)
// eventually fills.
type external struct {
	inner *cell.CRef[types.MType]
}

type externalFactory struct{}

func (externalFactory) Name() string { return "External" }

func (externalFactory) New(args []*cell.CRef[types.MType]) (types.GenericType, error) {
	if err := validateArity("External", args, 1); err != nil {
		return nil, err
	}

	return &external{inner: args[0]}, nil
}

// InnerType returns the cell the resolver must fill; exported as a
// concrete accessor (not part of types.GenericType) since only code that
// already knows it is holding an *external needs it; it reports false
// for any other types.GenericType.
func InnerType(g types.GenericType) (*cell.CRef[types.MType], bool) {
	e, ok := g.(*external)
	if !ok {
		return nil, false
	}

	return e.inner, true
}

func (e *external) Name() string { return "External" }

func (e *external) String() string { return "External<" + e.inner.String() + ">" }

func (e *external) ToRuntimeType() (types.RuntimeType, error) {
	inner, err := e.inner.Must()
	if err != nil {
		return types.RuntimeType{}, err
	}

	return types.ToRuntimeType(inner)
}

func (e *external) SubstituteWith(env map[string]*cell.CRef[types.MType]) (types.GenericType, error) {
	nc, err := types.Substitute(e.inner, env)
	if err != nil {
		return nil, err
	}

	return &external{inner: nc}, nil
}

// UnifyWith unifies the inner cell with other directly, or with another
// External's inner cell if other is itself an External — this is what
// lets load()'s inferred schema flow into every use site of the same
// External value.
func (e *external) UnifyWith(other types.MType) error {
	if other.Kind == types.KindGeneric {
		if oe, ok := other.Generic.(*external); ok {
			return cell.Unify(e.inner, oe.inner)
		}
	}

	return cell.Unify(e.inner, cell.Known(other))
}

// RowType returns the inner cell itself: an External(T) used as a
// relation (e.g. the result of load()) has row type T (spec §4.C).
func (e *external) RowType() (*cell.CRef[types.MType], error) {
	return e.inner, nil
}
