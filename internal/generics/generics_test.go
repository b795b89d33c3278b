package generics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/types"
)

func TestSumAggIntegerPromotesToDecimal(t *testing.T) {
	reg := NewRegistry()
	inner := cell.Known(types.Atom(types.AtomInt32))

	g, err := reg.New("SumAgg", []*cell.CRef[types.MType]{inner})
	require.NoError(t, err)

	rt, err := g.ToRuntimeType()
	require.NoError(t, err)
	assert.Equal(t, types.AtomDecimal, rt.Atom)
}

func TestSumAggFloatStaysFloat64(t *testing.T) {
	reg := NewRegistry()
	inner := cell.Known(types.Atom(types.AtomFloat32))

	g, err := reg.New("SumAgg", []*cell.CRef[types.MType]{inner})
	require.NoError(t, err)

	rt, err := g.ToRuntimeType()
	require.NoError(t, err)
	assert.Equal(t, types.AtomFloat64, rt.Atom)
}

func TestExternalUnifiesInnerType(t *testing.T) {
	reg := NewRegistry()
	innerCell := cell.NewUnknown[types.MType]("T")

	g, err := reg.New("External", []*cell.CRef[types.MType]{innerCell})
	require.NoError(t, err)

	require.NoError(t, g.UnifyWith(types.Atom(types.AtomString)))

	resolved, err := innerCell.Must()
	require.NoError(t, err)
	assert.Equal(t, types.AtomString, resolved.Atom)
}

func TestExternalRowTypeIsInnerCell(t *testing.T) {
	reg := NewRegistry()
	innerCell := cell.Known(types.Atom(types.AtomInt64))

	g, err := reg.New("External", []*cell.CRef[types.MType]{innerCell})
	require.NoError(t, err)

	rowType, err := g.RowType()
	require.NoError(t, err)
	assert.Same(t, innerCell, rowType)
}

func TestUnknownGenericErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.New("NotAGeneric", nil)
	assert.Error(t, err)
}
