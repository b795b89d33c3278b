package cell

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intBox struct{ v int }

func (a intBox) Unify(b intBox) error {
	if a.v != b.v {
		return errors.New("mismatch")
	}

	return nil
}

func TestKnownMust(t *testing.T) {
	c := Known(intBox{1})
	v, err := c.Must()
	require.NoError(t, err)
	assert.Equal(t, 1, v.v)
}

func TestUnknownMustFails(t *testing.T) {
	c := NewUnknown[intBox]("x")
	_, err := c.Must()
	require.Error(t, err)
}

func TestUnifyUnknownBecomesKnown(t *testing.T) {
	a := NewUnknown[intBox]("a")
	b := Known(intBox{42})

	require.NoError(t, Unify(a, b))

	v, err := a.Must()
	require.NoError(t, err)
	assert.Equal(t, 42, v.v)
}

func TestUnifySymmetry(t *testing.T) {
	a := NewUnknown[intBox]("a")
	b := Known(intBox{7})
	require.NoError(t, Unify(a, b))

	c := NewUnknown[intBox]("c")
	d := Known(intBox{7})
	require.NoError(t, Unify(d, c))

	va, _ := a.Must()
	vc, _ := c.Must()
	assert.Equal(t, va, vc)
}

func TestUnifyKnownMismatch(t *testing.T) {
	a := Known(intBox{1})
	b := Known(intBox{2})
	assert.Error(t, Unify(a, b))
}

func TestThenFiresOnceWhenResolved(t *testing.T) {
	calls := 0
	a := NewUnknown[intBox]("a")

	out, err := a.Then(func(v intBox) (*CRef[intBox], error) {
		calls++
		return Known(intBox{v.v + 1}), nil
	})
	require.NoError(t, err)

	require.NoError(t, Unify(a, Known(intBox{10})))

	v, err := out.Must()
	require.NoError(t, err)
	assert.Equal(t, 11, v.v)
	assert.Equal(t, 1, calls)
}

func TestThenSynchronousWhenAlreadyKnown(t *testing.T) {
	a := Known(intBox{5})

	out, err := a.Then(func(v intBox) (*CRef[intBox], error) {
		return Known(intBox{v.v * 2}), nil
	})
	require.NoError(t, err)

	v, err := out.Must()
	require.NoError(t, err)
	assert.Equal(t, 10, v.v)
}
