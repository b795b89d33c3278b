package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs"
)

func TestDriveRunsTasksUntilFixpoint(t *testing.T) {
	s := New(0)

	attempts := 0
	resolved := false
	unblocked := 0
	s.AsyncCRef(func() (bool, error) {
		attempts++
		if unblocked < 2 {
			return false, nil
		}

		resolved = true

		return true, nil
	})

	// A second task makes progress on two consecutive passes (it
	// re-registers itself once), so the blocked task above is retried
	// until it can resolve on the third pass.
	var step Task
	step = func() (bool, error) {
		unblocked++
		if unblocked < 2 {
			s.AsyncCRef(step)
		}

		return true, nil
	}
	s.AsyncCRef(step)

	require.NoError(t, s.Drive())
	assert.True(t, resolved)
	assert.Equal(t, 3, attempts)
}

func TestDriveReturnsTaskError(t *testing.T) {
	s := New(0)
	boom := errors.New("boom")

	s.AsyncCRef(func() (bool, error) {
		return false, boom
	})

	err := s.Drive()
	assert.ErrorIs(t, err, boom)
}

func TestDriveBoundsPassesOnNonSettlingTask(t *testing.T) {
	s := New(5)

	// Reporting progress and re-registering itself on every pass, this
	// task never lets a pass end without progress.
	var churn Task
	churn = func() (bool, error) {
		s.AsyncCRef(churn)

		return true, nil
	}
	s.AsyncCRef(churn)

	err := s.Drive()
	assert.ErrorIs(t, err, qs.ErrUnimplemented)
}

func TestExternalResolversRunInRankOrder(t *testing.T) {
	s := New(0)

	var order []string

	s.AddExternalResolver(10, func() (bool, error) {
		order = append(order, "fallback")

		return true, nil
	})
	s.AddExternalResolver(0, func() (bool, error) {
		order = append(order, "load")

		return true, nil
	})

	require.NoError(t, s.Drive())
	assert.Equal(t, []string{"load", "fallback"}, order)
}

func TestRunOnSymbolAccumulates(t *testing.T) {
	s := New(0)

	s.RunOnSymbol("total_for", "fn", qs.Position{Line: 1, Column: 1})
	s.RunOnSymbol("region", "extern", qs.Position{Line: 2, Column: 1})

	syms := s.Symbols()
	require.Len(t, syms, 2)
	assert.Equal(t, "total_for", syms[0].Name)
	assert.Equal(t, "region", syms[1].Name)
}

func TestAllowInliningDefaultsFalse(t *testing.T) {
	s := New(0)
	assert.False(t, s.AllowInlining())

	s.SetAllowInlining(true)
	assert.True(t, s.AllowInlining())
}
