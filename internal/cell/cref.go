// Package cell implements the write-once, await-able constrained
// reference (CRef) that backs QueryScript's deferred unification graph
// (spec §4.A). A CRef starts Unknown, is eventually made Known exactly
// once, and may instead be forwarded (Ref) to another cell representing
// the same logical quantity.
package cell

import (
	"fmt"
	"sync"

	"github.com/queryscript/qs"
)

// Unifier is implemented by any value kind that can be stored in a CRef.
// Unify merges the receiver with other in place conceptually, returning
// an error if the two are structurally incompatible; it does not mutate
// either value (cells, not values, carry mutable state).
type Unifier[T any] interface {
	Unify(other T) error
}

type state int

const (
	stateUnknown state = iota
	stateKnown
	stateRef
)

// Continuation is run exactly once, when a cell transitions out of
// Unknown. It must be pure with respect to cell mutation: it may create
// new cells and may itself defer by returning a still-Unknown cell.
type Continuation[T any] func(value T) (*CRef[T], error)

// CRef is a shared, mutable cell holding a value of a unifiable kind. Its
// zero value is not usable; construct with NewUnknown or Known.
type CRef[T Unifier[T]] struct {
	mu    sync.Mutex
	state state
	debug string

	value T // valid when state == stateKnown
	ref   *CRef[T] // valid when state == stateRef

	conts []Continuation[T]
}

// NewUnknown creates a cell in the Unknown state, tagged with a debug
// name used only in error messages and String().
func NewUnknown[T Unifier[T]](debugName string) *CRef[T] {
	return &CRef[T]{state: stateUnknown, debug: debugName}
}

// Known creates a cell that is already resolved to v.
func Known[T Unifier[T]](v T) *CRef[T] {
	return &CRef[T]{state: stateKnown, value: v}
}

// root follows Ref chains to the terminal cell, compressing the chain as
// it goes (path compression). Caller must not hold c.mu.
func root[T Unifier[T]](c *CRef[T]) *CRef[T] {
	c.mu.Lock()
	if c.state != stateRef {
		defer c.mu.Unlock()
		return c
	}

	next := c.ref
	c.mu.Unlock()

	r := root(next)

	c.mu.Lock()
	if c.state == stateRef {
		c.ref = r
	}
	c.mu.Unlock()

	return r
}

// IsKnown reports whether the cell (following Ref chains) is Known.
func (c *CRef[T]) IsKnown() bool {
	r := root(c)
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state == stateKnown
}

// Must synchronously returns the resolved value, failing with
// ErrUnresolved if the cell (after following Ref chains) is not Known.
func (c *CRef[T]) Must() (T, error) {
	r := root(c)
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.state != stateKnown {
		return zero, fmt.Errorf("%w: %s", qs.ErrUnresolved, r.debugName())
	}

	return r.value, nil
}

func (c *CRef[T]) debugName() string {
	if c.debug == "" {
		return "<cell>"
	}

	return c.debug
}

// resolve transitions the root of c to Known(v) or to a Ref of target,
// then fires its captured continuations exactly once, in insertion
// order. Continuations are staged and run after the state transition is
// committed, so re-entrant unification during a continuation is safe.
func (c *CRef[T]) resolve(v T, target *CRef[T]) error {
	r := root(c)

	r.mu.Lock()
	if r.state != stateUnknown {
		r.mu.Unlock()
		// Already resolved by a concurrent path (e.g. a cycle of Refs
		// collapsed from both ends); unify the two known values instead
		// of silently overwriting.
		existing, err := r.Must()
		if err != nil {
			return err
		}

		return existing.Unify(v)
	}

	conts := r.conts
	r.conts = nil

	if target != nil {
		r.state = stateRef
		r.ref = target
	} else {
		r.state = stateKnown
		r.value = v
	}

	r.mu.Unlock()

	for _, k := range conts {
		if _, err := k(v); err != nil {
			return err
		}
	}

	return nil
}

// Then registers continuation against c and returns (result, nil) if c
// was already Known and the continuation ran synchronously and
// succeeded; (result, err) if it ran synchronously and failed; and a
// fresh Unknown cell with a nil error if c is still Unknown, in which
// case the continuation fires later, when c is resolved, and any error
// it produces is returned by the Unify call that resolved c.
func (c *CRef[T]) Then(k Continuation[T]) (*CRef[T], error) {
	r := root(c)

	r.mu.Lock()
	if r.state == stateKnown {
		v := r.value
		r.mu.Unlock()

		return k(v)
	}

	out := NewUnknown[T](r.debugName() + ".then")
	r.conts = append(r.conts, func(v T) (*CRef[T], error) {
		next, err := k(v)
		if err != nil {
			return nil, err
		}

		return next, next.forwardInto(out)
	})
	r.mu.Unlock()

	return out, nil
}

// forwardInto makes out resolve identically to c: when c becomes Known
// or Ref, out follows. Used internally by Then to chain a deferred
// continuation's result into the cell it already handed back to the
// caller.
func (c *CRef[T]) forwardInto(out *CRef[T]) error {
	r := root(c)

	r.mu.Lock()
	if r.state == stateKnown {
		v := r.value
		r.mu.Unlock()

		return out.resolve(v, nil)
	}

	r.mu.Unlock()

	return out.resolve(*new(T), r)
}

// Unify merges a and b. Unknown<->anything converts the Unknown side to
// a Ref of the other and re-runs its continuations. Known<->Known
// delegates to the concrete kind's Unify method. Ref chains are followed
// to their roots first.
func Unify[T Unifier[T]](a, b *CRef[T]) error {
	ra, rb := root(a), root(b)
	if ra == rb {
		return nil
	}

	ra.mu.Lock()
	aKnown := ra.state == stateKnown
	aVal := ra.value
	ra.mu.Unlock()

	rb.mu.Lock()
	bKnown := rb.state == stateKnown
	bVal := rb.value
	rb.mu.Unlock()

	switch {
	case aKnown && bKnown:
		return aVal.Unify(bVal)
	case aKnown:
		return rb.resolve(aVal, ra)
	case bKnown:
		return ra.resolve(bVal, rb)
	default:
		// Neither known: forward one to the other, arbitrarily picking a
		// as the surviving root. Any continuations queued on b transfer
		// to a.
		rb.mu.Lock()
		conts := rb.conts
		rb.conts = nil
		rb.state = stateRef
		rb.ref = ra
		rb.mu.Unlock()

		ra.mu.Lock()
		ra.conts = append(ra.conts, conts...)
		ra.mu.Unlock()

		return nil
	}
}

// Substitute produces a new cell in which leaves looked up in env are
// replaced, by invoking apply on the resolved value (or, if still
// Unknown, deferring via Then). apply is supplied by the concrete type
// kind (see types.Substitute), since only it knows how to find and
// replace Name leaves.
func (c *CRef[T]) Substitute(apply func(T) (T, error)) (*CRef[T], error) {
	return c.Then(func(v T) (*CRef[T], error) {
		nv, err := apply(v)
		if err != nil {
			return nil, err
		}

		return Known(nv), nil
	})
}

func (c *CRef[T]) String() string {
	r := root(c)
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateKnown:
		return fmt.Sprintf("Known(%v)", r.value)
	default:
		return "Unknown(" + r.debugName() + ")"
	}
}
