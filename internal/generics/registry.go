// Package generics implements QueryScript's open extension point for
// named type constructors (spec §4.C), grounded directly on
// original_source/qvm/src/compile/generics.rs: a registry of Factory
// builders, keyed by name, each producing a types.GenericType
// with its own unify/substitute/to_runtime_type/get_rowtype hooks.
package generics

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/types"
)

// Factory constructs a Generic from a fixed-arity argument list of type
// cells (spec §4.C).
type Factory interface {
	Name() string
	New(args []*cell.CRef[types.MType]) (types.GenericType, error)
}

// Registry is a session-scoped map of generic constructors. Sessions get
// their own Registry (seeded with the builtins via NewRegistry) rather
// than sharing one process-global map, so that a resolver registered for
// one compilation never leaks into another.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with the two builtin
// generics named in spec §4.C: SumAgg and External.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register(sumAggFactory{})
	r.Register(externalFactory{})

	return r
}

// Register adds or replaces a factory under its own name.
func (r *Registry) Register(f Factory) {
	r.factories[f.Name()] = f
}

// New looks up name and constructs a Generic from args, validating arity
// via the factory itself.
func (r *Registry) New(name string, args []*cell.CRef[types.MType]) (types.GenericType, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: generic %q", qs.ErrNoSuchEntry, name)
	}

	return f.New(args)
}

func validateArity(name string, args []*cell.CRef[types.MType], want int) error {
	if len(args) != want {
		return fmt.Errorf("%w: %s expects %d argument(s), got %d", qs.ErrWrongKind, name, want, len(args))
	}

	return nil
}
