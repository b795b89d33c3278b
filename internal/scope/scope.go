// Package scope implements the per-SQL-query lexical scope (spec §4.D):
// relation bindings, column availability with ambiguity detection, and
// placeholder minting. Grounded on the teacher's
// typeinference/schema_resolver.go (index construction, ambiguous-column
// handling) and original_source/qvm/src/compile/sql.rs's scope walking.
package scope

import (
	"fmt"
	"sync"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/types"
)

// Relation is a FROM-clause binding: an alias plus its row type and the
// location it was introduced at.
type Relation struct {
	Name string
	Type *cell.CRef[types.MType] // always List(rowtype)
	Loc  qs.Position
}

// AvailableReference is one column visible at a syntactic position,
// produced by GetAvailableReferences. Type is nil when the field name is
// ambiguous (present in more than one relation in scope).
type AvailableReference struct {
	Field    string
	Relation string
	Type     *cell.CRef[types.MType]
	Nullable bool
	Loc      qs.Position
}

// Counters mints session-wide unique placeholder names, one monotonic
// counter per prefix (spec §4.H: "Session-scoped counters, per prefix,
// not process-global"). A single Counters is shared by every Scope in a
// compilation session, regardless of query nesting, so that two
// unrelated top-level queries never mint the same placeholder (spec §8
// "Name uniqueness").
type Counters struct {
	mu   sync.Mutex
	next map[string]int
}

// NewCounters creates an empty, session-scoped placeholder minter.
func NewCounters() *Counters {
	return &Counters{next: map[string]int{}}
}

func (c *Counters) next_(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.next[prefix]
	c.next[prefix] = n + 1

	return fmt.Sprintf("%s%d", prefix, n)
}

// Scope is one relational scope level, chained to its parent for nested
// sub-queries. MultipleRows records whether this level's FROM produces
// zero-or-more rows (a real query) vs exactly one (a scalar subquery
// context); it is reported through MultipleRows() and does not change
// how this package resolves references.
type Scope struct {
	mu           sync.Mutex
	parent       *Scope
	relations    []Relation // insertion order, for deterministic ambiguity/placeholder numbering
	byName       map[string]int
	multipleRows bool
	counters     *Counters
}

// New creates a top-level scope (no parent), minting placeholders from
// counters (shared across the whole compile session).
func New(counters *Counters, multipleRows bool) *Scope {
	return &Scope{
		byName:       map[string]int{},
		multipleRows: multipleRows,
		counters:     counters,
	}
}

// NewChild creates a scope nested under parent, for a derived table or
// scalar subquery (spec §4.F "FROM clause", TableFactor::Derived). It
// shares parent's Counters, so placeholders minted anywhere in the query
// tree remain globally unique.
func NewChild(parent *Scope, multipleRows bool) *Scope {
	return &Scope{
		byName:       map[string]int{},
		parent:       parent,
		multipleRows: multipleRows,
		counters:     parent.counters,
	}
}

// AddReference registers a FROM alias. Duplicate names at the same level
// are accepted (they only become AmbiguousColumn errors if a bare column
// with that name is later referenced).
func (s *Scope) AddReference(name string, loc qs.Position, t *cell.CRef[types.MType]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.relations = append(s.relations, Relation{Name: name, Type: t, Loc: loc})
	s.byName[name] = len(s.relations) - 1
}

// GetRelation returns the relation bound to name at the nearest level
// (walking parents), or false if none binds it.
func (s *Scope) GetRelation(name string) (Relation, bool) {
	for level := s; level != nil; level = level.parent {
		level.mu.Lock()
		idx, ok := level.byName[name]
		var rel Relation
		if ok {
			rel = level.relations[idx]
		}
		level.mu.Unlock()

		if ok {
			return rel, true
		}
	}

	return Relation{}, false
}

// GetAvailableReferences expands every relation in scope (or only the
// named qualifier, if non-empty) into its row type's fields, tagging a
// field as ambiguous (Type == nil) when more than one relation at this
// level provides it. Only the current level is considered, per spec
// §4.D.
func (s *Scope) GetAvailableReferences(qualifier string) ([]AvailableReference, error) {
	s.mu.Lock()
	rels := append([]Relation(nil), s.relations...)
	s.mu.Unlock()

	byField := map[string][]AvailableReference{}
	var order []string

	for _, rel := range rels {
		if qualifier != "" && rel.Name != qualifier {
			continue
		}

		rowType, err := rel.Type.Must()
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", rel.Name, err)
		}

		if rowType.Kind != types.KindList {
			return nil, fmt.Errorf("%w: relation %q is not a list type", qs.ErrWrongType, rel.Name)
		}

		elemType, err := rowType.Elem.Must()
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", rel.Name, err)
		}

		if elemType.Kind != types.KindRecord {
			return nil, fmt.Errorf("%w: relation %q's rows are not a record type", qs.ErrWrongType, rel.Name)
		}

		for _, f := range elemType.Fields {
			if _, seen := byField[f.Name]; !seen {
				order = append(order, f.Name)
			}

			byField[f.Name] = append(byField[f.Name], AvailableReference{
				Field:    f.Name,
				Relation: rel.Name,
				Type:     f.Type,
				Nullable: f.Nullable,
				Loc:      rel.Loc,
			})
		}
	}

	out := make([]AvailableReference, 0, len(order))

	for _, name := range order {
		candidates := byField[name]
		if len(candidates) == 1 {
			out = append(out, candidates[0])
			continue
		}

		amb := candidates[0]
		amb.Type = nil
		out = append(out, amb)
	}

	return out, nil
}

// RemoveBoundReferences strips from unbound any name that refers to a
// relation added at this scope level: once a sub-query's own FROM
// resolves a name, it no longer needs to propagate to the enclosing
// scope as unbound. Not currently called from the compile path:
// sqlcompiler's nameTable.unbound tracks interned fn-arg placeholder
// names for the whole SQL body, not FROM-alias names, so the two maps
// never overlap under today's one-table-per-body design. Kept for a
// future per-level unbound-tracking scheme.
func (s *Scope) RemoveBoundReferences(unbound map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name := range s.byName {
		delete(unbound, name)
	}
}

// NextPlaceholder mints a fresh, non-clashing identifier with the given
// prefix, using a monotonically increasing counter per prefix, shared
// across the whole compile session (spec §4.D, §4.F "Parameter
// placeholder naming").
func (s *Scope) NextPlaceholder(prefix string) string {
	return s.counters.next_(prefix)
}

// MultipleRows reports whether this scope level represents a
// multi-row relation context.
func (s *Scope) MultipleRows() bool { return s.multipleRows }

// Parent returns the enclosing scope, or nil at the top level.
func (s *Scope) Parent() *Scope { return s.parent }
