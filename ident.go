// Package qs implements the compiler front end and thin runtime for
// QueryScript, a statically-typed language whose primary value type is
// the SQL query.
package qs

import "strings"

// Position is a location in a source file, used to annotate errors.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Ident is a case-preserved name with an optional source range. Equality
// is by value: two Idents with the same Name are equal regardless of
// where they were parsed from.
type Ident struct {
	Name string
	Pos  Position
}

// NewIdent builds an Ident with no source position, for synthesized names
// (placeholders, generated aliases).
func NewIdent(name string) Ident {
	return Ident{Name: name}
}

func (i Ident) String() string { return i.Name }

// Equal compares two Idents by name only.
func (i Ident) Equal(other Ident) bool { return i.Name == other.Name }

// Path is an ordered sequence of Idents, the canonical lookup key into
// schemas.
type Path []Ident

// NewPath builds a Path from plain strings, for tests and synthesized
// lookups.
func NewPath(parts ...string) Path {
	p := make(Path, len(parts))
	for i, part := range parts {
		p[i] = NewIdent(part)
	}

	return p
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = id.Name
	}

	return strings.Join(parts, ".")
}

// Split returns the path with its last element removed, and the last
// element itself. Split on an empty path returns (nil, Ident{}).
func (p Path) Split() (Path, Ident) {
	if len(p) == 0 {
		return nil, Ident{}
	}

	return p[:len(p)-1], p[len(p)-1]
}

// Last returns the last Ident of the path, or the zero Ident if empty.
func (p Path) Last() Ident {
	if len(p) == 0 {
		return Ident{}
	}

	return p[len(p)-1]
}
