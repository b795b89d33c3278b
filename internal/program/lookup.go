package program

import (
	"fmt"

	"github.com/queryscript/qs"
)

// LookupResult is what lookup_path resolves a path down to (spec §4.E
// "lookup_path"). Exactly one of Decl or Schema is meaningful:
//   - Decl is set when the final segment resolved to a value/type decl
//     (resolveLast true, or the walk bottomed into a non-schema decl
//     before running out of path).
//   - Schema is set instead when resolveLast is false and the entire
//     path was consumed walking nested schemas; Remainder is then left
//     for the caller to interpret as a field/column access on whatever
//     this schema's corresponding value turns out to be (spec's
//     compile_sqlreference path-of-2 case).
type LookupResult struct {
	Decl      *Decl
	Schema    *Schema
	Remainder qs.Path
}

// LookupPath splits path into a schema-part (leading segments that name
// nested schemas, walked from schema through its parents), a decl-part
// (the next segment, resolved as a Decl when resolveLast is true), and a
// remainder (whatever is left, meant as a field access chain on the
// resolved value). importGlobal additionally consults the compiler's
// sentinel global schema when a segment isn't found locally (spec §4.E).
//
// The exact Rust implementation this is grounded on was not retained in
// the kept source set (only its call site in compile_reference
// survived); this follows the prose description in spec §4.E directly.
func LookupPath(c *Compiler, schema *Schema, path qs.Path, importGlobal, resolveLast bool) (*LookupResult, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", qs.ErrNoSuchEntry)
	}

	cur := schema

	limit := len(path)
	if resolveLast {
		limit = len(path) - 1
	}

	i := 0
	for i < limit {
		name := path[i].Name

		decl, found := findDecl(c, cur, name, importGlobal)
		if !found {
			return nil, fmt.Errorf("%w: %s", qs.ErrNoSuchEntry, path[:i+1])
		}

		if decl.Value.Kind != SchemaEntrySchema {
			// Walk stopped early on a non-schema decl; whatever remains
			// of path becomes the caller's field-access remainder.
			return &LookupResult{Decl: decl, Remainder: path[i+1:]}, nil
		}

		next, err := c.resolveSchemaEntry(&decl.Value)
		if err != nil {
			return nil, err
		}

		cur = next
		i++
	}

	if !resolveLast {
		return &LookupResult{Schema: cur, Remainder: path[i:]}, nil
	}

	name := path[i].Name

	decl, found := findDecl(c, cur, name, importGlobal)
	if !found {
		return nil, fmt.Errorf("%w: %s", qs.ErrNoSuchEntry, path)
	}

	return &LookupResult{Decl: decl}, nil
}

// findDecl looks up name in schema, then each ParentScope in turn, then
// (if importGlobal) the compiler's sentinel global schema.
func findDecl(c *Compiler, schema *Schema, name string, importGlobal bool) (*Decl, bool) {
	for s := schema; s != nil; s = s.ParentScope {
		if d, ok := s.GetDecl(name); ok {
			return d, true
		}
	}

	if importGlobal && c.Global != nil && c.Global != schema {
		if d, ok := c.Global.GetDecl(name); ok {
			return d, true
		}
	}

	return nil, false
}
