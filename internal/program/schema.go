package program

import (
	"fmt"
	"sync"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/types"
)

// SchemaEntryKind discriminates SchemaEntry (spec §3 "Decl... value ∈
// {Schema(path) | Type(mtype) | Expr(stypedexpr)}").
type SchemaEntryKind int

const (
	SchemaEntrySchema SchemaEntryKind = iota
	SchemaEntryType
	SchemaEntryExpr
)

// SchemaEntry is the value carried by a Decl.
type SchemaEntry struct {
	Kind SchemaEntryKind

	SchemaPath qs.Path // SchemaEntrySchema: the import path this decl resolves to
	Schema     *Schema // SchemaEntrySchema: resolved lazily via the loader, cached here once loaded

	Type *cell.CRef[types.MType] // SchemaEntryType

	Expr *STypedExpr // SchemaEntryExpr
}

// Decl is one named entry in a Schema (spec §3 "Decl").
type Decl struct {
	Public bool
	Extern bool
	Name   qs.Ident
	Value  SchemaEntry
	// FnArg marks a decl introduced as a function argument binding inside
	// an FnExpr's InnerSchema (spec §4.E "FnDef... args bound as decls
	// with fn_arg=true").
	FnArg bool
}

// ImportedSchema records one `import` statement's effect: the schema it
// pulled in, plus any instantiation args supplied (spec §3 "Schema...
// imports").
type ImportedSchema struct {
	Args   map[string]*TypedExpr
	Schema *Schema
}

// SchemaInstance is a concrete, possibly-parameterized instantiation of
// a Schema: ID is nil for the single global instance of a non-parameterized
// schema, and set to a fresh per-instantiation id otherwise (spec's
// Schema/SchemaInstance split in schema.rs).
type SchemaInstance struct {
	Schema *Schema
	ID     *int
}

// Schema is a lexical namespace plus a list of top-level expressions to
// execute (spec §3 "Schema: {folder, parent_scope, externs, decls,
// imports, exprs}"). ParentScope is used for nested function bodies
// (FnExpr.InnerSchema's parent is the schema the function was defined
// in), not for the program's schema-of-schemas nesting used by
// lookup_path's schema-part walk — that nesting instead goes through
// SchemaEntrySchema decls.
type Schema struct {
	mu sync.Mutex

	Folder      string
	ParentScope *Schema

	Externs map[string]*Decl
	Decls   map[string]*Decl
	// DeclOrder preserves declaration order for deterministic iteration
	// (e.g. when printing top-level expression results in program order,
	// spec §5 "Ordering guarantees").
	DeclOrder []string

	Imports []*ImportedSchema
	Exprs   []*TypedExpr
}

// NewSchema creates an empty Schema rooted at folder, optionally nested
// under parent (nil for a top-level schema or module root).
func NewSchema(folder string, parent *Schema) *Schema {
	return &Schema{
		Folder:      folder,
		ParentScope: parent,
		Externs:     map[string]*Decl{},
		Decls:       map[string]*Decl{},
	}
}

// AddDecl registers d under its own name, failing with DuplicateEntry if
// a decl (or extern) with that name already exists at this level.
func (s *Schema) AddDecl(d *Decl) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Decls[d.Name.Name]; ok {
		return fmt.Errorf("%w: %s", qs.ErrDuplicateEntry, d.Name.Name)
	}

	if _, ok := s.Externs[d.Name.Name]; ok {
		return fmt.Errorf("%w: %s", qs.ErrDuplicateEntry, d.Name.Name)
	}

	if d.Extern {
		s.Externs[d.Name.Name] = d
	} else {
		s.Decls[d.Name.Name] = d
	}

	s.DeclOrder = append(s.DeclOrder, d.Name.Name)

	return nil
}

// GetDecl looks up name at this level only (no parent walk; that is
// lookup_path's job), checking decls first, then externs.
func (s *Schema) GetDecl(name string) (*Decl, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.Decls[name]; ok {
		return d, true
	}

	if d, ok := s.Externs[name]; ok {
		return d, true
	}

	return nil, false
}

// AddExpr appends a top-level expression to execute, in source order.
func (s *Schema) AddExpr(e *TypedExpr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Exprs = append(s.Exprs, e)
}

// AddImport records the effect of an `import` statement.
func (s *Schema) AddImport(imp *ImportedSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Imports = append(s.Imports, imp)
}

// SchemaLoader resolves an import path to a Schema (spec §6 "host
// provided loader"). The compiler never walks a filesystem itself; that
// policy lives entirely behind this interface.
type SchemaLoader interface {
	Load(path qs.Path) (*Schema, error)
}

// MapLoader is an in-memory SchemaLoader keyed by dotted path string,
// sufficient for tests and embedding scenarios that construct schemas
// programmatically rather than from files (spec's Non-goals exclude
// filesystem-walking import resolution from this package's scope).
type MapLoader struct {
	schemas map[string]*Schema
}

// NewMapLoader builds a MapLoader over the given path->schema mapping.
func NewMapLoader(schemas map[string]*Schema) *MapLoader {
	cp := make(map[string]*Schema, len(schemas))
	for k, v := range schemas {
		cp[k] = v
	}

	return &MapLoader{schemas: cp}
}

// Load implements SchemaLoader.
func (m *MapLoader) Load(path qs.Path) (*Schema, error) {
	s, ok := m.schemas[path.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", qs.ErrImport, path)
	}

	return s, nil
}
