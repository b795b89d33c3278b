// Package runtime implements the runtime dispatcher described in spec
// §4.I: given a compiled program.TypedExpr and a Context, it evaluates
// the tree by switching on program.Expr's kind, recursing into function
// calls and SQL bodies, and handing rewritten SQL text to a configured
// engine.SQLEngine. Grounded directly on spec §4.I's case list plus
// SPEC_FULL §C.3 (a function closure captures the folder active at its
// *definition* site) and §B's note that native function bodies are
// backed by cel-go, mirroring the teacher's query/executor.go CEL usage.
package runtime

import (
	"github.com/google/uuid"

	"github.com/queryscript/qs/internal/engine"
	"github.com/queryscript/qs/internal/program"
)

// Context is the `Context{folder, values, sql_engine}` of spec §4.I.
// Schema records the schema instance currently in scope, Values holds
// every name a ContextRef in the current body may resolve (function
// argument bindings, primarily), and Natives/Engine are the runtime's
// two collaborators (cel-go-backed native dispatch, SQL execution).
type Context struct {
	Schema *program.Schema
	Values map[string]any

	Engine  engine.SQLEngine
	Natives *Registry

	// Compiler is the program.Compiler that produced Schema, needed by
	// ExprSchemaEntry dispatch to re-run lookup_path (spec §4.E) against
	// an already-compiled schema tree. May be nil if the program never
	// references another schema by path at the value level.
	Compiler *program.Compiler

	// SessionID identifies the runtime session a Context was built
	// under (SPEC_FULL §B: uuid used for "session ids, SQLParam
	// boxing"). It has no effect on evaluation; it exists so error
	// messages and future tracing can correlate work back to one
	// session without threading an extra parameter everywhere.
	SessionID uuid.UUID

	// DisableTypechecks skips the post-execution runtime type check
	// spec §4.I requires after an ExprSQL body returns (qs.Config's
	// field of the same name, SPEC_FULL §A.2).
	DisableTypechecks bool
}

// NewContext builds a root Context for schema, generating a fresh
// session id. compiler may be nil if the program never contains an
// ExprSchemaEntry reference.
func NewContext(schema *program.Schema, compiler *program.Compiler, eng engine.SQLEngine, natives *Registry, disableTypechecks bool) Context {
	return Context{
		Schema:            schema,
		Values:            map[string]any{},
		Engine:            eng,
		Natives:           natives,
		Compiler:          compiler,
		SessionID:         uuid.New(),
		DisableTypechecks: disableTypechecks,
	}
}

// withFrame returns a copy of c scoped to schema with a fresh Values
// map, for invoking a function body (spec §4.I "FnCall... switch folder
// to callee's ctx_folder").
func (c Context) withFrame(schema *program.Schema, values map[string]any) Context {
	c.Schema = schema
	c.Values = values

	return c
}
