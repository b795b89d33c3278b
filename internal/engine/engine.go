// Package engine defines the SQL engine contract the runtime consumes
// (spec §6): the embedded SQL engine itself is a non-goal of this
// module, but the interface it must satisfy is core. Concrete
// implementations live in the enginepg/enginemysql/enginesqlite
// sub-packages, generalized from the teacher's query/executor.go
// (database/sql-based dispatch over a single driver) to a pluggable
// contract over three.
package engine

import (
	"context"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/types"
)

// SQLParam is one bound parameter of a query (spec §3/§6): either a
// scalar value or a Relation, boxed with the type the compiler inferred
// for it so an engine can choose how to bind it (a scalar placeholder
// vs. registering a temporary table).
type SQLParam struct {
	Name  string
	Value any
	Type  types.RuntimeType
	// Relation is set instead of Value when this parameter is itself a
	// relation (e.g. a `load()`-backed table passed into a derived
	// query), per spec §6 "parameters map to either registered temporary
	// tables... or scalar bindings".
	Relation Relation
}

// SQLEngine is the trait the runtime consumes (spec §6). query is
// already-rewritten SQL text using the placeholder naming scheme
// `@<name>` / `__qvm<name>` the SQL compiler emits; params is keyed by
// the same placeholder names, without the leading sigil.
type SQLEngine interface {
	Eval(ctx context.Context, query string, params map[qs.Ident]SQLParam) (Relation, error)
}

// Relation is a (possibly multi-batch) query result (spec §6).
type Relation interface {
	NumBatches() int
	Batch(i int) Batch
	Schema() types.RuntimeType // KindRecord
}

// Batch is one chunk of a Relation's rows.
type Batch interface {
	// Records returns the batch's rows, each a field-name-keyed map
	// matching Relation.Schema's fields.
	Records() []map[string]any
	// Column returns the j'th field's values across every record in
	// this batch, in row order.
	Column(j int) []any
}
