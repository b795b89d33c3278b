package engine

import "github.com/queryscript/qs/internal/types"

// defaultBatchSize bounds how many records a MemRelation groups into one
// Batch; arbitrary but matches the teacher's own habit of a fixed
// connection-pool size (OpenDatabase's SetMaxOpenConns(10)) rather than
// making every knob configurable up front.
const defaultBatchSize = 1024

// MemRelation is a Relation materialized entirely in memory, built once
// an engine adapter has drained a driver's result set. Every concrete
// engine (enginepg, enginemysql, enginesqlite) constructs its Relation
// this way rather than streaming, mirroring the teacher's own
// executeSQL, which scans a whole *sql.Rows into a [][]interface{}
// before returning.
type MemRelation struct {
	rowType types.RuntimeType
	columns []string
	batches [][]map[string]any
}

// NewMemRelation groups records into fixed-size batches under rowType.
// columns gives the field order Column(j) indexes into (RuntimeType's
// Fields carries the same names, but a driver's column order is the
// ground truth for a given result set).
func NewMemRelation(rowType types.RuntimeType, columns []string, records []map[string]any) *MemRelation {
	r := &MemRelation{rowType: rowType, columns: columns}

	for len(records) > 0 {
		n := min(len(records), defaultBatchSize)
		r.batches = append(r.batches, records[:n])
		records = records[n:]
	}

	return r
}

func (r *MemRelation) NumBatches() int { return len(r.batches) }

func (r *MemRelation) Schema() types.RuntimeType { return r.rowType }

func (r *MemRelation) Batch(i int) Batch {
	return memBatch{columns: r.columns, records: r.batches[i]}
}

type memBatch struct {
	columns []string
	records []map[string]any
}

func (b memBatch) Records() []map[string]any { return b.records }

func (b memBatch) Column(j int) []any {
	name := b.columns[j]

	out := make([]any, len(b.records))
	for i, rec := range b.records {
		out[i] = rec[name]
	}

	return out
}
