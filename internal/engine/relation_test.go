package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs/internal/types"
)

func TestMemRelationBatchesRecords(t *testing.T) {
	rowType := types.RuntimeType{Kind: types.KindRecord, Fields: []types.RuntimeField{
		{Name: "id", Type: types.RuntimeType{Kind: types.KindAtom, Atom: types.AtomInt64}},
	}}

	records := make([]map[string]any, 0, defaultBatchSize+1)
	for i := range defaultBatchSize + 1 {
		records = append(records, map[string]any{"id": i})
	}

	rel := NewMemRelation(rowType, []string{"id"}, records)

	require.Equal(t, 2, rel.NumBatches())
	assert.Len(t, rel.Batch(0).Records(), defaultBatchSize)
	assert.Len(t, rel.Batch(1).Records(), 1)
	assert.Equal(t, rowType, rel.Schema())
}

func TestMemRelationColumnExtractsFieldAcrossRecords(t *testing.T) {
	rowType := types.RuntimeType{Kind: types.KindRecord}
	records := []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}}

	rel := NewMemRelation(rowType, []string{"id"}, records)

	require.Equal(t, 1, rel.NumBatches())
	assert.Equal(t, []any{1, 2, 3}, rel.Batch(0).Column(0))
}

func TestMemRelationEmptyRecordsYieldsNoBatches(t *testing.T) {
	rel := NewMemRelation(types.RuntimeType{Kind: types.KindRecord}, nil, nil)
	assert.Equal(t, 0, rel.NumBatches())
}
