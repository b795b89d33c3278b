package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/types"
)

func relationType(fields ...types.Field) *cell.CRef[types.MType] {
	return cell.Known(types.List(cell.Known(types.Record(fields))))
}

func TestAmbiguousColumnAcrossRelations(t *testing.T) {
	s := New(NewCounters(), true)
	s.AddReference("a", qs.Position{}, relationType(types.Field{Name: "id", Type: cell.Known(types.Atom(types.AtomInt64))}))
	s.AddReference("b", qs.Position{}, relationType(types.Field{Name: "id", Type: cell.Known(types.Atom(types.AtomInt64))}))

	refs, err := s.GetAvailableReferences("")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Nil(t, refs[0].Type, "ambiguous column must have a nil type marker")
}

func TestQualifierNarrowsReferences(t *testing.T) {
	s := New(NewCounters(), true)
	s.AddReference("a", qs.Position{}, relationType(types.Field{Name: "id", Type: cell.Known(types.Atom(types.AtomInt64))}))
	s.AddReference("b", qs.Position{}, relationType(types.Field{Name: "id", Type: cell.Known(types.Atom(types.AtomInt64))}))

	refs, err := s.GetAvailableReferences("a")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.NotNil(t, refs[0].Type)
}

func TestPlaceholdersAreUniqueAcrossSiblingScopes(t *testing.T) {
	counters := NewCounters()
	s1 := New(counters, true)
	s2 := New(counters, true)

	p1 := s1.NextPlaceholder("param")
	p2 := s2.NextPlaceholder("param")
	assert.NotEqual(t, p1, p2)
}

func TestRemoveBoundReferencesStripsOwnRelations(t *testing.T) {
	s := New(NewCounters(), true)
	s.AddReference("people", qs.Position{}, relationType(types.Field{Name: "name", Type: cell.Known(types.Atom(types.AtomString))}))

	unbound := map[string]struct{}{"people": {}, "other": {}}
	s.RemoveBoundReferences(unbound)

	_, stillThere := unbound["people"]
	assert.False(t, stillThere)
	_, otherStillThere := unbound["other"]
	assert.True(t, otherStillThere)
}
