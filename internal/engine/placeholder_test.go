package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs"
)

func TestRewritePlaceholdersQuestionStyle(t *testing.T) {
	params := map[qs.Ident]SQLParam{
		qs.NewIdent("p1"): {Name: "p1", Value: 1},
		qs.NewIdent("p2"): {Name: "p2", Value: "x"},
	}

	rewritten, args, err := RewritePlaceholders("select * from t where a = @p1 and b = @p2", params, PlaceholderQuestion)
	require.NoError(t, err)
	assert.Equal(t, "select * from t where a = ? and b = ?", rewritten)
	require.Len(t, args, 2)
	assert.Equal(t, 1, args[0].Value)
	assert.Equal(t, "x", args[1].Value)
}

func TestRewritePlaceholdersDollarStyleRepeatedName(t *testing.T) {
	params := map[qs.Ident]SQLParam{
		qs.NewIdent("p1"): {Name: "p1", Value: 5},
	}

	rewritten, args, err := RewritePlaceholders("select @p1 + @p1", params, PlaceholderDollar)
	require.NoError(t, err)
	assert.Equal(t, "select $1 + $1", rewritten)
	require.Len(t, args, 1)
}

func TestRewritePlaceholdersIgnoresQuotedAt(t *testing.T) {
	params := map[qs.Ident]SQLParam{
		qs.NewIdent("p1"): {Name: "p1", Value: 1},
	}

	rewritten, args, err := RewritePlaceholders(`select '@notaparam', @p1`, params, PlaceholderQuestion)
	require.NoError(t, err)
	assert.Equal(t, `select '@notaparam', ?`, rewritten)
	require.Len(t, args, 1)
}

func TestRewritePlaceholdersUnboundNameErrors(t *testing.T) {
	_, _, err := RewritePlaceholders("select @missing", nil, PlaceholderQuestion)
	require.Error(t, err)
	assert.ErrorIs(t, err, qs.ErrNoSuchContextValue)
}
