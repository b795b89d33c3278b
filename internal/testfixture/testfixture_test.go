package testfixture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirParsesFixtureFiles(t *testing.T) {
	cases, err := LoadDir("testdata")
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "integer literal widths", cases[0].Name)
	assert.Equal(t, "q", cases[0].Path)
	assert.Nil(t, cases[0].Error)

	assert.Equal(t, "reference to an undeclared name", cases[1].Name)
	require.NotNil(t, cases[1].Error)
	assert.Equal(t, "no such entry", cases[1].Error.Contains)
}

func TestLoadSingleFile(t *testing.T) {
	cases, err := Load("testdata/scalar_exprs.yaml")
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}

func TestExpectedErrorMatchesError(t *testing.T) {
	e := &ExpectedError{Contains: "no such entry"}

	assert.True(t, e.MatchesError(errors.New("lookup failed: no such entry: foo")))
	assert.False(t, e.MatchesError(errors.New("something else")))
	assert.False(t, e.MatchesError(nil))

	var nilExpected *ExpectedError
	assert.True(t, nilExpected.MatchesError(nil))
	assert.False(t, nilExpected.MatchesError(errors.New("boom")))
}
