package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeTypeStringFormatsAtom(t *testing.T) {
	assert.Equal(t, "int64", RuntimeType{Kind: KindAtom, Atom: AtomInt64}.String())
	assert.Equal(t, "decimal", RuntimeType{Kind: KindAtom, Atom: AtomDecimal}.String())
}

func TestRuntimeTypeStringFormatsRecord(t *testing.T) {
	r := RuntimeType{
		Kind: KindRecord,
		Fields: []RuntimeField{
			{Name: "id", Type: RuntimeType{Kind: KindAtom, Atom: AtomInt64}},
			{Name: "name", Type: RuntimeType{Kind: KindAtom, Atom: AtomString}},
		},
	}

	assert.Equal(t, "{id: int64, name: string}", r.String())
}

func TestRuntimeTypeStringFormatsList(t *testing.T) {
	elem := RuntimeType{Kind: KindAtom, Atom: AtomBool}
	r := RuntimeType{Kind: KindList, Elem: &elem}

	assert.Equal(t, "list<bool>", r.String())
}

func TestRuntimeTypeStringDistinguishesMismatches(t *testing.T) {
	expected := RuntimeType{Kind: KindAtom, Atom: AtomInt32}
	actual := RuntimeType{Kind: KindAtom, Atom: AtomString}

	assert.NotEqual(t, expected.String(), actual.String())
	assert.Equal(t, "int32", expected.String())
	assert.Equal(t, "string", actual.String())
}
