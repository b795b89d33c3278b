package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/runtime"
	"github.com/queryscript/qs/internal/scheduler"
	"github.com/queryscript/qs/internal/sqlcompiler"
	"github.com/queryscript/qs/internal/types"
)

// fakeEngine is a scripted engine.SQLEngine double recording the query
// text it was handed and returning a pre-built relation.
type fakeEngine struct {
	gotQuery string
	result   engine.Relation
}

func (f *fakeEngine) Eval(_ context.Context, query string, _ map[qs.Ident]engine.SQLParam) (engine.Relation, error) {
	f.gotQuery = query
	return f.result, nil
}

// newTestSession builds a Session around a fakeEngine registered as
// "default", bypassing NewSession's real driver dialing so compile/eval
// wiring can be exercised without a live database.
func newTestSession(fe *fakeEngine) *Session {
	sched := scheduler.New(100)
	sched.SetAllowInlining(true)

	return &Session{
		Config:   qs.Config{DefaultEngine: "default", DisableTypechecks: true},
		Compiler: program.NewCompiler(program.NewMapLoader(nil), sched, sqlcompiler.New()),
		Sched:    sched,
		Natives:  runtime.NewRegistry(nil),
		Engines:  map[string]engine.SQLEngine{"default": fe},
	}
}

// TestSessionCompileAndEvalScalarQuery exercises the full
// parse→compile→drive→lookup→runtime.Eval pipeline end to end for a
// trivial query-bodied decl.
func TestSessionCompileAndEvalScalarQuery(t *testing.T) {
	rel := engine.NewMemRelation(
		types.RuntimeType{Kind: types.KindRecord, Fields: []types.RuntimeField{{Name: "x", Type: types.RuntimeType{Kind: types.KindAtom, Atom: types.AtomInt32}}}},
		[]string{"x"},
		[]map[string]any{{"x": 1}},
	)
	fe := &fakeEngine{result: rel}
	sess := newTestSession(fe)

	schema, err := sess.Compile("root", nil, "export let q = select 1 as x\n")
	require.NoError(t, err)

	v, err := sess.Eval(context.Background(), schema, qs.NewPath("q"))
	require.NoError(t, err)
	assert.Equal(t, engine.Relation(rel), v)
	assert.NotEmpty(t, fe.gotQuery)
}

// TestSessionEvalUnknownPathErrors covers looking up a decl that was
// never declared.
func TestSessionEvalUnknownPathErrors(t *testing.T) {
	sess := newTestSession(&fakeEngine{})

	schema, err := sess.Compile("root", nil, "export let q = select 1 as x\n")
	require.NoError(t, err)

	_, err = sess.Eval(context.Background(), schema, qs.NewPath("missing"))
	assert.Error(t, err)
}

// TestSessionEngineForRequiresConfiguration confirms Eval fails loudly
// rather than guessing when no engine can be selected.
func TestSessionEngineForRequiresConfiguration(t *testing.T) {
	sess := newTestSession(&fakeEngine{})
	sess.Config.DefaultEngine = ""
	sess.Engines = map[string]engine.SQLEngine{"a": &fakeEngine{}, "b": &fakeEngine{}}

	schema, err := sess.Compile("root", nil, "export let q = select 1 as x\n")
	require.NoError(t, err)

	_, err = sess.Eval(context.Background(), schema, qs.NewPath("q"))
	assert.ErrorIs(t, err, qs.ErrConfig)
}
