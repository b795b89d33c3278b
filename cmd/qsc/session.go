// The qsc binary is QueryScript's command-line front end: it loads a
// Config, compiles a schema file, and evaluates the decl path named on
// the command line against the configured SQL engines. The Session
// type in this file is the facade named in the module map (compiler +
// scheduler + runtime wired together) — it lives in cmd/qsc rather than
// the root qs package because internal/program already imports qs for
// Ident/Path/the sentinel errors, and qs importing internal/program
// back would be a cyclic import; cmd/qsc has no such constraint since
// nothing imports it.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
	"github.com/queryscript/qs/internal/engine/enginemysql"
	"github.com/queryscript/qs/internal/engine/enginepg"
	"github.com/queryscript/qs/internal/engine/enginesqlite"
	"github.com/queryscript/qs/internal/lang"
	"github.com/queryscript/qs/internal/program"
	"github.com/queryscript/qs/internal/runtime"
	"github.com/queryscript/qs/internal/scheduler"
	"github.com/queryscript/qs/internal/sqlcompiler"
)

// connectTimeout bounds how long Session spends dialing a configured
// engine before giving up (spec carries no value for this; teacher's
// own database setup code in testrunner/testcontainers_test.go uses a
// similarly conservative fixed timeout rather than making it dynamic).
const connectTimeout = 10 * time.Second

// closeFunc releases one engine this package opened. The engines' Close
// methods disagree on signature (enginepg's Close returns nothing; the
// database/sql-backed engines return an error), so openEngine adapts
// each to a closeFunc for Session.Close.
type closeFunc func() error

// Session combines a program.Compiler, its scheduler, a native-function
// registry, and one engine.SQLEngine per configured name into the
// single object a host application drives a QueryScript program
// through, end to end: parse, compile, evaluate.
type Session struct {
	Config   qs.Config
	Compiler *program.Compiler
	Sched    *scheduler.Scheduler
	Natives  *runtime.Registry
	Engines  map[string]engine.SQLEngine

	loader  program.SchemaLoader
	rLoader runtime.Loader
	closers []closeFunc
}

// NewSession opens every engine named in cfg.Engines and wires a fresh
// Compiler/Scheduler/Registry around them. loader resolves `import`
// statements; rLoader backs the `load()` native (both may be nil, per
// the respective Non-goals around filesystem policy).
func NewSession(ctx context.Context, cfg qs.Config, loader program.SchemaLoader, rLoader runtime.Loader) (*Session, error) {
	sched := scheduler.New(cfg.MaxSchedulerPasses)
	sched.SetAllowInlining(cfg.AllowInlining)

	if loader == nil {
		loader = program.NewMapLoader(nil)
	}

	s := &Session{
		Config:   cfg,
		Compiler: program.NewCompiler(loader, sched, sqlcompiler.New()),
		Sched:    sched,
		Natives:  runtime.NewRegistry(rLoader),
		Engines:  map[string]engine.SQLEngine{},
		loader:   loader,
		rLoader:  rLoader,
	}

	for name, econf := range cfg.Engines {
		eng, closer, err := openEngine(ctx, econf)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: opening engine %q: %v", qs.ErrConfig, name, err)
		}

		s.Engines[name] = eng
		s.closers = append(s.closers, closer)
	}

	return s, nil
}

func openEngine(ctx context.Context, econf qs.EngineConfig) (engine.SQLEngine, closeFunc, error) {
	switch econf.Driver {
	case "postgres":
		e, err := enginepg.Open(ctx, econf.Connection, connectTimeout)
		if err != nil {
			return nil, nil, err
		}

		return e, func() error { e.Close(); return nil }, nil

	case "mysql":
		e, err := enginemysql.Open(econf.Connection, connectTimeout)
		if err != nil {
			return nil, nil, err
		}

		return e, e.Close, nil

	case "sqlite":
		e, err := enginesqlite.Open(econf.Connection, connectTimeout)
		if err != nil {
			return nil, nil, err
		}

		return e, e.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: unsupported driver %q", qs.ErrConfig, econf.Driver)
	}
}

// Close releases every engine connection this Session opened. Errors
// from individual closers are collected but never stop later closers
// from running.
func (s *Session) Close() error {
	var first error

	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// Compile parses src and compiles it into a fresh Schema rooted at
// folder, driving the scheduler to a fixpoint (spec §4.H) before
// returning. A caller that compiles several interdependent schemas
// should call Compile once per schema and let the shared Sched/
// Compiler resolve cross-schema references as each becomes available.
func (s *Session) Compile(folder string, parent *program.Schema, src string) (*program.Schema, error) {
	parsed, err := lang.Parse(src)
	if err != nil {
		return nil, err
	}

	schema, err := s.Compiler.CompileSchema(folder, parent, parsed)
	if err != nil {
		return nil, err
	}

	if err := s.Sched.Drive(); err != nil {
		return nil, err
	}

	return schema, nil
}

// engineFor resolves which engine.SQLEngine a schema-less Eval call
// should dispatch SQL to: the name is empty only when exactly one
// engine is configured, or Config.DefaultEngine names it explicitly.
func (s *Session) engineFor() (engine.SQLEngine, error) {
	if s.Config.DefaultEngine != "" {
		eng, ok := s.Engines[s.Config.DefaultEngine]
		if !ok {
			return nil, fmt.Errorf("%w: default_engine %q has no open engine", qs.ErrConfig, s.Config.DefaultEngine)
		}

		return eng, nil
	}

	if len(s.Engines) == 1 {
		for _, eng := range s.Engines {
			return eng, nil
		}
	}

	return nil, fmt.Errorf("%w: no default_engine configured and %d engines are open", qs.ErrConfig, len(s.Engines))
}

// Eval resolves path against schema via lookup_path (spec §4.E) and
// evaluates the decl it names under a fresh runtime.Context (spec
// §4.I). path must name a value decl, not a nested schema or a type.
func (s *Session) Eval(ctx context.Context, schema *program.Schema, path qs.Path) (any, error) {
	eng, err := s.engineFor()
	if err != nil {
		return nil, err
	}

	res, err := program.LookupPath(s.Compiler, schema, path, false, true)
	if err != nil {
		return nil, err
	}

	if res.Decl == nil || res.Decl.Value.Kind != program.SchemaEntryExpr {
		return nil, fmt.Errorf("%w: %s is not a value", qs.ErrWrongKind, path)
	}

	te := &program.TypedExpr{Type: res.Decl.Value.Expr.Type.Body, Expr: res.Decl.Value.Expr.Expr}

	rc := runtime.NewContext(schema, s.Compiler, eng, s.Natives, s.Config.DisableTypechecks)

	return runtime.Eval(ctx, rc, te)
}
