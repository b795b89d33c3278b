package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
)

// Loader resolves a `load(path, format?)` call into a relation (spec
// §6). The file-loading/schema-sniffing policy itself is an explicit
// Non-goal of this module (spec §1 "the file loader and schema-extension
// discovery"); this interface is the seam a host application plugs its
// own loader into, the same role program.SchemaLoader plays for imports.
type Loader interface {
	Load(ctx context.Context, path string, format string) (engine.Relation, error)
}

// Registry is the runtime's native-function dispatch table (spec §6
// "Native functions exposed into the program"): the two builtins named
// in the spec (`load`, `__native_identity`) plus any number of
// CEL-backed native functions a host registers for its own `fn ... native`
// declarations, grounded on the teacher's query/executor.go use of
// cel-go to evaluate parameter expressions (SPEC_FULL §B).
type Registry struct {
	mu     sync.Mutex
	loader Loader
	cel    map[string]cel.Program
}

// NewRegistry builds a Registry. loader may be nil if the program never
// calls load().
func NewRegistry(loader Loader) *Registry {
	return &Registry{loader: loader, cel: map[string]cel.Program{}}
}

// RegisterCEL compiles expr once against a CEL environment whose
// variables are argNames, and registers it under name. Re-registering
// the same name recompiles and replaces the existing program.
func (r *Registry) RegisterCEL(name string, argNames []string, expr string) error {
	opts := make([]cel.EnvOption, len(argNames))
	for i, a := range argNames {
		opts[i] = cel.Variable(a, cel.AnyType)
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return fmt.Errorf("%w: native %s: building CEL env: %v", qs.ErrUnimplemented, name, err)
	}

	ast, issues := env.Compile(expr)
	if issues.Err() != nil {
		return fmt.Errorf("%w: native %s: %v", qs.ErrSyntax, name, issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return fmt.Errorf("%w: native %s: %v", qs.ErrUnimplemented, name, err)
	}

	r.mu.Lock()
	r.cel[name] = prg
	r.mu.Unlock()

	return nil
}

// Call dispatches name with the caller's bound arguments (keyed by
// argument name, as bound by evalFnCall).
func (r *Registry) Call(ctx context.Context, name string, values map[string]any) (any, error) {
	switch name {
	case "load":
		return r.callLoad(ctx, values)
	case "__native_identity":
		return callNativeIdentity(values)
	}

	r.mu.Lock()
	prg, ok := r.cel[name]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: native function %q", qs.ErrNoSuchEntry, name)
	}

	out, _, err := prg.ContextEval(ctx, map[string]any(values))
	if err != nil {
		return nil, fmt.Errorf("%w: native %s: %v", qs.ErrRuntime, name, err)
	}

	return out.Value(), nil
}

// callLoad expects the conventional load(path, format?) argument names
// (spec §6); format is optional and defaults to "" (loader-detected).
func (r *Registry) callLoad(ctx context.Context, values map[string]any) (any, error) {
	if r.loader == nil {
		return nil, fmt.Errorf("%w: load(): no loader configured", qs.ErrUnimplemented)
	}

	path, ok := values["path"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: load(): missing string argument \"path\"", qs.ErrMissingArg)
	}

	format, _ := values["format"].(string)

	return r.loader.Load(ctx, path, format)
}

// callNativeIdentity implements `__native_identity(x: T) -> T`, the
// type-assisted no-op used for coercion plumbing (spec §6): it exists
// purely so the type checker can assign a fresh type to an otherwise
// unchanged value, so it passes its single argument through verbatim.
func callNativeIdentity(values map[string]any) (any, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("%w: __native_identity expects exactly one argument, got %d", qs.ErrMissingArg, len(values))
	}

	for _, v := range values {
		return v, nil
	}

	return nil, nil
}
