package qs

import "errors"

// Sentinel errors for the QueryScript compiler and runtime, one per
// failure mode named in the error taxonomy. Call sites wrap these with
// fmt.Errorf("%w: ...") to attach path/location detail.
var (
	// ErrSyntax indicates the source or SQL tokenizer/parser rejected the input.
	ErrSyntax = errors.New("syntax error")

	// ErrUnimplemented indicates an unsupported SQL construct or language feature.
	ErrUnimplemented = errors.New("unimplemented")

	// ErrNoSuchEntry indicates a path segment could not be resolved.
	ErrNoSuchEntry = errors.New("no such entry")
	// ErrDuplicateEntry indicates an entry was declared or supplied more than once.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrMissingArg indicates a required function argument was not supplied.
	ErrMissingArg = errors.New("missing argument")

	// ErrWrongKind indicates a decl was used as the wrong kind (e.g. a type used as a value).
	ErrWrongKind = errors.New("wrong decl kind")
	// ErrWrongType indicates a unification failure between two monotypes.
	ErrWrongType = errors.New("type mismatch")

	// ErrAmbiguousColumn indicates a bare column name resolved to more than one relation.
	ErrAmbiguousColumn = errors.New("ambiguous column")
	// ErrScalarSubselect indicates a subquery used in scalar position returned the wrong shape.
	ErrScalarSubselect = errors.New("subquery did not return a single scalar column")

	// ErrImport indicates the schema loader failed to resolve an import path.
	ErrImport = errors.New("import failed")

	// ErrUnresolved indicates a cell was observed synchronously before it became Known.
	ErrUnresolved = errors.New("value not yet resolved")
	// ErrUnresolvedExtern indicates runtime evaluation reached an extern with no bound value.
	ErrUnresolvedExtern = errors.New("unresolved extern")
	// ErrNoSuchContextValue indicates a ContextRef name was not present in the runtime context.
	ErrNoSuchContextValue = errors.New("no such context value")

	// ErrOccursCheckCycle indicates a Ref chain formed a cycle (should be unreachable; see cell package).
	ErrOccursCheckCycle = errors.New("cyclic reference chain")

	// ErrUnsupportedExternal indicates a generic External() type was used on something other than `load`.
	ErrUnsupportedExternal = errors.New("external type only supported on load()")

	// ErrRuntime wraps an error that occurred while dispatching a typed expression.
	ErrRuntime = errors.New("runtime error")
	// ErrTypesystem wraps an internal type-system invariant violation.
	ErrTypesystem = errors.New("type system error")
	// ErrConfig indicates a Config failed to load or validate.
	ErrConfig = errors.New("configuration error")
)
