package program

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/generics"
	"github.com/queryscript/qs/internal/lang"
	"github.com/queryscript/qs/internal/scheduler"
	"github.com/queryscript/qs/internal/scope"
	"github.com/queryscript/qs/internal/types"
)

// ExprCompiler compiles one QueryScript value expression (always a
// parsed SQL query or SQL scalar expression, per internal/lang) into a
// TypedExpr. It is implemented by the SQL compiler and injected here so
// that this package never imports it directly (the SQL compiler already
// depends on program for Decl/Schema/lookup_path) — the dependency only
// runs one way.
type ExprCompiler interface {
	// CompileExpr compiles e within schema, using a fresh top-level Scope
	// of the given multiple-rows-ness (true for a real query, false for a
	// scalar/extern-typed position).
	CompileExpr(c *Compiler, schema *Schema, e *lang.Expr, multipleRows bool) (*TypedExpr, error)
}

// ExternalTypeResolver discovers the row type behind a load() call at
// compile time (spec §4.H "add_external_type"): given the call's
// already-compiled arguments (e.g. a file path literal), it returns the
// structural type load() should produce. A nil Externals on Compiler
// means load() can never resolve; programs that don't call load() don't
// need one configured.
type ExternalTypeResolver interface {
	ResolveExternalType(args []*TypedExpr) (types.MType, error)
}

// Compiler is the program compiler described in spec §4.E: it walks a
// parsed lang.Schema's statements and compiles each eagerly into a Decl.
type Compiler struct {
	Loader    SchemaLoader
	Generics  *generics.Registry
	Scheduler *scheduler.Scheduler
	Counters  *scope.Counters
	Exprs     ExprCompiler
	Externals ExternalTypeResolver

	// Global is the sentinel schema consulted by lookup_path when
	// import_global is set (spec §4.E); nil disables global lookups.
	Global *Schema
}

// NewCompiler wires a Compiler from its collaborators. exprs may be nil
// if the caller only needs TypeDef/Extern/Import compilation (no SQL
// bodies will be compiled).
func NewCompiler(loader SchemaLoader, sched *scheduler.Scheduler, exprs ExprCompiler) *Compiler {
	return &Compiler{
		Loader:    loader,
		Generics:  generics.NewRegistry(),
		Scheduler: sched,
		Counters:  scope.NewCounters(),
		Exprs:     exprs,
	}
}

// CompileSchema compiles every statement of parsed in order, registering
// decls into (and returning) a fresh Schema rooted at folder.
func (c *Compiler) CompileSchema(folder string, parent *Schema, parsed *lang.Schema) (*Schema, error) {
	s := NewSchema(folder, parent)

	for _, stmt := range parsed.Stmts {
		if err := c.compileStmt(s, stmt); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (c *Compiler) compileStmt(s *Schema, stmt lang.Stmt) error {
	switch stmt.Kind {
	case lang.StmtTypeDef:
		return c.compileTypeDef(s, stmt)
	case lang.StmtLet:
		return c.compileLet(s, stmt)
	case lang.StmtExtern:
		return c.compileExtern(s, stmt)
	case lang.StmtFnDef:
		return c.compileFnDef(s, stmt)
	case lang.StmtImport:
		return c.compileImport(s, stmt)
	case lang.StmtExpr:
		return c.compileTopLevelExpr(s, stmt)
	case lang.StmtNoop:
		return nil
	default:
		return fmt.Errorf("%w: statement kind %d", qs.ErrUnimplemented, stmt.Kind)
	}
}

func (c *Compiler) compileTypeDef(s *Schema, stmt lang.Stmt) error {
	t, err := c.ResolveType(s, &stmt.TypeDefBody)
	if err != nil {
		return fmt.Errorf("type %s: %w", stmt.TypeDefName.Name, err)
	}

	return s.AddDecl(&Decl{
		Public: stmt.Export,
		Name:   toQSIdent(stmt.TypeDefName),
		Value:  SchemaEntry{Kind: SchemaEntryType, Type: t},
	})
}

func (c *Compiler) compileLet(s *Schema, stmt lang.Stmt) error {
	if c.Exprs == nil {
		return fmt.Errorf("%w: let %s: no expression compiler configured", qs.ErrUnimplemented, stmt.LetName.Name)
	}

	te, err := c.Exprs.CompileExpr(c, s, stmt.LetBody, true)
	if err != nil {
		return fmt.Errorf("let %s: %w", stmt.LetName.Name, err)
	}

	if stmt.LetType != nil {
		annotated, err := c.ResolveType(s, stmt.LetType)
		if err != nil {
			return fmt.Errorf("let %s: %w", stmt.LetName.Name, err)
		}

		if err := cell.Unify(te.Type, annotated); err != nil {
			return fmt.Errorf("let %s: %w", stmt.LetName.Name, err)
		}
	}

	scheme, err := c.generalize(te.Type)
	if err != nil {
		return fmt.Errorf("let %s: %w", stmt.LetName.Name, err)
	}

	return s.AddDecl(&Decl{
		Public: stmt.Export,
		Name:   toQSIdent(stmt.LetName),
		Value:  SchemaEntry{Kind: SchemaEntryExpr, Expr: &STypedExpr{Type: scheme, Expr: te.Expr}},
	})
}

func (c *Compiler) compileExtern(s *Schema, stmt lang.Stmt) error {
	t, err := c.ResolveType(s, &stmt.ExternType)
	if err != nil {
		return fmt.Errorf("extern %s: %w", stmt.ExternName.Name, err)
	}

	te := &TypedExpr{Type: t, Expr: cell.Known(Expr{Kind: ExprUnknown})}

	return s.AddDecl(&Decl{
		Public: stmt.Export,
		Extern: true,
		Name:   toQSIdent(stmt.ExternName),
		Value:  SchemaEntry{Kind: SchemaEntryExpr, Expr: &STypedExpr{Type: types.Mono(te.Type), Expr: te.Expr}},
	})
}

// compileFnDef compiles a function definition by building a child
// schema in which each argument is bound as a fn_arg decl, compiling the
// body (for FnBodyExpr) in that child schema, and generalizing the
// resulting Fn(args -> ret) type (spec §4.E "FnDef").
func (c *Compiler) compileFnDef(s *Schema, stmt lang.Stmt) error {
	inner := NewSchema(s.Folder, s)

	argFields := make([]types.Field, len(stmt.FnArgs))

	for i, arg := range stmt.FnArgs {
		argType, err := c.ResolveType(s, &arg.Type)
		if err != nil {
			return fmt.Errorf("fn %s: argument %s: %w", stmt.FnName.Name, arg.Name.Name, err)
		}

		argFields[i] = types.Field{Name: arg.Name.Name, Type: argType}

		argExpr := &TypedExpr{Type: argType, Expr: cell.Known(Expr{Kind: ExprContextRef, ContextName: arg.Name.Name})}
		if err := inner.AddDecl(&Decl{
			Name:  toQSIdent(arg.Name),
			FnArg: true,
			Value: SchemaEntry{Kind: SchemaEntryExpr, Expr: &STypedExpr{Type: types.Mono(argExpr.Type), Expr: argExpr.Expr}},
		}); err != nil {
			return err
		}
	}

	var retCell *cell.CRef[types.MType]
	var compiledBody *TypedExpr

	switch stmt.FnBody.Kind {
	case lang.FnBodyExpr:
		if c.Exprs == nil {
			return fmt.Errorf("%w: fn %s: no expression compiler configured", qs.ErrUnimplemented, stmt.FnName.Name)
		}

		te, err := c.Exprs.CompileExpr(c, inner, stmt.FnBody.Expr, false)
		if err != nil {
			return fmt.Errorf("fn %s: %w", stmt.FnName.Name, err)
		}

		retCell = te.Type
		compiledBody = te

	case lang.FnBodyNative:
		retCell = cell.NewUnknown[types.MType](stmt.FnName.Name + ".ret")
		compiledBody = &TypedExpr{Type: retCell, Expr: cell.Known(Expr{Kind: ExprNativeFn, NativeFnName: stmt.FnName.Name})}

	case lang.FnBodySQL:
		// The SQL engine is expected to already define this function; there
		// is no QueryScript body to compile, so its return type can only
		// come from an explicit `-> type` annotation.
		retCell = cell.NewUnknown[types.MType](stmt.FnName.Name + ".ret")

	default:
		return fmt.Errorf("%w: fn %s: body kind %d", qs.ErrUnimplemented, stmt.FnName.Name, stmt.FnBody.Kind)
	}

	if stmt.FnRet != nil {
		declaredRet, err := c.ResolveType(s, stmt.FnRet)
		if err != nil {
			return fmt.Errorf("fn %s: %w", stmt.FnName.Name, err)
		}

		if err := cell.Unify(retCell, declaredRet); err != nil {
			return fmt.Errorf("fn %s: return type: %w", stmt.FnName.Name, err)
		}
	}

	fnType := cell.Known(types.Fn(argFields, retCell))

	scheme, err := c.generalize(fnType)
	if err != nil {
		return fmt.Errorf("fn %s: %w", stmt.FnName.Name, err)
	}

	fnExpr := cell.Known(Expr{Kind: ExprFn, FnBody: &FnExpr{InnerSchema: inner, Body: stmt.FnBody, CompiledBody: compiledBody}})

	return s.AddDecl(&Decl{
		Public: stmt.Export,
		Name:   toQSIdent(stmt.FnName),
		Value:  SchemaEntry{Kind: SchemaEntryExpr, Expr: &STypedExpr{Type: scheme, Expr: fnExpr}},
	})
}

func (c *Compiler) compileImport(s *Schema, stmt lang.Stmt) error {
	path := toQSPath(stmt.ImportPath)

	imported, err := c.Loader.Load(path)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	args := map[string]*TypedExpr{}

	for _, na := range stmt.ImportArgs {
		if c.Exprs == nil {
			return fmt.Errorf("%w: import %s: no expression compiler configured", qs.ErrUnimplemented, path)
		}

		te, err := c.Exprs.CompileExpr(c, s, na.Expr, false)
		if err != nil {
			return fmt.Errorf("import %s: argument %s: %w", path, na.Name.Name, err)
		}

		args[na.Name.Name] = te
	}

	s.AddImport(&ImportedSchema{Args: args, Schema: imported})

	switch stmt.ImportList.Kind {
	case lang.ImportNone:
		return s.AddDecl(&Decl{
			Public: stmt.Export,
			Name:   qs.NewIdent(path.Last().Name),
			Value:  SchemaEntry{Kind: SchemaEntrySchema, SchemaPath: path, Schema: imported},
		})

	case lang.ImportStar:
		for _, name := range imported.DeclOrder {
			d, _ := imported.GetDecl(name)
			if !d.Public {
				continue
			}

			if err := s.AddDecl(&Decl{Public: stmt.Export, Extern: d.Extern, Name: d.Name, Value: d.Value, FnArg: d.FnArg}); err != nil {
				return err
			}
		}

		return nil

	case lang.ImportItems:
		for _, item := range stmt.ImportList.Items {
			name := item.Last().Name

			d, ok := imported.GetDecl(name)
			if !ok {
				return fmt.Errorf("%w: %s in %s", qs.ErrNoSuchEntry, name, path)
			}

			if err := s.AddDecl(&Decl{Public: stmt.Export, Extern: d.Extern, Name: d.Name, Value: d.Value, FnArg: d.FnArg}); err != nil {
				return err
			}
		}

		return nil

	default:
		return fmt.Errorf("%w: import list kind %d", qs.ErrUnimplemented, stmt.ImportList.Kind)
	}
}

func (c *Compiler) compileTopLevelExpr(s *Schema, stmt lang.Stmt) error {
	if c.Exprs == nil {
		return fmt.Errorf("%w: no expression compiler configured", qs.ErrUnimplemented)
	}

	te, err := c.Exprs.CompileExpr(c, s, stmt.Expr, true)
	if err != nil {
		return err
	}

	s.AddExpr(te)

	return nil
}

// generalize produces an SType over t's still-free type variables
// (spec §4.E "generalize the result into an SType", let-polymorphism).
// t must already be Known by the time generalize runs; callers only call
// this once a Let/FnDef body has finished compiling.
func (c *Compiler) generalize(t *cell.CRef[types.MType]) (types.SType, error) {
	v, err := t.Must()
	if err != nil {
		// Still unresolved (e.g. the scheduler hasn't driven this cell to
		// fixpoint yet): bind monomorphically for now. The caller's
		// top-level drive() pass is responsible for ensuring every
		// reachable cell is Known before the scheme is ever instantiated.
		return types.Mono(t), nil
	}

	free := types.FreeVariables(v)
	if len(free) == 0 {
		return types.Mono(t), nil
	}

	return types.Generalize(t, free), nil
}

// resolveSchemaEntry returns the Schema a SchemaEntrySchema entry points
// to, loading it via c.Loader and caching the result on the entry the
// first time it's needed.
func (c *Compiler) resolveSchemaEntry(e *SchemaEntry) (*Schema, error) {
	if e.Kind != SchemaEntrySchema {
		return nil, fmt.Errorf("%w: not a schema entry", qs.ErrWrongKind)
	}

	if e.Schema != nil {
		return e.Schema, nil
	}

	loaded, err := c.Loader.Load(e.SchemaPath)
	if err != nil {
		return nil, err
	}

	e.Schema = loaded

	return loaded, nil
}

func toQSIdent(i lang.Ident) qs.Ident {
	return qs.Ident{Name: i.Name, Pos: qs.Position{Line: i.Pos.Line, Column: i.Pos.Column, Offset: i.Pos.Offset}}
}

func toQSPath(p lang.Path) qs.Path {
	out := make(qs.Path, len(p))
	for i, id := range p {
		out[i] = toQSIdent(id)
	}

	return out
}
