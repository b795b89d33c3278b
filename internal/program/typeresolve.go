package program

import (
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
	"github.com/queryscript/qs/internal/lang"
	"github.com/queryscript/qs/internal/types"
)

// ResolveType lowers a parsed lang.Type into a type cell, recursively
// resolving struct fields, list/external element types, exclusions, and
// generic applications (spec §4.E "TypeDef(name, type): resolve type
// (may be a path, a struct, a list, a generic application)").
func (c *Compiler) ResolveType(s *Schema, t *lang.Type) (*cell.CRef[types.MType], error) {
	switch t.Kind {
	case lang.TypeReference:
		return c.resolveTypeReference(s, t)

	case lang.TypeStruct:
		return c.resolveTypeStruct(s, t)

	case lang.TypeList:
		elem, err := c.ResolveType(s, t.Elem)
		if err != nil {
			return nil, err
		}

		return cell.Known(types.List(elem)), nil

	case lang.TypeExternal:
		elem, err := c.ResolveType(s, t.Elem)
		if err != nil {
			return nil, err
		}

		g, err := c.Generics.New("External", []*cell.CRef[types.MType]{elem})
		if err != nil {
			return nil, err
		}

		return cell.Known(types.Generic(g)), nil

	case lang.TypeExclude:
		return c.resolveTypeExclude(s, t)

	case lang.TypeGeneric:
		return c.resolveTypeGeneric(s, t)

	default:
		return nil, fmt.Errorf("%w: type kind %d", qs.ErrUnimplemented, t.Kind)
	}
}

// builtinAtoms maps the language's primitive type names to their atomic
// kind; these resolve directly rather than through a Decl lookup, since
// no schema ever declares them (spec §3 lists them as leaf AtomicType
// values, not user-definable names).
var builtinAtoms = map[string]types.AtomicType{
	"int8":      types.AtomInt8,
	"int16":     types.AtomInt16,
	"int32":     types.AtomInt32,
	"int64":     types.AtomInt64,
	"float32":   types.AtomFloat32,
	"float64":   types.AtomFloat64,
	"decimal":   types.AtomDecimal,
	"bool":      types.AtomBool,
	"string":    types.AtomString,
	"timestamp": types.AtomTimestamp,
	"date":      types.AtomDate,
	"time":      types.AtomTime,
	"uuid":      types.AtomUUID,
	"json":      types.AtomJSON,
	"null":      types.AtomNull,
}

func (c *Compiler) resolveTypeReference(s *Schema, t *lang.Type) (*cell.CRef[types.MType], error) {
	if len(t.Reference) == 1 {
		if atom, ok := builtinAtoms[t.Reference[0].Name]; ok {
			return cell.Known(types.Atom(atom)), nil
		}
	}

	path := toQSPath(t.Reference)

	res, err := LookupPath(c, s, path, true, true)
	if err != nil {
		return nil, err
	}

	if res.Decl == nil || len(res.Remainder) > 0 || res.Decl.Value.Kind != SchemaEntryType {
		return nil, fmt.Errorf("%w: %s is not a type", qs.ErrWrongKind, path)
	}

	return res.Decl.Value.Type, nil
}

func (c *Compiler) resolveTypeStruct(s *Schema, t *lang.Type) (*cell.CRef[types.MType], error) {
	var fields []types.Field

	for _, f := range t.Fields {
		if f.IsInclude {
			includedCell, err := c.resolveTypeReference(s, &lang.Type{Kind: lang.TypeReference, Reference: f.Include})
			if err != nil {
				return nil, err
			}

			included, err := includedCell.Must()
			if err != nil {
				return nil, fmt.Errorf("include %s: %w", f.Include.String(), err)
			}

			if included.Kind != types.KindRecord {
				return nil, fmt.Errorf("%w: include %s is not a struct", qs.ErrWrongType, f.Include.String())
			}

			fields = append(fields, included.Fields...)
			continue
		}

		fieldType, err := c.ResolveType(s, f.Def)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name.Name, err)
		}

		fields = append(fields, types.Field{Name: f.Name.Name, Type: fieldType, Nullable: f.Nullable})
	}

	return cell.Known(types.Record(fields)), nil
}

func (c *Compiler) resolveTypeExclude(s *Schema, t *lang.Type) (*cell.CRef[types.MType], error) {
	innerCell, err := c.ResolveType(s, t.ExcludeInner)
	if err != nil {
		return nil, err
	}

	inner, err := innerCell.Must()
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}

	if inner.Kind != types.KindRecord {
		return nil, fmt.Errorf("%w: exclude target is not a struct", qs.ErrWrongType)
	}

	excluded := map[string]struct{}{}
	for _, id := range t.ExcludedFields {
		excluded[id.Name] = struct{}{}
	}

	var kept []types.Field

	for _, f := range inner.Fields {
		if _, ok := excluded[f.Name]; ok {
			delete(excluded, f.Name)
			continue
		}

		kept = append(kept, f)
	}

	if len(excluded) > 0 {
		for name := range excluded {
			return nil, fmt.Errorf("%w: excluded field %s not present", qs.ErrNoSuchEntry, name)
		}
	}

	return cell.Known(types.Record(kept)), nil
}

func (c *Compiler) resolveTypeGeneric(s *Schema, t *lang.Type) (*cell.CRef[types.MType], error) {
	args := make([]*cell.CRef[types.MType], len(t.GenericArgs))

	for i := range t.GenericArgs {
		a, err := c.ResolveType(s, &t.GenericArgs[i])
		if err != nil {
			return nil, err
		}

		args[i] = a
	}

	g, err := c.Generics.New(t.GenericName.Last().Name, args)
	if err != nil {
		return nil, err
	}

	return cell.Known(types.Generic(g)), nil
}
