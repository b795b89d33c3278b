// Package types implements QueryScript's monotypes, type schemes, and the
// arithmetic/comparison coercion table (spec §4.B).
package types

import (
	"fmt"
	"strings"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/cell"
)

// AtomicType enumerates the leaf types of the monotype language.
type AtomicType int

const (
	AtomInt8 AtomicType = iota
	AtomInt16
	AtomInt32
	AtomInt64
	AtomFloat32
	AtomFloat64
	AtomDecimal // carries Precision/Scale on the owning Field where relevant
	AtomBool
	AtomString
	AtomTimestamp
	AtomDate
	AtomTime
	AtomUUID
	AtomJSON
	AtomNull
)

func (a AtomicType) String() string {
	switch a {
	case AtomInt8:
		return "int8"
	case AtomInt16:
		return "int16"
	case AtomInt32:
		return "int32"
	case AtomInt64:
		return "int64"
	case AtomFloat32:
		return "float32"
	case AtomFloat64:
		return "float64"
	case AtomDecimal:
		return "decimal"
	case AtomBool:
		return "bool"
	case AtomString:
		return "string"
	case AtomTimestamp:
		return "timestamp"
	case AtomDate:
		return "date"
	case AtomTime:
		return "time"
	case AtomUUID:
		return "uuid"
	case AtomJSON:
		return "json"
	case AtomNull:
		return "null"
	default:
		return "unknown"
	}
}

func (a AtomicType) isNumeric() bool {
	switch a {
	case AtomInt8, AtomInt16, AtomInt32, AtomInt64, AtomFloat32, AtomFloat64, AtomDecimal:
		return true
	default:
		return false
	}
}

// Kind discriminates the MType sum.
type Kind int

const (
	KindAtom Kind = iota
	KindRecord
	KindList
	KindFn
	KindName
	KindGeneric
)

// Field is one element of a Record or Fn argument list: an ordered,
// named, nullable slot. Precision/Scale are only meaningful when Type is
// AtomDecimal.
type Field struct {
	Name      string
	Type      *cell.CRef[MType]
	Nullable  bool
	Precision int
	Scale     int
}

// GenericType is implemented by generic type constructors (spec §4.C).
// The types package only needs to invoke these hooks; the constructors
// themselves live in package generics to avoid an import cycle.
type GenericType interface {
	Name() string
	UnifyWith(other MType) error
	SubstituteWith(env map[string]*cell.CRef[MType]) (GenericType, error)
	ToRuntimeType() (RuntimeType, error)
	// RowType returns the element type of this generic when used as a
	// relation (spec §4.C "get_rowtype"), or nil if it cannot act as one.
	RowType() (*cell.CRef[MType], error)
	String() string
}

// MType is a monotype: exactly one of its Kind-tagged fields is
// meaningful, selected by Kind.
type MType struct {
	Kind Kind

	Atom AtomicType // KindAtom

	Fields []Field // KindRecord, or KindFn's argument list

	Elem *cell.CRef[MType] // KindList

	FnRet *cell.CRef[MType] // KindFn

	Name string // KindName: a free type variable inside a type scheme

	Generic GenericType // KindGeneric
}

func Atom(a AtomicType) MType               { return MType{Kind: KindAtom, Atom: a} }
func Record(fields []Field) MType           { return MType{Kind: KindRecord, Fields: fields} }
func List(elem *cell.CRef[MType]) MType     { return MType{Kind: KindList, Elem: elem} }
func Name(n string) MType                   { return MType{Kind: KindName, Name: n} }
func Generic(g GenericType) MType           { return MType{Kind: KindGeneric, Generic: g} }
func Fn(args []Field, ret *cell.CRef[MType]) MType {
	return MType{Kind: KindFn, Fields: args, FnRet: ret}
}

func (m MType) String() string {
	switch m.Kind {
	case KindAtom:
		return m.Atom.String()
	case KindRecord:
		parts := make([]string, len(m.Fields))
		for i, f := range m.Fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}

		return "{" + strings.Join(parts, ", ") + "}"
	case KindList:
		return "list<" + m.Elem.String() + ">"
	case KindFn:
		parts := make([]string, len(m.Fields))
		for i, f := range m.Fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}

		return "fn(" + strings.Join(parts, ", ") + ") -> " + m.FnRet.String()
	case KindName:
		return "'" + m.Name
	case KindGeneric:
		return m.Generic.String()
	default:
		return "?"
	}
}

// Unify implements cell.Unifier[MType], dispatching on Kind per spec §4.B.
func (m MType) Unify(other MType) error {
	if m.Kind == KindGeneric {
		return m.Generic.UnifyWith(other)
	}

	if other.Kind == KindGeneric {
		return other.Generic.UnifyWith(m)
	}

	if m.Kind != other.Kind {
		return fmt.Errorf("%w: %s vs %s", qs.ErrWrongType, m, other)
	}

	switch m.Kind {
	case KindAtom:
		if m.Atom != other.Atom {
			return fmt.Errorf("%w: %s vs %s", qs.ErrWrongType, m, other)
		}

		return nil

	case KindRecord:
		if len(m.Fields) != len(other.Fields) {
			return fmt.Errorf("%w: record arity %d vs %d", qs.ErrWrongType, len(m.Fields), len(other.Fields))
		}

		for i := range m.Fields {
			a, b := m.Fields[i], other.Fields[i]
			if a.Name != b.Name {
				return fmt.Errorf("%w: field %d name %q vs %q", qs.ErrWrongType, i, a.Name, b.Name)
			}

			if a.Nullable != b.Nullable {
				return fmt.Errorf("%w: field %q nullability differs", qs.ErrWrongType, a.Name)
			}

			if err := cell.Unify(a.Type, b.Type); err != nil {
				return fmt.Errorf("field %q: %w", a.Name, err)
			}
		}

		return nil

	case KindList:
		return cell.Unify(m.Elem, other.Elem)

	case KindFn:
		if len(m.Fields) != len(other.Fields) {
			return fmt.Errorf("%w: fn arity %d vs %d", qs.ErrWrongType, len(m.Fields), len(other.Fields))
		}

		for i := range m.Fields {
			if err := cell.Unify(m.Fields[i].Type, other.Fields[i].Type); err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
		}

		return cell.Unify(m.FnRet, other.FnRet)

	case KindName:
		// Two free variables unify trivially; the caller is responsible
		// for ensuring Name cells only appear inside a scheme body prior
		// to instantiation (after instantiation every Name has already
		// been replaced by a fresh Unknown cell).
		return nil

	default:
		return fmt.Errorf("%w: cannot unify kind %d", qs.ErrTypesystem, m.Kind)
	}
}

// Substitute returns a new cell in which every Name(n) leaf is replaced
// by env[n], and non-name cells are copied structurally.
func Substitute(m *cell.CRef[MType], env map[string]*cell.CRef[MType]) (*cell.CRef[MType], error) {
	return m.Substitute(func(v MType) (MType, error) {
		switch v.Kind {
		case KindName:
			if replacement, ok := env[v.Name]; ok {
				rv, err := replacement.Must()
				if err == nil {
					return rv, nil
				}
				// Replacement still unknown: keep the Name cell pointed
				// at the live replacement by unifying a fresh cell with
				// it, since MType is a value type and we can't return an
				// unresolved cell directly from Substitute's apply hook.
				return v, nil
			}

			return v, nil

		case KindRecord, KindFn:
			fields := make([]Field, len(v.Fields))
			for i, f := range v.Fields {
				nc, err := Substitute(f.Type, env)
				if err != nil {
					return MType{}, err
				}

				fields[i] = Field{Name: f.Name, Type: nc, Nullable: f.Nullable, Precision: f.Precision, Scale: f.Scale}
			}

			if v.Kind == KindFn {
				ret, err := Substitute(v.FnRet, env)
				if err != nil {
					return MType{}, err
				}

				return Fn(fields, ret), nil
			}

			return Record(fields), nil

		case KindList:
			nc, err := Substitute(v.Elem, env)
			if err != nil {
				return MType{}, err
			}

			return List(nc), nil

		case KindGeneric:
			ng, err := v.Generic.SubstituteWith(env)
			if err != nil {
				return MType{}, err
			}

			return Generic(ng), nil

		default:
			return v, nil
		}
	})
}
