package types

import (
	"fmt"
	"strings"

	"github.com/queryscript/qs/internal/cell"
)

// RuntimeType carries only solved information: it is what to_runtime_type
// produces from an MType, and what the runtime's engine adapters use to
// validate a query result's shape (spec §4.B, §4.I).
type RuntimeType struct {
	Kind   Kind
	Atom   AtomicType
	Fields []RuntimeField
	Elem   *RuntimeType
	FnRet  *RuntimeType
}

// RuntimeField is the resolved counterpart of Field.
type RuntimeField struct {
	Name      string
	Type      RuntimeType
	Nullable  bool
	Precision int
	Scale     int
}

func (r RuntimeType) String() string {
	switch r.Kind {
	case KindAtom:
		return r.Atom.String()
	case KindRecord:
		parts := make([]string, len(r.Fields))
		for i, f := range r.Fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}

		return "{" + strings.Join(parts, ", ") + "}"
	case KindList:
		elem := "?"
		if r.Elem != nil {
			elem = r.Elem.String()
		}

		return "list<" + elem + ">"
	case KindFn:
		parts := make([]string, len(r.Fields))
		for i, f := range r.Fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}

		ret := "?"
		if r.FnRet != nil {
			ret = r.FnRet.String()
		}

		return "fn(" + strings.Join(parts, ", ") + ") -> " + ret
	default:
		return "?"
	}
}

// ToRuntimeType projects a resolved MType into a RuntimeType, failing if
// any Name (free type variable) leaf remains unresolved.
func ToRuntimeType(m MType) (RuntimeType, error) {
	switch m.Kind {
	case KindAtom:
		return RuntimeType{Kind: KindAtom, Atom: m.Atom}, nil

	case KindName:
		return RuntimeType{}, fmt.Errorf("cannot project unresolved type variable '%s to a runtime type", m.Name)

	case KindRecord, KindFn:
		fields := make([]RuntimeField, len(m.Fields))

		for i, f := range m.Fields {
			ft, err := f.Type.Must()
			if err != nil {
				return RuntimeType{}, err
			}

			rt, err := ToRuntimeType(ft)
			if err != nil {
				return RuntimeType{}, err
			}

			fields[i] = RuntimeField{Name: f.Name, Type: rt, Nullable: f.Nullable, Precision: f.Precision, Scale: f.Scale}
		}

		if m.Kind == KindFn {
			retT, err := m.FnRet.Must()
			if err != nil {
				return RuntimeType{}, err
			}

			ret, err := ToRuntimeType(retT)
			if err != nil {
				return RuntimeType{}, err
			}

			return RuntimeType{Kind: KindFn, Fields: fields, FnRet: &ret}, nil
		}

		return RuntimeType{Kind: KindRecord, Fields: fields}, nil

	case KindList:
		elemT, err := m.Elem.Must()
		if err != nil {
			return RuntimeType{}, err
		}

		rt, err := ToRuntimeType(elemT)
		if err != nil {
			return RuntimeType{}, err
		}

		return RuntimeType{Kind: KindList, Elem: &rt}, nil

	case KindGeneric:
		rt, err := m.Generic.ToRuntimeType()
		if err != nil {
			return RuntimeType{}, err
		}

		return rt, nil

	default:
		return RuntimeType{}, fmt.Errorf("unknown monotype kind %d", m.Kind)
	}
}

// FromRuntimeType is the inverse projection, used when a value
// materialized at runtime (e.g. the inferred schema of a load()'d file)
// needs to be unified back into the compile-time type graph (SPEC_FULL
// §C.6).
func FromRuntimeType(r RuntimeType) MType {
	switch r.Kind {
	case KindAtom:
		return Atom(r.Atom)

	case KindRecord, KindFn:
		fields := make([]Field, len(r.Fields))
		for i, f := range r.Fields {
			fields[i] = Field{
				Name:      f.Name,
				Type:      cell.Known(FromRuntimeType(f.Type)),
				Nullable:  f.Nullable,
				Precision: f.Precision,
				Scale:     f.Scale,
			}
		}

		if r.Kind == KindFn {
			return Fn(fields, cell.Known(FromRuntimeType(*r.FnRet)))
		}

		return Record(fields)

	case KindList:
		return List(cell.Known(FromRuntimeType(*r.Elem)))

	default:
		return Atom(AtomNull)
	}
}
