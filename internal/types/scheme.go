package types

import "github.com/queryscript/qs/internal/cell"

// SType is a type scheme: a set of quantified variable names plus a body
// MType. Instantiation clones the body, freshening each quantified
// variable with a new Unknown cell (spec §3).
type SType struct {
	Quantified map[string]struct{}
	Body       *cell.CRef[MType]
}

// Unify for SType just unifies bodies; schemes themselves are never
// unified against one another except at the moment a `let` annotation is
// checked against its (not-yet-generalized) body, before generalization.
func (s SType) Unify(other SType) error {
	return cell.Unify(s.Body, other.Body)
}

// Mono wraps a monomorphic body with no quantified variables.
func Mono(body *cell.CRef[MType]) SType {
	return SType{Body: body}
}

// Generalize produces a scheme over body, quantifying exactly the free
// Name variables listed in freeVars. Generalization happens once per
// let-bound name (spec §5).
func Generalize(body *cell.CRef[MType], freeVars []string) SType {
	q := make(map[string]struct{}, len(freeVars))
	for _, v := range freeVars {
		q[v] = struct{}{}
	}

	return SType{Quantified: q, Body: body}
}

// Instantiate clones the scheme's body, replacing each quantified
// variable with a fresh Unknown cell. Two instantiations of the same
// scheme never share cells, so unifying one instance's type with a
// concrete type never constrains the other (let-polymorphism soundness,
// spec §8).
func Instantiate(s SType) (*cell.CRef[MType], error) {
	if len(s.Quantified) == 0 {
		return s.Body, nil
	}

	env := make(map[string]*cell.CRef[MType], len(s.Quantified))
	for name := range s.Quantified {
		env[name] = cell.NewUnknown[MType]("inst:" + name)
	}

	return Substitute(s.Body, env)
}

// FreeVariables walks a resolved MType and collects the names of any
// Name leaves it contains, for use by the caller constructing a scheme
// via Generalize. The type must already be Known (generalization happens
// after a let's body finishes compiling).
func FreeVariables(m MType) []string {
	seen := map[string]struct{}{}
	collectFreeVars(m, seen)

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}

	return names
}

func collectFreeVars(m MType, seen map[string]struct{}) {
	switch m.Kind {
	case KindName:
		seen[m.Name] = struct{}{}
	case KindRecord, KindFn:
		for _, f := range m.Fields {
			if v, err := f.Type.Must(); err == nil {
				collectFreeVars(v, seen)
			}
		}

		if m.Kind == KindFn {
			if v, err := m.FnRet.Must(); err == nil {
				collectFreeVars(v, seen)
			}
		}
	case KindList:
		if v, err := m.Elem.Must(); err == nil {
			collectFreeVars(v, seen)
		}
	}
}
