package runtime

import (
	"context"

	"github.com/queryscript/qs/internal/engine"
)

// mapLoader is a Loader test double keyed by path, mirroring
// program.MapLoader's in-memory-fixture role for imports.
type mapLoader struct {
	relations map[string]engine.Relation
}

func (m mapLoader) Load(_ context.Context, path string, _ string) (engine.Relation, error) {
	rel, ok := m.relations[path]
	if !ok {
		return nil, errNotFound(path)
	}

	return rel, nil
}

type notFoundErr struct{ path string }

func (e notFoundErr) Error() string { return "no such fixture: " + e.path }

func errNotFound(path string) error { return notFoundErr{path: path} }
