// Package testfixture loads declarative compiler test scenarios from
// YAML files (spec §9 test tooling, SPEC_FULL §A.3): a source text, the
// decl path to evaluate, and the rewritten SQL / params / error an
// implementation is expected to produce. It plays the same role the
// teacher's MockTestCase (mockcase.go) plays for end-to-end mock
// scenarios, adapted from JSON-via-Markdown to plain YAML files since
// compiler fixtures have no database round-trip to stage.
package testfixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/queryscript/qs"
)

// ExpectedError describes an error a Case expects compilation or
// evaluation to fail with. Contains is matched as a substring of the
// resulting error's Error() text, mirroring the teacher's MockError's
// loose, message-based matching (mockcase.go) rather than requiring an
// exact sentinel comparison, since a fixture author writes YAML, not Go.
type ExpectedError struct {
	Contains string `yaml:"contains"`
}

// Case is one declarative compiler scenario.
type Case struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Source is a full QueryScript schema source, compiled as-is.
	Source string `yaml:"source"`

	// Path is the dotted decl path within Source to evaluate/inspect,
	// e.g. "q" or "queries.top_users".
	Path string `yaml:"path"`

	// DisableTypechecks mirrors qs.Config's field of the same name, for
	// scenarios specifically exercising the post-execution typecheck.
	DisableTypechecks bool `yaml:"disable_typechecks,omitempty"`

	// ExpectedSQL is the rewritten SQL text the SQL compiler/runtime
	// should produce for Path, if set.
	ExpectedSQL string `yaml:"expected_sql,omitempty"`

	// ExpectedParams is a name->value map the Case expects the boxed
	// engine.SQLParam set to equal, if set (compared by interned name).
	ExpectedParams map[string]any `yaml:"expected_params,omitempty"`

	// Error, if set, means Source is expected to fail compilation (or Path
	// to fail evaluation) rather than succeed.
	Error *ExpectedError `yaml:"error,omitempty"`
}

// File is the top-level shape of one fixture YAML file: a named group
// of Cases, so a single file can document why its scenarios are grouped
// together (e.g. "from_test.yaml" for FROM-clause resolution cases).
type File struct {
	Group string `yaml:"group"`
	Cases []Case `yaml:"cases"`
}

// Load parses a single fixture YAML file into its Cases.
func Load(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", qs.ErrSyntax, path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", qs.ErrSyntax, path, err)
	}

	return f.Cases, nil
}

// LoadDir walks root (a single file or a directory) and loads every
// ".yaml"/".yml" fixture found, in a stable (lexically sorted by path)
// order, grounded on the teacher's walkAndProcessFiles (testrunner/
// walkutil.go) file/directory duality.
func LoadDir(root string) ([]Case, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", qs.ErrSyntax, err)
	}

	if !info.IsDir() {
		return Load(root)
	}

	var paths []string

	err = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		switch filepath.Ext(p) {
		case ".yaml", ".yml":
			paths = append(paths, p)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking %s: %v", qs.ErrSyntax, root, err)
	}

	sort.Strings(paths)

	var all []Case

	for _, p := range paths {
		cases, err := Load(p)
		if err != nil {
			return nil, err
		}

		all = append(all, cases...)
	}

	return all, nil
}

// MatchesError reports whether err's message contains e.Contains
// (case-sensitive substring match).
func (e *ExpectedError) MatchesError(err error) bool {
	if e == nil {
		return err == nil
	}

	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), e.Contains)
}
