// Package enginesqlite implements engine.SQLEngine over SQLite via
// database/sql and mattn/go-sqlite3, reusing the shared database/sql
// dispatch in internal/engine. Grounded on the teacher's
// query/executor.go and OpenDatabase, generalized from a single-driver
// tool to one of three pluggable backends.
package enginesqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
)

// Engine wraps a SQLite database handle. SQLite has no real connection
// pool, so callers typically pass a file path or ":memory:" and a short
// connectTimeout just for the opening ping.
type Engine struct {
	db *sql.DB
}

// Open opens the SQLite database at dataSourceName.
func Open(dataSourceName string, connectTimeout time.Duration) (*Engine, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("%w: opening sqlite: %w", qs.ErrRuntime, err)
	}

	// SQLite serializes writers internally; a single open connection
	// avoids SQLITE_BUSY errors under concurrent access from this process.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging sqlite: %w", qs.ErrRuntime, err)
	}

	return &Engine{db: db}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error { return e.db.Close() }

// Eval implements engine.SQLEngine.
func (e *Engine) Eval(ctx context.Context, query string, params map[qs.Ident]engine.SQLParam) (engine.Relation, error) {
	return engine.RunDatabaseSQL(ctx, e.db, query, params)
}
