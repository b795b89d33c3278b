// Package enginemysql implements engine.SQLEngine over MySQL/MariaDB via
// database/sql and go-sql-driver/mysql, reusing the shared
// database/sql dispatch in internal/engine (grounded on the teacher's
// query/executor.go and OpenDatabase).
package enginemysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
)

// Engine wraps a MySQL connection pool.
type Engine struct {
	db *sql.DB
}

// Open connects to MySQL at connectionString (a go-sql-driver/mysql DSN),
// mirroring the teacher's OpenDatabase: set conservative pool limits and
// verify connectivity with a bounded ping before returning.
func Open(connectionString string, connectTimeout time.Duration) (*Engine, error) {
	db, err := sql.Open("mysql", connectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: opening mysql: %w", qs.ErrRuntime, err)
	}

	db.SetConnMaxLifetime(connectTimeout)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging mysql: %w", qs.ErrRuntime, err)
	}

	return &Engine{db: db}, nil
}

// Close releases the underlying connection pool.
func (e *Engine) Close() error { return e.db.Close() }

// Eval implements engine.SQLEngine.
func (e *Engine) Eval(ctx context.Context, query string, params map[qs.Ident]engine.SQLParam) (engine.Relation, error) {
	return engine.RunDatabaseSQL(ctx, e.db, query, params)
}
