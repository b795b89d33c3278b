// Package enginepg implements engine.SQLEngine over PostgreSQL using
// pgx/v5's native connection pool (not database/sql — spec's domain
// stack calls for pgx's own pool here, the way the teacher's go.mod
// carries pgx directly rather than through the database/sql facade
// enginemysql/enginesqlite use).
package enginepg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/engine"
	"github.com/queryscript/qs/internal/types"
)

// Engine wraps a pgx connection pool.
type Engine struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres at connectionString (a pgx/libpq-style DSN),
// verifying connectivity with a bounded ping before returning.
func Open(ctx context.Context, connectionString string, connectTimeout time.Duration) (*Engine, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: opening postgres: %w", qs.ErrRuntime, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging postgres: %w", qs.ErrRuntime, err)
	}

	return &Engine{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (e *Engine) Close() { e.pool.Close() }

// Eval implements engine.SQLEngine.
func (e *Engine) Eval(ctx context.Context, query string, params map[qs.Ident]engine.SQLParam) (engine.Relation, error) {
	rewritten, args, err := engine.RewritePlaceholders(query, params, engine.PlaceholderDollar)
	if err != nil {
		return nil, err
	}

	driverArgs := make([]any, len(args))
	for i, a := range args {
		if a.Relation != nil {
			return nil, fmt.Errorf("%w: pgx backend does not support relation-valued parameters", qs.ErrUnimplemented)
		}

		driverArgs[i] = a.Value
	}

	rows, err := e.pool.Query(ctx, rewritten, driverArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", qs.ErrRuntime, err)
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	columns := make([]string, len(descs))
	fields := make([]types.RuntimeField, len(descs))

	for i, d := range descs {
		columns[i] = d.Name
		fields[i] = types.RuntimeField{
			Name: d.Name,
			Type: types.RuntimeType{Kind: types.KindAtom, Atom: engine.AtomicTypeForDriverType(pgOIDName(d.DataTypeOID))},
			// pgx's row description does not carry nullability; every
			// projected column is therefore treated as nullable, matching
			// this module's own SELECT-lowering rule (spec §4.F: "a
			// compiled query's result type is always List(Record(...))
			// with every field nullable").
			Nullable: true,
		}
	}

	var records []map[string]any

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: scanning row: %w", qs.ErrRuntime, err)
		}

		rec := make(map[string]any, len(columns))
		for i, name := range columns {
			if fields[i].Type.Atom == types.AtomDecimal {
				rec[name] = convertPgNumeric(vals[i])
				continue
			}

			rec[name] = vals[i]
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", qs.ErrRuntime, err)
	}

	return engine.NewMemRelation(types.RuntimeType{Kind: types.KindRecord, Fields: fields}, columns, records), nil
}

// convertPgNumeric converts pgx's native NUMERIC representation into an
// exact decimal.Decimal (spec §4.B's Decimal atom). pgx decodes NUMERIC
// to pgtype.Numeric by default (a big.Int mantissa plus a base-10
// exponent) rather than a string or float64, so the database/sql-style
// string parse in engine.ConvertDecimalValue doesn't apply here; it's
// kept as a fallback for the unlikely case pgx's codec hands back
// something else.
func convertPgNumeric(v any) any {
	n, ok := v.(pgtype.Numeric)
	if !ok {
		return engine.ConvertDecimalValue(v)
	}

	if !n.Valid || n.NaN || n.Int == nil {
		return nil
	}

	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// pgOIDName maps a handful of common Postgres type OIDs to the type-name
// strings engine.AtomicTypeForDriverType already knows how to read,
// rather than pulling in pgtype's full OID table for a handful of
// atomic kinds this module needs.
func pgOIDName(oid uint32) string {
	switch oid {
	case pgtype.Int8OID:
		return "BIGINT"
	case pgtype.Int4OID:
		return "INT"
	case pgtype.Int2OID:
		return "SMALLINT"
	case pgtype.Float4OID:
		return "FLOAT"
	case pgtype.Float8OID:
		return "DOUBLE"
	case pgtype.NumericOID:
		return "NUMERIC"
	case pgtype.BoolOID:
		return "BOOLEAN"
	case pgtype.DateOID:
		return "DATE"
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return "TIMESTAMP"
	case pgtype.TimeOID:
		return "TIME"
	case pgtype.UUIDOID:
		return "UUID"
	case pgtype.JSONOID, pgtype.JSONBOID:
		return "JSON"
	default:
		return "TEXT"
	}
}
