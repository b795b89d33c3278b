package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/types"
)

// RunDatabaseSQL executes query against db via the standard database/sql
// interface, after rewriting the compiler's `@name` placeholders to `?`
// and binding args in the resulting order. Shared by enginemysql and
// enginesqlite, whose drivers both speak database/sql with identical
// placeholder conventions; grounded on the teacher's
// query/executor.go#executeSQL (scan-into-slice, then wrap as a result).
func RunDatabaseSQL(ctx context.Context, db *sql.DB, query string, params map[qs.Ident]SQLParam) (Relation, error) {
	rewritten, args, err := RewritePlaceholders(query, params, PlaceholderQuestion)
	if err != nil {
		return nil, err
	}

	driverArgs := make([]any, len(args))
	for i, a := range args {
		if a.Relation != nil {
			return nil, fmt.Errorf("%w: %s backend does not support relation-valued parameters", qs.ErrUnimplemented, "database/sql")
		}

		driverArgs[i] = a.Value
	}

	rows, err := db.QueryContext(ctx, rewritten, driverArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", qs.ErrRuntime, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", qs.ErrRuntime, err)
	}

	columns := make([]string, len(colTypes))
	fields := make([]types.RuntimeField, len(colTypes))

	for i, ct := range colTypes {
		nullable, _ := ct.Nullable()
		columns[i] = ct.Name()
		fields[i] = types.RuntimeField{
			Name:     ct.Name(),
			Type:     types.RuntimeType{Kind: types.KindAtom, Atom: AtomicTypeForDriverType(ct.DatabaseTypeName())},
			Nullable: nullable,
		}
	}

	var records []map[string]any

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))

	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %w", qs.ErrRuntime, err)
		}

		rec := make(map[string]any, len(columns))
		for i, name := range columns {
			if fields[i].Type.Atom == types.AtomDecimal {
				rec[name] = ConvertDecimalValue(values[i])
				continue
			}

			rec[name] = convertDriverValue(values[i])
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", qs.ErrRuntime, err)
	}

	return NewMemRelation(types.RuntimeType{Kind: types.KindRecord, Fields: fields}, columns, records), nil
}

// convertDriverValue normalizes a database/sql scan result: a non-empty
// []byte becomes a string (JSON-looking text is kept as a string, not
// decoded); everything else passes through unchanged.
func convertDriverValue(v any) any {
	b, ok := v.([]byte)
	if !ok || len(b) == 0 {
		return v
	}

	if (b[0] == '{' && b[len(b)-1] == '}') || (b[0] == '[' && b[len(b)-1] == ']') {
		return string(b)
	}

	return string(b)
}
