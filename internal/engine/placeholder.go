package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/queryscript/qs"
)

// PlaceholderStyle selects how RewritePlaceholders renders each bound
// parameter it finds, mirroring the teacher's own
// convertPlaceholdersForDriver (there hard-coded to Postgres's `?`→`$N`
// conversion; here generalized to every driver this module targets).
type PlaceholderStyle int

const (
	// PlaceholderQuestion renders every occurrence as a bare `?`
	// (database/sql's convention for both MySQL and SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar renders the n'th distinct occurrence as `$n`
	// (Postgres's convention).
	PlaceholderDollar
)

// RewritePlaceholders scans sql for the compiler's `@name` placeholder
// tokens (spec §6: "must honor the placeholder naming scheme `@<name>`
// / `__qvm<name>`") and rewrites each to a driver-native placeholder,
// returning the rewritten text and the bound arguments in the order the
// driver expects them — first occurrence order, since the same `@name`
// may legitimately appear more than once in rewritten SQL (the SQL
// compiler interns one placeholder per logical reference, not per
// occurrence). A placeholder inside a quoted string literal is left
// untouched.
func RewritePlaceholders(sql string, params map[qs.Ident]SQLParam, style PlaceholderStyle) (string, []SQLParam, error) {
	var out strings.Builder

	var args []SQLParam

	seen := map[string]int{} // name -> 1-based ordinal already assigned

	inSingle, inDouble := false, false

	i := 0
	for i < len(sql) {
		c := sql[i]

		if c == '\'' && !inDouble {
			inSingle = !inSingle
			out.WriteByte(c)
			i++

			continue
		}

		if c == '"' && !inSingle {
			inDouble = !inDouble
			out.WriteByte(c)
			i++

			continue
		}

		if c != '@' || inSingle || inDouble {
			out.WriteByte(c)
			i++

			continue
		}

		j := i + 1
		for j < len(sql) && isIdentByte(sql[j]) {
			j++
		}

		name := sql[i+1 : j]
		if name == "" {
			out.WriteByte(c)
			i++

			continue
		}

		// Question style has no positional index, so every occurrence
		// needs its own argument; dollar style reuses the first ordinal.
		ordinal, ok := seen[name]
		if !ok || style != PlaceholderDollar {
			param, found := params[qs.NewIdent(name)]
			if !found {
				return "", nil, fmt.Errorf("%w: unbound placeholder @%s", qs.ErrNoSuchContextValue, name)
			}

			args = append(args, param)
			ordinal = len(args)
			seen[name] = ordinal
		}

		switch style {
		case PlaceholderDollar:
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(ordinal))
		default:
			out.WriteByte('?')
		}

		i = j
	}

	return out.String(), args, nil
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
