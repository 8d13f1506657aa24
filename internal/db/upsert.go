package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// UpsertSQL builds a single-row INSERT ... ON CONFLICT (keys) DO UPDATE
// statement for a table. Every non-key column is updated from EXCLUDED so
// repeated writes for the same identity overwrite rather than duplicate.
func UpsertSQL(table string, columns []string, conflictKeys []string) string {
	keySet := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		keySet[k] = true
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var setClauses []string
	for _, col := range columns {
		if keySet[col] {
			continue
		}
		ident := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", ident, ident))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(table),
		quoteAndJoin(columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(conflictKeys),
		strings.Join(setClauses, ", "),
	)
}

// sanitizeTable handles schema-qualified table names like "deals.warehouse".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
