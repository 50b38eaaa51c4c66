// Package sqlutil holds small database/sql helpers shared by the stores.
package sqlutil

import (
	"database/sql"
	"strconv"
	"strings"
)

// Rebind rewrites "?" placeholders to PostgreSQL's "$1, $2, ..." form.
//
// Queries passed here must not contain literal question marks.
func Rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ScanRows scans all rows into a slice using the provided scanner and closes rows.
func ScanRows[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
