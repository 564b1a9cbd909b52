package migrations

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Column is an optional column that can be added to an existing table
// without touching its rows.
type Column struct {
	Name       string
	Definition string
}

// OptionalBookColumns are the book columns that later versions added on top
// of the original table. Stores created before them gain them on startup.
var OptionalBookColumns = []Column{
	{Name: "artist", Definition: "TEXT"},
	{Name: "series_name", Definition: "TEXT"},
	{Name: "series_number", Definition: "INTEGER"},
	{Name: "format", Definition: "TEXT DEFAULT 'Book'"},
	{Name: "cover_path", Definition: "TEXT"},
	{Name: "notes", Definition: "TEXT"},
}

// TableColumns returns the names of the columns table currently has.
func TableColumns(ctx context.Context, db bun.IDB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	columns := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue *string
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, errors.WithStack(err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return columns, nil
}

// EnsureColumns adds whichever of cols table is missing and returns the names
// it added. Columns that already exist are left alone, so running it again
// is a no-op.
func EnsureColumns(ctx context.Context, db bun.IDB, table string, cols []Column) ([]string, error) {
	existing, err := TableColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, errors.Errorf("table %s does not exist", table)
	}

	var added []string
	for _, col := range cols {
		if existing[col.Name] {
			continue
		}
		_, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %q ADD COLUMN %q %s", table, col.Name, col.Definition))
		if err != nil {
			return added, errors.Wrapf(err, "failed to add column %s.%s", table, col.Name)
		}
		added = append(added, col.Name)
	}
	return added, nil
}
