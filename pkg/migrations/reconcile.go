package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

const activeLoanIndex = "ux_loans_book_id_active"

// EnsureActiveLoanIndex creates the partial unique index that allows one
// unreturned loan per book. When the loans table already breaks that rule it
// creates nothing and returns the number of offending books, so a later run
// can try again once those loans are returned.
func EnsureActiveLoanIndex(ctx context.Context, db bun.IDB) (int, error) {
	var duplicates int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT book_id FROM loans
			WHERE date_returned IS NULL
			GROUP BY book_id
			HAVING COUNT(*) > 1
		)
`).Scan(&duplicates)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if duplicates > 0 {
		return duplicates, nil
	}

	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS `+activeLoanIndex+` ON loans (book_id) WHERE date_returned IS NULL`)
	return 0, errors.WithStack(err)
}

// timestampColumns are the stored timestamps, by table.
var timestampColumns = map[string][]string{
	"books": {"date_added"},
	"loans": {"date_loaned", "date_due", "date_returned"},
}

// storedTimeFormat is how timestamps are written: UTC with an explicit offset.
// Values in this form sort correctly as text.
const storedTimeFormat = "2006-01-02 15:04:05.999999-07:00"

// NormalizeTimestamps rewrites timestamps that older versions stored in other
// spellings into the stored format and returns how many values changed.
// Zone-less values with a "T" separator were written in local time; zone-less
// values with a space came from CURRENT_TIMESTAMP and are UTC. Values that
// can't be parsed are left untouched.
func NormalizeTimestamps(ctx context.Context, db bun.IDB) (int, error) {
	changed := 0
	for _, table := range []string{"books", "loans"} {
		existing, err := TableColumns(ctx, db, table)
		if err != nil {
			return changed, err
		}
		for _, column := range timestampColumns[table] {
			if !existing[column] {
				continue
			}
			n, err := normalizeColumn(ctx, db, table, column)
			changed += n
			if err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

func normalizeColumn(ctx context.Context, db bun.IDB, table, column string) (int, error) {
	type pending struct {
		rowID int64
		value string
	}

	// Rows are read in full before any update; the store runs on a single
	// connection.
	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT rowid, CAST(%[1]q AS TEXT) FROM %[2]q WHERE %[1]q IS NOT NULL AND CAST(%[1]q AS TEXT) NOT LIKE '____-__-__ __:__:__%%+00:00'`,
		column, table))
	if err != nil {
		return 0, errors.WithStack(err)
	}
	var updates []pending
	for rows.Next() {
		var rowID int64
		var raw sql.NullString
		if err := rows.Scan(&rowID, &raw); err != nil {
			rows.Close()
			return 0, errors.WithStack(err)
		}
		t, ok := parseLegacyTime(raw.String)
		if !ok {
			continue
		}
		updates = append(updates, pending{rowID, t.UTC().Format(storedTimeFormat)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, errors.WithStack(err)
	}
	rows.Close()

	for i, u := range updates {
		_, err := db.ExecContext(ctx, fmt.Sprintf(`UPDATE %q SET %q = ? WHERE rowid = ?`, table, column), u.value, u.rowID)
		if err != nil {
			return i, errors.Wrapf(err, "failed to rewrite %s.%s", table, column)
		}
	}
	return len(updates), nil
}

func parseLegacyTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len("2006-01-02 15:04:05") {
		return time.Time{}, false
	}

	var (
		t   time.Time
		err error
	)
	switch s[10] {
	case 'T':
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			t, err = time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local)
		}
	case ' ':
		t, err = time.Parse("2006-01-02 15:04:05.999999999-07:00", s)
		if err != nil {
			t, err = time.ParseInLocation("2006-01-02 15:04:05.999999999", s, time.UTC)
		}
	default:
		return time.Time{}, false
	}
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
