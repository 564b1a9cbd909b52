package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		// IF NOT EXISTS lets an existing library file be adopted. Columns it
		// predates and timestamps in older spellings are reconciled by the
		// later migrations.
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				isbn TEXT UNIQUE,
				title TEXT NOT NULL,
				year TEXT,
				author TEXT,
				artist TEXT,
				publisher TEXT,
				page_count INTEGER,
				description TEXT,
				series_name TEXT,
				series_number INTEGER,
				format TEXT DEFAULT 'Book',
				cover_path TEXT,
				notes TEXT,
				date_added TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_books_title ON books (title COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS loans (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				book_id INTEGER NOT NULL,
				borrower_name TEXT NOT NULL,
				date_loaned TIMESTAMPTZ NOT NULL,
				date_due TIMESTAMPTZ NOT NULL,
				date_returned TIMESTAMPTZ,
				FOREIGN KEY (book_id) REFERENCES books (id) ON DELETE CASCADE
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_loans_book_id ON loans (book_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS ix_loans_date_due ON loans (date_due) WHERE date_returned IS NULL`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS loans")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS books")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
