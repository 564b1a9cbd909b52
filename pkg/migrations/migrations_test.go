package migrations

import (
	"context"
	"testing"
	"time"

	"github.com/shelfkeeper/shelfkeeper/pkg/config"
	"github.com/shelfkeeper/shelfkeeper/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := database.New(config.NewForTest())
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func indexExists(ctx context.Context, t *testing.T, db *bun.DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?", name).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestBringUpToDate_FreshStore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	group, err := BringUpToDate(ctx, db)
	require.NoError(t, err)
	assert.NotZero(t, group.ID)

	books, err := TableColumns(ctx, db, "books")
	require.NoError(t, err)
	for _, col := range []string{"id", "isbn", "title", "year", "author", "artist", "publisher", "page_count",
		"description", "series_name", "series_number", "format", "cover_path", "notes", "date_added"} {
		assert.True(t, books[col], "books.%s should exist", col)
	}

	loans, err := TableColumns(ctx, db, "loans")
	require.NoError(t, err)
	for _, col := range []string{"id", "book_id", "borrower_name", "date_loaned", "date_due", "date_returned"} {
		assert.True(t, loans[col], "loans.%s should exist", col)
	}

	assert.True(t, indexExists(ctx, t, db, "ux_loans_book_id_active"))
}

func TestBringUpToDate_Idempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	_, err := BringUpToDate(ctx, db)
	require.NoError(t, err)

	group, err := BringUpToDate(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, group.ID, "second run should have nothing to migrate")
}

func TestBringUpToDate_AdoptsLegacyStore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	// A books table from before artist, series and format were tracked.
	_, err := db.Exec(`
		CREATE TABLE books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			isbn TEXT UNIQUE,
			title TEXT NOT NULL,
			year TEXT,
			author TEXT,
			publisher TEXT,
			page_count INTEGER,
			description TEXT,
			date_added TEXT DEFAULT CURRENT_TIMESTAMP
		)
`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO books (isbn, title, author) VALUES ('9780451526538', '1984', 'George Orwell')`)
	require.NoError(t, err)

	_, err = BringUpToDate(ctx, db)
	require.NoError(t, err)

	cols, err := TableColumns(ctx, db, "books")
	require.NoError(t, err)
	for _, col := range OptionalBookColumns {
		assert.True(t, cols[col.Name], "books.%s should have been added", col.Name)
	}

	var title, author, format string
	var artist *string
	err = db.QueryRow("SELECT title, author, artist, format FROM books WHERE isbn = '9780451526538'").
		Scan(&title, &author, &artist, &format)
	require.NoError(t, err)
	assert.Equal(t, "1984", title)
	assert.Equal(t, "George Orwell", author)
	assert.Nil(t, artist)
	assert.Equal(t, "Book", format)
}

func TestEnsureColumns(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO widgets (name) VALUES ('sprocket')`)
	require.NoError(t, err)

	cols := []Column{
		{Name: "name", Definition: "TEXT"},
		{Name: "color", Definition: "TEXT"},
		{Name: "size", Definition: "INTEGER"},
	}

	added, err := EnsureColumns(ctx, db, "widgets", cols)
	require.NoError(t, err)
	assert.Equal(t, []string{"color", "size"}, added)

	added, err = EnsureColumns(ctx, db, "widgets", cols)
	require.NoError(t, err)
	assert.Empty(t, added)

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM widgets").Scan(&name))
	assert.Equal(t, "sprocket", name)
}

func TestEnsureColumns_MissingTable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	_, err := EnsureColumns(context.Background(), db, "nope", OptionalBookColumns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestActiveLoanIndex_WaitsForConflictsToBeReturned(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	// Legacy data where a book was lent twice without being returned.
	_, err := db.Exec(`CREATE TABLE books (id INTEGER PRIMARY KEY AUTOINCREMENT, isbn TEXT UNIQUE, title TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE loans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			book_id INTEGER NOT NULL,
			borrower_name TEXT NOT NULL,
			date_loaned TEXT NOT NULL,
			date_due TEXT NOT NULL,
			date_returned TEXT,
			FOREIGN KEY (book_id) REFERENCES books (id) ON DELETE CASCADE
		)
`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO books (title) VALUES ('Dune')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO loans (book_id, borrower_name, date_loaned, date_due) VALUES
		(1, 'Alice', '2024-01-01 00:00:00+00:00', '2024-01-31 00:00:00+00:00'),
		(1, 'Bob', '2024-01-02 00:00:00+00:00', '2024-02-01 00:00:00+00:00')`)
	require.NoError(t, err)

	_, err = BringUpToDate(ctx, db)
	require.NoError(t, err)
	assert.False(t, indexExists(ctx, t, db, "ux_loans_book_id_active"))

	// Once the extra loan is returned, the next startup adds the index even
	// though every migration has already been applied.
	_, err = db.Exec(`UPDATE loans SET date_returned = '2024-01-05 00:00:00+00:00' WHERE borrower_name = 'Bob'`)
	require.NoError(t, err)

	group, err := BringUpToDate(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, group.ID)
	assert.True(t, indexExists(ctx, t, db, "ux_loans_book_id_active"))

	_, err = db.Exec(`INSERT INTO loans (book_id, borrower_name, date_loaned, date_due) VALUES
		(1, 'Carol', '2024-01-06 00:00:00+00:00', '2024-02-05 00:00:00+00:00')`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")
}

func TestEnsureActiveLoanIndex_ReportsConflicts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	_, err := BringUpToDate(ctx, db)
	require.NoError(t, err)

	duplicates, err := EnsureActiveLoanIndex(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, duplicates)

	_, err = db.Exec("DROP INDEX " + activeLoanIndex)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO books (title) VALUES ('Dune'), ('Emma')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO loans (book_id, borrower_name, date_loaned, date_due) VALUES
		(1, 'Alice', '2024-01-01 00:00:00+00:00', '2024-01-31 00:00:00+00:00'),
		(1, 'Bob', '2024-01-02 00:00:00+00:00', '2024-02-01 00:00:00+00:00'),
		(2, 'Alice', '2024-01-01 00:00:00+00:00', '2024-01-31 00:00:00+00:00'),
		(2, 'Bob', '2024-01-02 00:00:00+00:00', '2024-02-01 00:00:00+00:00')`)
	require.NoError(t, err)

	duplicates, err = EnsureActiveLoanIndex(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, duplicates)
	assert.False(t, indexExists(ctx, t, db, activeLoanIndex))
}

func TestNormalizeTimestamps(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	_, err := BringUpToDate(ctx, db)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO books (title, date_added) VALUES ('Dune', '2024-02-29 08:15:00')`)
	require.NoError(t, err)

	legacyLoaned := "2024-03-01T09:00:00.123456"
	_, err = db.Exec(`INSERT INTO loans (book_id, borrower_name, date_loaned, date_due, date_returned) VALUES
		(1, 'Alice', ?, '2024-03-31T09:00:00.123456', NULL)`, legacyLoaned)
	require.NoError(t, err)

	changed, err := NormalizeTimestamps(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	var dateAdded, dateLoaned, dateDue string
	require.NoError(t, db.QueryRow(`SELECT CAST(date_added AS TEXT) FROM books`).Scan(&dateAdded))
	require.NoError(t, db.QueryRow(`SELECT CAST(date_loaned AS TEXT), CAST(date_due AS TEXT) FROM loans`).Scan(&dateLoaned, &dateDue))

	assert.Equal(t, "2024-02-29 08:15:00+00:00", dateAdded)

	loaned, err := time.ParseInLocation("2006-01-02T15:04:05.999999", legacyLoaned, time.Local)
	require.NoError(t, err)
	assert.Equal(t, loaned.UTC().Format(storedTimeFormat), dateLoaned)
	assert.Contains(t, dateDue, "+00:00")

	changed, err = NormalizeTimestamps(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, changed, "normalized values are left alone")
}

func TestParseLegacyTime(t *testing.T) {
	t.Parallel()

	utc := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Time
		ok    bool
	}{
		{"current timestamp", "2024-03-01 09:00:00", utc, true},
		{"with offset", "2024-03-01 10:00:00+01:00", utc, true},
		{"rfc3339", "2024-03-01T09:00:00Z", utc, true},
		{"isoformat", "2024-03-01T09:00:00", time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local), true},
		{"date only", "2024-03-01", time.Time{}, false},
		{"garbage", "not a timestamp at all", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseLegacyTime(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}
