package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/shelfkeeper/shelfkeeper/pkg/books"
	"github.com/shelfkeeper/shelfkeeper/pkg/config"
	"github.com/shelfkeeper/shelfkeeper/pkg/covers"
	"github.com/shelfkeeper/shelfkeeper/pkg/database"
	"github.com/shelfkeeper/shelfkeeper/pkg/errcodes"
	"github.com/shelfkeeper/shelfkeeper/pkg/loans"
	"github.com/shelfkeeper/shelfkeeper/pkg/metadata"
	"github.com/shelfkeeper/shelfkeeper/pkg/migrations"
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

var (
	pngCover = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	gifCover = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04")
)

// stubLookup answers from a fixed set of results and counts cover downloads.
type stubLookup struct {
	results   map[string]*metadata.Result
	cover     []byte
	downloads int
}

func (l *stubLookup) LookupISBN(_ context.Context, isbn string) (*metadata.Result, error) {
	return l.results[isbn], nil
}

func (l *stubLookup) DownloadCover(_ context.Context, _ string) ([]byte, error) {
	l.downloads++
	return l.cover, nil
}

func newTestShell(t *testing.T, lookup *stubLookup) *shell {
	t.Helper()

	cfg := config.NewForTest()
	cfg.CoverDir = t.TempDir()

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	return &shell{
		cfg:    cfg,
		db:     db,
		books:  books.NewService(db),
		loans:  loans.NewService(db),
		covers: covers.NewStore(cfg.CoverDir),
		lookup: lookup,
		out:    newPrinter(&bytes.Buffer{}, false),
	}
}

func run(sh *shell, args ...string) error {
	app := &cli.App{
		Name:     "shelfkeeper",
		Commands: []*cli.Command{sh.bookCommand()},
	}
	return app.RunContext(context.Background(), append([]string{"shelfkeeper"}, args...))
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func onlyBook(t *testing.T, sh *shell) *models.Book {
	t.Helper()

	list, err := sh.books.ListBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func TestAddBook_WithCover(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, &stubLookup{})

	err := run(sh, "book", "add", "--title", "1984", "--isbn", "9780451524935", "--cover", writeFile(t, "c.png", pngCover))
	require.NoError(t, err)

	book := onlyBook(t, sh)
	require.NotNil(t, book.CoverPath)
	assert.Equal(t, filepath.Join(sh.cfg.CoverDir, "9780451524935.png"), *book.CoverPath)

	data, err := os.ReadFile(*book.CoverPath)
	require.NoError(t, err)
	assert.Equal(t, pngCover, data)
}

func TestAddBook_DuplicateISBNKeepsExistingCover(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, &stubLookup{})

	require.NoError(t, run(sh, "book", "add", "--title", "1984", "--isbn", "9780451524935", "--cover", writeFile(t, "c.png", pngCover)))

	err := run(sh, "book", "add", "--title", "Nineteen", "--isbn", "9780451524935", "--cover", writeFile(t, "c.gif", gifCover))
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeDuplicateKey))

	book := onlyBook(t, sh)
	require.NotNil(t, book.CoverPath)
	data, err := os.ReadFile(*book.CoverPath)
	require.NoError(t, err)
	assert.Equal(t, pngCover, data)

	entries, err := os.ReadDir(sh.cfg.CoverDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAddBook_RejectsNonImageCover(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, &stubLookup{})

	err := run(sh, "book", "add", "--title", "1984", "--cover", writeFile(t, "c.txt", []byte("not an image")))
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))

	count, err := sh.books.CountBooks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAddBook_LookupReusesStoredCover(t *testing.T) {
	t.Parallel()
	lookup := &stubLookup{
		results: map[string]*metadata.Result{
			"9780451524935": {Title: "1984", Author: "George Orwell", CoverURL: "http://covers/1.png"},
		},
		cover: gifCover,
	}
	sh := newTestShell(t, lookup)

	stored, err := sh.covers.Save("9780451524935", pngCover)
	require.NoError(t, err)

	require.NoError(t, run(sh, "book", "add", "--isbn", "9780451524935", "--lookup"))

	book := onlyBook(t, sh)
	assert.Equal(t, "1984", book.Title)
	assert.Equal(t, "George Orwell", models.StringValue(book.Author))
	assert.Equal(t, stored, models.StringValue(book.CoverPath))
	assert.Zero(t, lookup.downloads)
}

func TestUpdateBook_Lookup(t *testing.T) {
	t.Parallel()
	pages := 328
	lookup := &stubLookup{
		results: map[string]*metadata.Result{
			"9780451524935": {Title: "Nineteen Eighty-Four", Year: "1950", Author: "George Orwell", PageCount: &pages, CoverURL: "http://covers/1.png"},
		},
		cover: pngCover,
	}
	sh := newTestShell(t, lookup)

	require.NoError(t, run(sh, "book", "add", "--title", "1984", "--isbn", "9780451524935", "--notes", "signed"))
	book := onlyBook(t, sh)

	err := run(sh, "book", "update", "--lookup", "--title", "1984", strconv.Itoa(book.ID))
	require.NoError(t, err)

	book = onlyBook(t, sh)
	assert.Equal(t, "1984", book.Title, "explicit flags win")
	assert.Equal(t, "1950", models.StringValue(book.Year))
	assert.Equal(t, "George Orwell", models.StringValue(book.Author))
	require.NotNil(t, book.PageCount)
	assert.Equal(t, 328, *book.PageCount)
	assert.Equal(t, "signed", models.StringValue(book.Notes), "fields the source lacks are kept")
	assert.Equal(t, filepath.Join(sh.cfg.CoverDir, "9780451524935.png"), models.StringValue(book.CoverPath))
	assert.Equal(t, 1, lookup.downloads)
}

func TestUpdateBook_LookupNeedsISBN(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, &stubLookup{})

	require.NoError(t, run(sh, "book", "add", "--title", "Untitled"))
	book := onlyBook(t, sh)

	err := run(sh, "book", "update", "--lookup", strconv.Itoa(book.ID))
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))
}
