package loans

import (
	"context"
	"testing"
	"time"

	"github.com/shelfkeeper/shelfkeeper/pkg/books"
	"github.com/shelfkeeper/shelfkeeper/pkg/config"
	"github.com/shelfkeeper/shelfkeeper/pkg/database"
	"github.com/shelfkeeper/shelfkeeper/pkg/migrations"
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// testClock is a settable time source.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type testEnv struct {
	db    *bun.DB
	clock *testClock
	books *books.Service
	loans *Service
}

func setupTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	db, err := database.New(config.NewForTest())
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	clock := &testClock{now: testStart}
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	return &testEnv{
		db:    db,
		clock: clock,
		books: books.NewService(db, books.WithClock(clock.Now)),
		loans: NewService(db, opts...),
	}
}

func (env *testEnv) createBook(t *testing.T, title string) *models.Book {
	t.Helper()

	book, err := env.books.CreateBook(context.Background(), books.BookFields{Title: title})
	require.NoError(t, err)
	return book
}

func (env *testEnv) openLoan(t *testing.T, bookID int, borrower string, days int) *models.Loan {
	t.Helper()

	loan, err := env.loans.OpenLoan(context.Background(), bookID, borrower, days)
	require.NoError(t, err)
	return loan
}

func loanIDs(loans []*models.Loan) []int {
	ids := make([]int, 0, len(loans))
	for _, l := range loans {
		ids = append(ids, l.ID)
	}
	return ids
}
