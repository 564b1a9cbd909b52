package books

import (
	"context"
	"testing"
	"time"

	"github.com/shelfkeeper/shelfkeeper/pkg/config"
	"github.com/shelfkeeper/shelfkeeper/pkg/database"
	"github.com/shelfkeeper/shelfkeeper/pkg/migrations"
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var testNow = time.Date(2024, 5, 4, 10, 30, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := database.New(config.NewForTest())
	require.NoError(t, err)

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func setupTestService(t *testing.T) (*Service, *bun.DB) {
	t.Helper()

	db := setupTestDB(t)
	return NewService(db, WithClock(func() time.Time { return testNow })), db
}

func createTestBook(ctx context.Context, t *testing.T, svc *Service, fields BookFields) *models.Book {
	t.Helper()

	book, err := svc.CreateBook(ctx, fields)
	require.NoError(t, err)
	return book
}

func insertTestLoan(ctx context.Context, t *testing.T, db *bun.DB, bookID int, returned bool) {
	t.Helper()

	loan := &models.Loan{
		BookID:       bookID,
		BorrowerName: "Alice",
		DateLoaned:   testNow,
		DateDue:      testNow.AddDate(0, 0, 30),
	}
	if returned {
		at := testNow.Add(time.Hour)
		loan.DateReturned = &at
	}
	_, err := db.NewInsert().Model(loan).Exec(ctx)
	require.NoError(t, err)
}

func countLoans(ctx context.Context, t *testing.T, db *bun.DB, bookID int) int {
	t.Helper()

	count, err := db.NewSelect().
		Model((*models.Loan)(nil)).
		Where("book_id = ?", bookID).
		Count(ctx)
	require.NoError(t, err)
	return count
}

func titles(books []*models.Book) []string {
	result := make([]string, 0, len(books))
	for _, b := range books {
		result = append(result, b.Title)
	}
	return result
}

func ptr[T any](v T) *T {
	return &v
}
