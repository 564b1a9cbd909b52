package books

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shelfkeeper/shelfkeeper/pkg/binder"
	"github.com/shelfkeeper/shelfkeeper/pkg/database"
	"github.com/shelfkeeper/shelfkeeper/pkg/errcodes"
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
	"github.com/uptrace/bun"
)

type Option func(*Service)

// WithClock overrides the time source used to stamp date_added.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		svc.now = now
	}
}

// Service is the catalog store. It owns the books table.
type Service struct {
	db     *bun.DB
	binder *binder.Binder
	now    func() time.Time
}

func NewService(db *bun.DB, opts ...Option) *Service {
	svc := &Service{
		db:     db,
		binder: binder.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateBook validates fields and inserts a new book. A non-empty ISBN that is
// already in the catalog is rejected with a duplicate key error and nothing is
// written.
func (svc *Service) CreateBook(ctx context.Context, fields BookFields) (*models.Book, error) {
	if err := svc.binder.Bind(ctx, &fields); err != nil {
		return nil, err
	}

	book := fields.toModel()
	book.DateAdded = svc.now().UTC().Truncate(time.Microsecond)

	err := database.RunInTx(ctx, svc.db, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureISBNAvailable(ctx, tx, book.ISBN, 0); err != nil {
			return err
		}

		_, err := tx.
			NewInsert().
			Model(book).
			Returning("*").
			Exec(ctx)
		return mapWriteError(err, book.ISBN)
	})
	if err != nil {
		return nil, errcodes.Storage(err)
	}

	return book, nil
}

// RetrieveBook returns the book with the given id, or nil (and no error) when
// there is none.
func (svc *Service) RetrieveBook(ctx context.Context, id int) (*models.Book, error) {
	book := &models.Book{}

	err := svc.db.
		NewSelect().
		Model(book).
		Where("b.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errcodes.Storage(errors.WithStack(err))
	}

	return book, nil
}

// ListBooks returns the whole catalog ordered by title, ignoring case.
func (svc *Service) ListBooks(ctx context.Context) ([]*models.Book, error) {
	return svc.listBooks(ctx, nil)
}

// CountBooks returns the number of books in the catalog.
func (svc *Service) CountBooks(ctx context.Context) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		Count(ctx)
	if err != nil {
		return 0, errcodes.Storage(errors.WithStack(err))
	}
	return count, nil
}

// QuickSearch returns the books whose title, author, artist or ISBN contains
// text, ignoring case. Blank text lists the whole catalog.
func (svc *Service) QuickSearch(ctx context.Context, text string) ([]*models.Book, error) {
	if trim(text) == "" {
		return svc.ListBooks(ctx)
	}

	pattern := containsPattern(text)
	return svc.listBooks(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr(containsClause("b.title"), pattern).
				WhereOr(containsClause("b.author"), pattern).
				WhereOr(containsClause("b.artist"), pattern).
				WhereOr(containsClause("b.isbn"), pattern)
		})
	})
}

// AdvancedSearch returns the books matching every supplied criterion. With no
// criteria it lists the whole catalog.
func (svc *Service) AdvancedSearch(ctx context.Context, criteria SearchCriteria) ([]*models.Book, error) {
	if err := svc.binder.Bind(ctx, &criteria); err != nil {
		return nil, err
	}
	if criteria.IsEmpty() {
		return svc.ListBooks(ctx)
	}

	filters := []struct {
		column string
		value  string
	}{
		{"b.isbn", criteria.ISBN},
		{"b.title", criteria.Title},
		{"b.series_name", criteria.Series},
		{"b.author", criteria.Author},
		{"b.artist", criteria.Artist},
		{"b.publisher", criteria.Publisher},
	}

	return svc.listBooks(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, f := range filters {
			if trim(f.value) == "" {
				continue
			}
			q = q.Where(containsClause(f.column), containsPattern(f.value))
		}
		return q
	})
}

func (svc *Service) listBooks(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]*models.Book, error) {
	books := []*models.Book{}

	q := svc.db.
		NewSelect().
		Model(&books).
		OrderExpr("b.title COLLATE NOCASE ASC, b.id ASC")

	if filter != nil {
		q = filter(q)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errcodes.Storage(errors.WithStack(err))
	}

	return books, nil
}

// UpdateBook applies the supplied fields of update to the book with the given
// id and returns the result. Fields that aren't supplied are left as they
// are, and an empty update changes nothing.
func (svc *Service) UpdateBook(ctx context.Context, id int, update BookUpdate) (*models.Book, error) {
	if err := svc.binder.Bind(ctx, &update); err != nil {
		return nil, err
	}
	if update.Title != nil && trim(*update.Title) == "" {
		return nil, errcodes.ValidationError(`"title" is required`)
	}

	var book *models.Book
	err := database.RunInTx(ctx, svc.db, func(ctx context.Context, tx bun.Tx) error {
		book = &models.Book{}
		err := tx.
			NewSelect().
			Model(book).
			Where("b.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Book")
			}
			return errors.WithStack(err)
		}

		columns := update.apply(book)
		if len(columns) == 0 {
			return nil
		}

		if update.ISBN != nil {
			if err := ensureISBNAvailable(ctx, tx, book.ISBN, book.ID); err != nil {
				return err
			}
		}

		_, err = tx.
			NewUpdate().
			Model(book).
			Column(columns...).
			WherePK().
			Exec(ctx)
		return mapWriteError(err, book.ISBN)
	})
	if err != nil {
		return nil, errcodes.Storage(err)
	}

	return book, nil
}

// DeleteBook removes the book together with every loan recorded against it.
// Deleting a book that doesn't exist is not an error.
func (svc *Service) DeleteBook(ctx context.Context, id int) error {
	err := database.RunInTx(ctx, svc.db, func(ctx context.Context, tx bun.Tx) error {
		// The foreign key cascades as well; deleting explicitly keeps loans from
		// outliving their book on stores opened without foreign keys enabled.
		_, err := tx.NewDelete().
			Model((*models.Loan)(nil)).
			Where("book_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.NewDelete().
			Model((*models.Book)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
	return errcodes.Storage(err)
}

// ensureISBNAvailable fails with a duplicate key error when another book
// (any book other than exceptID) already has isbn.
func ensureISBNAvailable(ctx context.Context, tx bun.Tx, isbn *string, exceptID int) error {
	if isbn == nil {
		return nil
	}

	q := tx.
		NewSelect().
		Model((*models.Book)(nil)).
		Where("b.isbn = ?", *isbn)
	if exceptID != 0 {
		q = q.Where("b.id != ?", exceptID)
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if exists {
		return errcodes.DuplicateKey("book", "ISBN", *isbn)
	}
	return nil
}

// mapWriteError turns a unique constraint failure on books.isbn into a
// duplicate key error.
func mapWriteError(err error, isbn *string) error {
	if err == nil {
		return nil
	}
	if isbn != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: books.isbn") {
		return errcodes.DuplicateKey("book", "ISBN", *isbn)
	}
	return errors.WithStack(err)
}
