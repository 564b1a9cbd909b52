package loans

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shelfkeeper/shelfkeeper/pkg/binder"
	"github.com/shelfkeeper/shelfkeeper/pkg/database"
	"github.com/shelfkeeper/shelfkeeper/pkg/errcodes"
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
	"github.com/uptrace/bun"
)

type Option func(*Service)

// WithClock overrides the time source used to stamp loans and returns.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		svc.now = now
	}
}

// WithDefaultPeriod sets the loan period used when OpenLoan isn't given one.
// Non-positive values are ignored.
func WithDefaultPeriod(days int) Option {
	return func(svc *Service) {
		if days > 0 {
			svc.defaultPeriod = days
		}
	}
}

// Service is the loan ledger. It owns the loans table and only reads books.
type Service struct {
	db            *bun.DB
	binder        *binder.Binder
	now           func() time.Time
	defaultPeriod int
}

func NewService(db *bun.DB, opts ...Option) *Service {
	svc := &Service{
		db:            db,
		binder:        binder.New(),
		now:           time.Now,
		defaultPeriod: models.DefaultLoanDays,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// OpenLoan lends the book to borrowerName for periodDays days, or for the
// default period when periodDays isn't positive. The book must exist and must
// not already be on loan; the check and the insert share one transaction.
func (svc *Service) OpenLoan(ctx context.Context, bookID int, borrowerName string, periodDays int) (*models.Loan, error) {
	payload := openLoanPayload{
		BookID:       bookID,
		BorrowerName: borrowerName,
		PeriodDays:   periodDays,
	}
	if err := svc.binder.Bind(ctx, &payload); err != nil {
		return nil, err
	}
	if payload.PeriodDays <= 0 {
		payload.PeriodDays = svc.defaultPeriod
	}

	loanedAt := svc.now().UTC().Truncate(time.Microsecond)
	loan := &models.Loan{
		BookID:       payload.BookID,
		BorrowerName: payload.BorrowerName,
		DateLoaned:   loanedAt,
		DateDue:      loanedAt.AddDate(0, 0, payload.PeriodDays),
	}

	err := database.RunInTx(ctx, svc.db, func(ctx context.Context, tx bun.Tx) error {
		book := &models.Book{}
		err := tx.
			NewSelect().
			Model(book).
			Where("b.id = ?", payload.BookID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Book")
			}
			return errors.WithStack(err)
		}

		onLoan, err := tx.
			NewSelect().
			Model((*models.Loan)(nil)).
			Where("l.book_id = ?", payload.BookID).
			Where("l.date_returned IS NULL").
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if onLoan {
			return errcodes.AlreadyOnLoan()
		}

		_, err = tx.
			NewInsert().
			Model(loan).
			Returning("*").
			Exec(ctx)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed: loans.book_id") {
				return errcodes.AlreadyOnLoan()
			}
			return errors.WithStack(err)
		}

		loan.Book = book
		return nil
	})
	if err != nil {
		return nil, errcodes.Storage(err)
	}

	logger.FromContext(ctx).Info("loan opened", logger.Data{
		"loan_id":  loan.ID,
		"book_id":  loan.BookID,
		"date_due": loan.DateDue,
	})

	return loan, nil
}

// ReturnLoan closes the loan. A loan can only be returned once; returning it
// again fails and leaves the original return date in place.
func (svc *Service) ReturnLoan(ctx context.Context, loanID int) (*models.Loan, error) {
	loan := &models.Loan{}

	err := database.RunInTx(ctx, svc.db, func(ctx context.Context, tx bun.Tx) error {
		err := tx.
			NewSelect().
			Model(loan).
			Where("l.id = ?", loanID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Loan")
			}
			return errors.WithStack(err)
		}
		if !loan.IsActive() {
			return errcodes.AlreadyReturned()
		}

		returnedAt := svc.now().UTC().Truncate(time.Microsecond)
		loan.DateReturned = &returnedAt

		_, err = tx.
			NewUpdate().
			Model(loan).
			Column("date_returned").
			WherePK().
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, errcodes.Storage(err)
	}

	return loan, nil
}

// RetrieveActiveLoan returns the book's active loan, or nil (and no error) when
// the book isn't on loan. Should a store hold more than one, the most recently
// opened wins.
func (svc *Service) RetrieveActiveLoan(ctx context.Context, bookID int) (*models.Loan, error) {
	loan := &models.Loan{}

	err := svc.db.
		NewSelect().
		Model(loan).
		Relation("Book").
		Where("l.book_id = ?", bookID).
		Where("l.date_returned IS NULL").
		OrderExpr("l.date_loaned DESC, l.id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errcodes.Storage(errors.WithStack(err))
	}

	return loan, nil
}

// ListActiveLoans returns every loan that hasn't been returned, with its book,
// soonest due first.
func (svc *Service) ListActiveLoans(ctx context.Context) ([]*models.Loan, error) {
	return svc.listActiveLoans(ctx, nil)
}

// ListOverdueLoans returns the active loans due strictly before now, soonest
// due first.
func (svc *Service) ListOverdueLoans(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	return svc.listActiveLoans(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("l.date_due < ?", now.UTC())
	})
}

func (svc *Service) listActiveLoans(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]*models.Loan, error) {
	loans := []*models.Loan{}

	q := svc.db.
		NewSelect().
		Model(&loans).
		Relation("Book").
		Where("l.date_returned IS NULL").
		OrderExpr("l.date_due ASC, l.id ASC")

	if filter != nil {
		q = filter(q)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errcodes.Storage(errors.WithStack(err))
	}

	return loans, nil
}

// LoanHistory returns every loan recorded against the book, returned or not,
// most recent first.
func (svc *Service) LoanHistory(ctx context.Context, bookID int) ([]*models.Loan, error) {
	loans := []*models.Loan{}

	err := svc.db.
		NewSelect().
		Model(&loans).
		Where("l.book_id = ?", bookID).
		OrderExpr("l.date_loaned DESC, l.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, errcodes.Storage(errors.WithStack(err))
	}

	return loans, nil
}

// DaysOverdue is the number of whole days a loan due at due is overdue at now.
func DaysOverdue(due, now time.Time) int {
	return models.DaysOverdue(due, now)
}
