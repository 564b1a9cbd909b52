package models

import (
	"time"

	"github.com/uptrace/bun"
)

const DefaultLoanDays = 30

type Loan struct {
	bun.BaseModel `bun:"table:loans,alias:l"`

	ID           int        `bun:"id,pk,nullzero" json:"id"`
	BookID       int        `bun:"book_id,notnull" json:"book_id"`
	Book         *Book      `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
	BorrowerName string     `bun:"borrower_name,notnull" json:"borrower_name"`
	DateLoaned   time.Time  `bun:"date_loaned,notnull" json:"date_loaned"`
	DateDue      time.Time  `bun:"date_due,notnull" json:"date_due"`
	DateReturned *time.Time `bun:"date_returned" json:"date_returned,omitempty"`
}

// IsActive reports whether the loan has not been returned yet.
func (l *Loan) IsActive() bool {
	return l.DateReturned == nil
}

// IsOverdue reports whether the loan is still out and its due date is
// strictly before now. A loan due exactly now is not overdue yet.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.IsActive() && l.DateDue.Before(now)
}

func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsActive() {
		return 0
	}
	return DaysOverdue(l.DateDue, now)
}

// DaysOverdue is the number of whole days between due and now, truncated and
// never negative.
func DaysOverdue(due, now time.Time) int {
	if !due.Before(now) {
		return 0
	}
	return int(now.Sub(due) / (24 * time.Hour))
}
