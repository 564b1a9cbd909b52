package main

import (
	"time"

	"github.com/shelfkeeper/shelfkeeper/pkg/errcodes"
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
	"github.com/urfave/cli/v2"
)

func (sh *shell) loanCommand() *cli.Command {
	return &cli.Command{
		Name:  "loan",
		Usage: "lend books out and take them back",
		Subcommands: []*cli.Command{
			{
				Name:      "out",
				Usage:     "lend a book to someone",
				ArgsUsage: "BOOK_ID BORROWER",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "loan period in days (defaults to default_loan_days)",
					},
				},
				Action: func(c *cli.Context) error {
					bookID, err := intArg(c, 0, "BOOK_ID")
					if err != nil {
						return err
					}
					loan, err := sh.loans.OpenLoan(c.Context, bookID, c.Args().Get(1), c.Int("days"))
					if err != nil {
						return err
					}
					sh.out.message("Loan %d: due back %s", loan.ID, loan.DateDue.Local().Format(dateLayout))
					return sh.out.loans([]*models.Loan{loan}, time.Now())
				},
			},
			{
				Name:      "return",
				Usage:     "mark a loan as returned",
				ArgsUsage: "LOAN_ID",
				Action: func(c *cli.Context) error {
					loanID, err := intArg(c, 0, "LOAN_ID")
					if err != nil {
						return err
					}
					loan, err := sh.loans.ReturnLoan(c.Context, loanID)
					if err != nil {
						return err
					}
					sh.out.message("Loan %d returned", loan.ID)
					return sh.out.loans([]*models.Loan{loan}, time.Now())
				},
			},
			{
				Name:  "active",
				Usage: "list books that are out, soonest due first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "book",
						Usage: "only show the active loan of this book",
					},
				},
				Action: func(c *cli.Context) error {
					if !c.IsSet("book") {
						result, err := sh.loans.ListActiveLoans(c.Context)
						if err != nil {
							return err
						}
						return sh.out.loans(result, time.Now())
					}

					loan, err := sh.loans.RetrieveActiveLoan(c.Context, c.Int("book"))
					if err != nil {
						return err
					}
					if loan == nil {
						return sh.out.loans([]*models.Loan{}, time.Now())
					}
					return sh.out.loans([]*models.Loan{loan}, time.Now())
				},
			},
			{
				Name:  "overdue",
				Usage: "list loans past their due date",
				Action: func(c *cli.Context) error {
					now := time.Now()
					result, err := sh.loans.ListOverdueLoans(c.Context, now)
					if err != nil {
						return err
					}
					return sh.out.loans(result, now)
				},
			},
			{
				Name:      "history",
				Usage:     "list every loan of a book, most recent first",
				ArgsUsage: "BOOK_ID",
				Action: func(c *cli.Context) error {
					bookID, err := intArg(c, 0, "BOOK_ID")
					if err != nil {
						return err
					}
					book, err := sh.books.RetrieveBook(c.Context, bookID)
					if err != nil {
						return err
					}
					if book == nil {
						return errcodes.NotFound("Book")
					}
					result, err := sh.loans.LoanHistory(c.Context, bookID)
					if err != nil {
						return err
					}
					return sh.out.loans(result, time.Now())
				},
			},
		},
	}
}
