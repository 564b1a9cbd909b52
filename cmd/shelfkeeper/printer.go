package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shelfkeeper/shelfkeeper/pkg/metadata"
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
)

const dateLayout = "2006-01-02"

// printer renders results either as aligned text or as JSON.
type printer struct {
	w        io.Writer
	jsonMode bool
}

func newPrinter(w io.Writer, jsonMode bool) *printer {
	return &printer{w: w, jsonMode: jsonMode}
}

func (p *printer) message(format string, args ...interface{}) {
	if p.jsonMode {
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) json(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(v))
}

func (p *printer) book(book *models.Book) error {
	if p.jsonMode {
		return p.json(book)
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", label, value)
		}
	}
	row("ID", strconv.Itoa(book.ID))
	row("Title", book.Title)
	row("ISBN", models.StringValue(book.ISBN))
	row("Author", models.StringValue(book.Author))
	row("Artist", models.StringValue(book.Artist))
	row("Publisher", models.StringValue(book.Publisher))
	row("Year", models.StringValue(book.Year))
	row("Pages", intValue(book.PageCount))
	row("Series", seriesLabel(book))
	row("Format", book.Format)
	row("Cover", models.StringValue(book.CoverPath))
	row("Added", book.DateAdded.Local().Format(dateLayout))
	row("Description", models.StringValue(book.Description))
	row("Notes", models.StringValue(book.Notes))
	return errors.WithStack(tw.Flush())
}

func (p *printer) books(books []*models.Book) error {
	if p.jsonMode {
		return p.json(books)
	}
	if len(books) == 0 {
		p.message("No books found")
		return nil
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tISBN\tFORMAT")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", b.ID, b.Title, models.StringValue(b.Author), models.StringValue(b.ISBN), b.Format)
	}
	return errors.WithStack(tw.Flush())
}

func (p *printer) loans(loans []*models.Loan, now time.Time) error {
	if p.jsonMode {
		return p.json(loans)
	}
	if len(loans) == 0 {
		p.message("No loans found")
		return nil
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOAN\tBOOK\tBORROWER\tLOANED\tDUE\tSTATUS")
	for _, l := range loans {
		title := strconv.Itoa(l.BookID)
		if l.Book != nil {
			title = l.Book.Title
			if author := models.StringValue(l.Book.Author); author != "" {
				title += " (" + author + ")"
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, title, l.BorrowerName,
			l.DateLoaned.Local().Format(dateLayout),
			l.DateDue.Local().Format(dateLayout),
			loanStatus(l, now))
	}
	return errors.WithStack(tw.Flush())
}

func (p *printer) metadata(result *metadata.Result) error {
	if p.jsonMode {
		return p.json(result)
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Title:\t%s\n", result.Title)
	fmt.Fprintf(tw, "Author:\t%s\n", result.Author)
	fmt.Fprintf(tw, "Publisher:\t%s\n", result.Publisher)
	fmt.Fprintf(tw, "Year:\t%s\n", result.Year)
	fmt.Fprintf(tw, "Pages:\t%s\n", intValue(result.PageCount))
	fmt.Fprintf(tw, "Cover:\t%s\n", result.CoverURL)
	if result.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", result.Description)
	}
	return errors.WithStack(tw.Flush())
}

func loanStatus(l *models.Loan, now time.Time) string {
	switch {
	case !l.IsActive():
		return "returned " + l.DateReturned.Local().Format(dateLayout)
	case l.IsOverdue(now):
		days := l.DaysOverdue(now)
		if days == 0 {
			return "overdue"
		}
		if days == 1 {
			return "overdue 1 day"
		}
		return fmt.Sprintf("overdue %d days", days)
	default:
		return "on loan"
	}
}

func seriesLabel(book *models.Book) string {
	parts := []string{}
	if name := models.StringValue(book.SeriesName); name != "" {
		parts = append(parts, name)
	}
	if book.SeriesNumber != nil {
		parts = append(parts, "#"+strconv.Itoa(*book.SeriesNumber))
	}
	return strings.Join(parts, " ")
}

func intValue(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
