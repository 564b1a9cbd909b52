package metadata

import (
	"context"

	"github.com/shelfkeeper/shelfkeeper/pkg/books"
)

// Lookup fetches book metadata by ISBN. LookupISBN returns nil (and no error)
// when the ISBN is unknown to the source.
type Lookup interface {
	LookupISBN(ctx context.Context, isbn string) (*Result, error)
	DownloadCover(ctx context.Context, coverURL string) ([]byte, error)
}

// Result is what a lookup found. Empty strings mean the source had nothing
// for that field.
type Result struct {
	Title       string `json:"title"`
	Year        string `json:"year"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	PageCount   *int   `json:"page_count,omitempty"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
}

// BookFields turns the result into input for creating a book with the given
// ISBN.
func (r *Result) BookFields(isbn string) books.BookFields {
	return books.BookFields{
		ISBN:        isbn,
		Title:       r.Title,
		Year:        r.Year,
		Author:      r.Author,
		Publisher:   r.Publisher,
		PageCount:   r.PageCount,
		Description: r.Description,
	}
}

// BookUpdate turns the result into a partial update that only touches the
// fields the source actually supplied, so existing values are never blanked.
func (r *Result) BookUpdate() books.BookUpdate {
	var update books.BookUpdate
	if r.Title != "" {
		update.Title = &r.Title
	}
	if r.Year != "" {
		update.Year = &r.Year
	}
	if r.Author != "" {
		update.Author = &r.Author
	}
	if r.Publisher != "" {
		update.Publisher = &r.Publisher
	}
	if r.PageCount != nil {
		update.PageCount = r.PageCount
	}
	if r.Description != "" {
		update.Description = &r.Description
	}
	return update
}
