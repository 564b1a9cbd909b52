package books

import (
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
)

// BookFields are the values a new book is created from. Blank optional
// strings are stored as NULL.
type BookFields struct {
	ISBN         string `json:"isbn" mod:"trim" validate:"max=32"`
	Title        string `json:"title" mod:"trim" validate:"required,max=500"`
	Year         string `json:"year" mod:"trim" validate:"max=32"`
	Author       string `json:"author" mod:"trim"`
	Artist       string `json:"artist" mod:"trim"`
	Publisher    string `json:"publisher" mod:"trim"`
	PageCount    *int   `json:"page_count" validate:"omitempty,min=0"`
	Description  string `json:"description" mod:"trim"`
	SeriesName   string `json:"series_name" mod:"trim"`
	SeriesNumber *int   `json:"series_number" validate:"omitempty,min=0"`
	Format       string `json:"format" mod:"trim" default:"Book"`
	CoverPath    string `json:"cover_path" mod:"trim"`
	Notes        string `json:"notes" mod:"trim"`
}

func (f BookFields) toModel() *models.Book {
	return &models.Book{
		ISBN:         optional(f.ISBN),
		Title:        f.Title,
		Year:         optional(f.Year),
		Author:       optional(f.Author),
		Artist:       optional(f.Artist),
		Publisher:    optional(f.Publisher),
		PageCount:    f.PageCount,
		Description:  optional(f.Description),
		SeriesName:   optional(f.SeriesName),
		SeriesNumber: f.SeriesNumber,
		Format:       f.Format,
		CoverPath:    optional(f.CoverPath),
		Notes:        optional(f.Notes),
	}
}

// BookUpdate describes a partial update. A nil field is left untouched; a
// pointer to an empty string clears an optional text column. Integer columns
// are cleared with the matching Clear flag.
type BookUpdate struct {
	ISBN              *string `json:"isbn,omitempty" mod:"trim" validate:"omitempty,max=32"`
	Title             *string `json:"title,omitempty" mod:"trim" validate:"omitempty,max=500"`
	Year              *string `json:"year,omitempty" mod:"trim" validate:"omitempty,max=32"`
	Author            *string `json:"author,omitempty" mod:"trim"`
	Artist            *string `json:"artist,omitempty" mod:"trim"`
	Publisher         *string `json:"publisher,omitempty" mod:"trim"`
	PageCount         *int    `json:"page_count,omitempty" validate:"omitempty,min=0"`
	ClearPageCount    bool    `json:"clear_page_count,omitempty"`
	Description       *string `json:"description,omitempty" mod:"trim"`
	SeriesName        *string `json:"series_name,omitempty" mod:"trim"`
	SeriesNumber      *int    `json:"series_number,omitempty" validate:"omitempty,min=0"`
	ClearSeriesNumber bool    `json:"clear_series_number,omitempty"`
	Format            *string `json:"format,omitempty" mod:"trim"`
	CoverPath         *string `json:"cover_path,omitempty" mod:"trim"`
	Notes             *string `json:"notes,omitempty" mod:"trim"`
}

// IsEmpty reports whether the update would change nothing.
func (u BookUpdate) IsEmpty() bool {
	return len(u.apply(&models.Book{})) == 0
}

// apply copies the supplied fields onto book and returns the columns that
// were touched.
func (u BookUpdate) apply(book *models.Book) []string {
	var columns []string

	setText := func(dst **string, src *string, column string) {
		if src == nil {
			return
		}
		*dst = optional(*src)
		columns = append(columns, column)
	}

	setText(&book.ISBN, u.ISBN, "isbn")
	if u.Title != nil {
		book.Title = trim(*u.Title)
		columns = append(columns, "title")
	}
	setText(&book.Year, u.Year, "year")
	setText(&book.Author, u.Author, "author")
	setText(&book.Artist, u.Artist, "artist")
	setText(&book.Publisher, u.Publisher, "publisher")
	switch {
	case u.ClearPageCount:
		book.PageCount = nil
		columns = append(columns, "page_count")
	case u.PageCount != nil:
		pageCount := *u.PageCount
		book.PageCount = &pageCount
		columns = append(columns, "page_count")
	}
	setText(&book.Description, u.Description, "description")
	setText(&book.SeriesName, u.SeriesName, "series_name")
	switch {
	case u.ClearSeriesNumber:
		book.SeriesNumber = nil
		columns = append(columns, "series_number")
	case u.SeriesNumber != nil:
		seriesNumber := *u.SeriesNumber
		book.SeriesNumber = &seriesNumber
		columns = append(columns, "series_number")
	}
	if u.Format != nil {
		book.Format = trim(*u.Format)
		if book.Format == "" {
			book.Format = models.FormatBook
		}
		columns = append(columns, "format")
	}
	setText(&book.CoverPath, u.CoverPath, "cover_path")
	setText(&book.Notes, u.Notes, "notes")

	return columns
}

// SearchCriteria narrows the catalog field by field. Every non-blank
// criterion is a case-insensitive substring match and all of them must hold.
type SearchCriteria struct {
	ISBN      string `json:"isbn" mod:"trim"`
	Title     string `json:"title" mod:"trim"`
	Series    string `json:"series" mod:"trim"`
	Author    string `json:"author" mod:"trim"`
	Artist    string `json:"artist" mod:"trim"`
	Publisher string `json:"publisher" mod:"trim"`
}

// IsEmpty reports whether no criterion was supplied.
func (c SearchCriteria) IsEmpty() bool {
	return trim(c.ISBN) == "" && trim(c.Title) == "" && trim(c.Series) == "" &&
		trim(c.Author) == "" && trim(c.Artist) == "" && trim(c.Publisher) == ""
}
