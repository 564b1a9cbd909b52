package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Recognized book formats. The store only defaults the value; restricting it
// to this list is up to the caller.
const (
	FormatBook         = "Book"
	FormatComic        = "Comic"
	FormatGraphicNovel = "Graphic Novel"
	FormatMagazine     = "Magazine"
)

// Formats lists the recognized formats in display order.
var Formats = []string{FormatBook, FormatComic, FormatGraphicNovel, FormatMagazine}

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID           int       `bun:"id,pk,nullzero" json:"id"`
	ISBN         *string   `bun:"isbn" json:"isbn,omitempty"`
	Title        string    `bun:"title,notnull" json:"title"`
	Year         *string   `bun:"year" json:"year,omitempty"`
	Author       *string   `bun:"author" json:"author,omitempty"`
	Artist       *string   `bun:"artist" json:"artist,omitempty"`
	Publisher    *string   `bun:"publisher" json:"publisher,omitempty"`
	PageCount    *int      `bun:"page_count" json:"page_count,omitempty"`
	Description  *string   `bun:"description" json:"description,omitempty"`
	SeriesName   *string   `bun:"series_name" json:"series_name,omitempty"`
	SeriesNumber *int      `bun:"series_number" json:"series_number,omitempty"`
	Format       string    `bun:"format,nullzero,default:'Book'" json:"format"`
	CoverPath    *string   `bun:"cover_path" json:"cover_path,omitempty"`
	Notes        *string   `bun:"notes" json:"notes,omitempty"`
	DateAdded    time.Time `bun:"date_added,nullzero" json:"date_added"`
}

// IsRecognizedFormat reports whether format is one of Formats.
func IsRecognizedFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// StringValue dereferences an optional text column, treating NULL as "".
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
