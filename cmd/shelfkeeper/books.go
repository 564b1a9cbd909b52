package main

import (
	"context"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shelfkeeper/shelfkeeper/pkg/books"
	"github.com/shelfkeeper/shelfkeeper/pkg/covers"
	"github.com/shelfkeeper/shelfkeeper/pkg/errcodes"
	"github.com/shelfkeeper/shelfkeeper/pkg/identifiers"
	"github.com/shelfkeeper/shelfkeeper/pkg/metadata"
	"github.com/shelfkeeper/shelfkeeper/pkg/models"
	"github.com/urfave/cli/v2"
)

func bookFieldFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "isbn"},
		&cli.StringFlag{Name: "title"},
		&cli.StringFlag{Name: "year"},
		&cli.StringFlag{Name: "author"},
		&cli.StringFlag{Name: "artist"},
		&cli.StringFlag{Name: "publisher"},
		&cli.IntFlag{Name: "pages"},
		&cli.StringFlag{Name: "description"},
		&cli.StringFlag{Name: "series"},
		&cli.IntFlag{Name: "series-number"},
		&cli.StringFlag{Name: "format", Usage: "one of Book, Comic, Graphic Novel, Magazine"},
		&cli.StringFlag{Name: "cover", Usage: "path to a cover image"},
		&cli.StringFlag{Name: "notes"},
	}
}

func (sh *shell) bookCommand() *cli.Command {
	return &cli.Command{
		Name:  "book",
		Usage: "manage the catalog",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "add a book to the catalog",
				ArgsUsage: " ",
				Flags: append(bookFieldFlags(), &cli.BoolFlag{
					Name:  "lookup",
					Usage: "fill in missing fields and the cover from Open Library using --isbn",
				}),
				Action: sh.addBook,
			},
			{
				Name:      "get",
				Usage:     "show a book",
				ArgsUsage: "BOOK_ID",
				Action: func(c *cli.Context) error {
					id, err := intArg(c, 0, "BOOK_ID")
					if err != nil {
						return err
					}
					book, err := sh.books.RetrieveBook(c.Context, id)
					if err != nil {
						return err
					}
					if book == nil {
						return errcodes.NotFound("Book")
					}
					return sh.out.book(book)
				},
			},
			{
				Name:  "list",
				Usage: "list the whole catalog",
				Action: func(c *cli.Context) error {
					result, err := sh.books.ListBooks(c.Context)
					if err != nil {
						return err
					}
					return sh.out.books(result)
				},
			},
			{
				Name:      "search",
				Usage:     "find books whose title, author, artist or ISBN contains TEXT",
				ArgsUsage: "TEXT",
				Action: func(c *cli.Context) error {
					result, err := sh.books.QuickSearch(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return sh.out.books(result)
				},
			},
			{
				Name:  "find",
				Usage: "find books matching every given field",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "isbn"},
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "series"},
					&cli.StringFlag{Name: "author"},
					&cli.StringFlag{Name: "artist"},
					&cli.StringFlag{Name: "publisher"},
				},
				Action: func(c *cli.Context) error {
					result, err := sh.books.AdvancedSearch(c.Context, books.SearchCriteria{
						ISBN:      c.String("isbn"),
						Title:     c.String("title"),
						Series:    c.String("series"),
						Author:    c.String("author"),
						Artist:    c.String("artist"),
						Publisher: c.String("publisher"),
					})
					if err != nil {
						return err
					}
					return sh.out.books(result)
				},
			},
			{
				Name:      "update",
				Usage:     "change some fields of a book; an empty value clears the field",
				ArgsUsage: "BOOK_ID",
				Flags: append(bookFieldFlags(),
					&cli.BoolFlag{Name: "clear-pages"},
					&cli.BoolFlag{Name: "clear-series-number"},
					&cli.BoolFlag{
						Name:  "lookup",
						Usage: "refresh the fields Open Library knows about, using the book's ISBN; other flags win",
					},
				),
				Action: sh.updateBook,
			},
			{
				Name:      "delete",
				Usage:     "remove a book and its loan history",
				ArgsUsage: "BOOK_ID",
				Action:    sh.deleteBook,
			},
			{
				Name:      "lookup",
				Usage:     "look an ISBN up on Open Library",
				ArgsUsage: "ISBN",
				Action: func(c *cli.Context) error {
					isbn := c.Args().First()
					if isbn == "" {
						return errcodes.ValidationError("an ISBN is required")
					}
					result, err := sh.lookup.LookupISBN(c.Context, isbn)
					if err != nil {
						return err
					}
					if result == nil {
						return errcodes.NotFound("ISBN " + isbn)
					}
					return sh.out.metadata(result)
				},
			},
		},
	}
}

func (sh *shell) addBook(c *cli.Context) error {
	fields := books.BookFields{
		ISBN:        c.String("isbn"),
		Title:       c.String("title"),
		Year:        c.String("year"),
		Author:      c.String("author"),
		Artist:      c.String("artist"),
		Publisher:   c.String("publisher"),
		Description: c.String("description"),
		SeriesName:  c.String("series"),
		Format:      c.String("format"),
		Notes:       c.String("notes"),
	}
	if c.IsSet("pages") {
		pages := c.Int("pages")
		fields.PageCount = &pages
	}
	if c.IsSet("series-number") {
		number := c.Int("series-number")
		fields.SeriesNumber = &number
	}
	warnFormat(c, fields.Format)

	var coverData []byte
	if c.Bool("lookup") {
		data, err := sh.fillFromLookup(c, &fields)
		if err != nil {
			return err
		}
		coverData = data
	}
	if path := c.String("cover"); path != "" {
		data, err := readCover(path)
		if err != nil {
			return err
		}
		coverData = data
	}

	book, err := sh.books.CreateBook(c.Context, fields)
	if err != nil {
		return err
	}
	if coverData != nil {
		book, err = sh.attachCover(c.Context, book, coverData)
		if err != nil {
			return errors.Wrapf(err, "added book %d without its cover", book.ID)
		}
	}
	sh.out.message("Added book %d", book.ID)
	return sh.out.book(book)
}

// fillFromLookup copies looked-up values into the fields the user left blank
// and returns the cover image to attach, if the source has one. A cover
// already stored for the ISBN is reused instead of downloaded again.
func (sh *shell) fillFromLookup(c *cli.Context, fields *books.BookFields) ([]byte, error) {
	if fields.ISBN == "" {
		return nil, errcodes.ValidationError("--lookup needs --isbn")
	}

	result, err := sh.lookupISBN(c, fields.ISBN)
	if err != nil || result == nil {
		return nil, err
	}

	found := result.BookFields(fields.ISBN)
	fillBlank(&fields.Title, found.Title)
	fillBlank(&fields.Year, found.Year)
	fillBlank(&fields.Author, found.Author)
	fillBlank(&fields.Publisher, found.Publisher)
	fillBlank(&fields.Description, found.Description)
	if fields.PageCount == nil {
		fields.PageCount = found.PageCount
	}

	if c.String("cover") != "" {
		return nil, nil
	}
	if existing := sh.covers.Find(fields.ISBN); existing != "" {
		fields.CoverPath = existing
		return nil, nil
	}
	return sh.downloadCover(c, result), nil
}

func (sh *shell) lookupISBN(c *cli.Context, isbn string) (*metadata.Result, error) {
	if !identifiers.IsValidISBN(isbn) {
		logger.FromContext(c.Context).Warn("isbn checksum doesn't match", logger.Data{"isbn": isbn})
	}

	result, err := sh.lookup.LookupISBN(c.Context, isbn)
	if err != nil {
		return nil, err
	}
	if result == nil {
		sh.out.message("ISBN %s was not found; using the given fields only", isbn)
	}
	return result, nil
}

// downloadCover returns the looked-up cover, or nil when there is none or it
// can't be fetched. A missing cover never stops the book from being saved.
func (sh *shell) downloadCover(c *cli.Context, result *metadata.Result) []byte {
	if result.CoverURL == "" {
		return nil
	}
	data, err := sh.lookup.DownloadCover(c.Context, result.CoverURL)
	if err == nil {
		err = covers.CheckImage(data)
	}
	if err != nil {
		logger.FromContext(c.Context).Warn("cover download failed", logger.Data{"url": result.CoverURL, "error": err.Error()})
		return nil
	}
	return data
}

// attachCover stores data as the cover of a book that is already saved and
// records its path. Covers are named after the ISBN, so writing one before
// the book's row is accepted could replace another book's cover.
func (sh *shell) attachCover(ctx context.Context, book *models.Book, data []byte) (*models.Book, error) {
	path, err := sh.covers.Save(models.StringValue(book.ISBN), data)
	if err != nil {
		return book, err
	}
	updated, err := sh.books.UpdateBook(ctx, book.ID, books.BookUpdate{CoverPath: &path})
	if err != nil {
		return book, err
	}
	if book.CoverPath != nil && *book.CoverPath != path {
		if err := sh.covers.Remove(*book.CoverPath); err != nil {
			logger.FromContext(ctx).Warn("old cover not removed", logger.Data{"path": *book.CoverPath, "error": err.Error()})
		}
	}
	return updated, nil
}

func (sh *shell) updateBook(c *cli.Context) error {
	id, err := intArg(c, 0, "BOOK_ID")
	if err != nil {
		return err
	}

	var update books.BookUpdate
	var coverData []byte
	if c.Bool("lookup") {
		update, coverData, err = sh.updateFromLookup(c, id)
		if err != nil {
			return err
		}
	}

	// Explicit flags win over looked-up values.
	text := map[string]**string{
		"isbn":        &update.ISBN,
		"title":       &update.Title,
		"year":        &update.Year,
		"author":      &update.Author,
		"artist":      &update.Artist,
		"publisher":   &update.Publisher,
		"description": &update.Description,
		"series":      &update.SeriesName,
		"format":      &update.Format,
		"notes":       &update.Notes,
	}
	for name, dst := range text {
		if c.IsSet(name) {
			value := c.String(name)
			*dst = &value
		}
	}
	if c.IsSet("pages") {
		pages := c.Int("pages")
		update.PageCount = &pages
	}
	if c.IsSet("series-number") {
		number := c.Int("series-number")
		update.SeriesNumber = &number
	}
	update.ClearPageCount = c.Bool("clear-pages")
	update.ClearSeriesNumber = c.Bool("clear-series-number")
	if update.Format != nil {
		warnFormat(c, *update.Format)
	}

	if path := c.String("cover"); path != "" {
		coverData, err = readCover(path)
		if err != nil {
			return err
		}
	}

	book, err := sh.books.UpdateBook(c.Context, id, update)
	if err != nil {
		return err
	}
	if coverData != nil {
		book, err = sh.attachCover(c.Context, book, coverData)
		if err != nil {
			return errors.Wrapf(err, "updated book %d without its cover", book.ID)
		}
	}
	sh.out.message("Updated book %d", book.ID)
	return sh.out.book(book)
}

// updateFromLookup builds an update from what the source knows about the
// book's ISBN (or the one given with --isbn). Fields the source doesn't supply
// are left alone. A book without a cover gets the stored or looked-up one.
func (sh *shell) updateFromLookup(c *cli.Context, id int) (books.BookUpdate, []byte, error) {
	book, err := sh.books.RetrieveBook(c.Context, id)
	if err != nil {
		return books.BookUpdate{}, nil, err
	}
	if book == nil {
		return books.BookUpdate{}, nil, errcodes.NotFound("Book")
	}

	isbn := models.StringValue(book.ISBN)
	if c.IsSet("isbn") {
		isbn = c.String("isbn")
	}
	if isbn == "" {
		return books.BookUpdate{}, nil, errcodes.ValidationError("--lookup needs the book to have an ISBN")
	}

	result, err := sh.lookupISBN(c, isbn)
	if err != nil || result == nil {
		return books.BookUpdate{}, nil, err
	}

	update := result.BookUpdate()
	if book.CoverPath != nil || c.String("cover") != "" {
		return update, nil, nil
	}
	if existing := sh.covers.Find(isbn); existing != "" {
		update.CoverPath = &existing
		return update, nil, nil
	}
	return update, sh.downloadCover(c, result), nil
}

func (sh *shell) deleteBook(c *cli.Context) error {
	id, err := intArg(c, 0, "BOOK_ID")
	if err != nil {
		return err
	}

	book, err := sh.books.RetrieveBook(c.Context, id)
	if err != nil {
		return err
	}
	if err := sh.books.DeleteBook(c.Context, id); err != nil {
		return err
	}
	if book != nil && book.CoverPath != nil {
		if err := sh.covers.Remove(*book.CoverPath); err != nil {
			logger.FromContext(c.Context).Warn("cover not removed", logger.Data{"path": *book.CoverPath, "error": err.Error()})
		}
	}
	sh.out.message("Deleted book %d", id)
	return nil
}

func warnFormat(c *cli.Context, format string) {
	if format != "" && !models.IsRecognizedFormat(format) {
		logger.FromContext(c.Context).Warn("unrecognized format", logger.Data{"format": format, "recognized": models.Formats})
	}
}

func fillBlank(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func intArg(c *cli.Context, n int, name string) (int, error) {
	raw := c.Args().Get(n)
	if raw == "" {
		return 0, errcodes.ValidationError(name + " is required")
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errcodes.ValidationError(name + " must be a number")
	}
	return id, nil
}

// readCover reads an image file given with --cover.
func readCover(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := covers.CheckImage(data); err != nil {
		return nil, err
	}
	return data, nil
}
