package covers

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shelfkeeper/shelfkeeper/pkg/errcodes"
	"github.com/shelfkeeper/shelfkeeper/pkg/identifiers"
)

// ImageExtensions are the extensions a stored cover can have.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store keeps cover images in a single directory, one file per book.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes data as the cover named after isbn, replacing any earlier cover
// for the same ISBN whatever its format. Books without an ISBN get a random
// name. The returned path is what goes into a book's cover_path.
func (s *Store) Save(isbn string, data []byte) (string, error) {
	mtype, err := detectImage(data)
	if err != nil {
		return "", err
	}

	name := baseName(isbn)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	if err := s.removeExisting(name); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name+mtype.Extension())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", errors.WithStack(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", errors.WithStack(err)
	}
	return path, nil
}

// CheckImage fails with a validation error unless data is an image Save
// would accept.
func CheckImage(data []byte) error {
	_, err := detectImage(data)
	return err
}

func detectImage(data []byte) (*mimetype.MIME, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, errcodes.ValidationError("cover is not an image (" + mtype.String() + ")")
	}
	return mtype, nil
}

// Find returns the path of the cover stored for isbn, or "" when there is
// none.
func (s *Store) Find(isbn string) string {
	name := cleanName(isbn)
	if name == "" {
		return ""
	}
	for _, ext := range ImageExtensions {
		path := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Remove deletes a cover previously returned by Save. Paths outside the store
// and files that are already gone are ignored.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

func (s *Store) removeExisting(name string) error {
	for _, ext := range ImageExtensions {
		err := os.Remove(filepath.Join(s.dir, name+ext))
		if err != nil && !os.IsNotExist(err) {
			return errors.WithStack(err)
		}
	}
	return nil
}

// baseName is the cleaned ISBN, or a fresh UUID when there isn't one.
func baseName(isbn string) string {
	if name := cleanName(isbn); name != "" {
		return name
	}
	return uuid.NewString()
}

func cleanName(isbn string) string {
	name := unsafeChars.ReplaceAllString(identifiers.CleanISBN(isbn), "")
	return strings.Trim(name, ".")
}
