package metadata

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shelfkeeper/shelfkeeper/pkg/config"
	"github.com/shelfkeeper/shelfkeeper/pkg/identifiers"
)

// maxResponseBytes caps any single response, covers included.
const maxResponseBytes = 10 << 20

var yearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// coverSizes is the order cover sizes are preferred in.
var coverSizes = []string{"large", "medium", "small"}

var _ Lookup = (*OpenLibraryClient)(nil)

// OpenLibraryClient looks books up through the Open Library books API.
type OpenLibraryClient struct {
	baseURL  string
	client   *http.Client
	maxBytes int64
}

func NewOpenLibraryClient(cfg *config.Config) *OpenLibraryClient {
	return &OpenLibraryClient{
		baseURL:  strings.TrimSuffix(cfg.MetadataBaseURL, "/"),
		client:   &http.Client{Timeout: cfg.MetadataTimeout},
		maxBytes: maxResponseBytes,
	}
}

type openLibraryName struct {
	Name string `json:"name"`
}

// openLibraryText is either a bare string or an object with a "value" key.
type openLibraryText string

func (t *openLibraryText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = openLibraryText(s)
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.WithStack(err)
	}
	*t = openLibraryText(obj.Value)
	return nil
}

type openLibraryBook struct {
	Title         string            `json:"title"`
	PublishDate   string            `json:"publish_date"`
	Authors       []openLibraryName `json:"authors"`
	Publishers    []openLibraryName `json:"publishers"`
	NumberOfPages *int              `json:"number_of_pages"`
	Description   openLibraryText   `json:"description"`
	Cover         map[string]string `json:"cover"`
}

// LookupISBN queries Open Library for isbn. Hyphens and spaces are ignored.
func (c *OpenLibraryClient) LookupISBN(ctx context.Context, isbn string) (*Result, error) {
	clean := identifiers.CleanISBN(isbn)
	if clean == "" {
		return nil, nil
	}
	// Editions are often indexed under only one of the two forms, so an
	// ISBN-10 is asked for under its ISBN-13 as well.
	keys := []string{"ISBN:" + clean}
	if isbn13, ok := identifiers.ToISBN13(clean); ok && isbn13 != clean {
		keys = append(keys, "ISBN:"+isbn13)
	}

	query := url.Values{}
	query.Set("bibkeys", strings.Join(keys, ","))
	query.Set("jscmd", "data")
	query.Set("format", "json")

	body, err := c.get(ctx, c.baseURL+"/api/books?"+query.Encode())
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up isbn")
	}

	var response map[string]openLibraryBook
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse isbn lookup response")
	}

	for _, key := range keys {
		if book, ok := response[key]; ok {
			return book.result(), nil
		}
	}
	logger.FromContext(ctx).Info("isbn not found", logger.Data{"isbn": clean})
	return nil, nil
}

// DownloadCover fetches the image at coverURL.
func (c *OpenLibraryClient) DownloadCover(ctx context.Context, coverURL string) ([]byte, error) {
	if coverURL == "" {
		return nil, errors.New("no cover url")
	}
	body, err := c.get(ctx, coverURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download cover")
	}
	return body, nil
}

func (c *OpenLibraryClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, errors.Errorf("response from %s is larger than %d bytes", req.URL.Host, c.maxBytes)
	}
	return body, nil
}

func (b openLibraryBook) result() *Result {
	result := &Result{
		Title:       b.Title,
		Year:        yearRegex.FindString(b.PublishDate),
		Author:      joinNames(b.Authors),
		Publisher:   joinNames(b.Publishers),
		PageCount:   b.NumberOfPages,
		Description: cleanDescription(string(b.Description)),
	}
	for _, size := range coverSizes {
		if u := b.Cover[size]; u != "" {
			result.CoverURL = u
			break
		}
	}
	return result
}

func joinNames(names []openLibraryName) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if n.Name != "" {
			parts = append(parts, n.Name)
		}
	}
	return strings.Join(parts, ", ")
}
