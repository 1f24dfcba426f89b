package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resilience"
)

// DefaultMaxBodyBytes caps how much of a page is read.
const DefaultMaxBodyBytes = 2 << 20

var (
	// ErrNotHTML is returned for responses that are not HTML documents.
	ErrNotHTML = eris.New("scrape: not html")
	// ErrBlocked is returned for anti-bot challenge pages.
	ErrBlocked = eris.New("scrape: blocked")
)

// LocalScraper fetches raw HTML via net/http, gates on status and content
// type, detects anti-bot pages and transcodes bodies to UTF-8.
type LocalScraper struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewLocalScraper creates a LocalScraper on the shared client.
func NewLocalScraper(client *http.Client, userAgent string, maxBody int64) *LocalScraper {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &LocalScraper{client: client, userAgent: userAgent, maxBody: maxBody}
}

// Name identifies the scraper in logs.
func (l *LocalScraper) Name() string { return "local_http" }

// Scrape fetches targetURL. Transient statuses come back as a
// resilience.TransientError so the caller can retry them.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isHTML(contentType) {
		return nil, eris.Wrapf(ErrNotHTML, "%s (%s)", targetURL, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Wrapf(ErrBlocked, "%s (%s)", targetURL, blockType)
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.ResponseError(targetURL, resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, eris.Errorf("scrape: %s status %d", targetURL, resp.StatusCode)
	}

	if contentType == "" {
		contentType = http.DetectContentType(body)
		if !isHTML(contentType) {
			return nil, eris.Wrapf(ErrNotHTML, "%s (sniffed %s)", targetURL, contentType)
		}
	}

	return &model.Page{
		URL:         targetURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        toUTF8(body, contentType),
	}, nil
}

// isHTML reports whether a Content-Type header names an HTML document.
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// toUTF8 decodes body using the charset from the header or the document's
// meta tags. Undecodable bodies are returned as-is.
func toUTF8(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
