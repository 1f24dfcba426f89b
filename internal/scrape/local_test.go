package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/resilience"
)

func newTestScraper(srv *httptest.Server) *LocalScraper {
	return NewLocalScraper(srv.Client(), "LeadsBot/test", 0)
}

func TestLocalScraper_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "LeadsBot/test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`<html><body><a href="mailto:sales@acme.com">Email us</a></body></html>`))
	}))
	defer srv.Close()

	page, err := newTestScraper(srv).Scrape(context.Background(), srv.URL+"/contact")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/contact", page.URL)
	assert.Equal(t, srv.URL+"/contact", page.FinalURL)
	assert.Equal(t, 200, page.StatusCode)
	assert.Contains(t, page.HTML, "mailto:sales@acme.com")
}

func TestLocalScraper_FollowsRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/contact" {
			http.Redirect(w, r, "/contact-us/", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Contact</body></html>`))
	}))
	defer srv.Close()

	page, err := newTestScraper(srv).Scrape(context.Background(), srv.URL+"/contact")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/contact-us/", page.FinalURL)
}

func TestLocalScraper_NonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<urlset></urlset>`))
	}))
	defer srv.Close()

	_, err := newTestScraper(srv).Scrape(context.Background(), srv.URL+"/sitemap.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotHTML)
}

func TestLocalScraper_SniffsMissingContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><body>hello</body></html>`))
	}))
	defer srv.Close()

	page, err := newTestScraper(srv).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(page.ContentType, "text/html"))
}

func TestLocalScraper_Cloudflare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Cf-Ray", "abc123")
		w.WriteHeader(403)
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer srv.Close()

	_, err := newTestScraper(srv).Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestLocalScraper_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`<html><body>slow down</body></html>`))
	}))
	defer srv.Close()

	_, err := newTestScraper(srv).Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsRetryableStatus(err))

	var te *resilience.TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 7*time.Second, te.RetryAfter)
}

func TestLocalScraper_HTTP404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(404)
		_, _ = w.Write([]byte(`<html><body>Not found page with lots of content here to exceed threshold</body></html>`))
	}))
	defer srv.Close()

	_, err := newTestScraper(srv).Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.False(t, resilience.IsRetryableStatus(err))
}

func TestLocalScraper_TranscodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body>Caf\xe9 Beton GmbH</body></html>"))
	}))
	defer srv.Close()

	page, err := newTestScraper(srv).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "Café Beton GmbH")
}

func TestLocalScraper_CapsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("a", 10000) + "</body></html>"))
	}))
	defer srv.Close()

	page, err := NewLocalScraper(srv.Client(), "", 5000).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.HTML, 5000)
}

func TestLocalScraper_Name(t *testing.T) {
	assert.Equal(t, "local_http", NewLocalScraper(http.DefaultClient, "", 0).Name())
}

func TestIsHTML(t *testing.T) {
	assert.True(t, isHTML("text/html"))
	assert.True(t, isHTML("Text/HTML; charset=UTF-8"))
	assert.True(t, isHTML("application/xhtml+xml"))
	assert.False(t, isHTML("application/json"))
	assert.False(t, isHTML("text/plain; charset=utf-8"))
}
