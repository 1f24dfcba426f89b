package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resilience"
)

type fakeScraper struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(url string, n int) (*model.Page, error)
}

func newFakeScraper(fn func(url string, n int) (*model.Page, error)) *fakeScraper {
	return &fakeScraper{calls: make(map[string]int), fn: fn}
}

func (f *fakeScraper) Name() string { return "fake" }

func (f *fakeScraper) Scrape(_ context.Context, url string) (*model.Page, error) {
	f.mu.Lock()
	f.calls[url]++
	n := f.calls[url]
	f.mu.Unlock()
	return f.fn(url, n)
}

func (f *fakeScraper) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, c := range f.calls {
		n += c
	}
	return n
}

func testFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		CandidatePaths:  config.DefaultCandidatePaths,
		PageConcurrency: 4,
		TimeoutSecs:     1,
		MaxAttempts:     2,
	}
}

func TestFetcher_Candidates(t *testing.T) {
	f := NewFetcher(newFakeScraper(nil), testFetchConfig())
	cands := f.Candidates(model.ResolvedSite{FinalURL: "https://www.acme.com/home", Domain: "acme.com"})

	urls := make([]string, 0, len(cands))
	for _, c := range cands {
		urls = append(urls, c.URL)
	}
	assert.Equal(t, []string{
		"https://www.acme.com/home",
		"https://www.acme.com/contact",
		"https://www.acme.com/contact-us",
		"https://www.acme.com/about",
		"https://www.acme.com/team",
		"https://www.acme.com/privacy",
		"https://www.acme.com/impressum",
		"https://www.acme.com/terms",
		"https://www.acme.com/sitemap.xml",
	}, urls)
}

func TestFetcher_CandidatesExcludeAndDedup(t *testing.T) {
	cfg := testFetchConfig()
	cfg.CandidatePaths = []string{"", "contact", "/contact", "sitemap.xml"}
	cfg.ExcludePaths = []string{"/*.xml"}
	f := NewFetcher(newFakeScraper(nil), cfg)

	cands := f.Candidates(model.ResolvedSite{FinalURL: "https://acme.com/", Domain: "acme.com"})
	require.Len(t, cands, 2)
	assert.Equal(t, "https://acme.com/", cands[0].URL)
	assert.Equal(t, "https://acme.com/contact", cands[1].URL)
}

func TestFetcher_CandidatesBadURL(t *testing.T) {
	f := NewFetcher(newFakeScraper(nil), testFetchConfig())
	assert.Empty(t, f.Candidates(model.ResolvedSite{}))
	assert.Empty(t, f.FetchAll(context.Background(), model.ResolvedSite{}))
}

func TestFetcher_FetchAll_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "/contact":
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprintf(w, "<html><body>page %s</body></html>", r.URL.Path)
		case "/sitemap.xml":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte("<urlset/>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(NewLocalScraper(srv.Client(), "", 0), testFetchConfig())
	pages := f.FetchAll(context.Background(), model.ResolvedSite{FinalURL: srv.URL + "/", Domain: "127.0.0.1"})

	assert.Len(t, pages, len(config.DefaultCandidatePaths))
	require.NotNil(t, pages[srv.URL+"/"])
	assert.Equal(t, model.PageTypeHomepage, pages[srv.URL+"/"].Type)
	require.NotNil(t, pages[srv.URL+"/contact"])
	assert.Equal(t, model.PageTypeContact, pages[srv.URL+"/contact"].Type)
	assert.Contains(t, pages[srv.URL+"/contact"].HTML, "page /contact")
	assert.Nil(t, pages[srv.URL+"/about"])
	assert.Nil(t, pages[srv.URL+"/sitemap.xml"])
}

func TestFetcher_FetchAll_AllTimeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := srv.Client()
	client.Timeout = 100 * time.Millisecond

	f := NewFetcher(NewLocalScraper(client, "", 0), testFetchConfig())
	pages := f.FetchAll(context.Background(), model.ResolvedSite{FinalURL: srv.URL, Domain: "127.0.0.1"})

	assert.NotEmpty(t, pages)
	for u, p := range pages {
		assert.Nil(t, p, u)
	}
}

func TestFetcher_RetriesTransientStatus(t *testing.T) {
	s := newFakeScraper(func(url string, n int) (*model.Page, error) {
		if n == 1 {
			return nil, resilience.StatusError(url, 503)
		}
		return &model.Page{URL: url, FinalURL: url, StatusCode: 200, HTML: "<html>ok</html>"}, nil
	})
	cfg := testFetchConfig()
	cfg.CandidatePaths = []string{"contact"}
	f := NewFetcher(s, cfg)
	f.retry.InitialBackoff = time.Millisecond

	pages := f.FetchAll(context.Background(), model.ResolvedSite{FinalURL: "https://acme.com", Domain: "acme.com"})
	require.NotNil(t, pages["https://acme.com/contact"])
	assert.Equal(t, 2, s.total())
}

func TestFetcher_DoesNotRetryPermanentFailure(t *testing.T) {
	s := newFakeScraper(func(url string, _ int) (*model.Page, error) {
		return nil, errors.New("scrape: status 404")
	})
	cfg := testFetchConfig()
	cfg.CandidatePaths = []string{"contact", "about"}
	f := NewFetcher(s, cfg)

	pages := f.FetchAll(context.Background(), model.ResolvedSite{FinalURL: "https://acme.com", Domain: "acme.com"})
	assert.Len(t, pages, 2)
	assert.Equal(t, 2, s.total())
}

func TestFetcher_BreakerSkipsDeadHost(t *testing.T) {
	s := newFakeScraper(func(_ string, _ int) (*model.Page, error) {
		return nil, fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)
	})
	cfg := testFetchConfig()
	cfg.PageConcurrency = 1
	cfg.BreakerThreshold = 2
	f := NewFetcher(s, cfg)

	pages := f.FetchAll(context.Background(), model.ResolvedSite{FinalURL: "https://dead.example", Domain: "dead.example"})
	assert.Len(t, pages, len(config.DefaultCandidatePaths))
	assert.Equal(t, 2, s.total())
}

func TestFetcher_WithPaths(t *testing.T) {
	f := NewFetcher(newFakeScraper(nil), testFetchConfig())

	g := f.WithPaths([]string{"services"})
	cands := g.Candidates(model.ResolvedSite{FinalURL: "https://acme.com"})
	require.Len(t, cands, 1)
	assert.Equal(t, "https://acme.com/services", cands[0].URL)
	assert.Len(t, f.Candidates(model.ResolvedSite{FinalURL: "https://acme.com"}), len(config.DefaultCandidatePaths))
}

// An instant scraper lets workers finish while candidates are still being
// queued; run with -race.
func TestFetcher_FetchAll_InstantScraperNoRace(t *testing.T) {
	s := newFakeScraper(func(url string, _ int) (*model.Page, error) {
		return &model.Page{URL: url, HTML: "<html></html>"}, nil
	})
	f := NewFetcher(s, config.FetchConfig{})
	site := model.ResolvedSite{FinalURL: "https://acme.com", Domain: "acme.com"}

	for range 200 {
		pages := f.FetchAll(context.Background(), site)
		require.Len(t, pages, len(config.DefaultCandidatePaths))
		for u, p := range pages {
			require.NotNil(t, p, u)
		}
	}
}
