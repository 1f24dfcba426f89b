// Package scrape fetches the fixed set of candidate pages for a resolved site.
package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resilience"
	"github.com/sells-group/leads-cli/internal/resolve"
)

// Candidate is one page to request for a site.
type Candidate struct {
	Path string
	URL  string
}

// Fetcher retrieves candidate pages for a site under a concurrency cap, a
// per-host rate limit and a per-host circuit breaker.
type Fetcher struct {
	scraper     Scraper
	paths       []string
	matcher     *PathMatcher
	concurrency int
	retry       resilience.RetryConfig
	breakers    *resilience.HostBreakers
	limiters    *HostLimiters
}

// NewFetcher creates a Fetcher. The scraper is shared by all sites.
func NewFetcher(s Scraper, cfg config.FetchConfig) *Fetcher {
	paths := cfg.CandidatePaths
	if len(paths) == 0 {
		paths = config.DefaultCandidatePaths
	}
	concurrency := cfg.PageConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	retry, breaker := resilience.FromFetchConfig(cfg)
	return &Fetcher{
		scraper:     s,
		paths:       paths,
		matcher:     NewPathMatcher(cfg.ExcludePaths),
		concurrency: concurrency,
		retry:       retry,
		breakers:    resilience.NewHostBreakers(breaker),
		limiters:    NewHostLimiters(cfg.HostRPS, cfg.HostBurst),
	}
}

// WithPaths returns a copy of f that requests paths instead of the
// configured candidate list.
func (f *Fetcher) WithPaths(paths []string) *Fetcher {
	c := *f
	c.paths = paths
	return &c
}

// Candidates joins the candidate paths to the site. The empty path is the
// final URL itself; other paths hang off the site root. Excluded and
// duplicate URLs are dropped.
func (f *Fetcher) Candidates(site model.ResolvedSite) []Candidate {
	base, err := url.Parse(site.FinalURL)
	if err != nil || base.Host == "" {
		return nil
	}
	root := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}

	seen := make(map[string]bool, len(f.paths))
	out := make([]Candidate, 0, len(f.paths))
	for _, p := range f.paths {
		p = strings.TrimSpace(p)
		var u string
		if strings.Trim(p, "/") == "" {
			u = site.FinalURL
		} else {
			ref, err := url.Parse(strings.TrimPrefix(p, "/"))
			if err != nil {
				continue
			}
			u = root.ResolveReference(ref).String()
		}
		if seen[u] || f.matcher.IsExcluded(u) {
			continue
		}
		seen[u] = true
		out = append(out, Candidate{Path: p, URL: u})
	}
	return out
}

// FetchAll requests every candidate page of site. The result has one entry
// per candidate URL; nil marks a page that was unavailable for any reason.
// Per-page failures are logged, never returned.
func (f *Fetcher) FetchAll(ctx context.Context, site model.ResolvedSite) map[string]*model.Page {
	candidates := f.Candidates(site)
	pages := make(map[string]*model.Page, len(candidates))
	if len(candidates) == 0 {
		return pages
	}

	host := resolve.Host(site.FinalURL)
	breaker := f.breakers.Get(host)
	limiter := f.limiters.Get(host)

	// Every key exists before the first worker starts; workers only
	// overwrite under mu.
	for _, c := range candidates {
		pages[c.URL] = nil
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, c := range candidates {
		g.Go(func() error {
			page := f.fetchOne(gCtx, host, breaker, limiter, c)
			if page != nil {
				mu.Lock()
				pages[c.URL] = page
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return pages
}

func (f *Fetcher) fetchOne(ctx context.Context, host string, breaker *resilience.CircuitBreaker, limiter *AdaptiveLimiter, c Candidate) *model.Page {
	if err := breaker.Allow(); err != nil {
		zap.L().Debug("scrape: host circuit open, skipping page",
			zap.String("host", host),
			zap.String("url", c.URL),
		)
		return nil
	}

	retry := f.retry
	retry.OnRetry = resilience.RetryLogger(c.URL)

	page, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*model.Page, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		p, err := f.scraper.Scrape(ctx, c.URL)
		if err != nil {
			var te *resilience.TransientError
			if errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests {
				limiter.OnRateLimit(host)
			}
			return nil, err
		}
		limiter.OnSuccess()
		return p, nil
	})
	wasOpen := breaker.State() == resilience.CircuitOpen
	breaker.Record(err)
	if !wasOpen && breaker.State() == resilience.CircuitOpen {
		zap.L().Warn("scrape: host circuit opened, skipping its remaining pages",
			zap.String("host", host),
			zap.Error(err),
		)
	}
	if err != nil {
		zap.L().Debug("scrape: page unavailable",
			zap.String("scraper", f.scraper.Name()),
			zap.String("url", c.URL),
			zap.Error(err),
		)
		return nil
	}

	page.Type = model.ClassifyPath(c.Path)
	return page
}
