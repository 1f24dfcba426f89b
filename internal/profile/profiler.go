package profile

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resolve"
)

// PageFetcher retrieves a site's key pages; nil entries are pages that
// could not be fetched.
type PageFetcher interface {
	FetchAll(ctx context.Context, site model.ResolvedSite) map[string]*model.Page
}

// Profiler fetches and analyzes one site per distinct domain.
type Profiler struct {
	fetcher     PageFetcher
	concurrency int
}

// NewProfiler creates a Profiler. The fetcher should be configured with the
// profile key paths.
func NewProfiler(fetcher PageFetcher, concurrency int) *Profiler {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Profiler{fetcher: fetcher, concurrency: concurrency}
}

// ProfileSite fetches domain's key pages and analyzes them. An empty domain
// or a site with no readable pages yields Unknown.
func (p *Profiler) ProfileSite(ctx context.Context, domain string) Profile {
	host := resolve.Host(domain)
	if host == "" {
		return Unknown()
	}
	site := model.ResolvedSite{FinalURL: "https://" + host + "/", Domain: resolve.RegistrableDomain(host)}
	pages := p.fetcher.FetchAll(ctx, site)

	readable := 0
	for _, pg := range pages {
		if pg != nil {
			readable++
		}
	}
	if readable == 0 {
		zap.L().Debug("profile: no readable pages", zap.String("domain", host))
		return Unknown()
	}
	return Analyze(pages)
}

// ProfileLeads profiles every distinct domain in recs and writes the result
// into each record. It returns the number of domains profiled.
func (p *Profiler) ProfileLeads(ctx context.Context, recs []model.LeadRecord) int {
	domains := make(map[string]struct{})
	for i := range recs {
		if d := leadDomain(recs[i]); d != "" {
			domains[d] = struct{}{}
		}
	}

	var (
		mu       sync.Mutex
		profiles = make(map[string]Profile, len(domains))
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for d := range domains {
		g.Go(func() error {
			prof := p.ProfileSite(gCtx, d)
			mu.Lock()
			profiles[d] = prof
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i := range recs {
		prof, ok := profiles[leadDomain(recs[i])]
		if !ok {
			prof = Unknown()
		}
		prof.Apply(&recs[i])
	}
	zap.L().Info("profile: domains profiled", zap.Int("domains", len(domains)), zap.Int("rows", len(recs)))
	return len(domains)
}

// leadDomain is the host profiled for a record: its resolved domain, or the
// host of its seed URL when the run never resolved one.
func leadDomain(rec model.LeadRecord) string {
	if d := resolve.Host(rec.Domain); d != "" {
		return d
	}
	return resolve.Host(rec.URL)
}
