// Package pipeline turns seeds into lead records: one seed at a time via
// Pipeline, and whole seed files in resumable chunks via Runner.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/extract"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/mx"
	"github.com/sells-group/leads-cli/internal/rank"
	"github.com/sells-group/leads-cli/internal/scorer"
)

// SiteResolver follows a seed URL to its final site.
type SiteResolver interface {
	Resolve(ctx context.Context, raw string) model.ResolvedSite
}

// PageFetcher retrieves the candidate pages of a site. A nil page marks a
// candidate that could not be fetched.
type PageFetcher interface {
	FetchAll(ctx context.Context, site model.ResolvedSite) map[string]*model.Page
}

// Pipeline processes a single seed end to end.
type Pipeline struct {
	resolver  SiteResolver
	fetcher   PageFetcher
	extractor *extract.Extractor
	ranker    *rank.Ranker
	mx        mx.Checker
	scorer    *scorer.Scorer
}

// New creates a Pipeline. The resolver, fetcher and checker may be shared
// between concurrent ProcessSeed calls.
func New(resolver SiteResolver, fetcher PageFetcher, extractor *extract.Extractor, ranker *rank.Ranker, checker mx.Checker, sc *scorer.Scorer) *Pipeline {
	return &Pipeline{
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extractor,
		ranker:    ranker,
		mx:        checker,
		scorer:    sc,
	}
}

// ProcessSeed resolves, fetches, extracts, ranks, verifies and scores one
// seed. It always returns at least one record. Network failures degrade to
// a no_contacts_found row; the error return is reserved for context
// cancellation.
func (p *Pipeline) ProcessSeed(ctx context.Context, seed model.Seed) ([]model.LeadRecord, model.SiteResult, error) {
	start := time.Now()
	log := zap.L().With(zap.String("company", seed.CompanyName), zap.String("url", seed.URL))

	site := p.resolver.Resolve(ctx, seed.URL)
	result := model.SiteResult{
		Seed:     seed,
		FinalURL: site.FinalURL,
		Domain:   site.Domain,
	}
	finish := func(recs []model.LeadRecord, status model.SiteStatus) ([]model.LeadRecord, model.SiteResult, error) {
		result.Status = status
		result.DurationMs = time.Since(start).Milliseconds()
		return recs, result, ctx.Err()
	}

	var pages map[string]*model.Page
	if site.FinalURL != "" {
		pages = p.fetcher.FetchAll(ctx, site)
	}
	for _, pg := range pages {
		if pg != nil {
			result.PagesFetched++
		}
	}

	set := p.extractor.Extract(pages)
	result.Emails = len(set.Emails)
	result.Phones = len(set.Phones)
	if set.Empty() {
		log.Debug("pipeline: no contacts found",
			zap.String("domain", site.Domain),
			zap.Int("pages", result.PagesFetched),
		)
		result.MXStatus = model.VerificationUnknown
		return finish([]model.LeadRecord{p.placeholder(seed, site.Domain, model.ReasonNoContactsFound)}, model.SiteStatusNoContacts)
	}

	ranked := p.ranker.Rank(site.Domain, set)
	status := p.mx.Check(ctx, site.Domain)
	result.MXStatus = status
	for i := range ranked {
		ranked[i].VerificationStatus = status
	}
	phones := strings.Join(set.SortedPhones(), ";")

	if len(ranked) == 0 {
		rec := model.LeadRecord{
			CompanyName:        seed.CompanyName,
			URL:                seed.URL,
			Domain:             site.Domain,
			VerificationStatus: status,
			Phone:              phones,
			SourceURL:          site.FinalURL,
			Reason:             model.ReasonPhoneOnly,
		}
		p.finalize(&rec)
		return finish([]model.LeadRecord{rec}, model.SiteStatusPhoneOnly)
	}

	recs := make([]model.LeadRecord, 0, len(ranked))
	for _, c := range ranked {
		source := c.SourceURL
		if source == "" {
			source = site.FinalURL
		}
		rec := model.LeadRecord{
			CompanyName:        seed.CompanyName,
			URL:                seed.URL,
			Domain:             site.Domain,
			EmailFinal:         c.Email,
			EmailSource:        model.EmailSourceScrape,
			VerificationStatus: c.VerificationStatus,
			Phone:              phones,
			SourceURL:          source,
			Reason:             model.ReasonRegexScrape,
		}
		p.finalize(&rec)
		recs = append(recs, rec)
	}
	log.Debug("pipeline: site done",
		zap.String("domain", site.Domain),
		zap.Int("rows", len(recs)),
		zap.String("mx", string(status)),
	)
	return finish(recs, model.SiteStatusContacts)
}

// finalize scores rec and derives qualified from its contact quality.
func (p *Pipeline) finalize(rec *model.LeadRecord) {
	p.scorer.Apply(rec)
	rec.Qualified = scorer.QualifiedFor(scorer.ContactQualityOf(*rec))
}

func (p *Pipeline) placeholder(seed model.Seed, domain, reason string) model.LeadRecord {
	return Placeholder(seed, domain, reason, p.scorer.Tier(0))
}

// Placeholder builds the single row written for a seed that produced no
// contacts or failed.
func Placeholder(seed model.Seed, domain, reason string, tier model.Tier) model.LeadRecord {
	return model.LeadRecord{
		CompanyName:        seed.CompanyName,
		URL:                seed.URL,
		Domain:             domain,
		VerificationStatus: model.VerificationUnknown,
		Reason:             reason,
		Qualified:          model.QualifiedNo,
		Score:              0,
		Tier:               tier,
	}
}
