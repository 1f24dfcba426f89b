// Package extract pulls email addresses and phone numbers out of fetched
// HTML pages.
package extract

import (
	"sort"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
)

// Extractor folds the pages of one site into a RawContactSet.
type Extractor struct {
	region string
}

// NewExtractor creates an Extractor for the configured phone region.
func NewExtractor(cfg config.ExtractConfig) *Extractor {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	return &Extractor{region: region}
}

// Extract scans every non-nil page. Pages are visited in URL order so the
// page credited for an email does not depend on map iteration.
func (e *Extractor) Extract(pages map[string]*model.Page) *model.RawContactSet {
	set := model.NewRawContactSet()

	urls := make([]string, 0, len(pages))
	for u, p := range pages {
		if p != nil && p.HTML != "" {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)

	for _, u := range urls {
		p := pages[u]
		source := p.FinalURL
		if source == "" {
			source = u
		}
		for _, email := range Emails(p.HTML) {
			set.AddEmail(email, source)
		}
		for _, phone := range Phones(p.HTML, e.region) {
			set.AddPhone(phone)
		}
	}
	return set
}
