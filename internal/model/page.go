package model

import "strings"

// Seed is one prospect from the input file.
type Seed struct {
	CompanyName string `csv:"company_name" json:"company_name"`
	URL         string `csv:"url" json:"url"`
}

// Key returns the (company_name, url) pair used for resume bookkeeping.
func (s Seed) Key() SeedKey {
	return SeedKey{CompanyName: strings.TrimSpace(s.CompanyName), URL: strings.TrimSpace(s.URL)}
}

// SeedKey identifies a seed that has already been written to an output file.
type SeedKey struct {
	CompanyName string
	URL         string
}

// ResolvedSite is a seed after redirect-following. Domain is the registrable
// domain of FinalURL, or of the original URL when resolution failed.
type ResolvedSite struct {
	FinalURL string `json:"final_url"`
	Domain   string `json:"domain"`
}

// PageType is a coarse label for a candidate path.
type PageType string

const (
	PageTypeHomepage PageType = "homepage"
	PageTypeContact  PageType = "contact"
	PageTypeAbout    PageType = "about"
	PageTypeTeam     PageType = "team"
	PageTypeLegal    PageType = "legal"
	PageTypeSitemap  PageType = "sitemap"
	PageTypeOther    PageType = "other"
)

// ClassifyPath maps a candidate path to a PageType.
func ClassifyPath(path string) PageType {
	p := strings.ToLower(strings.Trim(path, "/"))
	switch {
	case p == "":
		return PageTypeHomepage
	case strings.HasPrefix(p, "contact"):
		return PageTypeContact
	case strings.HasPrefix(p, "about"):
		return PageTypeAbout
	case strings.HasPrefix(p, "team"), strings.HasPrefix(p, "people"), strings.HasPrefix(p, "staff"):
		return PageTypeTeam
	case p == "privacy", p == "terms", p == "impressum", p == "legal":
		return PageTypeLegal
	case strings.HasPrefix(p, "sitemap"):
		return PageTypeSitemap
	}
	return PageTypeOther
}

// Page is a fetched HTML page.
type Page struct {
	URL         string   `json:"url"`
	FinalURL    string   `json:"final_url"`
	Type        PageType `json:"type"`
	StatusCode  int      `json:"status_code"`
	ContentType string   `json:"content_type"`
	HTML        string   `json:"-"`
}
