package model

import (
	"math"
	"strconv"
	"strings"
)

// Qualified is the coarse outreach verdict on a lead.
type Qualified string

const (
	QualifiedYes   Qualified = "yes"
	QualifiedMaybe Qualified = "maybe"
	QualifiedNo    Qualified = "no"
)

// Tier buckets a lead score.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// BusinessType is the site profiler's classification of a prospect.
type BusinessType string

const (
	BusinessProducerPlant     BusinessType = "producer_plant"
	BusinessProducerCorporate BusinessType = "producer_corporate"
	BusinessContractor        BusinessType = "contractor"
	BusinessSupplier          BusinessType = "supplier"
	BusinessMarketplace       BusinessType = "marketplace"
	BusinessUnknown           BusinessType = "unknown"
)

// Reasons written by the run controller.
const (
	ReasonRegexScrape     = "regex_scrape"
	ReasonPhoneOnly       = "phone_only"
	ReasonNoContactsFound = "no_contacts_found"
	ReasonSiteError       = "error:site"
)

// EmailSourceScrape marks emails found by the website scrape.
const EmailSourceScrape = "mailto/raw/decoded"

// Score is a lead score. It decodes leniently: empty cells are zero and
// float renderings such as "7.0" are truncated.
type Score int

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Score) UnmarshalText(b []byte) error {
	v := strings.TrimSpace(string(b))
	if v == "" {
		*s = 0
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		*s = Score(n)
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		*s = 0
		return nil
	}
	*s = Score(int(f))
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Score) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(int(s))), nil
}

// LeadRecord is one output row: a (company, contact) pair. Fields after Score
// are appended by downstream passes (tagging, profiling, scoring); Extra holds
// input columns this program does not know about, in input order.
type LeadRecord struct {
	CompanyName        string             `csv:"company_name"`
	URL                string             `csv:"url"`
	Domain             string             `csv:"domain"`
	EmailFinal         string             `csv:"email_final"`
	EmailSource        string             `csv:"email_source"`
	VerificationStatus VerificationStatus `csv:"verification_status"`
	Phone              string             `csv:"phone"`
	SourceURL          string             `csv:"source_url"`
	Reason             string             `csv:"reason"`
	Qualified          Qualified          `csv:"qualified"`
	ProductFit         string             `csv:"product_fit"`
	Score              Score              `csv:"score"`

	Tier              Tier   `csv:"tier"`
	ContactQuality    string `csv:"contact_quality"`
	LinkedInURL       string `csv:"linkedin_url"`
	BusinessType      string `csv:"business_type"`
	ProfileConfidence string `csv:"profile_confidence"`
	ServiceKeywords   string `csv:"service_keywords"`
	LocationDetected  string `csv:"location_detected"`
	Signals           string `csv:"signals"`

	Extra []ExtraField `csv:"-"`
}

// ExtraField is a pass-through column.
type ExtraField struct {
	Name  string
	Value string
}

// Key returns the seed key the record was produced for.
func (r LeadRecord) Key() SeedKey {
	return SeedKey{CompanyName: strings.TrimSpace(r.CompanyName), URL: strings.TrimSpace(r.URL)}
}

// DedupKey identifies duplicate rows within a chunk.
func (r LeadRecord) DedupKey() [3]string {
	return [3]string{r.CompanyName, r.EmailFinal, r.Phone}
}

// HasProductFit interprets the product_fit cell as a boolean.
func (r LeadRecord) HasProductFit() bool {
	return ParseBool(r.ProductFit)
}

// ProfileConfidenceValue parses profile_confidence; unparsable values are 0.
func (r LeadRecord) ProfileConfidenceValue() int {
	v := strings.TrimSpace(r.ProfileConfidence)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return int(f)
}

// ParseBool accepts the spellings spreadsheets and pandas leave behind.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "t":
		return true
	}
	return false
}

// FormatBool renders a boolean cell.
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
