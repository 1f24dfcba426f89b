// Package leadcsv reads seed lists and reads, writes and appends lead files.
package leadcsv

import (
	"strconv"

	"github.com/sells-group/leads-cli/internal/model"
)

// CoreColumns is the fixed column order of a run's output file.
var CoreColumns = []string{
	"company_name", "url", "domain", "email_final", "email_source",
	"verification_status", "phone", "source_url", "reason", "qualified",
	"product_fit", "score",
}

// EnrichmentColumns are appended after CoreColumns by downstream passes.
var EnrichmentColumns = []string{
	"tier", "contact_quality", "linkedin_url", "business_type",
	"profile_confidence", "service_keywords", "location_detected", "signals",
}

var getters = map[string]func(*model.LeadRecord) string{
	"company_name":        func(r *model.LeadRecord) string { return r.CompanyName },
	"url":                 func(r *model.LeadRecord) string { return r.URL },
	"domain":              func(r *model.LeadRecord) string { return r.Domain },
	"email_final":         func(r *model.LeadRecord) string { return r.EmailFinal },
	"email_source":        func(r *model.LeadRecord) string { return r.EmailSource },
	"verification_status": func(r *model.LeadRecord) string { return string(r.VerificationStatus) },
	"phone":               func(r *model.LeadRecord) string { return r.Phone },
	"source_url":          func(r *model.LeadRecord) string { return r.SourceURL },
	"reason":              func(r *model.LeadRecord) string { return r.Reason },
	"qualified":           func(r *model.LeadRecord) string { return string(r.Qualified) },
	"product_fit":         func(r *model.LeadRecord) string { return r.ProductFit },
	"score":               func(r *model.LeadRecord) string { return strconv.Itoa(int(r.Score)) },
	"tier":                func(r *model.LeadRecord) string { return string(r.Tier) },
	"contact_quality":     func(r *model.LeadRecord) string { return r.ContactQuality },
	"linkedin_url":        func(r *model.LeadRecord) string { return r.LinkedInURL },
	"business_type":       func(r *model.LeadRecord) string { return r.BusinessType },
	"profile_confidence":  func(r *model.LeadRecord) string { return r.ProfileConfidence },
	"service_keywords":    func(r *model.LeadRecord) string { return r.ServiceKeywords },
	"location_detected":   func(r *model.LeadRecord) string { return r.LocationDetected },
	"signals":             func(r *model.LeadRecord) string { return r.Signals },
}

// IsKnownColumn reports whether name maps onto a LeadRecord field.
func IsKnownColumn(name string) bool {
	_, ok := getters[name]
	return ok
}

// LeadColumns returns the full column order for a rewritten lead file: the
// core columns, the enrichment columns, then extras in the given order.
func LeadColumns(extras []string) []string {
	cols := make([]string, 0, len(CoreColumns)+len(EnrichmentColumns)+len(extras))
	cols = append(cols, CoreColumns...)
	cols = append(cols, EnrichmentColumns...)
	seen := make(map[string]bool, len(extras))
	for _, e := range extras {
		if IsKnownColumn(e) || seen[e] {
			continue
		}
		seen[e] = true
		cols = append(cols, e)
	}
	return cols
}

// Row renders rec in the given column order. Unknown columns are looked up
// in rec.Extra and are empty when absent.
func Row(rec *model.LeadRecord, columns []string) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		if get, ok := getters[c]; ok {
			row[i] = get(rec)
			continue
		}
		for _, f := range rec.Extra {
			if f.Name == c {
				row[i] = f.Value
				break
			}
		}
	}
	return row
}
