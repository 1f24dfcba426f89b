package scorer

import (
	"regexp"
	"strings"

	"github.com/sells-group/leads-cli/internal/model"
)

var (
	readyMixRe = regexp.MustCompile(`(?i)(ready[\s\-]?mix(?:ed)?|` +
		`ready\s?mix\s?concrete|` +
		`redi[\s\-]?mix|` +
		`volumetric|volumetric[\s\-]?(mixer|truck)|` +
		`mobile\s?mix|central[\s\-]?mix|` +
		`batch\s?plant|batching\s?plant|concrete\s?plant|` +
		`concrete[\s\-]?delivery(?:\sservice)?|` +
		`on[\-\s]?site pours)`)

	negativeRe = regexp.MustCompile(`(?i)(hardware|garden\scenter|roofing|foundation\srepair|asphalt\s+only|precast|masonry\ssupply)` +
		`|(?:homedepot|home\sdepot|lowe'?s|walmart|acehardware|tractor\s?supply)`)

	marketplaceRe = regexp.MustCompile(`(?i)(yelp|angi|houzz|homeadvisor|thumbtack|facebook\.com)`)
)

// ProductFit reports whether a lead looks like a ready-mix producer. A
// producer business_type from the profiler is trusted unless the lead
// mentions a retailer or a listing site. Otherwise the decision falls back to
// producer keywords across the descriptive columns.
func ProductFit(rec model.LeadRecord) bool {
	switch model.BusinessType(strings.ToLower(strings.TrimSpace(rec.BusinessType))) {
	case model.BusinessProducerPlant, model.BusinessProducerCorporate:
		blob := strings.Join([]string{
			rec.CompanyName, rec.ServiceKeywords, rec.Signals, rec.Reason, rec.URL, rec.Domain,
		}, " ")
		return !negativeRe.MatchString(blob) && !marketplaceRe.MatchString(blob)
	}

	txt := strings.Join([]string{
		rec.CompanyName, rec.Reason, rec.ServiceKeywords, rec.Signals, rec.URL, rec.Domain, rec.SourceURL,
	}, " ")
	if negativeRe.MatchString(txt) || marketplaceRe.MatchString(txt) {
		return false
	}
	return readyMixRe.MatchString(txt)
}

// Tag sets product_fit and brings qualified in line with it: a lead that
// does not fit is never qualified, one that fits is qualified by its best
// contact.
func Tag(rec *model.LeadRecord) {
	fit := ProductFit(*rec)
	rec.ProductFit = model.FormatBool(fit)
	if !fit {
		rec.Qualified = model.QualifiedNo
		return
	}
	rec.Qualified = QualifiedFor(ContactQualityOf(*rec))
}
