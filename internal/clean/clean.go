// Package clean filters an enriched lead file down to the contacts worth
// working: blocked domains and contactless rows go, role mailboxes yield to
// named ones, and each domain keeps its best few contacts.
package clean

import (
	"cmp"
	"slices"
	"strings"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resolve"
	"github.com/sells-group/leads-cli/internal/scorer"
)

// PreferredContactColumn is the column Clean adds to every kept row.
const PreferredContactColumn = "preferred_contact"

var facebookDomains = map[string]bool{
	"facebook.com":             true,
	"marketplace.facebook.com": true,
}

// Options selects the optional filters.
type Options struct {
	MaxPerDomain   int
	BlockedDomains []string
	KeepRoles      bool
	RequireFit     bool
	AllowFacebook  bool
	EmailOnly      bool
}

// OptionsFromConfig returns the configured defaults with every optional
// filter off.
func OptionsFromConfig(cfg config.CleanConfig) Options {
	blocked := cfg.BlockedDomains
	if len(blocked) == 0 {
		blocked = config.DefaultBlockedDomains
	}
	return Options{MaxPerDomain: cfg.MaxContactsPerDomain, BlockedDomains: blocked}
}

// Summary counts what each filter removed.
type Summary struct {
	Input     int
	Blocked   int
	NoContact int
	Unfit     int
	Dropped   int
	Kept      int
	PhoneOnly int
}

type entry struct {
	rec     model.LeadRecord
	group   string
	quality model.ContactQuality
	order   int
}

// Clean applies the filters and per-domain selection to recs. Kept rows are
// grouped by domain, best contact first, and carry contact_quality and
// preferred_contact.
func Clean(recs []model.LeadRecord, opts Options) ([]model.LeadRecord, Summary) {
	limit := opts.MaxPerDomain
	if limit <= 0 {
		limit = 2
	}
	blocked := make(map[string]bool, len(opts.BlockedDomains))
	for _, d := range opts.BlockedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || (opts.AllowFacebook && facebookDomains[d]) {
			continue
		}
		blocked[d] = true
	}

	sum := Summary{Input: len(recs)}
	entries := make([]entry, 0, len(recs))
	for i, rec := range recs {
		email := strings.ToLower(strings.TrimSpace(rec.EmailFinal))
		phone := strings.TrimSpace(rec.Phone)
		site := siteDomain(rec)

		if email == "" && site == "" {
			sum.NoContact++
			continue
		}
		if isBlocked(blocked, model.EmailHost(email)) || isBlocked(blocked, site) {
			sum.Blocked++
			continue
		}
		if email == "" && phone == "" {
			sum.NoContact++
			continue
		}
		if opts.RequireFit && !fits(rec) {
			sum.Unfit++
			continue
		}

		q := quality(email, phone)
		if opts.EmailOnly && q == model.ContactPhoneOnly {
			sum.Dropped++
			continue
		}
		group := site
		if group == "" {
			group = "company:" + strings.ToLower(strings.TrimSpace(rec.CompanyName))
		}
		entries = append(entries, entry{rec: rec, group: group, quality: q, order: i})
	}

	if !opts.KeepRoles {
		named := make(map[string]bool)
		for _, e := range entries {
			if e.quality == model.ContactNamedEmail {
				named[e.group] = true
			}
		}
		entries = slices.DeleteFunc(entries, func(e entry) bool {
			drop := e.quality == model.ContactRoleEmail && named[e.group]
			if drop {
				sum.Dropped++
			}
			return drop
		})
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Or(
			strings.Compare(a.group, b.group),
			cmp.Compare(priority(a.quality), priority(b.quality)),
			cmp.Compare(mxRank(a.rec), mxRank(b.rec)),
			cmp.Compare(len(model.LocalPart(b.rec.EmailFinal)), len(model.LocalPart(a.rec.EmailFinal))),
			cmp.Compare(a.order, b.order),
		)
	})

	out := make([]model.LeadRecord, 0, len(entries))
	taken := make(map[string]int)
	for _, e := range entries {
		if taken[e.group] >= limit {
			sum.Dropped++
			continue
		}
		taken[e.group]++

		rec := e.rec
		rec.ContactQuality = string(e.quality)
		preferred := "email"
		if e.quality == model.ContactPhoneOnly {
			preferred = "phone"
			sum.PhoneOnly++
		}
		rec.Extra = setExtra(rec.Extra, PreferredContactColumn, preferred)
		out = append(out, rec)
	}
	sum.Kept = len(out)
	return out, sum
}

// CallList returns the phone-only rows of a cleaned set.
func CallList(recs []model.LeadRecord) []model.LeadRecord {
	var out []model.LeadRecord
	for _, r := range recs {
		if model.ContactQuality(r.ContactQuality) == model.ContactPhoneOnly {
			out = append(out, r)
		}
	}
	return out
}

func siteDomain(rec model.LeadRecord) string {
	d := resolve.Host(rec.Domain)
	if d == "" {
		d = resolve.Host(rec.URL)
	}
	return strings.TrimPrefix(d, "www.")
}

// isBlocked matches the host itself and its registrable domain, so
// subdomains of a blocked domain are blocked too.
func isBlocked(blocked map[string]bool, host string) bool {
	if host == "" {
		return false
	}
	return blocked[host] || blocked[resolve.RegistrableDomain(host)]
}

// fits honours an explicit product_fit cell and falls back to the keyword
// gate when the cell is blank or unrecognised.
func fits(rec model.LeadRecord) bool {
	switch strings.ToLower(strings.TrimSpace(rec.ProductFit)) {
	case "true", "yes", "1":
		return true
	case "false", "no", "0":
		return false
	}
	return scorer.ProductFit(rec)
}

func quality(email, phone string) model.ContactQuality {
	switch {
	case email != "" && model.IsRoleEmail(email):
		return model.ContactRoleEmail
	case email != "":
		return model.ContactNamedEmail
	case phone != "":
		return model.ContactPhoneOnly
	}
	return model.ContactNone
}

func priority(q model.ContactQuality) int {
	switch q {
	case model.ContactNamedEmail:
		return 0
	case model.ContactRoleEmail:
		return 1
	case model.ContactPhoneOnly:
		return 2
	}
	return 99
}

func mxRank(rec model.LeadRecord) int {
	if strings.Contains(strings.ToLower(string(rec.VerificationStatus)), string(model.VerificationMXPresent)) {
		return 0
	}
	return 1
}

func setExtra(extra []model.ExtraField, name, value string) []model.ExtraField {
	out := make([]model.ExtraField, 0, len(extra)+1)
	for _, f := range extra {
		if f.Name != name {
			out = append(out, f)
		}
	}
	return append(out, model.ExtraField{Name: name, Value: value})
}
