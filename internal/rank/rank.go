// Package rank orders and bounds the candidate emails found on a site.
package rank

import (
	"sort"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/resolve"
)

// Ranker picks the best few emails for a domain.
type Ranker struct {
	max             int
	namedConfidence int
	roleConfidence  int
}

// NewRanker creates a Ranker from config, filling zero values with defaults.
func NewRanker(cfg config.RankConfig) *Ranker {
	r := &Ranker{
		max:             cfg.MaxEmailsPerDomain,
		namedConfidence: cfg.NamedConfidence,
		roleConfidence:  cfg.RoleConfidence,
	}
	if r.max <= 0 {
		r.max = 3
	}
	if r.namedConfidence <= 0 {
		r.namedConfidence = 90
	}
	if r.roleConfidence <= 0 {
		r.roleConfidence = 70
	}
	return r
}

type candidate struct {
	model.RankedContact
	sameDomain bool
	localLen   int
}

// Rank returns at most the configured number of contacts from set.
// Addresses on the site's own registrable domain come first, named mailboxes
// beat role mailboxes, and longer local parts beat shorter ones. Ties break
// on the address so the result is stable across runs. VerificationStatus is
// left empty; the pipeline sets it from the domain's MX check.
func (r *Ranker) Rank(domain string, set *model.RawContactSet) []model.RankedContact {
	if set == nil || len(set.Emails) == 0 {
		return nil
	}

	cands := make([]candidate, 0, len(set.Emails))
	for _, email := range set.SortedEmails() {
		role := model.IsRoleEmail(email)
		conf := r.namedConfidence
		if role {
			conf = r.roleConfidence
		}
		cands = append(cands, candidate{
			RankedContact: model.RankedContact{
				Email:      email,
				Confidence: conf,
				Role:       role,
				SourceURL:  set.SourceOf(email),
			},
			sameDomain: resolve.SameDomain(domain, model.EmailHost(email)),
			localLen:   len(model.LocalPart(email)),
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.sameDomain != b.sameDomain {
			return a.sameDomain
		}
		if a.Role != b.Role {
			return !a.Role
		}
		if a.localLen != b.localLen {
			return a.localLen > b.localLen
		}
		return a.Email < b.Email
	})

	if len(cands) > r.max {
		cands = cands[:r.max]
	}
	out := make([]model.RankedContact, len(cands))
	for i, c := range cands {
		out[i] = c.RankedContact
	}
	return out
}
