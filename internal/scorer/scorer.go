package scorer

import (
	"strings"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/model"
)

var (
	goodVerification = map[model.VerificationStatus]bool{
		model.VerificationValid:       true,
		model.VerificationVerified:    true,
		model.VerificationDeliverable: true,
	}
	okVerification = map[model.VerificationStatus]bool{
		model.VerificationMXPresent: true,
		model.VerificationAcceptAll: true,
		model.VerificationCatchAll:  true,
		model.VerificationRisky:     true,
		model.VerificationUnknown:   true,
		model.VerificationOK:        true,
	}
	badVerification = map[model.VerificationStatus]bool{
		model.VerificationInvalid:       true,
		model.VerificationUndeliverable: true,
		model.VerificationDisposable:    true,
		model.VerificationBad:           true,
		model.VerificationRejected:      true,
	}
)

// Scorer computes lead scores from a fixed weight table.
type Scorer struct {
	cfg config.ScorerConfig
}

// New creates a Scorer. The config is used as given; call ValidateConfig
// first when it comes from user input.
func New(cfg config.ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the capped additive score and its tier. It reads only the
// record and never mutates it.
func (s *Scorer) Score(rec model.LeadRecord) (int, model.Tier) {
	c := s.cfg
	score := 0

	if rec.HasProductFit() {
		score += c.ProductFitWeight
	}

	switch ContactQualityOf(rec) {
	case model.ContactNamedEmail:
		score += c.NamedEmailWeight
	case model.ContactRoleEmail:
		score += c.RoleEmailWeight
	case model.ContactPhoneOnly:
		score += c.PhoneOnlyWeight
	}

	score += s.verificationPoints(rec.VerificationStatus)

	if strings.TrimSpace(rec.LinkedInURL) != "" {
		score += c.SocialWeight
	}
	if model.BusinessType(strings.ToLower(strings.TrimSpace(rec.BusinessType))) == model.BusinessProducerPlant {
		score += c.ProducerPlantWeight
	}
	if strings.TrimSpace(rec.ProfileConfidence) != "" && rec.ProfileConfidenceValue() >= c.ProfileConfidenceMin {
		score += c.ProfileConfidenceWeight
	}

	score = min(max(score, 0), c.MaxScore)
	return score, s.Tier(score)
}

// Tier maps a score onto A, B or C.
func (s *Scorer) Tier(score int) model.Tier {
	switch {
	case score >= s.cfg.TierAMin:
		return model.TierA
	case score >= s.cfg.TierBMin:
		return model.TierB
	default:
		return model.TierC
	}
}

// Apply scores rec in place, filling score, tier and, when empty,
// contact_quality.
func (s *Scorer) Apply(rec *model.LeadRecord) {
	score, tier := s.Score(*rec)
	rec.Score = model.Score(score)
	rec.Tier = tier
	if strings.TrimSpace(rec.ContactQuality) == "" {
		rec.ContactQuality = string(ContactQualityOf(*rec))
	}
}

func (s *Scorer) verificationPoints(v model.VerificationStatus) int {
	v = v.Normalize()
	switch {
	case goodVerification[v]:
		return s.cfg.VerificationGoodWeight
	case okVerification[v]:
		return s.cfg.VerificationOKWeight
	case badVerification[v]:
		return s.cfg.VerificationBadWeight
	}
	return 0
}

// ContactQualityOf returns the explicit contact_quality when it is a known
// value, and otherwise infers it from email_final and phone.
func ContactQualityOf(rec model.LeadRecord) model.ContactQuality {
	if q, ok := model.ParseContactQuality(rec.ContactQuality); ok {
		return q
	}
	email := strings.TrimSpace(rec.EmailFinal)
	if email != "" {
		if model.IsRoleEmail(email) {
			return model.ContactRoleEmail
		}
		return model.ContactNamedEmail
	}
	if strings.TrimSpace(rec.Phone) != "" {
		return model.ContactPhoneOnly
	}
	return model.ContactNone
}

// QualifiedFor derives the outreach verdict from contact quality: a named
// mailbox is a yes, a role mailbox or bare phone is a maybe.
func QualifiedFor(q model.ContactQuality) model.Qualified {
	switch q {
	case model.ContactNamedEmail:
		return model.QualifiedYes
	case model.ContactRoleEmail, model.ContactPhoneOnly:
		return model.QualifiedMaybe
	}
	return model.QualifiedNo
}
