// Package scorer turns a lead record's signals into a bounded score and tier,
// and decides whether a lead fits the product.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/config"
)

// DefaultScorerConfig returns a config.ScorerConfig with the stock weights.
// The maximum reachable raw score is 13, capped to 10.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		// Weights.
		ProductFitWeight:        4,
		NamedEmailWeight:        3,
		RoleEmailWeight:         2,
		PhoneOnlyWeight:         1,
		VerificationGoodWeight:  2,
		VerificationOKWeight:    1,
		VerificationBadWeight:   0,
		SocialWeight:            1,
		ProducerPlantWeight:     1,
		ProfileConfidenceWeight: 1,

		// Thresholds.
		ProfileConfidenceMin: 80,
		MaxScore:             10,
		TierAMin:             8,
		TierBMin:             5,
	}
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	// All weights must be non-negative.
	weights := []struct {
		name string
		w    int
	}{
		{"product_fit_weight", c.ProductFitWeight},
		{"named_email_weight", c.NamedEmailWeight},
		{"role_email_weight", c.RoleEmailWeight},
		{"phone_only_weight", c.PhoneOnlyWeight},
		{"verification_good_weight", c.VerificationGoodWeight},
		{"verification_ok_weight", c.VerificationOKWeight},
		{"verification_bad_weight", c.VerificationBadWeight},
		{"social_weight", c.SocialWeight},
		{"producer_plant_weight", c.ProducerPlantWeight},
		{"profile_confidence_weight", c.ProfileConfidenceWeight},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	if c.MaxScore <= 0 {
		errs = append(errs, "max_score must be > 0")
	}
	if c.ProfileConfidenceMin < 0 || c.ProfileConfidenceMin > 100 {
		errs = append(errs, "profile_confidence_min must be between 0 and 100")
	}

	// Tier thresholds must be ordered and reachable.
	if c.TierBMin < 0 {
		errs = append(errs, "tier_b_min must be >= 0")
	}
	if c.TierAMin < c.TierBMin {
		errs = append(errs, "tier_a_min must be >= tier_b_min")
	}
	if c.MaxScore > 0 && c.TierAMin > c.MaxScore {
		errs = append(errs, fmt.Sprintf("tier_a_min must be <= max_score (%d)", c.MaxScore))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
