package resilience

import (
	"time"

	"github.com/sells-group/leads-cli/internal/config"
)

// FromFetchConfig derives the page retry policy and the per-host breaker
// settings from the fetch section.
func FromFetchConfig(cfg config.FetchConfig) (RetryConfig, CircuitBreakerConfig) {
	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	breaker := DefaultCircuitBreakerConfig()
	if cfg.BreakerThreshold > 0 {
		breaker.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerResetSecs > 0 {
		breaker.ResetTimeout = time.Duration(cfg.BreakerResetSecs) * time.Second
	}
	return retry, breaker
}
