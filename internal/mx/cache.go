package mx

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
)

// Cache persists definitive MX answers. The store package implements it.
type Cache interface {
	GetCachedMX(ctx context.Context, domain string, maxAge time.Duration) (model.VerificationStatus, bool, error)
	SetCachedMX(ctx context.Context, domain string, status model.VerificationStatus) error
}

// Looker is the lookup half of Validator.
type Looker interface {
	Lookup(ctx context.Context, domain string) (model.VerificationStatus, error)
}

// CachedValidator answers from the cache when it can and records fresh
// definitive answers. Failed lookups are never cached so a flaky resolver
// gets another chance on the next run.
type CachedValidator struct {
	looker Looker
	cache  Cache
	ttl    time.Duration
}

// NewCachedValidator wraps looker with cache. A nil cache disables caching.
func NewCachedValidator(looker Looker, cache Cache, ttl time.Duration) *CachedValidator {
	return &CachedValidator{looker: looker, cache: cache, ttl: ttl}
}

// Check implements Checker.
func (c *CachedValidator) Check(ctx context.Context, domain string) model.VerificationStatus {
	if domain == "" {
		return model.VerificationUnknown
	}
	log := zap.L().With(zap.String("domain", domain))

	if c.cache != nil && c.ttl > 0 {
		status, ok, err := c.cache.GetCachedMX(ctx, domain, c.ttl)
		if err != nil {
			log.Debug("mx: cache read failed", zap.Error(err))
		} else if ok {
			return status
		}
	}

	status, err := c.looker.Lookup(ctx, domain)
	if err != nil {
		if status == model.VerificationUnknown {
			return status
		}
		log.Debug("mx: lookup failed", zap.Error(err))
		return model.VerificationNoMX
	}

	if c.cache != nil && c.ttl > 0 && status != model.VerificationUnknown {
		if err := c.cache.SetCachedMX(ctx, domain, status); err != nil {
			log.Debug("mx: cache write failed", zap.Error(err))
		}
	}
	return status
}

// MemoryCache is an in-process Cache used when no store is configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

type memoryEntry struct {
	status    model.VerificationStatus
	checkedAt time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), nowFunc: time.Now}
}

// GetCachedMX implements Cache.
func (m *MemoryCache) GetCachedMX(_ context.Context, domain string, maxAge time.Duration) (model.VerificationStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[domain]
	if !ok || m.nowFunc().Sub(e.checkedAt) > maxAge {
		return "", false, nil
	}
	return e.status, true, nil
}

// SetCachedMX implements Cache.
func (m *MemoryCache) SetCachedMX(_ context.Context, domain string, status model.VerificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[domain] = memoryEntry{status: status, checkedAt: m.nowFunc()}
	return nil
}
