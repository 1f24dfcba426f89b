// Package resolve canonicalizes seed URLs and follows them to the site's
// final address and registrable domain.
package resolve

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/sells-group/leads-cli/internal/model"
)

// NormalizeURL trims raw and prepends https:// when no http(s) scheme is
// present. Empty input yields "".
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return "https://" + strings.TrimPrefix(u, "//")
}

// Host returns the lower-cased host of a URL or bare host, without port.
func Host(hostOrURL string) string {
	s := strings.TrimSpace(hostOrURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "//" + strings.TrimPrefix(s, "//")
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

// RegistrableDomain returns the public-suffix aware registrable domain of a
// host, URL or email host: "www.shop.acme.co.uk:8443" becomes "acme.co.uk".
// IP addresses, single-label hosts and bare public suffixes are returned
// as-is. This is the one domain comparison used across the pipeline.
func RegistrableDomain(hostOrURL string) string {
	host := Host(hostOrURL)
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// SameDomain reports whether two hosts, URLs or emails share a registrable domain.
func SameDomain(a, b string) bool {
	da, db := RegistrableDomain(a), RegistrableDomain(b)
	return da != "" && da == db
}

// Resolver follows a seed URL's redirects to its final address.
type Resolver struct {
	client    *http.Client
	userAgent string
}

// NewResolver creates a Resolver that shares client with the page fetcher.
func NewResolver(client *http.Client, userAgent string) *Resolver {
	return &Resolver{client: client, userAgent: userAgent}
}

// Resolve normalizes raw and follows redirects. It never fails: on any
// network error the site falls back to the normalized original URL and the
// domain of its host.
func (r *Resolver) Resolve(ctx context.Context, raw string) model.ResolvedSite {
	start := NormalizeURL(raw)
	if start == "" {
		return model.ResolvedSite{}
	}
	fallback := model.ResolvedSite{FinalURL: start, Domain: RegistrableDomain(start)}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, start, nil)
	if err != nil {
		zap.L().Debug("resolve: bad url", zap.String("url", start), zap.Error(err))
		return fallback
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		zap.L().Debug("resolve: request failed, using original url",
			zap.String("url", start),
			zap.Error(err),
		)
		return fallback
	}
	// Drain a little so the connection can be reused by the page fetcher.
	_, _ = io.CopyN(io.Discard, resp.Body, 64*1024)
	_ = resp.Body.Close()

	final := resp.Request.URL.String()
	domain := RegistrableDomain(final)
	if domain == "" {
		return fallback
	}
	return model.ResolvedSite{FinalURL: final, Domain: domain}
}
