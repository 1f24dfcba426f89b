package scrape

import (
	"net/url"
	"path"
	"strings"
)

// PathMatcher filters candidate URLs against glob-style exclude patterns.
// A pattern like "/blog/*" also matches deeper paths such as "/blog/a/b".
// A nil or empty matcher excludes nothing.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns (e.g. "/terms", "/*.xml").
func NewPathMatcher(patterns []string) *PathMatcher {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		lowered = append(lowered, p)
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}

// IsExcluded checks whether a URL matches any exclude pattern. Unparsable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return m.IsPathExcluded(u.Path)
}

// IsPathExcluded checks a URL path against all patterns.
func (m *PathMatcher) IsPathExcluded(urlPath string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	urlPath = strings.ToLower(urlPath)
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	for _, pattern := range m.patterns {
		if matchSegmented(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchSegmented performs glob matching where "/blog/*" matches both
// "/blog/post" and "/blog/deep/nested/path".
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}

	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
