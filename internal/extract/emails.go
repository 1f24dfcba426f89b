package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var (
	emailRe     = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)
	emailFullRe = regexp.MustCompile(`^[\w.+-]+@[\w.-]+\.\w+$`)
)

// assetSuffixes are file extensions that the email pattern happily matches
// in srcset attributes and asset names such as "logo@2x.png".
var assetSuffixes = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif", ".bmp", ".ico",
	".css", ".js", ".mjs", ".map", ".woff", ".woff2", ".ttf", ".pdf", ".mp4",
}

// placeholderHosts are template addresses left in themes and form hints.
var placeholderHosts = []string{
	"example.com", "example.org", "example.net", "domain.com", "email.com", "yourdomain.com",
	"sentry.io", "wixpress.com",
}

// Emails returns the lower-cased addresses found in html: every pattern
// match in the deobfuscated page plus every mailto link target.
func Emails(html string) []string {
	seen := make(map[string]bool)
	add := func(e string) {
		e = strings.ToLower(strings.Trim(e, ".-"))
		if e == "" || seen[e] || !plausible(e) {
			return
		}
		seen[e] = true
	}

	for _, m := range emailRe.FindAllString(Deobfuscate(html), -1) {
		add(m)
	}
	for _, m := range mailtoEmails(html) {
		add(m)
	}

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// mailtoEmails pulls addresses out of mailto: hrefs. A target that is a
// whole address is kept as is; otherwise each embedded match is kept.
func mailtoEmails(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		zap.L().Debug("extract: parse html for mailto", zap.Error(err))
		return nil
	}

	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
			return
		}
		target := Deobfuscate(href[len("mailto:"):])
		if i := strings.IndexByte(target, '?'); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if emailFullRe.MatchString(target) {
			out = append(out, target)
			return
		}
		out = append(out, emailRe.FindAllString(target, -1)...)
	})
	return out
}

func plausible(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	for _, suf := range assetSuffixes {
		if strings.HasSuffix(email, suf) {
			return false
		}
	}
	host := email[at+1:]
	for _, p := range placeholderHosts {
		if host == p || strings.HasSuffix(host, "."+p) {
			return false
		}
	}
	return true
}
