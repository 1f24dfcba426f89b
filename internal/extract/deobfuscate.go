package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	percentRunRe = regexp.MustCompile(`(?:%[0-9A-Fa-f]{2})+`)

	atEntityRe  = regexp.MustCompile(`(?i)&#0*64;|&#x0*40;|&commat;|\\u0040|\\x40`)
	dotEntityRe = regexp.MustCompile(`(?i)&#0*46;|&#x0*2e;|&period;`)

	atWordRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*\[\s*at\s*\]\s*`),
		regexp.MustCompile(`(?i)\s*\(\s*at\s*\)\s*`),
		regexp.MustCompile(`(?i)\s+at\s+`),
	}
	dotWordRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*\[\s*dot\s*\]\s*`),
		regexp.MustCompile(`(?i)\s*\(\s*dot\s*\)\s*`),
		regexp.MustCompile(`(?i)\s+dot\s+`),
	}
)

// Deobfuscate undoes the common ways sites hide addresses from scrapers:
// full-width characters, percent-encoding, HTML entities and escapes for
// "@" and ".", and spelled-out "[at]"/"(dot)" forms.
//
// The bare " at " form is matched case-insensitively, so ordinary prose such
// as "visit us at the plant" is rewritten too. The email pattern is applied
// afterwards and only keeps rewrites that form a whole address.
func Deobfuscate(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	s = percentRunRe.ReplaceAllStringFunc(s, func(run string) string {
		dec, err := url.PathUnescape(run)
		if err != nil {
			return run
		}
		return dec
	})
	s = atEntityRe.ReplaceAllString(s, "@")
	s = dotEntityRe.ReplaceAllString(s, ".")
	for _, re := range atWordRes {
		s = re.ReplaceAllString(s, "@")
	}
	for _, re := range dotWordRes {
		s = re.ReplaceAllString(s, ".")
	}
	return strings.TrimSpace(s)
}
