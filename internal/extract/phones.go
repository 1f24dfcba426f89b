package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used to interpret numbers written without a country code.
const DefaultRegion = "US"

var phoneRunRe = regexp.MustCompile(`\+?\d[\d\-.\s()]{7,}`)

// Phones returns the E.164 numbers found in html. Candidates come from digit
// runs anywhere in the raw markup and from "telephone" fields in JSON-LD
// blocks. A candidate survives when it parses as a possible number for
// region; anything else is dropped silently.
func Phones(html, region string) []string {
	if region == "" {
		region = DefaultRegion
	}
	seen := make(map[string]bool)
	add := func(raw string) {
		if p, ok := normalizePhone(raw, region); ok {
			seen[p] = true
		}
	}

	for _, m := range phoneRunRe.FindAllString(html, -1) {
		add(m)
	}
	for _, t := range jsonLDTelephones(html) {
		add(t)
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func normalizePhone(raw, region string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// jsonLDTelephones walks every JSON-LD block and collects telephone values
// at any depth, so Organization, LocalBusiness, @graph and nested
// contactPoint shapes are all covered.
func jsonLDTelephones(html string) []string {
	if !strings.Contains(strings.ToLower(html), "application/ld+json") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		collectTelephones(v, &out)
	})
	return out
}

func collectTelephones(v any, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if strings.EqualFold(k, "telephone") {
				switch tel := child.(type) {
				case string:
					*out = append(*out, tel)
					continue
				case []any:
					for _, item := range tel {
						if s, ok := item.(string); ok {
							*out = append(*out, s)
						}
					}
					continue
				}
			}
			collectTelephones(child, out)
		}
	case []any:
		for _, child := range t {
			collectTelephones(child, out)
		}
	}
}
