// Package profile classifies prospect websites from a handful of key pages:
// business type, service keywords, detected location and a confidence score.
package profile

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/leads-cli/internal/model"
)

// Keyword lists per business type, checked against page titles, meta
// descriptions and headings.
var businessTypeKeywords = []struct {
	Type     model.BusinessType
	Keywords []string
}{
	{model.BusinessProducerPlant, []string{"batch plant", "ready mix plant", "volumetric", "ready mix", "batching plant"}},
	{model.BusinessProducerCorporate, []string{"group", "corporation", "inc.", "llc", "ltd", "company", "co."}},
	{model.BusinessContractor, []string{"general contractor", "construction services", "construction company", "contractor"}},
	{model.BusinessMarketplace, []string{"brands", "products", "marketplace", "distributor", "dealer", "reseller"}},
	{model.BusinessSupplier, []string{"aggregate supplier", "aggregate supply", "supplier", "material supplier", "material supply"}},
}

var serviceKeywords = []string{
	"ready mix", "volumetric", "precast", "batch plant", "aggregate supply", "concrete", "construction",
	"plants", "materials", "cement", "asphalt", "aggregate", "delivery", "mixing", "sand", "gravel",
}

var locationKeys = []string{"address", "addressLocality", "addressRegion", "postalCode", "addressCountry", "streetAddress"}

// Paths whose presence suggests an operating producer rather than a holding
// company.
var locationPaths = map[string]bool{"locations": true, "plants": true}

const (
	unknown   = "unknown"
	noSignals = "none"
)

// Profile is the classification of one site.
type Profile struct {
	BusinessType    model.BusinessType `json:"business_type"`
	ServiceKeywords []string           `json:"service_keywords"`
	Location        string             `json:"location_detected"`
	Confidence      int                `json:"profile_confidence"`
	Signals         []string           `json:"signals"`
}

// Unknown is the profile of a site that could not be read.
func Unknown() Profile {
	return Profile{BusinessType: model.BusinessUnknown, Location: unknown}
}

// Apply writes the profile into the enrichment columns of rec.
func (p Profile) Apply(rec *model.LeadRecord) {
	rec.BusinessType = string(p.BusinessType)
	rec.ServiceKeywords = unknown
	if len(p.ServiceKeywords) > 0 {
		rec.ServiceKeywords = strings.Join(p.ServiceKeywords, ", ")
	}
	rec.LocationDetected = p.Location
	if rec.LocationDetected == "" {
		rec.LocationDetected = unknown
	}
	rec.ProfileConfidence = strconv.Itoa(p.Confidence)
	rec.Signals = noSignals
	if len(p.Signals) > 0 {
		rec.Signals = strings.Join(p.Signals, ";")
	}
}

// Analyze profiles a site from its fetched pages. Nil pages are ignored.
func Analyze(pages map[string]*model.Page) Profile {
	var (
		texts      []string
		jsonld     []any
		havePaths  = make(map[string]bool)
		sortedURLs = make([]string, 0, len(pages))
	)
	for u := range pages {
		sortedURLs = append(sortedURLs, u)
	}
	sort.Strings(sortedURLs)

	for _, u := range sortedURLs {
		pg := pages[u]
		if pg == nil || pg.HTML == "" {
			continue
		}
		if parsed, err := url.Parse(pg.URL); err == nil {
			havePaths[strings.ToLower(strings.Trim(parsed.Path, "/"))] = true
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(pg.HTML))
		if err != nil {
			continue
		}
		texts = append(texts, textElements(doc)...)
		jsonld = append(jsonld, jsonLD(doc)...)
	}

	blob := strings.Join(texts, " ")
	p := Profile{
		BusinessType:    classify(blob, havePaths),
		ServiceKeywords: matchServices(blob),
		Location:        locationFromJSONLD(jsonld),
	}
	if p.Location == "" {
		p.Location = unknown
	}

	hits := 0
	for _, bt := range businessTypeKeywords {
		for _, kw := range bt.Keywords {
			if strings.Contains(blob, kw) {
				hits++
				p.Signals = append(p.Signals, string(bt.Type)+":"+kw)
			}
		}
	}
	if len(jsonld) > 0 {
		p.Signals = append(p.Signals, "jsonld_found")
	}

	confidence := min(hits*10, 50) + min(len(p.ServiceKeywords)*7, 35)
	if p.Location != unknown {
		confidence += 15
	}
	p.Confidence = min(confidence, 100)
	return p
}

// textElements returns the lower-cased title, meta description and h1/h2
// texts of a page.
func textElements(doc *goquery.Document) []string {
	var out []string
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		out = append(out, strings.ToLower(t))
	}
	if d, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(d) != "" {
		out = append(out, strings.ToLower(d))
	}
	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, strings.ToLower(t))
		}
	})
	return out
}

// jsonLD decodes every ld+json block, flattening top-level arrays and
// @graph containers into a list of items.
func jsonLD(doc *goquery.Document) []any {
	var out []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		out = append(out, flattenJSONLD(v)...)
	})
	return out
}

func flattenJSONLD(v any) []any {
	switch t := v.(type) {
	case []any:
		var out []any
		for _, item := range t {
			out = append(out, flattenJSONLD(item)...)
		}
		return out
	case map[string]any:
		out := []any{t}
		if g, ok := t["@graph"]; ok {
			out = append(out, flattenJSONLD(g)...)
		}
		return out
	}
	return nil
}

func locationFromJSONLD(items []any) string {
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if addr, ok := item["address"].(map[string]any); ok {
			var parts []string
			for _, k := range locationKeys {
				if v, ok := addr[k]; ok && v != nil {
					if s := strings.TrimSpace(stringify(v)); s != "" {
						parts = append(parts, s)
					}
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
		for _, k := range locationKeys {
			if s, ok := item[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return name
		}
	}
	return ""
}

// classify picks a business type. Producer keywords win outright; corporate
// language only counts when no locations or plants page exists.
func classify(blob string, havePaths map[string]bool) model.BusinessType {
	found := func(t model.BusinessType) bool {
		for _, bt := range businessTypeKeywords {
			if bt.Type != t {
				continue
			}
			for _, kw := range bt.Keywords {
				if strings.Contains(blob, kw) {
					return true
				}
			}
		}
		return false
	}

	for _, t := range []model.BusinessType{
		model.BusinessProducerPlant,
		model.BusinessMarketplace,
		model.BusinessContractor,
		model.BusinessSupplier,
	} {
		if found(t) {
			return t
		}
	}
	if found(model.BusinessProducerCorporate) {
		hasLocations := false
		for p := range locationPaths {
			if havePaths[p] {
				hasLocations = true
			}
		}
		if !hasLocations {
			return model.BusinessProducerCorporate
		}
	}
	return model.BusinessUnknown
}

func matchServices(blob string) []string {
	var out []string
	for _, kw := range serviceKeywords {
		if strings.Contains(blob, kw) {
			out = append(out, kw)
		}
	}
	sort.Strings(out)
	return out
}
