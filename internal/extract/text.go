package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hkpdata/listings-crawler/internal/listing"
)

var titleSplitRe = regexp.MustCompile(`\s*[｜│|]\s*`)

func acceptTitle(s string) bool {
	return !IsBoilerplate(s) && len([]rune(s)) >= 2
}

// cleanMetaTitle strips the site-name tail from a <title> or og:title value:
// split on the pipe family and drop segments matching the profile's known
// suffixes, keeping the first surviving segment.
func cleanMetaTitle(raw string, suffixes []string) string {
	for _, segment := range titleSplitRe.Split(raw, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		suffix := false
		for _, s := range suffixes {
			if strings.Contains(segment, s) {
				suffix = true
				break
			}
		}
		if !suffix {
			return segment
		}
	}
	return ""
}

var titleStrategies = map[string]Strategy[string]{
	"title-h1": {Name: "title-h1", Fn: func(p *Page) (string, bool) {
		title := strings.TrimSpace(p.doc.Find("h1").First().Text())
		return title, title != ""
	}},
	"title-meta": {Name: "title-meta", Fn: func(p *Page) (string, bool) {
		raw, _ := p.doc.Find(`meta[property="og:title"]`).Attr("content")
		if strings.TrimSpace(raw) == "" {
			raw = p.doc.Find("title").First().Text()
		}
		title := cleanMetaTitle(raw, p.Profile.TitleSuffixes)
		return title, title != ""
	}},
	"title-slug": {Name: "title-slug", Fn: func(p *Page) (string, bool) {
		title := listing.SlugTitle(p.URL)
		return title, title != ""
	}},
	"title-estate": {Name: "title-estate", Fn: func(p *Page) (string, bool) {
		return p.Rec.EstateName, p.Rec.EstateName != ""
	}},
}

// Street names end with a thoroughfare suffix; the optional leading number
// range covers "青山公路33-33號" shapes.
var streetRe = regexp.MustCompile(`[\p{Han}A-Za-z0-9]{1,15}(?:大道|公路|街|道|路|徑|里|巷|灣|邨)(?:\s*\d+(?:-\d+)?\s*號)?`)

var addressStrategies = map[string]Strategy[string]{
	"address-element": {Name: "address-element", Fn: func(p *Page) (string, bool) {
		var addr string
		p.doc.Find("[class*='address'], [class*='Address'], address").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := visibleText(s); !IsBoilerplate(text) && len([]rune(text)) >= 4 {
				addr = text
				return false
			}
			return true
		})
		return addr, addr != ""
	}},
	"address-script": {Name: "address-script", Fn: func(p *Page) (string, bool) {
		re := regexp.MustCompile(`"address"\s*:\s*"([^"]{4,80})"`)
		for _, body := range p.scripts {
			if m := re.FindStringSubmatch(body); m != nil {
				return strings.TrimSpace(m[1]), true
			}
		}
		return "", false
	}},
	"address-compose": {Name: "address-compose", Fn: func(p *Page) (string, bool) {
		// District plus street plus estate approximates an address when the
		// page never prints one.
		parts := make([]string, 0, 3)
		for _, f := range []string{p.Rec.District, p.Rec.Street, p.Rec.EstateName} {
			if f != "" {
				parts = append(parts, f)
			}
		}
		if len(parts) < 2 {
			return "", false
		}
		return strings.Join(parts, " "), true
	}},
}

// streetFromText picks the first thoroughfare-shaped token near the estate
// name, falling back to the first anywhere in the page text.
func streetFromText(p *Page) (string, bool) {
	text := p.text
	if p.Rec.EstateName != "" {
		if idx := strings.Index(text, p.Rec.EstateName); idx >= 0 {
			lo := idx - 200
			if lo < 0 {
				lo = 0
			}
			hi := idx + 200
			if hi > len(text) {
				hi = len(text)
			}
			if street := streetRe.FindString(text[lo:hi]); street != "" {
				return street, true
			}
		}
	}
	street := streetRe.FindString(text)
	return street, street != ""
}

var streetStrategies = map[string]Strategy[string]{
	"street-address": {Name: "street-address", Fn: func(p *Page) (string, bool) {
		street := streetRe.FindString(p.Rec.Address)
		return street, street != ""
	}},
	"street-text": {Name: "street-text", Fn: streetFromText},
}

var descriptionStrategies = map[string]Strategy[string]{
	"desc-meta": {Name: "desc-meta", Fn: func(p *Page) (string, bool) {
		for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
			if content, ok := p.doc.Find(sel).Attr("content"); ok {
				if content = strings.TrimSpace(content); len([]rune(content)) >= 10 && !IsBoilerplate(content) {
					return content, true
				}
			}
		}
		return "", false
	}},
	"desc-paragraph": {Name: "desc-paragraph", Fn: func(p *Page) (string, bool) {
		var desc string
		p.doc.Find("[class*='desc'] p, [class*='detail'] p, article p, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if len([]rune(text)) >= 20 && !IsBoilerplate(text) {
				desc = text
				return false
			}
			return true
		})
		if runes := []rune(desc); len(runes) > 500 {
			desc = string(runes[:500])
		}
		return desc, desc != ""
	}},
}
