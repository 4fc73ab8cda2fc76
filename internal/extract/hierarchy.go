package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Category labels a site may put at the head of a navigation path.
var categoryLabels = map[string]struct{}{
	"買樓":    {},
	"买楼":    {},
	"租樓":    {},
	"租楼":    {},
	"售盤":    {},
	"租盤":    {},
	"住宅售盤":  {},
	"住宅租盤":  {},
	"二手真盤源": {},
	"二手樓盤":  {},
	"成交":    {},
	"新盤":    {},
	"搵樓":    {},
}

// Region labels, traditional and simplified.
var regionLabels = map[string]struct{}{
	"港島":  {},
	"港岛":  {},
	"香港島": {},
	"香港岛": {},
	"九龍":  {},
	"九龙":  {},
	"新界":  {},
	"新界東": {},
	"新界东": {},
	"新界西": {},
	"離島":  {},
	"离岛":  {},
}

func isCategoryLabel(s string) bool {
	_, ok := categoryLabels[strings.TrimSpace(s)]
	return ok
}

func isRegionLabel(s string) bool {
	_, ok := regionLabels[strings.TrimSpace(s)]
	return ok
}

// acceptHierarchy admits a candidate path only when it is deep enough to carry
// district information and anchored by a recognizable category or region.
func acceptHierarchy(parts []string) bool {
	if len(parts) < 3 {
		return false
	}
	if isCategoryLabel(parts[0]) {
		return true
	}
	for _, part := range parts {
		if isRegionLabel(part) {
			return true
		}
	}
	return false
}

var hierarchyStrategies = map[string]Strategy[[]string]{
	"nav-markup":   {Name: "nav-markup", Fn: hierarchyFromNavMarkup},
	"script-paths": {Name: "script-paths", Fn: hierarchyFromScripts},
	"text-pattern": {Name: "text-pattern", Fn: hierarchyFromText},
	"nav-links":    {Name: "nav-links", Fn: hierarchyFromNavLinks},
}

// breadcrumbSelectors are tried in order; the first selector with at least two
// items wins so a sparse match does not shadow a richer one further down.
var breadcrumbSelectors = []string{
	"ol.breadcrumb li",
	"ul.breadcrumb li",
	".breadcrumb li",
	".breadcrumbs li",
	"nav[aria-label='breadcrumb'] li",
	".breadcrumb a",
	".breadcrumbs a",
	"[class*='breadcrumb'] a",
	"[class*='bread-crumb'] a",
	".crumb a",
	".path a",
}

func hierarchyFromNavMarkup(p *Page) ([]string, bool) {
	for _, selector := range breadcrumbSelectors {
		sel := p.doc.Find(selector)
		if sel.Length() < 2 {
			continue
		}
		raw := make([]string, 0, sel.Length())
		sel.Each(func(_ int, item *goquery.Selection) {
			raw = append(raw, visibleText(item))
		})
		if parts := CleanParts(raw, p.Profile.HomeSentinels); len(parts) >= 2 {
			return parts, true
		}
	}
	return nil, false
}

var (
	scriptPathsRe = regexp.MustCompile(`paths\s*:\s*\[([^\]]*)\]`)
	scriptPathRe  = regexp.MustCompile(`path\s*:\s*"([^"]+)"`)
	quotedItemRe  = regexp.MustCompile(`"([^"]*)"|'([^']*)'`)
)

// hierarchyFromScripts reads navigation state some sites embed in inline
// scripts: either a paths:[...] array or repeated path:"..." entries. Items
// carry a routing slug after an underscore which is dropped for display.
func hierarchyFromScripts(p *Page) ([]string, bool) {
	for _, body := range p.scripts {
		var raw []string
		if m := scriptPathsRe.FindStringSubmatch(body); m != nil {
			for _, item := range quotedItemRe.FindAllStringSubmatch(m[1], -1) {
				raw = append(raw, scriptPathDisplay(item[1]+item[2]))
			}
		} else {
			for _, m := range scriptPathRe.FindAllStringSubmatch(body, -1) {
				raw = append(raw, scriptPathDisplay(m[1]))
			}
		}
		if len(raw) == 0 {
			continue
		}
		if parts := CleanParts(raw, p.Profile.HomeSentinels); len(parts) >= 2 {
			return parts, true
		}
	}
	return nil, false
}

func scriptPathDisplay(item string) string {
	if i := strings.Index(item, "_"); i > 0 {
		return item[:i]
	}
	return item
}

// hierarchyFromText scans the visible page text for a run of tokens after a
// home sentinel, the shape a breadcrumb takes when its markup carries no
// usable class. A bare "|" token glues district pairs back together.
func hierarchyFromText(p *Page) ([]string, bool) {
	sentinels := p.Profile.HomeSentinels
	if len(sentinels) == 0 {
		sentinels = []string{defaultHomeLabel}
	}
	isSep := func(tok string) bool { return tok == ">" || tok == "/" || tok == "»" }
	for _, sentinel := range sentinels {
		idx := strings.Index(p.text, sentinel)
		if idx < 0 {
			continue
		}
		tokens := strings.Fields(p.text[idx+len(sentinel):])
		raw := make([]string, 0, 8)
		// Every part must be introduced by a separator; the first token that
		// is not marks the end of the breadcrumb run.
		for i := 0; i < len(tokens); {
			if !isSep(tokens[i]) {
				break
			}
			i++
			if i >= len(tokens) {
				break
			}
			part := tokens[i]
			i++
			for i+1 < len(tokens) && tokens[i] == "|" && !isSep(tokens[i+1]) {
				part += " | " + tokens[i+1]
				i += 2
			}
			if len([]rune(part)) > 18 || IsBoilerplate(part) {
				break
			}
			raw = append(raw, part)
			if len(raw) == 7 {
				break
			}
		}
		if parts := CleanParts(raw, sentinels); len(parts) >= 2 {
			return parts, true
		}
	}
	return nil, false
}

// hierarchyFromNavLinks is the last resort: harvest short link texts from the
// page's navigation areas in document order and hope they form a path.
func hierarchyFromNavLinks(p *Page) ([]string, bool) {
	var raw []string
	p.doc.Find("nav a, header a, a[href*='district'], a[href*='catalog']").Each(func(_ int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		if text == "" || len([]rune(text)) > 12 {
			return
		}
		if isCategoryLabel(text) || isRegionLabel(text) || isDistrictName(text) {
			raw = append(raw, text)
		}
	})
	if parts := CleanParts(raw, p.Profile.HomeSentinels); len(parts) >= 2 {
		return parts, true
	}
	return nil, false
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// estateFromSlug infers the estate name from the detail URL when no hierarchy
// was resolved. The slug's opaque id tail after the final underscore is
// dropped, then the last CJK token that is not a block designator wins.
// Slugs with an "-hma-" routing marker put the estate after the marker.
func estateFromSlug(rawURL string) (estate, district string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	segment := u.Path
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	if i := strings.Index(segment, "-hma-"); i >= 0 {
		segment = segment[i+len("-hma-"):]
	}
	if i := strings.LastIndex(segment, "_"); i > 0 {
		segment = segment[:i]
	}
	tokens := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '+' || r == '.'
	})
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := strings.TrimSpace(tokens[i])
		if tok == "" || !hasCJK(tok) || isUnitDesignator(tok) {
			continue
		}
		if estate == "" {
			estate = tok
			continue
		}
		if district == "" && isDistrictName(tok) {
			district = tok
		}
	}
	// A lone district token is a location, not an estate.
	if estate != "" && isDistrictName(estate) && district == "" {
		estate, district = "", estate
	}
	return estate, district
}
