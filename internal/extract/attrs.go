package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxGalleryImages = 20

var (
	bedroomsRe  = regexp.MustCompile(`(\d+)\s*房`)
	bathroomsRe = regexp.MustCompile(`(\d+)\s*(?:浴室|套廁|浴|廁)`)
	namedFloor  = regexp.MustCompile(`(高層|中層|低層)`)
	numberFloor = regexp.MustCompile(`(\d{1,2})\s*樓`)
	// "座向 東南" and "向南" both appear; the compass run is 1 to 2 chars.
	orientationRe = regexp.MustCompile(`(?:座向|朝向|向)\s*[:：]?\s*([東南西北东]{1,2})`)
	buildingAgeRe = regexp.MustCompile(`樓齡[^0-9]{0,6}(\d{1,3})`)

	postDateRe   = regexp.MustCompile(`放盤日期[^0-9]{0,6}(\d{4}[-/年]\d{1,2}[-/月]\d{1,2}日?)`)
	updateDateRe = regexp.MustCompile(`更新日期[^0-9]{0,6}(\d{4}[-/年]\d{1,2}[-/月]\d{1,2}日?)`)
)

// propertyTypes is ordered: more specific labels first so 居屋 beats 住宅.
var propertyTypes = []string{
	"獨立屋", "村屋", "唐樓", "洋樓", "居屋", "公屋", "服務式住宅", "複式", "平台特色戶", "住宅",
}

var facilityKeywords = []string{
	"會所", "泳池", "健身室", "網球場", "兒童遊樂場", "停車場", "花園", "桑拿", "壁球場", "宴會廳",
}

func matchInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

var bedroomsStrategies = map[string]Strategy[int]{
	"bedrooms-text": {Name: "bedrooms-text", Fn: func(p *Page) (int, bool) {
		v, ok := matchInt(bedroomsRe, p.text)
		return v, ok && v >= 1 && v <= 10
	}},
}

var bathroomsStrategies = map[string]Strategy[int]{
	"bathrooms-text": {Name: "bathrooms-text", Fn: func(p *Page) (int, bool) {
		v, ok := matchInt(bathroomsRe, p.text)
		return v, ok && v >= 1 && v <= 10
	}},
}

var floorStrategies = map[string]Strategy[string]{
	"floor-text": {Name: "floor-text", Fn: func(p *Page) (string, bool) {
		if m := namedFloor.FindString(p.text); m != "" {
			return m, true
		}
		if m := numberFloor.FindStringSubmatch(p.text); m != nil {
			return m[1] + "樓", true
		}
		return "", false
	}},
}

var orientationStrategies = map[string]Strategy[string]{
	"orientation-text": {Name: "orientation-text", Fn: func(p *Page) (string, bool) {
		m := orientationRe.FindStringSubmatch(p.text)
		if m == nil {
			return "", false
		}
		return "向" + m[1], true
	}},
}

var buildingAgeStrategies = map[string]Strategy[int]{
	"age-text": {Name: "age-text", Fn: func(p *Page) (int, bool) {
		v, ok := matchInt(buildingAgeRe, p.text)
		// A three-digit match is a year fragment, not an age.
		return v, ok && v > 0 && v <= 100
	}},
}

var propertyTypeStrategies = map[string]Strategy[string]{
	"type-vocabulary": {Name: "type-vocabulary", Fn: func(p *Page) (string, bool) {
		for _, label := range propertyTypes {
			if strings.Contains(p.text, label) {
				return label, true
			}
		}
		return "", false
	}},
	"type-layout": {Name: "type-layout", Fn: func(p *Page) (string, bool) {
		if m := bedroomsRe.FindString(p.text); m != "" {
			return strings.ReplaceAll(m, " ", ""), true
		}
		return "", false
	}},
}

func extractFacilities(p *Page) []string {
	var out []string
	for _, kw := range facilityKeywords {
		if strings.Contains(p.text, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func extractDates(p *Page) (post, update string) {
	if m := postDateRe.FindStringSubmatch(p.text); m != nil {
		post = normalizeDate(m[1])
	}
	if m := updateDateRe.FindStringSubmatch(p.text); m != nil {
		update = normalizeDate(m[1])
	}
	return post, update
}

// normalizeDate rewrites 2024年1月3日 and 2024/1/3 as 2024-01-03.
func normalizeDate(s string) string {
	s = strings.NewReplacer("年", "-", "月", "-", "日", "", "/", "-").Replace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	for i := 1; i < 3; i++ {
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return strings.Join(parts, "-")
}

// extractImages collects gallery image URLs, made absolute against the page
// URL, deduplicated in document order, and capped.
func extractImages(p *Page) []string {
	base, err := url.Parse(p.URL)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	p.doc.Find("img[src], img[data-src]").Each(func(_ int, img *goquery.Selection) {
		if len(out) >= maxGalleryImages {
			return
		}
		src, ok := img.Attr("data-src")
		if !ok || strings.TrimSpace(src) == "" {
			src, _ = img.Attr("src")
		}
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		lower := strings.ToLower(src)
		if strings.Contains(lower, "logo") || strings.Contains(lower, "icon") || strings.Contains(lower, "qrcode") {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}
