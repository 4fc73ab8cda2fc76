package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Money is a resolved price with the display string it was parsed from.
type Money struct {
	Value   float64
	Display string
}

// Measure is a resolved floor area in square feet.
type Measure struct {
	Value   float64
	Display string
}

const (
	// Sale prices outside this band are treated as parse noise (a unit
	// number, a phone number, an ad banner).
	minPlausiblePrice = 1e5
	maxPlausiblePrice = 5e9

	sqmToSqft = 10.7639
)

var (
	// "2,480萬", "$1,038萬", "680万". The amount is in units of ten thousand.
	wanPriceRe = regexp.MustCompile(`\$?\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)\s*[萬万]`)
	// Raw dollar figures embedded in scripts: "price":12800000.
	scriptPriceRe = regexp.MustCompile(`"(?:price|salePrice|sale_price)"\s*:\s*(\d{6,11})`)

	mortgageRe = regexp.MustCompile(`(?:月供|按揭)[^0-9$]{0,12}\$?\s*((?:\d{1,3}(?:,\d{3})+|\d+))`)

	// 實用面積 figures are preferred over 建築面積 when both appear.
	usableAreaRe = regexp.MustCompile(`實用(?:面積)?[^0-9]{0,12}((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)\s*(平方呎|平方米|呎|尺|sq\.?\s*ft)`)
	anyAreaRe    = regexp.MustCompile(`((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)\s*(平方呎|平方米|呎|sq\.?\s*ft)`)
)

func plausiblePrice(m Money) bool {
	return m.Value >= minPlausiblePrice && m.Value <= maxPlausiblePrice
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// maxWanPrice parses every 萬-denominated amount in the text and keeps the
// largest plausible one. Pages quote the mortgage and per-foot figures in the
// same unit, and the sale price is reliably the largest of them.
func maxWanPrice(text string) (Money, bool) {
	var best Money
	for _, m := range wanPriceRe.FindAllStringSubmatch(text, -1) {
		v, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		money := Money{Value: v * 10_000, Display: strings.TrimSpace(m[0])}
		if plausiblePrice(money) && money.Value > best.Value {
			best = money
		}
	}
	return best, best.Value > 0
}

var priceStrategies = map[string]Strategy[Money]{
	"price-element": {Name: "price-element", Fn: func(p *Page) (Money, bool) {
		var best Money
		p.doc.Find(".price, [class*='price'], [class*='Price']").Each(func(_ int, s *goquery.Selection) {
			if m, ok := maxWanPrice(visibleText(s)); ok && m.Value > best.Value {
				best = m
			}
		})
		return best, best.Value > 0
	}},
	"price-text": {Name: "price-text", Fn: func(p *Page) (Money, bool) {
		return maxWanPrice(p.text)
	}},
	"price-script": {Name: "price-script", Fn: func(p *Page) (Money, bool) {
		var best Money
		for _, body := range p.scripts {
			for _, m := range scriptPriceRe.FindAllStringSubmatch(body, -1) {
				if v, ok := parseNumber(m[1]); ok && v > best.Value {
					best = Money{Value: v, Display: "$" + m[1]}
				}
			}
		}
		return best, plausiblePrice(best)
	}},
}

var mortgageStrategies = map[string]Strategy[Money]{
	"mortgage-text": {Name: "mortgage-text", Fn: func(p *Page) (Money, bool) {
		m := mortgageRe.FindStringSubmatch(p.text)
		if m == nil {
			return Money{}, false
		}
		v, ok := parseNumber(m[1])
		if !ok || v < 1000 || v > 1e6 {
			return Money{}, false
		}
		return Money{Value: v, Display: strings.TrimSpace(m[0])}, true
	}},
}

func parseArea(m []string) (Measure, bool) {
	if m == nil {
		return Measure{}, false
	}
	v, ok := parseNumber(m[1])
	if !ok {
		return Measure{}, false
	}
	if m[2] == "平方米" {
		v *= sqmToSqft
	}
	if v < 50 || v > 50_000 {
		return Measure{}, false
	}
	return Measure{Value: v, Display: strings.TrimSpace(m[0])}, true
}

var areaStrategies = map[string]Strategy[Measure]{
	"area-element": {Name: "area-element", Fn: func(p *Page) (Measure, bool) {
		var out Measure
		found := false
		p.doc.Find("[class*='area'], [class*='Area'], .size").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := visibleText(s)
			if a, ok := parseArea(usableAreaRe.FindStringSubmatch(text)); ok {
				out, found = a, true
				return false
			}
			if a, ok := parseArea(anyAreaRe.FindStringSubmatch(text)); ok {
				out, found = a, true
				return false
			}
			return true
		})
		return out, found
	}},
	"area-text": {Name: "area-text", Fn: func(p *Page) (Measure, bool) {
		if a, ok := parseArea(usableAreaRe.FindStringSubmatch(p.text)); ok {
			return a, true
		}
		return parseArea(anyAreaRe.FindStringSubmatch(p.text))
	}},
}
