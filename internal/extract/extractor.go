package extract

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hkpdata/listings-crawler/internal/listing"
	"github.com/hkpdata/listings-crawler/internal/sites"
)

// ruleset names the strategy chain per field. Empty slices fall back to the
// defaults, so a per-site override only spells out the chains it reorders.
type ruleset struct {
	Hierarchy   []string
	Price       []string
	Mortgage    []string
	Area        []string
	Title       []string
	Address     []string
	Street      []string
	Description []string
}

var defaultRules = ruleset{
	Hierarchy:   []string{"nav-markup", "script-paths", "text-pattern", "nav-links"},
	Price:       []string{"price-element", "price-text", "price-script"},
	Mortgage:    []string{"mortgage-text"},
	Area:        []string{"area-element", "area-text"},
	Title:       []string{"title-h1", "title-meta", "title-slug", "title-estate"},
	Address:     []string{"address-element", "address-script", "address-compose"},
	Street:      []string{"street-address", "street-text"},
	Description: []string{"desc-meta", "desc-paragraph"},
}

// siteRules reorders chains where a site's markup inverts the default
// reliability ranking.
var siteRules = map[string]ruleset{
	// Navigation state lives in inline scripts; the rendered breadcrumb is a
	// truncated mirror of it.
	"ricacorp": {
		Hierarchy: []string{"script-paths", "nav-markup", "text-pattern", "nav-links"},
	},
	// The h1 repeats the marketing headline; the meta title is the clean one.
	"hse28": {
		Title: []string{"title-meta", "title-h1", "title-slug", "title-estate"},
	},
}

func rulesFor(siteID string) ruleset {
	rules := defaultRules
	override, ok := siteRules[siteID]
	if !ok {
		return rules
	}
	pick := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	pick(&rules.Hierarchy, override.Hierarchy)
	pick(&rules.Price, override.Price)
	pick(&rules.Mortgage, override.Mortgage)
	pick(&rules.Area, override.Area)
	pick(&rules.Title, override.Title)
	pick(&rules.Address, override.Address)
	pick(&rules.Street, override.Street)
	pick(&rules.Description, override.Description)
	return rules
}

// Extractor parses detail pages into listing records.
type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract resolves every field of a detail page. The returned record has not
// yet passed the final validation gate; callers run it through
// listing.Assemble before accepting it.
func (e *Extractor) Extract(rawHTML, rawURL string, profile sites.Profile) (listing.Record, error) {
	rec := listing.Record{Source: profile.ID, URL: rawURL}
	p, err := NewPage(rawHTML, rawURL, profile)
	if err != nil {
		return rec, err
	}
	p.Rec = &rec
	rules := rulesFor(profile.ID)

	parts, pathResolved := resolve(p, "hierarchy", chainOf(hierarchyStrategies, rules.Hierarchy), acceptHierarchy)
	if pathResolved {
		assignRaw(&rec, parts)
	} else if estate, district := estateFromSlug(rawURL); estate != "" || district != "" {
		p.record("hierarchy", "slug-inference", len(rules.Hierarchy), estate+" "+district)
		rec.EstateName = estate
		rec.District = district
		rec.Region = regionForDistrict(district)
	}
	if rec.Category == "" {
		rec.Category = profile.CategoryLabel(categoryFromURL(rawURL))
	}

	if m, ok := resolve(p, "price", chainOf(priceStrategies, rules.Price), plausiblePrice); ok {
		rec.Price = listing.Ptr(m.Value)
		rec.PriceDisplay = m.Display
	}
	if m, ok := resolve(p, "mortgage", chainOf(mortgageStrategies, rules.Mortgage), nil); ok {
		rec.MonthlyMortgage = listing.Ptr(m.Value)
	}
	if a, ok := resolve(p, "area", chainOf(areaStrategies, rules.Area), nil); ok {
		rec.Area = listing.Ptr(a.Value)
		rec.AreaDisplay = a.Display
	}

	if street, ok := resolve(p, "street", chainOf(streetStrategies, rules.Street), nil); ok {
		rec.Street = street
	}
	if addr, ok := resolve(p, "address", chainOf(addressStrategies, rules.Address), nil); ok {
		rec.Address = addr
	}
	if title, ok := resolve(p, "title", chainOf(titleStrategies, rules.Title), acceptTitle); ok {
		rec.Title = title
	}
	if desc, ok := resolve(p, "description", chainOf(descriptionStrategies, rules.Description), nil); ok {
		rec.Description = desc
	}

	if v, ok := resolve(p, "bedrooms", chainOf(bedroomsStrategies, []string{"bedrooms-text"}), nil); ok {
		rec.Bedrooms = listing.Ptr(v)
	}
	if v, ok := resolve(p, "bathrooms", chainOf(bathroomsStrategies, []string{"bathrooms-text"}), nil); ok {
		rec.Bathrooms = listing.Ptr(v)
	}
	if v, ok := resolve(p, "floor", chainOf(floorStrategies, []string{"floor-text"}), nil); ok {
		rec.Floor = v
	}
	if v, ok := resolve(p, "orientation", chainOf(orientationStrategies, []string{"orientation-text"}), nil); ok {
		rec.Orientation = v
	}
	if v, ok := resolve(p, "building_age", chainOf(buildingAgeStrategies, []string{"age-text"}), nil); ok {
		rec.BuildingAge = listing.Ptr(v)
	}
	if v, ok := resolve(p, "property_type", chainOf(propertyTypeStrategies, []string{"type-vocabulary", "type-layout"}), nil); ok {
		rec.PropertyType = v
	}
	rec.Facilities = extractFacilities(p)
	rec.PostDate, rec.UpdateDate = extractDates(p)
	rec.Images = extractImages(p)

	// Slug-inferred fields are a best guess, not a navigation path; they do
	// not earn a breadcrumb.
	if pathResolved {
		Canonicalize(&rec, profile)
	}
	if applyCorrections(&rec) && pathResolved {
		Canonicalize(&rec, profile)
	}
	if rec.AreaName == "" {
		if rec.AreaName = rec.SubDistrict; rec.AreaName == "" {
			rec.AreaName = rec.EstateName
		}
	}
	rec.ID = listing.RecordID(rec.URL)

	if ce := e.logger.Check(zap.DebugLevel, "extracted"); ce != nil {
		fields := make([]zap.Field, 0, len(p.trace)+1)
		fields = append(fields, zap.String("url", rawURL))
		for _, t := range p.trace {
			fields = append(fields, zap.String(t.Field, t.Strategy+"="+t.Value))
		}
		ce.Write(fields...)
	}
	return rec, nil
}

// assignRaw maps cleaned path parts onto the raw hierarchy fields with
// keyword guards at the head: a leading category label and a leading region
// label are consumed in that order, the remainder is positional. The estate
// is the last part that is not a bare block designator or an id tail.
func assignRaw(rec *listing.Record, parts []string) {
	i := 0
	if i < len(parts) && isCategoryLabel(parts[i]) {
		rec.Category = parts[i]
		i++
	}
	if i < len(parts) && isRegionLabel(parts[i]) {
		rec.Region = parts[i]
		i++
	}
	for j := len(parts) - 1; j >= i; j-- {
		if !isUnitDesignator(parts[j]) && !isPropertyID(parts[j]) {
			rec.EstateName = parts[j]
			break
		}
	}
	rest := parts[i:]
	if len(rest) > 0 && rest[0] != rec.EstateName {
		rec.DistrictLevel2 = rest[0]
		rec.District = FirstSegment(rest[0])
	}
	if len(rest) > 1 && rest[1] != rec.EstateName {
		rec.SubDistrict = rest[1]
	}
	if rec.Region == "" {
		rec.Region = regionForDistrict(rec.District)
	}
}

// categoryFromURL guesses buy or rent from the listing URL path.
func categoryFromURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, "rent") || strings.Contains(lower, "lease") || strings.Contains(lower, "租") {
		return sites.CategoryRent
	}
	return sites.CategoryBuy
}
