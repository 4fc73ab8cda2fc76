package extract

import (
	"regexp"
	"strings"

	"github.com/hkpdata/listings-crawler/internal/listing"
	"github.com/hkpdata/listings-crawler/internal/sites"
)

// Separator joins canonical breadcrumb parts. Both passes (generate and
// reparse) must use the same string or the round-trip property breaks.
const Separator = " > "

// defaultHomeLabel heads every canonical breadcrumb when the profile does not
// name its own home link.
const defaultHomeLabel = "主頁"

// Hierarchy is the positional reading of a breadcrumb path.
type Hierarchy struct {
	Category       string
	Region         string
	DistrictLevel2 string
	SubDistrict    string
	EstateName     string
}

var (
	// Bare block/unit designators: "2座", "J座", "7期", "E室". These are
	// path parts but never the estate name.
	unitDesignatorRe = regexp.MustCompile(`^(?:\d+座|[A-Za-z]座|\d+期|[A-Za-z0-9]{1,3}室)$`)
	// Opaque listing-id tails some sites append to the path, e.g.
	// "property 3688274" or a bare numeric code.
	propertyIDRe = regexp.MustCompile(`^(?i:property[\s-]*)?\d[\d_-]*$|^(?i)property\b`)
)

func isUnitDesignator(s string) bool { return unitDesignatorRe.MatchString(s) }

func isPropertyID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return propertyIDRe.MatchString(s)
}

// CleanParts normalizes a raw path: trims, drops empties, boilerplate and
// listing-id tails, strips leading home sentinels, folds a trailing bare
// block token into the preceding part ("疊茵庭", "4座" -> "疊茵庭 (4座)"),
// and collapses immediate repeats.
func CleanParts(raw []string, sentinels []string) []string {
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" || IsBoilerplate(part) || isPropertyID(part) {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == part {
			continue
		}
		parts = append(parts, part)
	}
	for len(parts) > 0 && isHomeSentinel(parts[0], sentinels) {
		parts = parts[1:]
	}
	if n := len(parts); n >= 2 && isUnitDesignator(parts[n-1]) && !isUnitDesignator(parts[n-2]) {
		parts = append(parts[:n-2], parts[n-2]+" ("+normalizeSeat(parts[n-1])+")")
	}
	return parts
}

func normalizeSeat(s string) string {
	// "j座" reads better as "J座".
	return strings.ToUpper(s[:1]) + s[1:]
}

func isHomeSentinel(part string, sentinels []string) bool {
	if part == defaultHomeLabel {
		return true
	}
	for _, s := range sentinels {
		if part == s {
			return true
		}
	}
	return false
}

// AssemblePath is pass one of the canonicalizer: append every non-empty field
// in fixed order, skip immediate duplicates, and strip home sentinels.
func AssemblePath(sentinels []string, fields ...string) []string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == f {
			continue
		}
		parts = append(parts, f)
	}
	for len(parts) > 0 && isHomeSentinel(parts[0], sentinels) {
		parts = parts[1:]
	}
	return parts
}

// CanonicalBreadcrumb renders the canonical string, home label first. Fewer
// than two parts is not a breadcrumb.
func CanonicalBreadcrumb(parts []string) string {
	if len(parts) < 2 {
		return ""
	}
	return defaultHomeLabel + Separator + strings.Join(parts, Separator)
}

// SplitBreadcrumb reverses CanonicalBreadcrumb: split on the separator and
// drop leading home sentinels.
func SplitBreadcrumb(breadcrumb string, sentinels []string) []string {
	if strings.TrimSpace(breadcrumb) == "" {
		return nil
	}
	var raw []string
	if strings.Contains(breadcrumb, ">") {
		raw = strings.Split(breadcrumb, ">")
	} else {
		raw = strings.Fields(breadcrumb)
	}
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	for len(parts) > 0 && isHomeSentinel(parts[0], sentinels) {
		parts = parts[1:]
	}
	return parts
}

// DeriveFields is pass two: fixed positional assignment over the home-free
// parts. The estate name prefers the last part that is not a bare block/unit
// designator, so a trailing unit marker is never mistaken for the estate.
// A sub-district equal to the estate collapses to empty: sites with shallow
// paths would otherwise duplicate the estate into the sub-district slot.
func DeriveFields(parts []string) Hierarchy {
	var h Hierarchy
	if len(parts) > 0 {
		h.Category = parts[0]
	}
	if len(parts) > 1 {
		h.Region = parts[1]
	}
	if len(parts) > 2 {
		h.DistrictLevel2 = parts[2]
	}
	if len(parts) > 3 {
		h.SubDistrict = parts[3]
	}
	for i := len(parts) - 1; i >= 2; i-- {
		if !isUnitDesignator(parts[i]) && !isPropertyID(parts[i]) {
			h.EstateName = parts[i]
			break
		}
	}
	if h.SubDistrict != "" && h.SubDistrict == h.EstateName {
		h.SubDistrict = ""
	}
	return h
}

// FirstSegment returns the head of a compound district label such as
// "荃灣, 麗城" or "荃灣 | 麗城".
func FirstSegment(s string) string {
	s = strings.TrimSpace(s)
	for _, sep := range []string{"|", ",", "，", "、"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// Canonicalize runs both passes over the record's hierarchy fields and makes
// the canonical form authoritative: the breadcrumb string is generated from
// the raw fields, then the fields are re-derived from that string. The
// district is deliberately not a path part; compound level-2 labels carry it
// as their first segment, and the derive pass backfills it when unset. With
// fewer than two parts no breadcrumb is produced and the raw fields stand.
func Canonicalize(rec *listing.Record, profile sites.Profile) {
	parts := AssemblePath(profile.HomeSentinels,
		rec.Category, rec.Region,
		rec.DistrictLevel2, rec.SubDistrict, rec.EstateName)
	if len(parts) < 2 {
		rec.Breadcrumb = ""
		return
	}
	rec.Breadcrumb = CanonicalBreadcrumb(parts)
	h := DeriveFields(parts)
	rec.Category = h.Category
	rec.Region = h.Region
	rec.DistrictLevel2 = h.DistrictLevel2
	rec.SubDistrict = h.SubDistrict
	rec.EstateName = h.EstateName
	if rec.District == "" {
		rec.District = FirstSegment(h.DistrictLevel2)
	}
}
