package extract

import (
	"strings"

	"github.com/hkpdata/listings-crawler/internal/listing"
)

// hierarchyFix pins the geographic fields for estates whose site breadcrumbs
// are known to be wrong or incomplete.
type hierarchyFix struct {
	District       string
	DistrictLevel2 string
	SubDistrict    string
	Region         string
}

var estateCorrections = map[string]hierarchyFix{
	"映日灣": {
		District:       "荃灣",
		DistrictLevel2: "荃灣 | 麗城",
		SubDistrict:    "荃灣西",
		Region:         "新界西",
	},
}

// districtParents maps sub-districts that sites sometimes promote to district
// level back to their administrative parent.
var districtParents = map[string]string{
	"天水圍": "元朗",
	"青衣":  "葵青",
	"將軍澳": "西貢",
	"大坑":  "灣仔",
}

// districtRegions maps the 18 administrative districts to crawl regions.
var districtRegions = map[string]string{
	"荃灣":  "新界西",
	"屯門":  "新界西",
	"元朗":  "新界西",
	"葵青":  "新界西",
	"離島":  "新界西",
	"大埔":  "新界東",
	"沙田":  "新界東",
	"北區":  "新界東",
	"西貢":  "新界東",
	"中西區": "港島",
	"東區":  "港島",
	"南區":  "港島",
	"灣仔":  "港島",
	"九龍城": "九龍",
	"觀塘":  "九龍",
	"深水埗": "九龍",
	"黃大仙": "九龍",
	"油尖旺": "九龍",
}

// isDistrictName recognizes district and sub-district tokens, including the
// compass-suffixed forms sites use ("荃灣西", "屯門南").
func isDistrictName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if _, ok := districtRegions[s]; ok {
		return true
	}
	if _, ok := districtParents[s]; ok {
		return true
	}
	if trimmed := strings.TrimRight(s, "東南西北"); trimmed != s && trimmed != "" {
		if _, ok := districtRegions[trimmed]; ok {
			return true
		}
		if _, ok := districtParents[trimmed]; ok {
			return true
		}
	}
	return false
}

// regionForDistrict resolves the crawl region for a district token, walking
// the sub-district parent table and stripping compass suffixes as needed.
func regionForDistrict(district string) string {
	district = strings.TrimSpace(district)
	if district == "" {
		return ""
	}
	if parent, ok := districtParents[district]; ok {
		district = parent
	}
	if region, ok := districtRegions[district]; ok {
		return region
	}
	if trimmed := strings.TrimRight(district, "東南西北"); trimmed != district {
		return regionForDistrict(trimmed)
	}
	return ""
}

// applyCorrections overlays the known-bad-data fixes on a record. It reports
// whether any hierarchy field changed so the caller can re-canonicalize.
func applyCorrections(rec *listing.Record) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	if fix, ok := estateCorrections[rec.EstateName]; ok {
		set(&rec.District, fix.District)
		set(&rec.DistrictLevel2, fix.DistrictLevel2)
		set(&rec.SubDistrict, fix.SubDistrict)
		set(&rec.Region, fix.Region)
	}
	if parent, ok := districtParents[rec.District]; ok {
		if rec.SubDistrict == "" {
			set(&rec.SubDistrict, rec.District)
		}
		set(&rec.District, parent)
	}
	if rec.Region == "" {
		set(&rec.Region, regionForDistrict(rec.District))
	}
	return changed
}
