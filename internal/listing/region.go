package listing

import "strings"

// regionAliases groups the script and naming variants sites use for the same
// crawl region. Bare 新界 matches both of its halves.
var regionAliases = map[string][]string{
	"港島":  {"港島", "香港島", "港岛", "香港岛"},
	"九龍":  {"九龍", "九龙"},
	"離島":  {"離島", "离岛"},
	"新界東": {"新界東", "新界东"},
	"新界西": {"新界西"},
	"新界":  {"新界", "新界東", "新界东", "新界西"},
}

func regionMatches(want, got string) bool {
	want = strings.TrimSpace(want)
	got = strings.TrimSpace(got)
	if want == "" || want == got {
		return true
	}
	aliases, ok := regionAliases[want]
	if !ok {
		aliases = []string{want}
	}
	for _, alias := range aliases {
		if got == alias {
			return true
		}
	}
	return false
}

// FilterByRegion keeps the records whose region matches the requested one,
// across script variants. Records without a region are kept only when their
// level-2 district mentions the requested name, so sparse records are not
// silently thrown away on an unrelated filter.
func FilterByRegion(records []Record, region string) []Record {
	region = strings.TrimSpace(region)
	if region == "" {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		switch {
		case r.Region != "":
			if regionMatches(region, r.Region) {
				out = append(out, r)
			}
		case strings.Contains(r.DistrictLevel2, region):
			out = append(out, r)
		}
	}
	return out
}
