package listing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func regionsOf(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Region
	}
	return out
}

func TestFilterByRegionMatchesScriptVariants(t *testing.T) {
	t.Parallel()

	records := []Record{
		{Region: "香港島"},
		{Region: "港岛"},
		{Region: "九龍"},
		{Region: "新界西"},
	}
	got := FilterByRegion(records, "港島")
	require.Equal(t, []string{"香港島", "港岛"}, regionsOf(got))
}

func TestFilterByRegionNewTerritoriesCoversBothHalves(t *testing.T) {
	t.Parallel()

	records := []Record{
		{Region: "新界東"},
		{Region: "新界西"},
		{Region: "九龍"},
	}
	got := FilterByRegion(records, "新界")
	require.Equal(t, []string{"新界東", "新界西"}, regionsOf(got))
}

func TestFilterByRegionEmptyFilterKeepsAll(t *testing.T) {
	t.Parallel()

	records := []Record{{Region: "九龍"}, {Region: ""}}
	require.Len(t, FilterByRegion(records, ""), 2)
}

func TestFilterByRegionFallsBackToDistrictLevel2(t *testing.T) {
	t.Parallel()

	records := []Record{
		{DistrictLevel2: "新界西 荃灣"},
		{DistrictLevel2: "沙田第一城"},
	}
	got := FilterByRegion(records, "新界西")
	require.Len(t, got, 1)
	require.Equal(t, "新界西 荃灣", got[0].DistrictLevel2)
}
