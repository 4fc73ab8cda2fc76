package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hkpdata/listings-crawler/internal/listing"
)

func TestApplyCorrectionsKnownEstate(t *testing.T) {
	t.Parallel()

	profile := profileByID(t, "hse28")
	rec := listing.Record{
		Category:       "住宅售盤",
		Region:         "新界",
		District:       "荃灣",
		DistrictLevel2: "荃灣",
		EstateName:     "映日灣",
	}
	require.True(t, applyCorrections(&rec))
	Canonicalize(&rec, profile)

	require.Equal(t, "荃灣", rec.District)
	require.Equal(t, "荃灣 | 麗城", rec.DistrictLevel2)
	require.Equal(t, "荃灣西", rec.SubDistrict)
	require.Equal(t, "新界西", rec.Region)
	require.Equal(t, "主頁 > 住宅售盤 > 新界西 > 荃灣 | 麗城 > 荃灣西 > 映日灣", rec.Breadcrumb)

	// A second pass is a no-op: the overlay and the canonical form agree.
	require.False(t, applyCorrections(&rec))
	before := rec
	Canonicalize(&rec, profile)
	require.Equal(t, before, rec)
}

func TestApplyCorrectionsPromotedSubDistrict(t *testing.T) {
	t.Parallel()

	rec := listing.Record{District: "天水圍"}
	require.True(t, applyCorrections(&rec))
	require.Equal(t, "元朗", rec.District)
	require.Equal(t, "天水圍", rec.SubDistrict)
	require.Equal(t, "新界西", rec.Region)
}

func TestApplyCorrectionsLeavesCleanRecords(t *testing.T) {
	t.Parallel()

	rec := listing.Record{District: "大埔", Region: "新界東", EstateName: "逸瓏灣"}
	require.False(t, applyCorrections(&rec))
}

func TestRegionForDistrict(t *testing.T) {
	t.Parallel()

	require.Equal(t, "新界西", regionForDistrict("荃灣西"))
	require.Equal(t, "新界東", regionForDistrict("沙田"))
	require.Equal(t, "九龍", regionForDistrict("油尖旺"))
	require.Equal(t, "新界西", regionForDistrict("天水圍"))
	require.Equal(t, "", regionForDistrict("不存在"))
}

func TestIsDistrictName(t *testing.T) {
	t.Parallel()

	require.True(t, isDistrictName("荃灣"))
	require.True(t, isDistrictName("荃灣西"))
	require.True(t, isDistrictName("將軍澳"))
	require.False(t, isDistrictName("御凱"))
	require.False(t, isDistrictName(""))
}
