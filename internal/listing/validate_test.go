package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func boilerplate(s string) bool {
	return s == "加入比較" || s == "登入"
}

func TestAssembleKeepsResolvedTitle(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec, err := Assemble(Record{
		URL:   "https://hk.centanet.com/findproperty/detail/映日灣-3座_ABC123",
		Title: "  映日灣 3座 高層 ",
	}, boilerplate, now)
	require.NoError(t, err)
	require.Equal(t, "映日灣 3座 高層", rec.Title)
	require.Equal(t, now, rec.CrawlDate)
	require.Len(t, rec.ID, 16)
}

func TestAssembleFallsBackToEstate(t *testing.T) {
	t.Parallel()

	rec, err := Assemble(Record{
		URL:        "https://example.com/x/property-1",
		Title:      "加入比較",
		EstateName: "逸瓏灣",
	}, boilerplate, time.Now())
	require.NoError(t, err)
	require.Equal(t, "逸瓏灣", rec.Title)
}

func TestAssembleFallsBackToSlug(t *testing.T) {
	t.Parallel()

	rec, err := Assemble(Record{
		URL: "https://hk.centanet.com/findproperty/detail/%E8%8D%83%E7%81%A3%E8%A5%BF-%E5%BE%A1%E5%87%B1-2%E5%BA%A7_XYZ",
	}, boilerplate, time.Now())
	require.NoError(t, err)
	require.Equal(t, "荃灣西 御凱 2座", rec.Title)
}

func TestAssembleRejectsWhenNothingUsable(t *testing.T) {
	t.Parallel()

	_, err := Assemble(Record{URL: "https://example.com/"}, boilerplate, time.Now())
	require.ErrorIs(t, err, ErrNoTitle)
}

func TestRecordIDStable(t *testing.T) {
	t.Parallel()

	a := RecordID("https://example.com/p/1")
	b := RecordID("https://example.com/p/1")
	c := RecordID("https://example.com/p/2")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 16)
}

func TestSlugTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://hk.centanet.com/findproperty/detail/瓏門-1期-2座-低層-H室_CZE092", "瓏門 1期 2座 低層 H室"},
		{"https://www.28hse.com/buy/apartment/property-3688274", "property 3688274"},
		{"https://example.com/", ""},
		{"", ""},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, SlugTitle(tc.url), "url %q", tc.url)
	}
}

func TestCSVRowMatchesHeader(t *testing.T) {
	t.Parallel()

	rec := Record{
		ID:     "abc",
		Source: "hse28",
		URL:    "https://example.com/p/1",
		Title:  "御凱 2座",
		Price:  Ptr(24800000.0),
		Area:   Ptr(512.0),
		Images: []string{"a.jpg", "b.jpg"},
	}
	row := rec.CSVRow()
	require.Len(t, row, len(CSVHeader()))
	require.Equal(t, "24800000", row[4])
	require.Equal(t, "a.jpg|b.jpg", row[26])
	// Unresolved numerics stay empty, not zero.
	require.Equal(t, "", row[6])
	require.Equal(t, "", row[20])
}
