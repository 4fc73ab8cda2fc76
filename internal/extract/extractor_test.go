package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.uber.org/zap/zaptest"
)

const centanetDetailHTML = `<!DOCTYPE html>
<html><head><title>逸瓏灣 海景3房 | 中原地產</title></head><body>
<ol class="breadcrumb">
<li><a href="/">主頁</a></li>
<li><a href="/findproperty/list/buy">買樓</a></li>
<li><a href="#">新界東</a></li>
<li><a href="#">大埔</a></li>
<li><a href="#">白石角</a></li>
<li>逸瓏灣</li>
</ol>
<h1>逸瓏灣 海景3房</h1>
<div class="price">售 $2,480萬</div>
<div class="area">實用面積 1,023 呎 @$24,242</div>
<div class="info">高層 向東南 2浴 樓齡 5 月供 $9,300 放盤日期 2024/3/1</div>
<img src="/images/p1.jpg"><img src="https://cdn.example.com/p2.jpg"><img src="/images/p1.jpg">
</body></html>`

func TestExtractFullDetailPage(t *testing.T) {
	t.Parallel()

	e := New(zaptest.NewLogger(t))
	profile := profileByID(t, "centanet")
	rec, err := e.Extract(centanetDetailHTML,
		"https://hk.centanet.com/findproperty/detail/逸瓏灣-3座-高層_ABC123", profile)
	require.NoError(t, err)

	require.Equal(t, "centanet", rec.Source)
	require.Equal(t, "逸瓏灣 海景3房", rec.Title)
	require.Equal(t, "主頁 > 買樓 > 新界東 > 大埔 > 白石角 > 逸瓏灣", rec.Breadcrumb)
	require.Equal(t, "買樓", rec.Category)
	require.Equal(t, "新界東", rec.Region)
	require.Equal(t, "大埔", rec.District)
	require.Equal(t, "白石角", rec.SubDistrict)
	require.Equal(t, "逸瓏灣", rec.EstateName)
	require.Equal(t, "白石角", rec.AreaName)

	require.NotNil(t, rec.Price)
	require.Equal(t, 24_800_000.0, *rec.Price)
	require.Equal(t, "$2,480萬", rec.PriceDisplay)
	require.NotNil(t, rec.MonthlyMortgage)
	require.Equal(t, 9300.0, *rec.MonthlyMortgage)
	require.NotNil(t, rec.Area)
	require.Equal(t, 1023.0, *rec.Area)

	require.NotNil(t, rec.Bedrooms)
	require.Equal(t, 3, *rec.Bedrooms)
	require.NotNil(t, rec.Bathrooms)
	require.Equal(t, 2, *rec.Bathrooms)
	require.Equal(t, "高層", rec.Floor)
	require.Equal(t, "向東南", rec.Orientation)
	require.NotNil(t, rec.BuildingAge)
	require.Equal(t, 5, *rec.BuildingAge)
	require.Equal(t, "2024-03-01", rec.PostDate)

	require.Equal(t, []string{
		"https://hk.centanet.com/images/p1.jpg",
		"https://cdn.example.com/p2.jpg",
	}, rec.Images)
	require.Len(t, rec.ID, 16)
}

func TestExtractIsDeterministic(t *testing.T) {
	t.Parallel()

	e := New(nil)
	profile := profileByID(t, "centanet")
	url := "https://hk.centanet.com/findproperty/detail/逸瓏灣-3座_ABC123"
	a, err := e.Extract(centanetDetailHTML, url, profile)
	require.NoError(t, err)
	b, err := e.Extract(centanetDetailHTML, url, profile)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestExtractTextPatternHierarchy(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="nav">地產主頁 > 住宅售盤 > 新界西 > 荃灣 | 麗城 > 映日灣</div>
<h1>映日灣 2座 中層</h1>
<div class="price">$680萬</div>
</body></html>`

	e := New(nil)
	rec, err := e.Extract(html, "https://www.28hse.com/buy/apartment/property-3688274", profileByID(t, "hse28"))
	require.NoError(t, err)

	require.Equal(t, "映日灣", rec.EstateName)
	require.Equal(t, "荃灣", rec.District)
	require.Equal(t, "荃灣 | 麗城", rec.DistrictLevel2)
	// The known-estate overlay fills the sub-district the site omits.
	require.Equal(t, "荃灣西", rec.SubDistrict)
	require.Equal(t, "主頁 > 住宅售盤 > 新界西 > 荃灣 | 麗城 > 荃灣西 > 映日灣", rec.Breadcrumb)
	require.NotNil(t, rec.Price)
	require.Equal(t, 6_800_000.0, *rec.Price)
}

func TestExtractScriptPathsHierarchy(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<script>window.__NAV__ = {paths: ["買樓_buy", "九龍_kowloon", "何文田_homantin", "皓畋_one-homantin"]};</script>
<h1>皓畋 兩房連套廁</h1>
</body></html>`

	e := New(nil)
	rec, err := e.Extract(html, "https://www.ricacorp.com/zh-hk/property/detail/皓畋_R123", profileByID(t, "ricacorp"))
	require.NoError(t, err)

	require.Equal(t, "買樓", rec.Category)
	require.Equal(t, "九龍", rec.Region)
	require.Equal(t, "何文田", rec.District)
	require.Equal(t, "皓畋", rec.EstateName)
	require.Equal(t, "主頁 > 買樓 > 九龍 > 何文田 > 皓畋", rec.Breadcrumb)
}

func TestExtractSlugInferenceWithoutBreadcrumb(t *testing.T) {
	t.Parallel()

	html := `<html><body><h1>御凱</h1><p>精選單位，兩房海景。</p></body></html>`

	e := New(nil)
	rec, err := e.Extract(html, "https://www.ricacorp.com/zh-hk/property/detail/荃灣西-御凱-2座_ABC12", profileByID(t, "ricacorp"))
	require.NoError(t, err)

	require.Equal(t, "御凱", rec.EstateName)
	require.Equal(t, "荃灣西", rec.District)
	require.Equal(t, "新界西", rec.Region)
	require.Equal(t, "買樓", rec.Category)
	require.Equal(t, "", rec.Breadcrumb)
	require.Equal(t, "御凱", rec.AreaName)
	require.Equal(t, "御凱", rec.Title)
}

func TestExtractSkipsBoilerplateTitle(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>聯絡我們 | 28Hse 香港屋網</title></head>
<body><h1>登入</h1></body></html>`

	e := New(nil)
	rec, err := e.Extract(html, "https://www.28hse.com/buy/apartment/property-123", profileByID(t, "hse28"))
	require.NoError(t, err)
	require.Equal(t, "property 123", rec.Title)
}

func TestExtractRejectsEmptyHTML(t *testing.T) {
	t.Parallel()

	e := New(nil)
	_, err := e.Extract("   ", "https://example.com/p/1", profileByID(t, "centanet"))
	require.ErrorIs(t, err, ErrParse)
}

func TestMaxWanPricePicksLargestPlausible(t *testing.T) {
	t.Parallel()

	m, ok := maxWanPrice("月供約 1.2萬 呎價資訊 938萬 售價 2,480萬")
	require.True(t, ok)
	require.Equal(t, 24_800_000.0, m.Value)
	require.Equal(t, "2,480萬", m.Display)
}

func TestEstateFromSlug(t *testing.T) {
	t.Parallel()

	estate, district := estateFromSlug("https://www.ricacorp.com/zh-hk/property/detail/荃灣西-御凱-2座_XYZ")
	require.Equal(t, "御凱", estate)
	require.Equal(t, "荃灣西", district)

	estate, _ = estateFromSlug("https://www.ricacorp.com/zh-hk/property/detail/listing-hma-旭麟閣_12345")
	require.Equal(t, "旭麟閣", estate)

	estate, district = estateFromSlug("https://www.28hse.com/buy/apartment/property-3688274")
	require.Equal(t, "", estate)
	require.Equal(t, "", district)
}
