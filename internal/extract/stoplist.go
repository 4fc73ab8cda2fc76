package extract

import "strings"

// Boilerplate chrome that must never be accepted as a title, estate name, or
// hierarchy part: auth and account labels, comparison/bookmark buttons,
// navigation chrome, and agency marketing blocks.
var stoplistExact = map[string]struct{}{
	"登入":        {},
	"登錄":        {},
	"登记":        {},
	"登記":        {},
	"註冊":        {},
	"注册":        {},
	"比較":        {},
	"比较":        {},
	"收藏":        {},
	"加入比較":      {},
	"聯絡我們":      {},
	"联络我们":      {},
	"聯絡代理":      {},
	"關於我們":      {},
	"主頁":        {},
	"主页":        {},
	"首頁":        {},
	"地產主頁":      {},
	"網上搵樓":      {},
	"网上搵楼":      {},
	"地圖搵樓":      {},
	"地图搵楼":      {},
	"更多":        {},
	"屋苑":        {},
	"分行網絡":      {},
	"一手新盤":      {},
	"中原薈":       {},
	"中原地產":      {},
	"利嘉閣":       {},
	"香港屋網":      {},
	"二手樓":       {},
	"樓市成交":      {},
	"放盤":        {},
	"搜尋":        {},
	"More":      {},
	"Login":     {},
	"Register":  {},
	"Compare":   {},
	"Bookmark":  {},
	"Home":      {},
	"Menu":      {},
	"Search":    {},
	"Contact":   {},
	"WhatsApp":  {},
	"Cookies":   {},
	"接收心水樓盤最新": {},
}

// stoplistMarkers catch longer marketing strings by substring: QR promos,
// WeChat prompts, cookie banners, app install nags.
var stoplistMarkers = []string{
	"QRcode",
	"QR code",
	"WeChat",
	"掃描",
	"掃一掃",
	"下載App",
	"下载App",
	"Cookie",
	"私隱政策",
	"使用條款",
	"免責聲明",
	"接收心水",
	"訂閱",
	"分行網絡",
	"javascript:",
}

// IsBoilerplate reports whether a candidate string is site chrome rather
// than listing data.
func IsBoilerplate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if _, ok := stoplistExact[s]; ok {
		return true
	}
	lower := strings.ToLower(s)
	for _, marker := range stoplistMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
