package sites

import (
	"fmt"
	"sort"
	"time"
)

// commonExcludes are path markers shared by all sources: auth and account
// pages, static info pages, and non-residential listing categories.
var commonExcludes = []string{
	"/member/",
	"/login",
	"/register",
	"/search",
	"/about",
	"/contact",
	"/help",
	"/terms",
	"/privacy",
	"/admin/",
	"/api/",
	"javascript:",
	"#",
	"mailto:",
	"tel:",
	"/office/",
	"/shop/",
	"/parking/",
	"/car-park/",
	"/commercial/",
	"/industrial/",
}

// advanceByPageNumber clicks the pager element whose visible text equals the
// target page number. The sources render pagers as plain numbered items, so
// the script scans clickable elements for an exact text match, skips the
// active page, and clicks via the element itself or a nested anchor.
const advanceByPageNumber = `(() => {
	const target = String(%d);
	const nodes = Array.from(document.querySelectorAll('a, button, li, span'));
	for (const el of nodes) {
		const text = (el.textContent || '').trim();
		if (text !== target) continue;
		if (el.classList.contains('active') || el.classList.contains('current') ||
			el.classList.contains('selected') || el.getAttribute('aria-current') === 'page') {
			continue;
		}
		el.scrollIntoView({block: 'center'});
		if (el.tagName === 'A' || el.tagName === 'BUTTON') {
			el.click();
			return true;
		}
		const link = el.querySelector('a');
		if (link) {
			link.click();
			return true;
		}
		el.dispatchEvent(new MouseEvent('click', {bubbles: true}));
		return true;
	}
	return false;
})()`

// Builtin returns the supported source profiles in a stable order.
func Builtin() []Profile {
	profiles := []Profile{
		{
			ID:              "centanet",
			Name:            "Centanet 中原地產",
			BaseURL:         "https://hk.centanet.com",
			PaginationMode:  PaginationScriptDriven,
			PaginationParam: "page",
			RateLimit:       1500 * time.Millisecond,
			MaxConcurrency:  2,
			Timeout:         30 * time.Second,
			RetryCount:      3,
			RequiresRender:  true,
			DetailPatterns:  []string{"/findproperty/detail/"},
			ExcludePatterns: append([]string{"/list/", "/estate/", "/findproperty/district/"}, commonExcludes...),
			AdvanceScript:   advanceByPageNumber,
			WaitSelector:    `a[href*="/findproperty/detail/"]`,
			SettleDelay:     2 * time.Second,
			HomeSentinels:   []string{"主頁", "首頁"},
			TitleSuffixes:   []string{"中原地產", "Centanet"},
			CategoryPaths: map[string]string{
				CategoryBuy:  "/findproperty/list/buy",
				CategoryRent: "/findproperty/list/rent",
			},
			CategoryLabels: map[string]string{
				CategoryBuy:  "買樓",
				CategoryRent: "租樓",
			},
		},
		{
			ID:              "hse28",
			Name:            "28Hse 香港屋網",
			BaseURL:         "https://www.28hse.com",
			PaginationMode:  PaginationQueryParam,
			PaginationParam: "page",
			RateLimit:       1200 * time.Millisecond,
			MaxConcurrency:  3,
			Timeout:         30 * time.Second,
			RetryCount:      3,
			RequiresRender:  false,
			DetailPatterns: []string{
				"/buy/apartment/property-",
				"/rent/apartment/property-",
				"/apartment/property-",
			},
			ExcludePatterns: commonExcludes,
			WaitSelector:    `a[href*="/apartment/property-"]`,
			SettleDelay:     2 * time.Second,
			HomeSentinels:   []string{"主頁", "地產主頁", "首頁"},
			TitleSuffixes:   []string{"28Hse", "香港屋網"},
			CategoryPaths: map[string]string{
				CategoryBuy:  "/buy/apartment",
				CategoryRent: "/rent/apartment",
			},
			CategoryLabels: map[string]string{
				CategoryBuy:  "住宅售盤",
				CategoryRent: "住宅租盤",
			},
		},
		{
			ID:              "ricacorp",
			Name:            "Ricacorp 利嘉閣",
			BaseURL:         "https://www.ricacorp.com",
			PaginationMode:  PaginationScriptDriven,
			PaginationParam: "page",
			RateLimit:       1300 * time.Millisecond,
			MaxConcurrency:  2,
			Timeout:         30 * time.Second,
			RetryCount:      3,
			RequiresRender:  true,
			DetailPatterns: []string{
				"/zh-hk/property/detail/",
				"/property/detail/",
			},
			ExcludePatterns: append([]string{"/property/list/", "/landregistry"}, commonExcludes...),
			AdvanceScript:   advanceByPageNumber,
			WaitSelector:    `a[href*="/property/detail/"]`,
			SettleDelay:     2 * time.Second,
			HomeSentinels:   []string{"主頁", "首頁", "Home"},
			TitleSuffixes:   []string{"利嘉閣", "Ricacorp"},
			CategoryPaths: map[string]string{
				CategoryBuy:  "/zh-hk/property/list/buy",
				CategoryRent: "/zh-hk/property/list/rent",
			},
			CategoryLabels: map[string]string{
				CategoryBuy:  "買樓",
				CategoryRent: "租樓",
			},
		},
	}
	return profiles
}

// Registry resolves profiles by ID with config overrides applied.
type Registry struct {
	byID  map[string]Profile
	order []string
}

// NewRegistry validates the built-in profiles, applies overrides, and drops
// the IDs listed in disabled.
func NewRegistry(overrides map[string]Override, disabled map[string]bool) (*Registry, error) {
	r := &Registry{byID: make(map[string]Profile)}
	for _, p := range Builtin() {
		if disabled[p.ID] {
			continue
		}
		if o, ok := overrides[p.ID]; ok {
			p = p.Apply(o)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("validate profile: %w", err)
		}
		r.byID[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	for id := range overrides {
		if _, ok := r.byID[id]; !ok && !disabled[id] {
			return nil, fmt.Errorf("override for unknown site %q", id)
		}
	}
	sort.Strings(r.order)
	return r, nil
}

// Lookup returns the profile for an ID.
func (r *Registry) Lookup(id string) (Profile, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// All returns every enabled profile in ID order.
func (r *Registry) All() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Select returns the profiles for the requested IDs, or all enabled profiles
// when ids is empty.
func (r *Registry) Select(ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return r.All(), nil
	}
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		p, ok := r.byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown site %q", id)
		}
		out = append(out, p)
	}
	return out, nil
}
