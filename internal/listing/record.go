// Package listing defines the structured record produced for every accepted
// property detail page, plus the final validation gate that decides whether a
// parsed page becomes a record at all.
package listing

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Record is one property listing in its exported form. Numeric fields are
// pointers so an unresolved field exports as null rather than a fake zero.
type Record struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Price           *float64  `json:"price"`
	PriceDisplay    string    `json:"price_display,omitempty"`
	MonthlyMortgage *float64  `json:"monthly_mortgage,omitempty"`
	Area            *float64  `json:"area"`
	AreaDisplay     string    `json:"area_display,omitempty"`
	District        string    `json:"district,omitempty"`
	AreaName        string    `json:"area_name,omitempty"`
	Street          string    `json:"street,omitempty"`
	Address         string    `json:"address,omitempty"`
	Category        string    `json:"category,omitempty"`
	Region          string    `json:"region,omitempty"`
	DistrictLevel2  string    `json:"district_level2,omitempty"`
	SubDistrict     string    `json:"sub_district,omitempty"`
	EstateName      string    `json:"estate_name,omitempty"`
	Breadcrumb      string    `json:"breadcrumb,omitempty"`
	PropertyType    string    `json:"property_type,omitempty"`
	Bedrooms        *int      `json:"bedrooms,omitempty"`
	Bathrooms       *int      `json:"bathrooms,omitempty"`
	Floor           string    `json:"floor,omitempty"`
	BuildingAge     *int      `json:"building_age,omitempty"`
	Orientation     string    `json:"orientation,omitempty"`
	Description     string    `json:"description,omitempty"`
	Images          []string  `json:"images,omitempty"`
	Facilities      []string  `json:"facilities,omitempty"`
	PostDate        string    `json:"post_date,omitempty"`
	UpdateDate      string    `json:"update_date,omitempty"`
	CrawlDate       time.Time `json:"crawl_date"`
}

// FailedURL captures one irrecoverable per-URL failure. Failures are never
// retried within a run; they are exported for manual follow-up.
type FailedURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Ptr returns a pointer to v; a small helper for optional numeric fields.
func Ptr[T any](v T) *T {
	return &v
}

// RecordID derives the stable record ID from the canonical listing URL.
func RecordID(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])[:16]
}

// CSVHeader is the fixed flat-file column order.
func CSVHeader() []string {
	return []string{
		"id", "source", "url", "title",
		"price", "price_display", "monthly_mortgage",
		"area", "area_display",
		"district", "area_name", "street", "address",
		"category", "region", "district_level2", "sub_district", "estate_name",
		"breadcrumb", "property_type",
		"bedrooms", "bathrooms", "floor", "building_age", "orientation",
		"description", "images", "facilities",
		"post_date", "update_date", "crawl_date",
	}
}

// CSVRow flattens the record into the CSVHeader column order. Unresolved
// numerics become empty cells; slices are joined with a pipe.
func (r Record) CSVRow() []string {
	return []string{
		r.ID, r.Source, r.URL, r.Title,
		formatFloat(r.Price), r.PriceDisplay, formatFloat(r.MonthlyMortgage),
		formatFloat(r.Area), r.AreaDisplay,
		r.District, r.AreaName, r.Street, r.Address,
		r.Category, r.Region, r.DistrictLevel2, r.SubDistrict, r.EstateName,
		r.Breadcrumb, r.PropertyType,
		formatInt(r.Bedrooms), formatInt(r.Bathrooms), r.Floor, formatInt(r.BuildingAge), r.Orientation,
		r.Description, strings.Join(r.Images, "|"), strings.Join(r.Facilities, "|"),
		r.PostDate, r.UpdateDate, r.CrawlDate.Format(time.RFC3339),
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
