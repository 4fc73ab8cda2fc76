package listing

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// ErrNoTitle marks a page rejected because no fallback produced a usable
// title. Rejected pages are recorded as failures, never as partial records.
var ErrNoTitle = errors.New("no usable title")

// Assemble runs the final acceptance gate. The title fallback order is:
// resolved title, estate name, URL-slug text. A candidate is usable when it
// is non-empty after trimming and not boilerplate. On success the record
// gets its stable ID and crawl timestamp.
func Assemble(r Record, isBoilerplate func(string) bool, now time.Time) (Record, error) {
	if isBoilerplate == nil {
		isBoilerplate = func(string) bool { return false }
	}
	usable := func(s string) bool {
		s = strings.TrimSpace(s)
		return s != "" && !isBoilerplate(s)
	}

	switch {
	case usable(r.Title):
		r.Title = strings.TrimSpace(r.Title)
	case usable(r.EstateName):
		r.Title = strings.TrimSpace(r.EstateName)
	case usable(SlugTitle(r.URL)):
		r.Title = SlugTitle(r.URL)
	default:
		return Record{}, ErrNoTitle
	}

	r.ID = RecordID(r.URL)
	r.CrawlDate = now.UTC()
	return r, nil
}

// SlugTitle recovers human-readable text from the last path segment of a
// listing URL: percent-decoded, the opaque ID tail after "_" dropped, and
// dashes turned into spaces. Returns "" when nothing readable remains.
func SlugTitle(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	segment := u.Path
	if idx := strings.LastIndex(segment, "/"); idx >= 0 {
		segment = segment[idx+1:]
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	// Drop the trailing listing code, e.g. "瓏門-1期-2座-低層-H室_CZE092".
	if idx := strings.Index(segment, "_"); idx >= 0 {
		segment = segment[:idx]
	}
	segment = strings.ReplaceAll(segment, "-", " ")
	return strings.TrimSpace(segment)
}
