// Package extract turns rendered detail-page HTML into a structured listing
// record. Every semantic field is resolved by an ordered chain of strategies;
// the first candidate that passes validation wins, and hierarchy fields are
// forced into positional consistency by the breadcrumb canonicalizer.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hkpdata/listings-crawler/internal/listing"
	"github.com/hkpdata/listings-crawler/internal/sites"
)

// ErrParse marks HTML that could not be parsed even after the fallback
// sanitizing pass.
var ErrParse = errors.New("unparseable html")

// RawExtraction records which strategy produced a field value. It lives for
// one parse, feeds the debug log, and is then discarded.
type RawExtraction struct {
	Field    string
	Strategy string
	Rank     int
	Value    string
}

// Page is the parse context shared by every strategy: the document, the
// whitespace-separated page text, the raw script bodies, and the partially
// resolved record so later strategies can consult earlier fields.
type Page struct {
	URL     string
	Profile sites.Profile
	Rec     *listing.Record

	doc     *goquery.Document
	text    string
	scripts []string
	trace   []RawExtraction
}

// NewPage parses the HTML once. A failed parse is retried on a
// control-character-stripped copy before giving up with ErrParse.
func NewPage(rawHTML, rawURL string, profile sites.Profile) (*Page, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		cleaned := strings.Map(func(r rune) rune {
			if r < 0x20 && r != '\n' && r != '\t' {
				return -1
			}
			return r
		}, rawHTML)
		doc, err = goquery.NewDocumentFromReader(strings.NewReader(cleaned))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}

	p := &Page{URL: rawURL, Profile: profile, doc: doc}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if body := s.Text(); strings.TrimSpace(body) != "" {
			p.scripts = append(p.scripts, body)
		}
	})
	// Script and style bodies would pollute the text patterns below.
	textDoc := doc.Find("body")
	if textDoc.Length() == 0 {
		textDoc = doc.Selection
	}
	p.text = visibleText(textDoc)
	return p, nil
}

// Text returns the page's visible text with single-space separators between
// text nodes, the shape the free-text patterns are written against.
func (p *Page) Text() string { return p.text }

func (p *Page) record(field, strategy string, rank int, value any) {
	display := fmt.Sprint(value)
	if len(display) > 80 {
		display = display[:80]
	}
	p.trace = append(p.trace, RawExtraction{
		Field:    field,
		Strategy: strategy,
		Rank:     rank,
		Value:    display,
	})
}

// visibleText walks the node tree so adjacent elements stay separated even
// when the markup carries no whitespace between them.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String())
}
