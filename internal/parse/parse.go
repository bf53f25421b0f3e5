// Package parse extracts book fields from a product page. Every field has
// an ordered list of fallback extraction patterns; the first match wins
// and a field with no match stays empty.
package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Product holds the fields scraped from one page. RankRaw keeps the rank
// exactly as printed, thousands separators included.
type Product struct {
	Title    string
	Author   string
	CoverURL string
	RankRaw  string

	detailText   string
	subtitleText string
}

var stripPolicy = bluemonday.StrictPolicy()

// StripTags removes any markup from a scraped fragment and normalizes
// whitespace.
func StripTags(raw string) string {
	return normalizeWhitespace(stripPolicy.Sanitize(raw))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ProductPage parses a fetched page body.
func ProductPage(body []byte) (*Product, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	p := &Product{
		Title:    extractTitle(doc),
		Author:   extractAuthor(doc),
		CoverURL: extractCover(doc),
	}
	p.detailText = extractDetailText(doc)
	p.subtitleText = StripTags(doc.Find("#productSubtitle, #productBinding, #title span.a-size-medium").Text())
	p.RankRaw = extractRank(doc, p.detailText)

	return p, nil
}

var titleSelectors = []string{
	"#productTitle",
	"span#title",
	"h1#title span",
	"h1.product-title",
}

func extractTitle(doc *goquery.Document) string {
	for _, sel := range titleSelectors {
		if text := StripTags(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	if content, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if text := StripTags(content); text != "" {
			return text
		}
	}
	return ""
}

var authorSelectors = []string{
	"#bylineInfo span.author a",
	"#bylineInfo a.contributorNameID",
	"#bylineInfo .contribution a",
	".author a.a-link-normal",
	"a#bylineInfo",
}

var authorBylinePattern = regexp.MustCompile(`(?i)\bby\s+<a[^>]*>([^<]+)</a>`)

func extractAuthor(doc *goquery.Document) string {
	for _, sel := range authorSelectors {
		if text := StripTags(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	if html, err := doc.Html(); err == nil {
		if m := authorBylinePattern.FindStringSubmatch(html); m != nil {
			if text := StripTags(m[1]); text != "" {
				return text
			}
		}
	}
	return ""
}

var coverSelectors = []string{
	"#landingImage",
	"#imgBlkFront",
	"#ebooksImgBlkFront",
	"#main-image",
}

// extractCover prefers the dynamic-image attribute, a JSON map from image
// URL to [width, height], picking the largest candidate. Plain src and
// og:image are fallbacks.
func extractCover(doc *goquery.Document) string {
	for _, sel := range coverSelectors {
		img := doc.Find(sel).First()
		if img.Length() == 0 {
			continue
		}
		if dynamic, ok := img.Attr("data-a-dynamic-image"); ok {
			if url := largestDynamicImage(dynamic); url != "" {
				return url
			}
		}
		if src, ok := img.Attr("src"); ok && src != "" {
			return src
		}
	}
	if content, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && content != "" {
		return content
	}
	return ""
}

func largestDynamicImage(attr string) string {
	var candidates map[string][]float64
	if err := json.Unmarshal([]byte(attr), &candidates); err != nil {
		return ""
	}
	best := ""
	bestArea := 0.0
	for url, dims := range candidates {
		if len(dims) < 2 {
			continue
		}
		area := dims[0] * dims[1]
		if area > bestArea || (area == bestArea && url < best) {
			best = url
			bestArea = area
		}
	}
	return best
}

var detailSelectors = []string{
	"#detailBulletsWrapper_feature_div",
	"#detailBullets_feature_div",
	"#productDetailsTable",
	"#prodDetails",
	"#SalesRank",
}

func extractDetailText(doc *goquery.Document) string {
	var parts []string
	for _, sel := range detailSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := normalizeWhitespace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
	}
	return strings.Join(parts, " ")
}

var rankPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Best\s*Sellers?\s*Rank[^#]*#\s*([\d,]+)\s+in\s+Books`),
	regexp.MustCompile(`(?i)#\s*([\d,]+)\s+in\s+Books`),
	regexp.MustCompile(`(?i)Best\s*Sellers?\s*Rank[^#]*#\s*([\d,]+)`),
}

// extractRank tries the detail sections first, then the whole page text.
func extractRank(doc *goquery.Document, detailText string) string {
	for _, re := range rankPatterns {
		if m := re.FindStringSubmatch(detailText); m != nil {
			return m[1]
		}
	}
	pageText := normalizeWhitespace(doc.Text())
	for _, re := range rankPatterns {
		if m := re.FindStringSubmatch(pageText); m != nil {
			return m[1]
		}
	}
	return ""
}
