// Package content derives slugs and reading metadata from article bodies.
package content

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const wordsPerMinute = 200

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`) //nolint:gochecknoglobals // compiled once
	hyphenRuns   = regexp.MustCompile(`-+`)          //nolint:gochecknoglobals // compiled once
)

// Slugify turns a title into a lower-case ASCII slug, e.g.
// "Café Nutrition: 5 Tips" becomes "cafe-nutrition-5-tips".
func Slugify(title string) string {
	ascii := removeDiacritics(title)
	lower := strings.ToLower(strings.TrimSpace(ascii))
	hyphenated := strings.Join(strings.Fields(lower), "-")
	cleaned := nonSlugChars.ReplaceAllString(hyphenated, "")
	return strings.Trim(hyphenRuns.ReplaceAllString(cleaned, "-"), "-")
}

func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// PlainText returns the visible text of an HTML body with whitespace
// collapsed. Plain-text bodies pass through unchanged apart from spacing.
func PlainText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.Join(strings.Fields(body), " ")
	}
	doc.Find("script, style").Remove()
	var parts []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		if txt := strings.TrimSpace(s.Text()); txt != "" {
			parts = append(parts, txt)
		}
	})
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// WordCount counts words in the visible text of body.
func WordCount(body string) int {
	return len(strings.Fields(PlainText(body)))
}

// ReadingMinutes estimates reading time at 200 words per minute, rounding up.
// Non-empty bodies take at least one minute.
func ReadingMinutes(body string) int {
	words := WordCount(body)
	if words == 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}
