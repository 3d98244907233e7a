package news

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const summaryMaxRunes = 200

// stripHTML drops markup and decodes entities.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

func truncateSummary(s string) string {
	r := []rune(s)
	if len(r) <= summaryMaxRunes {
		return s
	}
	return string(r[:summaryMaxRunes]) + "..."
}

func matchesKeyword(title, summary string, keywords []string) bool {
	content := strings.ToLower(title + " " + summary)
	for _, k := range keywords {
		if k != "" && strings.Contains(content, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
}

// parsePubDate falls back to now for missing or unknown formats.
func parsePubDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return now
}

// dedupe keeps the first occurrence of each string, in order.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
