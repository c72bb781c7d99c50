package twitter

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// timestampLayout is the created_at format used by every timeline variant.
const timestampLayout = "Mon Jan 02 15:04:05 +0000 2006"

const shortLinkPrefix = "https://t.co"

// parseTimestamp parses a created_at value into a UTC instant.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, s)
	}
	return t.UTC(), nil
}

// expandURLs replaces every occurrence of each shortened URL with its
// expanded form. Tokens not listed in urls are left as they are.
func expandURLs(text string, urls []rawURL) string {
	for _, u := range urls {
		if u.URL == "" || u.ExpandedURL == "" {
			continue
		}
		text = strings.ReplaceAll(text, u.URL, u.ExpandedURL)
	}
	return text
}

// stripMediaLink drops the trailing t.co token the service appends to
// posts with attached media.
func stripMediaLink(text string) string {
	parts := strings.Split(text, " ")
	if strings.HasPrefix(parts[len(parts)-1], shortLinkPrefix) {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}

// stripHTML returns the text content of an HTML fragment such as the
// anchor in a post's source field.
func stripHTML(s string) string {
	if s == "" || !strings.Contains(s, "<") {
		return s
	}
	s = strings.ReplaceAll(s, `\/`, "/")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// largeProfileImage swaps the 48px avatar variant for the 400px one.
func largeProfileImage(u string) string {
	return strings.Replace(u, "_normal", "_400x400", 1)
}
