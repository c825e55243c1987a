package proxy

import (
	"regexp"
	"sort"
	"strings"

	"github.com/k3a/html2text"

	"github.com/mailwarden/mailwarden/internal/message"
)

// urlPattern matches http(s) URLs while excluding characters that are never
// part of one or that delimit surrounding prose.
var urlPattern = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]'()]+")

// Characters valid in URLs that usually are trailing prose punctuation.
const trailingPunctuation = ".,;:!?*"

// ExtractURLs scans all text parts of a message plus its subject for URLs,
// trims trailing punctuation and deduplicates. HTML parts are converted to
// text first so markup does not split or hide URLs. Extraction is
// heuristic; occasional false positives are handled downstream by per-URL
// error isolation.
func ExtractURLs(m *message.Mail) []string {
	seen := make(map[string]struct{})
	scan := func(text string) {
		for _, u := range urlPattern.FindAllString(text, -1) {
			u = strings.TrimRight(u, trailingPunctuation)
			if u != "" {
				seen[u] = struct{}{}
			}
		}
	}

	for _, part := range m.Parts {
		text := part.Text
		if part.MediaType == "text/html" {
			text = html2text.HTML2Text(text)
		}
		scan(text)
	}
	scan(m.Subject)

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
