package source

import "strings"

// SearchQuery derives a keyword query from a market question for the news and
// social APIs. The leading "Will " and trailing "?" carry no search value, and
// long questions are trimmed to their first five words.
func SearchQuery(question string) string {
	q := strings.TrimSpace(question)
	q = strings.TrimPrefix(q, "Will ")
	q = strings.TrimSuffix(q, "?")

	words := strings.Fields(q)
	if len(words) > 5 {
		words = words[:5]
	}
	return strings.Join(words, " ")
}
