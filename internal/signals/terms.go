package signals

import (
	"sort"
	"strings"
)

// stopwords excluded from salient-term extraction.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "of": true, "for": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "has": true, "have": true,
	"had": true, "will": true, "would": true, "could": true, "should": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"after": true, "over": true, "into": true, "about": true, "amid": true,
	"says": true, "say": true, "said": true, "new": true, "more": true,
	"not": true, "no": true, "up": true, "down": true, "out": true, "off": true,
}

// SalientTerms returns the n most frequent non-stopword terms shared across
// the given texts, most frequent first. Used to derive a cluster's working
// theme before per-member validation.
func SalientTerms(texts []string, n int) []string {
	counts := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, w := range tokenize(text) {
			if len(w) < 3 || stopwords[w] {
				continue
			}
			// Count each term once per text so one wordy title can't
			// dominate the theme.
			if !seen[w] {
				seen[w] = true
				counts[w]++
			}
		}
	}

	type termCount struct {
		term  string
		count int
	}
	var ranked []termCount
	for term, count := range counts {
		ranked = append(ranked, termCount{term, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].term < ranked[j].term
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, tc := range ranked[:n] {
		out = append(out, tc.term)
	}
	return out
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, text)
	return strings.Fields(text)
}

// Jaccard computes set overlap between two string slices (case-folded).
func Jaccard(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[strings.ToLower(s)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[strings.ToLower(s)] = true
	}

	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
