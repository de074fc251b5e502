package signals

import "strings"

// Signature is a 64-bit feature bitmask of a title: one bit per word and
// per word bigram. Short texts set few bits, so similarity is scored as
// Jaccard over set bits rather than raw Hamming distance.
type Signature uint64

// TitleSignature computes the feature bitmask for a title.
func TitleSignature(text string) Signature {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			return r
		}
		return ' '
	}, text)

	words := strings.Fields(text)

	var sig uint64
	for i, w := range words {
		sig |= 1 << (djb2(w) % 64)
		if i+1 < len(words) {
			sig |= 1 << (djb2(w+" "+words[i+1]) % 64)
		}
	}
	return Signature(sig)
}

func djb2(s string) uint64 {
	var h uint64 = 5381
	for _, c := range s {
		h = ((h << 5) + h) + uint64(c)
	}
	return h
}

// SimilarityScore returns the Jaccard overlap of two signatures' set bits,
// 0.0 to 1.0.
func SimilarityScore(a, b Signature) float64 {
	inter := popcount(uint64(a) & uint64(b))
	union := popcount(uint64(a) | uint64(b))
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Similar reports whether two titles plausibly describe the same headline.
func Similar(a, b Signature) bool {
	return SimilarityScore(a, b) >= 0.5
}

func popcount(x uint64) int {
	n := 0
	for x != 0 {
		n++
		x &= x - 1
	}
	return n
}
