// Package signals provides cheap, no-LLM text signals used to pre-partition
// batches before the external classification call: actor extraction from a
// fixed lexicon, theater hints, SimHash title similarity, and salient-term
// extraction for working themes.
//
// These run instantly on every record. They propose structure; the
// classification service confirms it.
package signals

import (
	"sort"
	"strings"

	"github.com/abelbrown/storyline/internal/family"
)

// actorNames maps lowercase mentions to canonical actor names.
var actorNames = map[string]string{
	// Major powers
	"united states": "United States", "usa": "United States", "us": "United States",
	"u.s.": "United States", "america": "United States", "american": "United States",
	"washington": "United States", "pentagon": "United States", "white house": "United States",
	"china": "China", "chinese": "China", "prc": "China", "beijing": "China",
	"russia": "Russia", "russian": "Russia", "moscow": "Russia", "kremlin": "Russia",
	"united kingdom": "United Kingdom", "uk": "United Kingdom", "britain": "United Kingdom", "british": "United Kingdom",
	"germany": "Germany", "german": "Germany", "berlin": "Germany",
	"france": "France", "french": "France", "paris": "France",
	"japan": "Japan", "japanese": "Japan", "tokyo": "Japan",
	"india": "India", "indian": "India", "new delhi": "India",

	// Conflict zones / high news frequency
	"ukraine": "Ukraine", "ukrainian": "Ukraine", "kyiv": "Ukraine", "kiev": "Ukraine",
	"israel": "Israel", "israeli": "Israel", "tel aviv": "Israel", "jerusalem": "Israel",
	"palestine": "Palestine", "palestinian": "Palestine", "gaza": "Palestine", "west bank": "Palestine",
	"iran": "Iran", "iranian": "Iran", "tehran": "Iran",
	"north korea": "North Korea", "dprk": "North Korea", "pyongyang": "North Korea",
	"south korea": "South Korea", "seoul": "South Korea",
	"taiwan": "Taiwan", "taiwanese": "Taiwan", "taipei": "Taiwan",
	"syria": "Syria", "syrian": "Syria", "damascus": "Syria",
	"lebanon": "Lebanon", "lebanese": "Lebanon", "hezbollah": "Hezbollah",
	"yemen": "Yemen", "houthi": "Houthis", "houthis": "Houthis",
	"afghanistan": "Afghanistan", "afghan": "Afghanistan", "kabul": "Afghanistan",
	"iraq": "Iraq", "iraqi": "Iraq", "baghdad": "Iraq",

	// Other significant actors
	"turkey": "Turkey", "turkish": "Turkey", "ankara": "Turkey",
	"saudi arabia": "Saudi Arabia", "saudi": "Saudi Arabia", "riyadh": "Saudi Arabia",
	"poland": "Poland", "polish": "Poland", "warsaw": "Poland",
	"canada": "Canada", "canadian": "Canada", "ottawa": "Canada",
	"mexico": "Mexico", "mexican": "Mexico",
	"brazil": "Brazil", "brazilian": "Brazil",
	"venezuela": "Venezuela", "venezuelan": "Venezuela", "caracas": "Venezuela",
	"egypt": "Egypt", "egyptian": "Egypt", "cairo": "Egypt",
	"nigeria": "Nigeria", "nigerian": "Nigeria",
	"indonesia": "Indonesia", "jakarta": "Indonesia",
	"philippines": "Philippines", "manila": "Philippines",
	"australia": "Australia", "australian": "Australia", "canberra": "Australia",

	// Blocs and institutions
	"european union": "European Union", "eu": "European Union", "brussels": "European Union",
	"nato": "NATO",
	"united nations": "United Nations", "un": "United Nations",
	"opec": "OPEC",
}

// ExtractActors finds canonical actor names mentioned in text.
func ExtractActors(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var result []string

	for mention, canonical := range actorNames {
		if containsWord(lower, mention) && !seen[canonical] {
			seen[canonical] = true
			result = append(result, canonical)
		}
	}

	sort.Strings(result)
	return result
}

// theaterHints maps canonical actors to the theater they most often imply.
var theaterHints = map[string]family.Theater{
	"Ukraine":      family.TheaterUkraine,
	"Russia":       family.TheaterUkraine,
	"Israel":       family.TheaterMiddleEast,
	"Palestine":    family.TheaterMiddleEast,
	"Iran":         family.TheaterMiddleEast,
	"Hezbollah":    family.TheaterMiddleEast,
	"Houthis":      family.TheaterMiddleEast,
	"Lebanon":      family.TheaterMiddleEast,
	"Syria":        family.TheaterMiddleEast,
	"Yemen":        family.TheaterMiddleEast,
	"Iraq":         family.TheaterMiddleEast,
	"Saudi Arabia": family.TheaterMiddleEast,
	"Taiwan":       family.TheaterTaiwanStrait,
	"North Korea":  family.TheaterKorea,
	"South Korea":  family.TheaterKorea,
	"China":        family.TheaterAsiaPacific,
	"Japan":        family.TheaterAsiaPacific,
	"Philippines":  family.TheaterAsiaPacific,
	"Indonesia":    family.TheaterAsiaPacific,
	"Australia":    family.TheaterAsiaPacific,
	"India":        family.TheaterAsiaPacific,

	"European Union": family.TheaterEurope,
	"Germany":        family.TheaterEurope,
	"France":         family.TheaterEurope,
	"United Kingdom": family.TheaterEurope,
	"Poland":         family.TheaterEurope,
	"Turkey":         family.TheaterEurope,

	"Mexico":    family.TheaterAmericas,
	"Canada":    family.TheaterAmericas,
	"Brazil":    family.TheaterAmericas,
	"Venezuela": family.TheaterAmericas,

	"Egypt":   family.TheaterAfrica,
	"Nigeria": family.TheaterAfrica,
}

// GuessTheater estimates a theater from extracted actors by majority vote.
// This is a hint fed into the incident-analysis prompt, never a substitute
// for the classification call's own answer.
func GuessTheater(actors []string) family.Theater {
	votes := make(map[family.Theater]int)
	for _, a := range actors {
		if th, ok := theaterHints[a]; ok {
			votes[th]++
		}
	}

	best := family.TheaterGlobal
	bestVotes := 0
	// Deterministic tie-break: iterate the closed set in order.
	for _, th := range family.Theaters() {
		if votes[th] > bestVotes {
			best = th
			bestVotes = votes[th]
		}
	}
	return best
}

// containsWord checks if text contains word as a whole word (not substring)
func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	if idx < 0 {
		return false
	}

	// Check left boundary
	if idx > 0 {
		prev := text[idx-1]
		if isAlphaNum(prev) {
			return containsWord(text[idx+len(word):], word)
		}
	}

	// Check right boundary
	end := idx + len(word)
	if end < len(text) {
		next := text[end]
		if isAlphaNum(next) {
			return containsWord(text[end:], word)
		}
	}

	return true
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
