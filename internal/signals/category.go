package signals

import (
	"github.com/abelbrown/storyline/internal/family"
)

// categoryHints maps title keywords to the category they usually signal.
// Deliberately narrow: a keyword only appears here when it is strongly
// indicative, because a wrong category guess shrinks an orphan's
// candidate shortlist to the wrong families.
var categoryHints = map[string]family.Category{
	"strike": family.CategoryConflict, "strikes": family.CategoryConflict,
	"shelling": family.CategoryConflict, "missile": family.CategoryConflict,
	"missiles": family.CategoryConflict, "offensive": family.CategoryConflict,
	"troops": family.CategoryConflict, "airstrike": family.CategoryConflict,
	"ceasefire": family.CategoryConflict, "drone": family.CategoryConflict,

	"talks": family.CategoryDiplomacy, "summit": family.CategoryDiplomacy,
	"ambassador": family.CategoryDiplomacy, "treaty": family.CategoryDiplomacy,
	"negotiations": family.CategoryDiplomacy, "envoy": family.CategoryDiplomacy,

	"sanctions": family.CategoryEconomy, "tariff": family.CategoryEconomy,
	"tariffs": family.CategoryEconomy, "inflation": family.CategoryEconomy,
	"exports": family.CategoryEconomy, "gdp": family.CategoryEconomy,

	"election": family.CategoryPolitics, "parliament": family.CategoryPolitics,
	"coalition": family.CategoryPolitics, "referendum": family.CategoryPolitics,
	"impeachment": family.CategoryPolitics,

	"espionage": family.CategorySecurity, "counterterrorism": family.CategorySecurity,
	"spy": family.CategorySecurity, "arrest": family.CategorySecurity,

	"ransomware": family.CategoryCyber, "malware": family.CategoryCyber,
	"breach": family.CategoryCyber, "hackers": family.CategoryCyber,
	"cyberattack": family.CategoryCyber,

	"pipeline": family.CategoryEnergy, "opec": family.CategoryEnergy,
	"refinery": family.CategoryEnergy, "lng": family.CategoryEnergy,

	"earthquake": family.CategoryDisaster, "flood": family.CategoryDisaster,
	"wildfire": family.CategoryDisaster, "hurricane": family.CategoryDisaster,

	"semiconductor": family.CategoryTechnology, "chips": family.CategoryTechnology,
	"satellite": family.CategoryTechnology,

	"outbreak": family.CategoryHealth, "pandemic": family.CategoryHealth,
	"vaccine": family.CategoryHealth,
}

// GuessCategory votes a category from title keywords. Returns the empty
// category when no keyword matches or the vote ties; callers treat that
// as "no filter" rather than guessing.
func GuessCategory(text string) family.Category {
	votes := make(map[family.Category]int)
	for _, tok := range tokenize(text) {
		if cat, ok := categoryHints[tok]; ok {
			votes[cat]++
		}
	}
	if len(votes) == 0 {
		return ""
	}

	var best family.Category
	bestN := 0
	tied := false
	for _, cat := range family.Categories() {
		n := votes[cat]
		if n > bestN {
			best, bestN, tied = cat, n, false
		} else if n == bestN && n > 0 {
			tied = true
		}
	}
	if tied {
		return ""
	}
	return best
}
