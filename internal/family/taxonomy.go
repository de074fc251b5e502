package family

import "strings"

// Category is the closed incident-category enumeration. One value per
// family; combined with Theater it determines the grouping key.
type Category string

const (
	CategoryConflict   Category = "Conflict"   // Armed hostilities, strikes, troop movements
	CategoryDiplomacy  Category = "Diplomacy"  // Negotiations, summits, treaties, sanctions
	CategoryEconomy    Category = "Economy"    // Markets, trade, macro policy
	CategoryPolitics   Category = "Politics"   // Elections, leadership, domestic power shifts
	CategorySecurity   Category = "Security"   // Terrorism, policing, intelligence
	CategoryCyber      Category = "Cyber"      // Intrusions, outages, information operations
	CategoryEnergy     Category = "Energy"     // Oil, gas, grids, nuclear power
	CategoryDisaster   Category = "Disaster"   // Natural disasters, industrial accidents
	CategoryTechnology Category = "Technology" // Strategic tech, space, AI policy
	CategoryHealth     Category = "Health"     // Epidemics, public-health emergencies
)

var categories = []Category{
	CategoryConflict, CategoryDiplomacy, CategoryEconomy, CategoryPolitics,
	CategorySecurity, CategoryCyber, CategoryEnergy, CategoryDisaster,
	CategoryTechnology, CategoryHealth,
}

// Categories returns the closed category set.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory matches a classifier-returned string against the closed
// enumeration, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, true
		}
	}
	return "", false
}

// Theater is the closed theater/locale enumeration.
type Theater string

const (
	TheaterUkraine      Theater = "UKRAINE"
	TheaterMiddleEast   Theater = "MIDDLE_EAST"
	TheaterTaiwanStrait Theater = "TAIWAN_STRAIT"
	TheaterKorea        Theater = "KOREAN_PENINSULA"
	TheaterEurope       Theater = "EUROPE"
	TheaterAmericas     Theater = "AMERICAS"
	TheaterAsiaPacific  Theater = "ASIA_PACIFIC"
	TheaterAfrica       Theater = "AFRICA"
	TheaterCyberspace   Theater = "CYBERSPACE"
	TheaterGlobal       Theater = "GLOBAL"
)

var theaters = []Theater{
	TheaterUkraine, TheaterMiddleEast, TheaterTaiwanStrait, TheaterKorea,
	TheaterEurope, TheaterAmericas, TheaterAsiaPacific, TheaterAfrica,
	TheaterCyberspace, TheaterGlobal,
}

// Theaters returns the closed theater set.
func Theaters() []Theater {
	out := make([]Theater, len(theaters))
	copy(out, theaters)
	return out
}

// ParseTheater matches a classifier-returned string against the closed
// enumeration. Spaces and hyphens are folded to underscores first.
func ParseTheater(s string) (Theater, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, t := range theaters {
		if string(t) == norm {
			return t, true
		}
	}
	return "", false
}

// CompatibleTheaters reports whether two theaters can plausibly cover the
// same story. Equal theaters always qualify; GLOBAL is compatible with
// everything, because wide stories get classified both ways.
func CompatibleTheaters(a, b Theater) bool {
	if a == b {
		return true
	}
	return a == TheaterGlobal || b == TheaterGlobal
}
