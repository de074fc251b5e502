package signals

import (
	"testing"

	"github.com/abelbrown/storyline/internal/family"
)

func TestExtractActors(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Russia strikes Kyiv overnight", []string{"Russia", "Ukraine"}},
		{"US and China trade tensions escalate", []string{"China", "United States"}},
		{"The Kremlin issued a statement", []string{"Russia"}},
		{"EU sanctions against Moscow", []string{"European Union", "Russia"}},
		{"No actors mentioned here", nil},
		{"Panamerican games open", nil}, // "america" must not match inside a word
	}

	for _, tt := range tests {
		result := ExtractActors(tt.input)
		if len(result) != len(tt.expected) {
			t.Errorf("ExtractActors(%q) = %v, want %v", tt.input, result, tt.expected)
			continue
		}
		for i, r := range result {
			if r != tt.expected[i] {
				t.Errorf("ExtractActors(%q)[%d] = %q, want %q", tt.input, i, r, tt.expected[i])
			}
		}
	}
}

func TestGuessTheater(t *testing.T) {
	tests := []struct {
		actors []string
		want   family.Theater
	}{
		{[]string{"Russia", "Ukraine"}, family.TheaterUkraine},
		{[]string{"Israel", "Hezbollah", "United States"}, family.TheaterMiddleEast},
		{[]string{"Taiwan"}, family.TheaterTaiwanStrait},
		{nil, family.TheaterGlobal},
		{[]string{"OPEC"}, family.TheaterGlobal}, // no hint -> global
	}

	for _, tt := range tests {
		if got := GuessTheater(tt.actors); got != tt.want {
			t.Errorf("GuessTheater(%v) = %s, want %s", tt.actors, got, tt.want)
		}
	}
}

func TestTitleSignatureSimilarity(t *testing.T) {
	a := TitleSignature("Russia launches missile strike on Kyiv energy grid")
	b := TitleSignature("Russia launches missile strikes on Kyiv energy grid")
	c := TitleSignature("Federal Reserve holds interest rates steady again")

	if !Similar(a, b) {
		t.Errorf("near-identical titles should be similar: %.2f", SimilarityScore(a, b))
	}
	if Similar(a, c) {
		t.Errorf("unrelated titles should not be similar: %.2f", SimilarityScore(a, c))
	}
	if SimilarityScore(a, a) != 1.0 {
		t.Error("self similarity should be 1.0")
	}
}

func TestSalientTerms(t *testing.T) {
	texts := []string{
		"Ceasefire talks resume in Cairo",
		"Cairo ceasefire negotiations enter second day",
		"Mediators push ceasefire deal in Cairo talks",
	}
	terms := SalientTerms(texts, 3)
	if len(terms) == 0 {
		t.Fatal("expected salient terms")
	}
	if terms[0] != "cairo" && terms[0] != "ceasefire" {
		t.Errorf("top term = %q, want cairo or ceasefire", terms[0])
	}
	for _, term := range terms {
		if stopwords[term] {
			t.Errorf("stopword %q leaked into salient terms", term)
		}
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{[]string{"x", "y"}, []string{"x", "y"}, 1.0},
		{[]string{"x", "y"}, []string{"y", "z"}, 1.0 / 3.0},
		{[]string{"x"}, []string{"y"}, 0},
		{nil, nil, 0},
		{[]string{"X"}, []string{"x"}, 1.0}, // case-folded
	}
	for _, tt := range tests {
		if got := Jaccard(tt.a, tt.b); got != tt.want {
			t.Errorf("Jaccard(%v, %v) = %.3f, want %.3f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGuessCategory(t *testing.T) {
	tests := []struct {
		text string
		want family.Category
	}{
		{"Missile strikes hit port city overnight", family.CategoryConflict},
		{"Summit talks resume after envoy visit", family.CategoryDiplomacy},
		{"Ransomware breach hits logistics firm", family.CategoryCyber},
		{"Earthquake flattens coastal towns", family.CategoryDisaster},
		{"Quarterly results announced", ""},
		{"Strike talks", ""}, // one conflict vote, one diplomacy vote: tie
	}
	for _, tt := range tests {
		if got := GuessCategory(tt.text); got != tt.want {
			t.Errorf("GuessCategory(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
