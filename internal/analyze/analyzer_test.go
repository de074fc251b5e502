package analyze

import (
	"context"
	"strings"
	"testing"

	"github.com/abelbrown/storyline/internal/brain"
	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/cluster"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/report"
)

// themedProvider answers analysis prompts from canned JSON keyed on a
// title substring, and fails prompts matching failOn.
type themedProvider struct {
	byTitle map[string]string
	failOn  string
}

func (p *themedProvider) Name() string    { return "themed" }
func (p *themedProvider) Available() bool { return true }
func (p *themedProvider) Generate(ctx context.Context, req brain.Request) (brain.Response, error) {
	if p.failOn != "" && strings.Contains(req.UserPrompt, p.failOn) {
		return brain.Response{Content: "not json at all"}, nil
	}
	for substr, resp := range p.byTitle {
		if strings.Contains(req.UserPrompt, substr) {
			return brain.Response{Content: resp}, nil
		}
	}
	return brain.Response{}, context.Canceled
}

const shellsAnalysis = `{
	"title": "Border shelling",
	"summary": "Two days of artillery exchanges.",
	"anchor": "Artillery exchange across the border",
	"actors": ["Country A"],
	"category": "Conflict",
	"theater": "UKRAINE",
	"timeline": [{"date":"2026-03-01","headline":"Shelling begins"}]
}`

func testAnalyzer(p brain.Provider) *Analyzer {
	m := brain.NewManager()
	m.AddProvider(p)
	cfg := config.PipelineConfig{Fanout: 2, CallTimeoutSec: 5, CallsPerMinute: 6000}
	return NewAnalyzer(classify.NewClient(m, cfg), cfg, report.NewBoard())
}

func testCluster(theme string, titles ...string) cluster.Cluster {
	c := cluster.Cluster{Theme: theme}
	for i, title := range titles {
		c.Records = append(c.Records, family.Record{ID: string(rune('a' + i)), Text: title, Relevant: true})
	}
	return c
}

func TestRunAnalyzesClusters(t *testing.T) {
	p := &themedProvider{byTitle: map[string]string{"shelling": shellsAnalysis}}
	a := testAnalyzer(p)

	outcomes, counters, err := a.Run(context.Background(), []cluster.Cluster{
		testCluster("border", "Ukraine shelling reported at border", "More shelling overnight", "Third day of shelling"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	got := outcomes[0].Analysis
	if got.Category != family.CategoryConflict || got.Theater != family.TheaterUkraine {
		t.Errorf("category/theater = %s/%s", got.Category, got.Theater)
	}
	if counters.FailedCalls != 0 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestRunSkipsDirtyResponse(t *testing.T) {
	p := &themedProvider{
		byTitle: map[string]string{"shelling": shellsAnalysis},
		failOn:  "budget",
	}
	a := testAnalyzer(p)

	outcomes, counters, err := a.Run(context.Background(), []cluster.Cluster{
		testCluster("border", "Shelling at the border continues", "Overnight shelling reported", "Shelling enters third day"),
		testCluster("budget", "Parliament budget debate opens", "Budget vote scheduled", "Budget amendments filed"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Cluster.Theme != "border" {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
	if counters.FailedCalls != 1 || counters.Orphaned != 3 {
		t.Errorf("counters = %+v", counters)
	}
}

func TestTheaterHintFromActors(t *testing.T) {
	c := testCluster("strait", "Taiwan reports incursions near the strait", "Taiwan scrambles jets again", "China drills continue near Taiwan")
	if hint := theaterHint(c); hint != family.TheaterTaiwanStrait {
		t.Errorf("hint = %s, want %s", hint, family.TheaterTaiwanStrait)
	}

	none := testCluster("plain", "Quarterly figures released", "Results announced")
	if hint := theaterHint(none); hint != "" {
		t.Errorf("hint = %s, want empty", hint)
	}
}
