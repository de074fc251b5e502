package classify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/storyline/internal/brain"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/family"
)

type cannedProvider struct {
	content string
	err     error
	lastReq brain.Request
}

func (p *cannedProvider) Name() string    { return "canned" }
func (p *cannedProvider) Available() bool { return true }
func (p *cannedProvider) Generate(ctx context.Context, req brain.Request) (brain.Response, error) {
	p.lastReq = req
	if p.err != nil {
		return brain.Response{}, p.err
	}
	return brain.Response{Content: p.content, Model: "canned"}, nil
}

func testClient(p brain.Provider) *Client {
	m := brain.NewManager()
	m.AddProvider(p)
	return NewClient(m, config.PipelineConfig{
		CallsPerMinute: 600,
		Fanout:         5,
		CallTimeoutSec: 5,
	})
}

func testRecords(ids ...string) []family.Record {
	now := time.Now()
	out := make([]family.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, family.Record{ID: id, Text: "title " + id, Relevant: true, Published: now})
	}
	return out
}

func TestProposeClusters(t *testing.T) {
	p := &cannedProvider{content: `{"clusters":[{"record_ids":["a","b"],"theme":"strikes"},{"record_ids":["c"],"theme":"talks"}]}`}
	c := testClient(p)

	clusters, err := c.ProposeClusters(context.Background(), testRecords("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("ProposeClusters: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
	if len(clusters[0].RecordIDs) != 2 || clusters[0].Theme != "strikes" {
		t.Errorf("unexpected first cluster: %+v", clusters[0])
	}
}

func TestProposeClustersFencedResponse(t *testing.T) {
	p := &cannedProvider{content: "Here you go:\n```json\n{\"clusters\":[{\"record_ids\":[\"a\"],\"theme\":\"x\"}]}\n```"}
	c := testClient(p)

	clusters, err := c.ProposeClusters(context.Background(), testRecords("a"))
	if err != nil {
		t.Fatalf("ProposeClusters: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
}

func TestProposeClustersRejectsInventedID(t *testing.T) {
	p := &cannedProvider{content: `{"clusters":[{"record_ids":["a","ghost"],"theme":"x"}]}`}
	c := testClient(p)

	if _, err := c.ProposeClusters(context.Background(), testRecords("a")); err == nil {
		t.Fatal("expected error for invented record id")
	}
}

func TestProposeClustersRejectsDoubleAssignment(t *testing.T) {
	p := &cannedProvider{content: `{"clusters":[{"record_ids":["a"],"theme":"x"},{"record_ids":["a"],"theme":"y"}]}`}
	c := testClient(p)

	if _, err := c.ProposeClusters(context.Background(), testRecords("a", "b")); err == nil {
		t.Fatal("expected error for record in two clusters")
	}
}

func TestCheckFit(t *testing.T) {
	tests := []struct {
		content string
		want    bool
		wantErr bool
	}{
		{"yes", true, false},
		{"Yes.", true, false},
		{"NO", false, false},
		{"no, different incident", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		p := &cannedProvider{content: tt.content}
		c := testClient(p)
		got, err := c.CheckFit(context.Background(), "theme", "title")
		if tt.wantErr {
			if err == nil {
				t.Errorf("CheckFit(%q): expected error", tt.content)
			}
			continue
		}
		if err != nil {
			t.Errorf("CheckFit(%q): %v", tt.content, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CheckFit(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestAnalyzeCluster(t *testing.T) {
	p := &cannedProvider{content: `{
		"title": "Border shelling escalates",
		"summary": "Cross-border exchanges intensified over two days.",
		"anchor": "Artillery exchange across the northern border on March 3",
		"actors": ["Country A", "Country B"],
		"category": "Conflict",
		"theater": "MIDDLE_EAST",
		"timeline": [{"date":"2026-03-03","headline":"Shelling reported"}]
	}`}
	c := testClient(p)

	a, err := c.AnalyzeCluster(context.Background(), testRecords("a", "b"), family.TheaterMiddleEast)
	if err != nil {
		t.Fatalf("AnalyzeCluster: %v", err)
	}
	if a.Category != family.CategoryConflict || a.Theater != family.TheaterMiddleEast {
		t.Errorf("category/theater = %s/%s", a.Category, a.Theater)
	}
	if len(a.Timeline) != 1 || a.Timeline[0].Headline != "Shelling reported" {
		t.Errorf("unexpected timeline: %+v", a.Timeline)
	}
	if !strings.Contains(p.lastReq.UserPrompt, "MIDDLE_EAST") {
		t.Error("theater hint missing from prompt")
	}
}

func TestAnalyzeClusterRejectsUnknownTaxonomy(t *testing.T) {
	p := &cannedProvider{content: `{"title":"t","anchor":"a","category":"Sports","theater":"MIDDLE_EAST"}`}
	c := testClient(p)

	if _, err := c.AnalyzeCluster(context.Background(), testRecords("a"), ""); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestCompareAnchors(t *testing.T) {
	p := &cannedProvider{content: `{"same_incident": true, "rationale": "same strike, same day"}`}
	c := testClient(p)

	fa := family.New("A", "", "anchor a", nil, family.CategoryConflict, family.TheaterUkraine)
	fb := family.New("B", "", "anchor b", nil, family.CategoryConflict, family.TheaterUkraine)
	v, err := c.CompareAnchors(context.Background(), *fa, *fb)
	if err != nil {
		t.Fatalf("CompareAnchors: %v", err)
	}
	if !v.SameIncident || v.Rationale == "" {
		t.Errorf("unexpected verdict: %+v", v)
	}
}

func TestProposeSplit(t *testing.T) {
	p := &cannedProvider{content: `{"split": true, "parts": [
		{"title":"Strikes","anchor":"strike anchor","record_ids":["a","b"]},
		{"title":"Talks","anchor":"talks anchor","record_ids":["c"]}
	]}`}
	c := testClient(p)

	fam := family.New("Mixed", "", "mixed anchor", nil, family.CategoryConflict, family.TheaterUkraine)
	v, leftover, err := c.ProposeSplit(context.Background(), *fam, testRecords("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("ProposeSplit: %v", err)
	}
	if !v.Split || len(v.Parts) != 2 {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if len(leftover) != 1 || leftover[0] != "d" {
		t.Errorf("leftover = %v, want [d]", leftover)
	}
}

func TestProposeSplitDeclines(t *testing.T) {
	p := &cannedProvider{content: `{"split": false, "parts": []}`}
	c := testClient(p)

	fam := family.New("Single", "", "one anchor", nil, family.CategoryConflict, family.TheaterUkraine)
	v, leftover, err := c.ProposeSplit(context.Background(), *fam, testRecords("a"))
	if err != nil {
		t.Fatalf("ProposeSplit: %v", err)
	}
	if v.Split || leftover != nil {
		t.Errorf("expected no split, got %+v leftover %v", v, leftover)
	}
}

func TestProposeSplitRejectsOverlap(t *testing.T) {
	p := &cannedProvider{content: `{"split": true, "parts": [
		{"title":"X","anchor":"x","record_ids":["a"]},
		{"title":"Y","anchor":"y","record_ids":["a"]}
	]}`}
	c := testClient(p)

	fam := family.New("Mixed", "", "mixed anchor", nil, family.CategoryConflict, family.TheaterUkraine)
	if _, _, err := c.ProposeSplit(context.Background(), *fam, testRecords("a", "b")); err == nil {
		t.Fatal("expected error for overlapping parts")
	}
}
