package merge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/storyline/internal/brain"
	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/store"
)

// fitProvider answers yes when the prompt mentions a confirmed anchor.
type fitProvider struct {
	yesOn string
}

func (p *fitProvider) Name() string    { return "fit" }
func (p *fitProvider) Available() bool { return true }
func (p *fitProvider) Generate(ctx context.Context, req brain.Request) (brain.Response, error) {
	if p.yesOn != "" && strings.Contains(req.UserPrompt, p.yesOn) {
		return brain.Response{Content: "yes"}, nil
	}
	return brain.Response{Content: "no"}, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func saveTestRecords(t *testing.T, st *store.Store, fetched time.Time, ids ...string) {
	t.Helper()
	records := make([]family.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, family.Record{
			ID: id, Text: "record " + id, Relevant: true,
			Published: fetched, Fetched: fetched,
		})
	}
	if _, err := st.SaveRecords(records); err != nil {
		t.Fatalf("save records: %v", err)
	}
}

func testAnalysis(title string, cat family.Category, th family.Theater) classify.Analysis {
	return classify.Analysis{
		Title:    title,
		Summary:  "summary of " + title,
		Anchor:   "anchor of " + title,
		Actors:   []string{"Country A"},
		Category: cat,
		Theater:  th,
		Timeline: []family.TimelineEntry{{At: time.Now().Add(-time.Hour), Headline: title}},
	}
}

func TestApplyCreatesSeed(t *testing.T) {
	st := openTestStore(t)
	e := NewEngine(st, report.NewBoard())
	saveTestRecords(t, st, time.Now(), "m1", "m2", "m3")

	a := testAnalysis("Border shelling", family.CategoryConflict, family.TheaterUkraine)
	counters, err := e.Apply(context.Background(), a, []string{"m1", "m2", "m3"}, "")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if counters.Created != 1 || counters.Absorbed != 3 {
		t.Errorf("counters = %+v", counters)
	}

	key := family.DeriveKey(family.CategoryConflict, family.TheaterUkraine)
	f, err := st.LiveFamilyByKey(key, "")
	if err != nil {
		t.Fatalf("LiveFamilyByKey: %v", err)
	}
	if f.Status != family.StatusSeed || len(f.Members) != 3 {
		t.Errorf("family = %+v", f)
	}

	counts, err := st.RecordCounts()
	if err != nil {
		t.Fatal(err)
	}
	if counts[family.RecordAssigned] != 3 {
		t.Errorf("assigned = %d, want 3", counts[family.RecordAssigned])
	}
}

func TestApplyAbsorbsIntoSameKey(t *testing.T) {
	st := openTestStore(t)
	e := NewEngine(st, report.NewBoard())
	saveTestRecords(t, st, time.Now(), "m1", "m2", "m3", "m4", "m5")

	first := testAnalysis("Strikes begin", family.CategoryConflict, family.TheaterMiddleEast)
	if _, err := e.Apply(context.Background(), first, []string{"m1", "m2", "m3"}, ""); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	second := testAnalysis("Strikes continue", family.CategoryConflict, family.TheaterMiddleEast)
	counters, err := e.Apply(context.Background(), second, []string{"m3", "m4", "m5"}, "")
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if counters.Created != 0 || counters.Absorbed != 3 {
		t.Errorf("counters = %+v", counters)
	}

	key := family.DeriveKey(family.CategoryConflict, family.TheaterMiddleEast)
	f, err := st.LiveFamilyByKey(key, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Members) != 5 {
		t.Errorf("member union = %d, want 5 (m3 absorbed once)", len(f.Members))
	}
	if f.Title != "Strikes begin" {
		t.Errorf("absorption replaced the canonical title: %q", f.Title)
	}
}

func TestApplySiblingExclusionCreatesAlongsideSibling(t *testing.T) {
	st := openTestStore(t)
	e := NewEngine(st, report.NewBoard())
	saveTestRecords(t, st, time.Now(), "m1")

	sibling := family.New("first child", "", "anchor", nil, family.CategoryConflict, family.TheaterUkraine)
	sibling.ParentID = "parent-1"
	if err := st.InsertFamily(sibling); err != nil {
		t.Fatal(err)
	}

	// Same key, same parent: must open a second child, not fold into the
	// sibling the splitter just separated.
	a := testAnalysis("second child", family.CategoryConflict, family.TheaterUkraine)
	counters, err := e.Apply(context.Background(), a, []string{"m1"}, "parent-1")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if counters.Created != 1 {
		t.Errorf("counters = %+v", counters)
	}

	live, err := st.LiveFamilies()
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 2 {
		t.Errorf("live families = %d, want 2 siblings sharing the key", len(live))
	}
}

func TestAssignerPlacesOrphan(t *testing.T) {
	st := openTestStore(t)
	cfg := config.PipelineConfig{
		MaxOrphansPerCycle: 10,
		ClusterIntervalSec: 300,
		CallTimeoutSec:     5,
		CallsPerMinute:     6000,
		Fanout:             2,
	}
	m := brain.NewManager()
	m.AddProvider(&fitProvider{yesOn: "port strike"})
	a := NewAssigner(st, classify.NewClient(m, cfg), cfg, report.NewBoard())

	f := family.New("Port strike", "", "port strike halting container traffic", nil, family.CategoryEconomy, family.TheaterEurope)
	if err := st.InsertFamily(f); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-time.Hour)
	if _, err := st.SaveRecords([]family.Record{
		{ID: "o1", Text: "Union extends dock walkout over pay", Relevant: true, Published: old, Fetched: old},
	}); err != nil {
		t.Fatal(err)
	}

	counters, err := a.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if counters.Assigned != 1 {
		t.Errorf("counters = %+v", counters)
	}

	got, err := st.FamilyByID(f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasMember("o1") {
		t.Error("orphan not in family member set")
	}
}

func TestAssignerLeavesUnmatchedOrphan(t *testing.T) {
	st := openTestStore(t)
	cfg := config.PipelineConfig{
		MaxOrphansPerCycle: 10,
		ClusterIntervalSec: 300,
		CallTimeoutSec:     5,
		CallsPerMinute:     6000,
		Fanout:             2,
	}
	m := brain.NewManager()
	m.AddProvider(&fitProvider{}) // always answers no
	a := NewAssigner(st, classify.NewClient(m, cfg), cfg, report.NewBoard())

	f := family.New("Port strike", "", "port strike halting container traffic", nil, family.CategoryEconomy, family.TheaterEurope)
	if err := st.InsertFamily(f); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-time.Hour)
	if _, err := st.SaveRecords([]family.Record{
		{ID: "o1", Text: "Unrelated festival opens downtown", Relevant: true, Published: old, Fetched: old},
	}); err != nil {
		t.Fatal(err)
	}

	counters, err := a.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if counters.Assigned != 0 {
		t.Errorf("counters = %+v", counters)
	}

	pool, err := st.OrphanPool(10, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(pool) != 1 {
		t.Errorf("orphan left pool without assignment: %d remaining", len(pool))
	}
}

// Two clusters resolving to the same key at the same time must end up
// as one family owning the union; the uniqueness index catches the
// losing insert and its Apply re-runs as a merge.
func TestApplyConcurrentSameKey(t *testing.T) {
	st := openTestStore(t)
	e := NewEngine(st, report.NewBoard())
	saveTestRecords(t, st, time.Now(), "x1", "x2", "x3", "y1", "y2", "y3")

	a := testAnalysis("First read", family.CategoryDiplomacy, family.TheaterUkraine)
	b := testAnalysis("Second read", family.CategoryDiplomacy, family.TheaterUkraine)

	done := make(chan error, 2)
	go func() {
		_, err := e.Apply(context.Background(), a, []string{"x1", "x2", "x3"}, "")
		done <- err
	}()
	go func() {
		_, err := e.Apply(context.Background(), b, []string{"y1", "y2", "y3"}, "")
		done <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent Apply: %v", err)
		}
	}

	live, err := st.LiveFamilies()
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 {
		t.Fatalf("live families = %d, want 1", len(live))
	}
	if len(live[0].Members) != 6 {
		t.Errorf("union owns %d records, want 6", len(live[0].Members))
	}
}
