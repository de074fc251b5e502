package coord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/storyline/internal/analyze"
	"github.com/abelbrown/storyline/internal/brain"
	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/cluster"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/merge"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/revise"
	"github.com/abelbrown/storyline/internal/store"
)

// pipelineProvider plays the classification service for a full cycle:
// it clusters every record in the batch together, confirms every fit,
// and returns one fixed analysis.
type pipelineProvider struct{}

func (p *pipelineProvider) Name() string    { return "pipeline" }
func (p *pipelineProvider) Available() bool { return true }
func (p *pipelineProvider) Generate(ctx context.Context, req brain.Request) (brain.Response, error) {
	switch {
	case strings.Contains(req.SystemPrompt, "group news titles"):
		var ids []string
		for _, line := range strings.Split(req.UserPrompt, "\n") {
			if idx := strings.Index(line, ": "); idx > 0 && !strings.HasPrefix(line, "Records") {
				ids = append(ids, line[:idx])
			}
		}
		out, _ := json.Marshal(map[string]any{
			"clusters": []map[string]any{{"record_ids": ids, "theme": "one story"}},
		})
		return brain.Response{Content: string(out)}, nil

	case strings.Contains(req.SystemPrompt, "one word: yes or no"):
		return brain.Response{Content: "yes"}, nil

	case strings.Contains(req.SystemPrompt, "analyze a cluster"):
		return brain.Response{Content: `{
			"title": "Convoy interdiction",
			"summary": "A convoy was stopped at the crossing.",
			"anchor": "Convoy interdiction at the northern crossing",
			"actors": ["Country A"],
			"category": "Security",
			"theater": "EUROPE",
			"timeline": []
		}`}, nil

	case strings.Contains(req.SystemPrompt, "compare two incident anchors"):
		return brain.Response{Content: `{"same_incident": false, "rationale": "distinct"}`}, nil

	default:
		return brain.Response{Content: `{"split": false, "parts": []}`}, nil
	}
}

func buildCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.PipelineConfig{
		BatchSize:          50,
		MinClusterSize:     3,
		SplitThreshold:     100,
		MaxPairsPerCycle:   10,
		MaxOrphansPerCycle: 10,
		Fanout:             2,
		CallTimeoutSec:     5,
		CallsPerMinute:     6000,
		ClusterIntervalSec: 300,
		AssignIntervalSec:  600,
		MergeIntervalSec:   900,
		SplitIntervalSec:   1800,
	}

	m := brain.NewManager()
	m.AddProvider(&pipelineProvider{})
	client := classify.NewClient(m, cfg)
	board := report.NewBoard()

	return New(
		cluster.NewEngine(st, client, cfg, board),
		analyze.NewAnalyzer(client, cfg, board),
		merge.NewEngine(st, board),
		merge.NewAssigner(st, client, cfg, board),
		revise.NewMerger(st, client, cfg, board),
		revise.NewSplitter(st, client, cfg, board),
		cfg, board,
	), st
}

func seedBatch(t *testing.T, st *store.Store, n int) {
	t.Helper()
	base := time.Now().Add(-2 * time.Hour)
	records := make([]family.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, family.Record{
			ID:        fmt.Sprintf("c%d", i),
			Text:      fmt.Sprintf("Convoy stopped at crossing, report %d", i),
			Relevant:  true,
			Published: base.Add(time.Duration(i) * time.Minute),
			Fetched:   base,
		})
	}
	if _, err := st.SaveRecords(records); err != nil {
		t.Fatal(err)
	}
}

func TestPipelineCycleCreatesFamily(t *testing.T) {
	c, st := buildCoordinator(t)
	seedBatch(t, st, 4)

	counters, err := c.PipelineCycle(context.Background())
	if err != nil {
		t.Fatalf("PipelineCycle: %v", err)
	}
	if counters.Created != 1 || counters.Clustered != 4 {
		t.Errorf("counters = %+v", counters)
	}

	live, err := st.LiveFamilies()
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 || len(live[0].Members) != 4 {
		t.Fatalf("unexpected live families: %+v", live)
	}
}

// A second batch resolving to the same key must be absorbed, not
// duplicated, and a later cycle must observe the earlier one's writes.
func TestPipelineCycleReadYourWrites(t *testing.T) {
	c, st := buildCoordinator(t)
	seedBatch(t, st, 3)

	if _, err := c.PipelineCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	// New records arrive after the first cycle.
	base := time.Now()
	more := []family.Record{
		{ID: "d1", Text: "Convoy standoff continues", Relevant: true, Published: base, Fetched: base},
		{ID: "d2", Text: "Crossing remains closed", Relevant: true, Published: base, Fetched: base},
		{ID: "d3", Text: "Convoy inspection under way", Relevant: true, Published: base, Fetched: base},
	}
	if _, err := st.SaveRecords(more); err != nil {
		t.Fatal(err)
	}

	counters, err := c.PipelineCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counters.Created != 0 || counters.Absorbed != 3 {
		t.Errorf("second cycle counters = %+v", counters)
	}

	live, err := st.LiveFamilies()
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 || len(live[0].Members) != 6 {
		t.Fatalf("expected one family owning 6 records, got %+v", live)
	}
}

// Every relevant record must be accounted for after a full run: owned by
// a family, recycled, or still waiting unassigned. None disappear.
func TestRunOnceNoSilentLoss(t *testing.T) {
	c, st := buildCoordinator(t)
	seedBatch(t, st, 5)

	if _, err := c.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	counts, err := st.RecordCounts()
	if err != nil {
		t.Fatal(err)
	}
	total := counts[family.RecordUnassigned] + counts[family.RecordAssigned] + counts[family.RecordRecycled]
	if total != 5 {
		t.Errorf("record states account for %d of 5: %+v", total, counts)
	}
	if counts[family.RecordAssigned] != 5 {
		t.Errorf("expected all 5 assigned, got %+v", counts)
	}
}

func TestStartStops(t *testing.T) {
	c, st := buildCoordinator(t)
	seedBatch(t, st, 3)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	time.Sleep(200 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop after cancellation")
	}
}
