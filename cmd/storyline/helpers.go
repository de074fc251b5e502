package main

import (
	"fmt"
	"os"
	"time"

	"github.com/abelbrown/storyline/internal/analyze"
	"github.com/abelbrown/storyline/internal/brain"
	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/cluster"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/coord"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/merge"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/revise"
	"github.com/abelbrown/storyline/internal/store"
)

// setup loads config, initializes logging and opens the store. Every
// subcommand starts here.
func setup(dbOverride string) (*config.Config, *store.Store) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyline: load config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "storyline: init logging: %v\n", err)
		os.Exit(1)
	}

	path := cfg.DatabasePath
	if dbOverride != "" {
		path = dbOverride
	}
	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storyline: open store %s: %v\n", path, err)
		os.Exit(1)
	}
	return cfg, st
}

// buildCoordinator wires every engine over one provider manager.
func buildCoordinator(cfg *config.Config, st *store.Store, board *report.Board) *coord.Coordinator {
	providers := brain.FromConfig(&cfg.Models)
	if len(providers.ListAvailable()) == 0 {
		fmt.Fprintln(os.Stderr, "storyline: no classification provider configured (set an API key or run Ollama)")
		os.Exit(1)
	}

	client := classify.NewClient(providers, cfg.Pipeline)
	return coord.New(
		cluster.NewEngine(st, client, cfg.Pipeline, board),
		analyze.NewAnalyzer(client, cfg.Pipeline, board),
		merge.NewEngine(st, board),
		merge.NewAssigner(st, client, cfg.Pipeline, board),
		revise.NewMerger(st, client, cfg.Pipeline, board),
		revise.NewSplitter(st, client, cfg.Pipeline, board),
		cfg.Pipeline, board,
	)
}

// printReport writes one cycle's counters in stats style.
func printReport(c report.Counters) {
	fmt.Printf("clustered:    %d\n", c.Clustered)
	fmt.Printf("orphaned:     %d\n", c.Orphaned)
	fmt.Printf("recycled:     %d\n", c.Recycled)
	fmt.Printf("absorbed:     %d\n", c.Absorbed)
	fmt.Printf("created:      %d\n", c.Created)
	fmt.Printf("assigned:     %d\n", c.Assigned)
	fmt.Printf("merged:       %d\n", c.Merged)
	fmt.Printf("split:        %d\n", c.Split)
	fmt.Printf("failed calls: %d\n", c.FailedCalls)
}

// fixtureRecords is a small self-contained batch for local runs without
// the upstream relevance filter.
func fixtureRecords() []family.Record {
	base := time.Now().Add(-6 * time.Hour)
	titles := []string{
		"Missile strikes reported across Kharkiv overnight",
		"Kharkiv strikes continue into second night",
		"Air defense active over Kharkiv region",
		"Port workers extend strike at Rotterdam terminal",
		"Rotterdam container terminal strike enters third day",
		"Shipping lines reroute around Rotterdam stoppage",
		"Taiwan reports incursions near median line",
		"Ransomware outage hits regional hospital network",
	}
	records := make([]family.Record, 0, len(titles))
	for i, title := range titles {
		records = append(records, family.Record{
			ID:        fmt.Sprintf("fixture-%02d", i+1),
			Text:      title,
			Relevant:  true,
			Published: base.Add(time.Duration(i) * 30 * time.Minute),
			Fetched:   base.Add(time.Duration(i) * 30 * time.Minute),
		})
	}
	return records
}
