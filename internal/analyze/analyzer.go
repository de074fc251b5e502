// Package analyze produces the interpretive read of each validated
// cluster: title, summary, anchor, actors, category, theater, timeline.
// One classification call per cluster, bounded fanout across clusters.
//
// A cluster whose call fails or parses dirty is skipped whole. Its
// records were never assigned, so the next clustering cycle picks them
// up again; a skipped cluster costs latency, never data.
package analyze

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/cluster"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/signals"
)

// Outcome pairs a cluster with its completed analysis.
type Outcome struct {
	Cluster  cluster.Cluster
	Analysis classify.Analysis
}

// Analyzer runs the analysis pass.
type Analyzer struct {
	brain *classify.Client
	cfg   config.PipelineConfig
	board *report.Board
}

// NewAnalyzer builds an analyzer.
func NewAnalyzer(brain *classify.Client, cfg config.PipelineConfig, board *report.Board) *Analyzer {
	return &Analyzer{brain: brain, cfg: cfg, board: board}
}

// Run analyzes each cluster concurrently and returns the outcomes that
// completed cleanly, preserving input order.
func (a *Analyzer) Run(ctx context.Context, clusters []cluster.Cluster) ([]Outcome, report.Counters, error) {
	var counters report.Counters
	if len(clusters) == 0 {
		return nil, counters, nil
	}

	outcomes := make([]*Outcome, len(clusters))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Fanout)
	for i, c := range clusters {
		g.Go(func() error {
			hint := theaterHint(c)
			analysis, err := a.brain.AnalyzeCluster(gctx, c.Records, hint)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				counters.FailedCalls++
				counters.Orphaned += len(c.Records)
				a.board.Logf("analyze", "cluster %q skipped: %v", c.Theme, err)
				logging.Warn("cluster analysis failed", "theme", c.Theme, "size", len(c.Records), "error", err)
				return nil
			}
			outcomes[i] = &Outcome{Cluster: c, Analysis: analysis}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, counters, err
	}

	out := make([]Outcome, 0, len(clusters))
	for _, o := range outcomes {
		if o != nil {
			out = append(out, *o)
		}
	}
	logging.Info("analysis complete", "clusters", len(clusters), "analyzed", len(out))
	return out, counters, nil
}

// theaterHint votes a theater from actor mentions across the cluster.
func theaterHint(c cluster.Cluster) family.Theater {
	var actors []string
	for _, r := range c.Records {
		actors = append(actors, signals.ExtractActors(r.Text)...)
	}
	if len(actors) == 0 {
		return ""
	}
	return signals.GuessTheater(actors)
}
