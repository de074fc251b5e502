// Package coord schedules the recurring pipeline passes: the
// cluster-analyze-merge chain, cross-batch assignment, interpretive
// merging, and interpretive splitting. Each pass runs on its own ticker
// and holds no lock across cycles; later cycles see earlier writes
// through the store, and that is the only ordering promised.
package coord

import (
	"context"
	"sync"
	"time"

	"github.com/abelbrown/storyline/internal/analyze"
	"github.com/abelbrown/storyline/internal/cluster"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/merge"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/revise"
)

// Coordinator owns the engines and their schedules.
type Coordinator struct {
	clusterer *cluster.Engine
	analyzer  *analyze.Analyzer
	merger    *merge.Engine
	assigner  *merge.Assigner
	reviser   *revise.Merger
	splitter  *revise.Splitter
	cfg       config.PipelineConfig
	board     *report.Board

	wg sync.WaitGroup
}

// New wires a coordinator over the given engines.
func New(
	clusterer *cluster.Engine,
	analyzer *analyze.Analyzer,
	merger *merge.Engine,
	assigner *merge.Assigner,
	reviser *revise.Merger,
	splitter *revise.Splitter,
	cfg config.PipelineConfig,
	board *report.Board,
) *Coordinator {
	return &Coordinator{
		clusterer: clusterer,
		analyzer:  analyzer,
		merger:    merger,
		assigner:  assigner,
		reviser:   reviser,
		splitter:  splitter,
		cfg:       cfg,
		board:     board,
	}
}

// Start launches the recurring passes and returns. Cancel the context
// to stop them; Wait blocks until every pass has drained.
func (c *Coordinator) Start(ctx context.Context) {
	c.runEvery(ctx, "pipeline", c.cfg.ClusterIntervalSec, c.PipelineCycle)
	c.runEvery(ctx, "assign", c.cfg.AssignIntervalSec, c.assigner.Cycle)
	c.runEvery(ctx, "merge", c.cfg.MergeIntervalSec, c.reviser.Cycle)
	c.runEvery(ctx, "split", c.cfg.SplitIntervalSec, c.splitter.Cycle)
}

// Wait blocks until all passes have stopped.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// runEvery runs pass immediately and then on every tick until the
// context is cancelled. Pass errors are store-level failures; they are
// logged and the ticker keeps going.
func (c *Coordinator) runEvery(ctx context.Context, name string, intervalSec int, pass func(context.Context) (report.Counters, error)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
		defer ticker.Stop()

		for {
			counters, err := pass(ctx)
			if err != nil && ctx.Err() == nil {
				logging.Error("pass failed", "pass", name, "error", err)
				c.board.Logf(name, "pass failed: %v", err)
			}
			c.board.Record(counters)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// PipelineCycle runs the primary creation path once: one clustering
// batch, analysis of its validated clusters, and a merge decision per
// analysis. Skipped clusters cost nothing; their records return with
// the next batch.
func (c *Coordinator) PipelineCycle(ctx context.Context) (report.Counters, error) {
	clusters, counters, err := c.clusterer.Cycle(ctx)
	if err != nil {
		return counters, err
	}

	outcomes, analyzed, err := c.analyzer.Run(ctx, clusters)
	counters.Add(analyzed)
	if err != nil {
		return counters, err
	}

	for _, o := range outcomes {
		ids := make([]string, 0, len(o.Cluster.Records))
		for _, r := range o.Cluster.Records {
			ids = append(ids, r.ID)
		}
		applied, err := c.merger.Apply(ctx, o.Analysis, ids, "")
		counters.Add(applied)
		if err != nil {
			return counters, err
		}
	}
	return counters, nil
}

// RunOnce executes every pass a single time in sequence and returns the
// combined counters. Used by the once command and by smoke runs.
func (c *Coordinator) RunOnce(ctx context.Context) (report.Counters, error) {
	var total report.Counters

	passes := []struct {
		name string
		run  func(context.Context) (report.Counters, error)
	}{
		{"pipeline", c.PipelineCycle},
		{"assign", c.assigner.Cycle},
		{"merge", c.reviser.Cycle},
		{"split", c.splitter.Cycle},
	}
	for _, p := range passes {
		counters, err := p.run(ctx)
		total.Add(counters)
		c.board.Record(counters)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
