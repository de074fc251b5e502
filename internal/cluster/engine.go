// Package cluster turns batches of unassigned records into validated
// incident clusters. One classification call proposes the grouping for
// the whole batch; each proposal is then validated member by member
// before anything downstream sees it.
//
// Failure is always soft. A failed batch call leaves every record
// unassigned, so the next cycle resubmits them; nothing is marked done
// until it actually lands in a cluster or the recycle pool.
package cluster

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/signals"
	"github.com/abelbrown/storyline/internal/store"
)

// Cluster is one validated incident cluster ready for analysis.
type Cluster struct {
	Records []family.Record
	Theme   string
}

// Engine runs the clustering pass.
type Engine struct {
	store *store.Store
	brain *classify.Client
	cfg   config.PipelineConfig
	board *report.Board
}

// NewEngine builds a clustering engine.
func NewEngine(st *store.Store, brain *classify.Client, cfg config.PipelineConfig, board *report.Board) *Engine {
	return &Engine{store: st, brain: brain, cfg: cfg, board: board}
}

// Cycle processes one batch of unassigned records and returns the
// validated clusters. Records that cluster nowhere stay unassigned and
// age into the orphan pool; members rejected by the fit check are
// recycled, and undersized proposals are recycled whole.
func (e *Engine) Cycle(ctx context.Context) ([]Cluster, report.Counters, error) {
	var counters report.Counters

	batch, err := e.store.UnassignedRecords(e.cfg.BatchSize)
	if err != nil {
		return nil, counters, err
	}
	if len(batch) == 0 {
		return nil, counters, nil
	}

	proposals, err := e.brain.ProposeClusters(ctx, batch)
	if err != nil {
		// The whole batch stays unassigned; next cycle resubmits it.
		counters.FailedCalls++
		counters.Orphaned += len(batch)
		e.board.Logf("cluster", "batch of %d failed: %v", len(batch), err)
		logging.Warn("cluster batch failed", "size", len(batch), "error", err)
		return nil, counters, nil
	}

	byID := make(map[string]family.Record, len(batch))
	for _, r := range batch {
		byID[r.ID] = r
	}
	proposals = sweepNearDuplicates(proposals, batch)

	var out []Cluster
	placed := make(map[string]bool)
	for _, p := range proposals {
		records := make([]family.Record, 0, len(p.RecordIDs))
		for _, id := range p.RecordIDs {
			records = append(records, byID[id])
		}

		validated, rejected, failedCalls, err := e.validateSeed(ctx, p.Theme, records)
		counters.FailedCalls += failedCalls
		if err != nil {
			return nil, counters, err
		}

		if len(validated.Records) < e.cfg.MinClusterSize {
			// The whole proposal goes to the recycle pool, rejected
			// members included. Only members whose fit call failed stay
			// unassigned for resubmission.
			ids := append(recordIDs(validated.Records), recordIDs(rejected)...)
			if len(ids) > 0 {
				if err := e.store.RecycleRecords(ids); err != nil {
					return nil, counters, err
				}
				counters.Recycled += len(ids)
				e.board.Logf("cluster", "recycled %d records below minimum seed size", len(ids))
			}
			for _, id := range ids {
				placed[id] = true
			}
			continue
		}

		if len(rejected) > 0 {
			ids := recordIDs(rejected)
			if err := e.store.RecycleRecords(ids); err != nil {
				return nil, counters, err
			}
			counters.Recycled += len(ids)
			for _, id := range ids {
				placed[id] = true
			}
			e.board.Logf("cluster", "recycled %d records rejected by fit checks", len(ids))
		}

		for _, r := range validated.Records {
			placed[r.ID] = true
		}
		counters.Clustered += len(validated.Records)
		out = append(out, validated)
	}

	counters.Orphaned += len(batch) - countPlaced(batch, placed)
	if counters.Orphaned > 0 {
		e.board.Logf("cluster", "%d records left for the orphan pool", counters.Orphaned)
	}
	logging.Info("cluster cycle complete",
		"batch", len(batch), "clusters", len(out),
		"clustered", counters.Clustered, "orphaned", counters.Orphaned, "recycled", counters.Recycled)

	return out, counters, nil
}

// validateSeed checks each proposed member against the cluster theme
// with bounded concurrent fit calls. Members the check rejects are
// returned separately so the caller can recycle them; a failed call
// leaves its member unassigned rather than admitting it unchecked.
func (e *Engine) validateSeed(ctx context.Context, theme string, records []family.Record) (Cluster, []family.Record, int, error) {
	if theme == "" {
		theme = fallbackTheme(records)
	}

	keep := make([]bool, len(records))
	errored := make([]bool, len(records))
	var failed int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Fanout)
	for i, r := range records {
		g.Go(func() error {
			fits, err := e.brain.CheckFit(gctx, theme, r.Text)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				errored[i] = true
				logging.Debug("fit check failed", "record", r.ID, "error", err)
				return nil
			}
			keep[i] = fits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Cluster{}, nil, failed, err
	}

	kept := make([]family.Record, 0, len(records))
	var rejected []family.Record
	for i, r := range records {
		switch {
		case keep[i]:
			kept = append(kept, r)
		case !errored[i]:
			rejected = append(rejected, r)
		}
	}
	return Cluster{Records: kept, Theme: theme}, rejected, failed, nil
}

// sweepNearDuplicates pulls leftover records whose title signature
// nearly matches a proposed member into that proposal. Rewrites of the
// same headline shouldn't need a second model opinion.
func sweepNearDuplicates(proposals []classify.ClusterProposal, batch []family.Record) []classify.ClusterProposal {
	inProposal := make(map[string]bool)
	for _, p := range proposals {
		for _, id := range p.RecordIDs {
			inProposal[id] = true
		}
	}

	sigs := make(map[string]signals.Signature, len(batch))
	byID := make(map[string]family.Record, len(batch))
	for _, r := range batch {
		sigs[r.ID] = signals.TitleSignature(r.Text)
		byID[r.ID] = r
	}

	for _, r := range batch {
		if inProposal[r.ID] {
			continue
		}
	sweep:
		for i := range proposals {
			for _, id := range proposals[i].RecordIDs {
				if byID[id].ID != r.ID && signals.Similar(sigs[r.ID], sigs[id]) {
					proposals[i].RecordIDs = append(proposals[i].RecordIDs, r.ID)
					inProposal[r.ID] = true
					break sweep
				}
			}
		}
	}
	return proposals
}

func fallbackTheme(records []family.Record) string {
	texts := make([]string, 0, len(records))
	for _, r := range records {
		texts = append(texts, r.Text)
	}
	return strings.Join(signals.SalientTerms(texts, 5), " ")
}

func recordIDs(records []family.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func countPlaced(batch []family.Record, placed map[string]bool) int {
	n := 0
	for _, r := range batch {
		if placed[r.ID] {
			n++
		}
	}
	return n
}
