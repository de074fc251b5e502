// Package revise runs the two continuous correction passes over the
// family store: the merger, which consolidates families the key missed,
// and the splitter, which divides families that grew past one narrative.
//
// Both passes are bounded per cycle and tolerate every expected failure
// by skipping the item; only store errors abort a cycle.
package revise

import (
	"context"
	"errors"

	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/store"
)

// Merger consolidates live family pairs whose anchors describe the same
// incident. This recovers from under-merging when the analyzer
// classified the same story into slightly different category or theater.
type Merger struct {
	store *store.Store
	brain *classify.Client
	cfg   config.PipelineConfig
	board *report.Board
}

// NewMerger builds an interpretive merger.
func NewMerger(st *store.Store, brain *classify.Client, cfg config.PipelineConfig, board *report.Board) *Merger {
	return &Merger{store: st, brain: brain, cfg: cfg, board: board}
}

// Cycle compares a bounded set of candidate pairs and merges confirmed
// ones. The older family survives; the younger is marked merged and its
// members are unioned into the survivor. The two mutations are each
// idempotent, so a crash between them heals on the next pass.
func (m *Merger) Cycle(ctx context.Context) (report.Counters, error) {
	var counters report.Counters

	pairs, err := m.store.PairCandidates(m.cfg.MaxPairsPerCycle)
	if err != nil {
		return counters, err
	}

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return counters, err
		}

		verdict, err := m.brain.CompareAnchors(ctx, *pair.A, *pair.B)
		if err != nil {
			counters.FailedCalls++
			logging.Debug("anchor comparison failed", "a", pair.A.ID, "b", pair.B.ID, "error", err)
			continue
		}
		if !verdict.SameIncident {
			continue
		}

		// Pairs arrive oldest-first; the older family keeps the story.
		winner, loser := pair.A, pair.B

		if err := m.store.MarkMerged(loser.ID, winner.ID, verdict.Rationale); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Already retired by an earlier pair this cycle.
				continue
			}
			return counters, err
		}

		err = m.store.AbsorbMembers(winner.ID, loser.Members, loser.Timeline, "merged from "+loser.Title)
		if errors.Is(err, store.ErrInconsistent) {
			successor, serr := m.store.LiveSuccessor(winner.ID)
			if serr != nil {
				logging.Error("merge winner has no live successor", "winner", winner.ID, "loser", loser.ID, "error", serr)
				continue
			}
			err = m.store.AbsorbMembers(successor.ID, loser.Members, loser.Timeline, "merged from "+loser.Title)
		}
		if err != nil {
			return counters, err
		}

		counters.Merged++
		m.board.Logf("merge", "%q merged into %q: %s", loser.Title, winner.Title, verdict.Rationale)
		logging.Info("families merged", "winner", winner.ID, "loser", loser.ID, "rationale", verdict.Rationale)
	}

	if len(pairs) > 0 {
		logging.Info("merger cycle complete", "pairs", len(pairs), "merged", counters.Merged)
	}
	return counters, nil
}
