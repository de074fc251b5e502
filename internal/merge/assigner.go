package merge

import (
	"context"
	"errors"
	"time"

	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/signals"
	"github.com/abelbrown/storyline/internal/store"
)

// candidatesPerOrphan bounds how many shortlisted families one orphan is
// tested against. The shortlist is sorted by recency, so the bound
// prefers families still accumulating evidence.
const candidatesPerOrphan = 5

// Assigner places aged orphans into existing families. A record counts
// as an orphan once it has survived at least one clustering cycle
// unassigned; the cutoff keeps the current cycle's batch out of reach.
type Assigner struct {
	store *store.Store
	brain *classify.Client
	cfg   config.PipelineConfig
	board *report.Board
}

// NewAssigner builds a cross-batch assigner.
func NewAssigner(st *store.Store, brain *classify.Client, cfg config.PipelineConfig, board *report.Board) *Assigner {
	return &Assigner{store: st, brain: brain, cfg: cfg, board: board}
}

// Cycle tests a bounded slice of the orphan pool against shortlisted
// families and assigns each orphan to its first confirmed fit. Fit is
// tested against the family's anchor, which stays stable as the member
// set grows. Unmatched orphans stay in the pool.
func (a *Assigner) Cycle(ctx context.Context) (report.Counters, error) {
	var counters report.Counters

	cutoff := time.Now().Add(-time.Duration(a.cfg.ClusterIntervalSec) * time.Second)
	orphans, err := a.store.OrphanPool(a.cfg.MaxOrphansPerCycle, cutoff)
	if err != nil {
		return counters, err
	}
	if len(orphans) == 0 {
		return counters, nil
	}

	for _, orphan := range orphans {
		if err := ctx.Err(); err != nil {
			return counters, err
		}

		assigned, failed, err := a.placeOrphan(ctx, orphan)
		counters.FailedCalls += failed
		if err != nil {
			return counters, err
		}
		if assigned {
			counters.Assigned++
		}
	}

	logging.Info("assignment cycle complete", "orphans", len(orphans), "assigned", counters.Assigned)
	return counters, nil
}

// placeOrphan shortlists and tests one orphan. A failed fit call skips
// that candidate only; the orphan keeps its place in the pool either way
// until something confirms it.
func (a *Assigner) placeOrphan(ctx context.Context, orphan family.Record) (bool, int, error) {
	actors := signals.ExtractActors(orphan.Text)
	category := signals.GuessCategory(orphan.Text)
	var theater family.Theater
	if len(actors) > 0 {
		theater = signals.GuessTheater(actors)
	}

	candidates, err := a.store.CandidatesForOrphan(category, theater, actors, candidatesPerOrphan)
	if err != nil {
		return false, 0, err
	}

	failed := 0
	for _, candidate := range candidates {
		fits, err := a.brain.CheckFit(ctx, candidate.Anchor, orphan.Text)
		if err != nil {
			failed++
			logging.Debug("orphan fit check failed", "record", orphan.ID, "family", candidate.ID, "error", err)
			continue
		}
		if !fits {
			continue
		}

		entry := []family.TimelineEntry{{At: orphan.Published, Headline: orphan.Text}}
		err = a.store.AbsorbMembers(candidate.ID, []string{orphan.ID}, entry, "orphan assigned: "+orphan.ID)
		if errors.Is(err, store.ErrInconsistent) {
			// Candidate went terminal underneath us; follow the successor.
			successor, serr := a.store.LiveSuccessor(candidate.ID)
			if serr != nil {
				logging.Error("orphan target has no live successor", "record", orphan.ID, "family", candidate.ID, "error", serr)
				continue
			}
			err = a.store.AbsorbMembers(successor.ID, []string{orphan.ID}, entry, "orphan assigned via successor: "+orphan.ID)
		}
		if err != nil {
			return false, failed, err
		}

		a.board.Logf("assign", "orphan placed into %q", candidate.Title)
		return true, failed, nil
	}
	return false, failed, nil
}
