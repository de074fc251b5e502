// Package merge decides where analyzed clusters land: absorbed into the
// live family holding their grouping key, or opened as a new seed. It
// also runs the cross-batch assigner that places aged orphans into
// existing families one record at a time.
//
// The find-or-create sequence is racy by nature; the store's key
// uniqueness constraint is the backstop. A conflicting insert comes back
// as ErrKeyConflict and the whole decision re-runs as a merge, bounded.
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/store"
)

// maxConflictRetries bounds how many times a key conflict re-runs the
// find-or-create decision before giving up for the cycle.
const maxConflictRetries = 3

// Engine applies analyzer output to the family store.
type Engine struct {
	store *store.Store
	board *report.Board
}

// NewEngine builds a merge engine.
func NewEngine(st *store.Store, board *report.Board) *Engine {
	return &Engine{store: st, board: board}
}

// Apply lands one analysis: members are absorbed into the live family
// holding the derived key, or a new seed is created. parentID is set
// when the material descends from a split; it keeps the result exempt
// from key matching against its siblings. The coordinator pipeline
// always submits fresh clusters with an empty parentID; a non-empty one
// is reserved for callers resubmitting split-descended material.
func (e *Engine) Apply(ctx context.Context, a classify.Analysis, memberIDs []string, parentID string) (report.Counters, error) {
	var counters report.Counters
	key := family.DeriveKey(a.Category, a.Theater)

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return counters, err
		}

		existing, err := e.store.LiveFamilyByKey(key, parentID)
		switch {
		case err == nil:
			note := fmt.Sprintf("absorbed %d records (%s)", len(memberIDs), a.Title)
			if err := e.store.AbsorbMembers(existing.ID, memberIDs, a.Timeline, note); err != nil {
				if errors.Is(err, store.ErrInconsistent) {
					// Turned terminal between read and write; re-resolve.
					continue
				}
				return counters, err
			}
			counters.Absorbed += len(memberIDs)
			e.board.Logf("merge", "absorbed %d records into %q", len(memberIDs), existing.Title)
			logging.Info("absorbed into existing family", "family", existing.ID, "title", existing.Title, "records", len(memberIDs))
			return counters, nil

		case errors.Is(err, store.ErrNotFound):
			f := family.New(a.Title, a.Summary, a.Anchor, a.Actors, a.Category, a.Theater)
			f.ParentID = parentID
			f.Timeline = a.Timeline
			f.AddMembers(memberIDs)
			if err := e.store.InsertFamily(f); err != nil {
				if errors.Is(err, store.ErrKeyConflict) {
					// Another writer took the key first; retry as a merge.
					logging.Debug("key conflict, retrying as merge", "key", key, "attempt", attempt+1)
					continue
				}
				return counters, err
			}
			if err := e.store.AssignRecords(f.ID, memberIDs); err != nil {
				return counters, err
			}
			counters.Created++
			counters.Absorbed += len(memberIDs)
			e.board.Logf("merge", "opened %q (%s/%s) with %d records", f.Title, a.Category, a.Theater, len(memberIDs))
			logging.Info("created family", "family", f.ID, "title", f.Title, "key", key, "records", len(memberIDs))
			return counters, nil

		default:
			return counters, err
		}
	}
	return counters, fmt.Errorf("key %s: conflict retries exhausted", key)
}
