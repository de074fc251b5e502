package revise

import (
	"context"

	"github.com/abelbrown/storyline/internal/classify"
	"github.com/abelbrown/storyline/internal/config"
	"github.com/abelbrown/storyline/internal/family"
	"github.com/abelbrown/storyline/internal/logging"
	"github.com/abelbrown/storyline/internal/report"
	"github.com/abelbrown/storyline/internal/signals"
	"github.com/abelbrown/storyline/internal/store"
)

// Splitter divides families whose member count crossed the split
// threshold and whose records partition into distinct narratives.
// Children keep the parent reference, which permanently exempts them
// from re-merging into each other.
type Splitter struct {
	store *store.Store
	brain *classify.Client
	cfg   config.PipelineConfig
	board *report.Board
}

// NewSplitter builds an interpretive splitter.
func NewSplitter(st *store.Store, brain *classify.Client, cfg config.PipelineConfig, board *report.Board) *Splitter {
	return &Splitter{store: st, brain: brain, cfg: cfg, board: board}
}

// Cycle examines each family over the threshold with one partition call.
// Cohesive families are left untouched; confirmed partitions become
// seed children, each with its member share, actor subset, and slice of
// the timeline. Members the partition failed to place go to the largest
// child, noted.
func (s *Splitter) Cycle(ctx context.Context) (report.Counters, error) {
	var counters report.Counters

	candidates, err := s.store.LargeLiveFamilies(s.cfg.SplitThreshold)
	if err != nil {
		return counters, err
	}

	for _, fam := range candidates {
		if err := ctx.Err(); err != nil {
			return counters, err
		}

		records, err := s.store.RecordsByIDs(fam.Members)
		if err != nil {
			return counters, err
		}

		verdict, leftover, err := s.brain.ProposeSplit(ctx, *fam, records)
		if err != nil {
			counters.FailedCalls++
			logging.Debug("partition call failed", "family", fam.ID, "error", err)
			continue
		}
		if !verdict.Split {
			continue
		}

		children := buildChildren(fam, verdict.Parts, leftover, records)
		if err := s.store.MarkSplit(fam.ID, children); err != nil {
			return counters, err
		}

		counters.Split++
		s.board.Logf("split", "%q split into %d children", fam.Title, len(children))
		logging.Info("family split", "family", fam.ID, "title", fam.Title, "children", len(children))
	}

	return counters, nil
}

// buildChildren materializes the partition: one seed child per part with
// its member share, an actor subset derived from its own titles, and the
// timeline entries its titles produced. Leftover members and orphaned
// timeline entries land on the largest child.
func buildChildren(parent *family.EventFamily, parts []classify.SplitPart, leftover []string, records []family.Record) []*family.EventFamily {
	textByID := make(map[string]string, len(records))
	for _, r := range records {
		textByID[r.ID] = r.Text
	}

	largest := 0
	for i, p := range parts {
		if len(p.RecordIDs) > len(parts[largest].RecordIDs) {
			largest = i
		}
	}

	children := make([]*family.EventFamily, 0, len(parts))
	partIndex := make(map[string]int, len(records))
	for i, p := range parts {
		actors := actorSubset(p.RecordIDs, textByID, parent.Actors)
		child := family.New(p.Title, "", p.Anchor, actors, parent.Category, parent.Theater)
		child.AddMembers(p.RecordIDs)
		for _, id := range p.RecordIDs {
			partIndex[id] = i
		}
		children = append(children, child)
	}

	if len(leftover) > 0 {
		children[largest].AddMembers(leftover)
		for _, id := range leftover {
			partIndex[id] = largest
		}
		children[largest].Notes = "unpartitioned members placed here\n"
	}

	// Each timeline entry follows the record whose text produced it;
	// entries with no owner stay with the largest child.
	headlineIndex := make(map[string]int, len(records))
	for id, i := range partIndex {
		headlineIndex[textByID[id]] = i
	}
	for _, entry := range parent.Timeline {
		i, ok := headlineIndex[entry.Headline]
		if !ok {
			i = largest
		}
		children[i].Timeline = append(children[i].Timeline, entry)
	}

	return children
}

// actorSubset extracts actor names from a part's own titles, falling
// back to the parent's actor set when the titles name nobody.
func actorSubset(ids []string, textByID map[string]string, parentActors []string) []string {
	var texts []string
	for _, id := range ids {
		texts = append(texts, textByID[id])
	}

	seen := make(map[string]bool)
	var out []string
	for _, text := range texts {
		for _, actor := range signals.ExtractActors(text) {
			if !seen[actor] {
				seen[actor] = true
				out = append(out, actor)
			}
		}
	}
	if len(out) == 0 {
		return parentActors
	}
	return out
}
