package classify

import (
	"fmt"
	"time"

	"github.com/abelbrown/storyline/internal/family"
)

// ClusterProposal is one incident proposed from a batch, identified by
// the record IDs it groups.
type ClusterProposal struct {
	RecordIDs []string `json:"record_ids"`
	Theme     string   `json:"theme"`
}

// clusterResponse is the wire shape of a batch clustering answer.
type clusterResponse struct {
	Clusters []ClusterProposal `json:"clusters"`
}

// validateClusters checks every proposed ID against the submitted batch
// and drops empty proposals. An ID outside the batch fails the whole
// response: a model inventing IDs cannot be trusted on the rest.
func validateClusters(resp clusterResponse, batch map[string]bool) ([]ClusterProposal, error) {
	seen := make(map[string]bool)
	var out []ClusterProposal
	for _, c := range resp.Clusters {
		if len(c.RecordIDs) == 0 {
			continue
		}
		for _, id := range c.RecordIDs {
			if !batch[id] {
				return nil, fmt.Errorf("cluster references unknown record %q", id)
			}
			if seen[id] {
				return nil, fmt.Errorf("record %q appears in two clusters", id)
			}
			seen[id] = true
		}
		out = append(out, c)
	}
	return out, nil
}

// Analysis is the full interpretive read of one cluster: the identity
// fields that key the incident plus the narrative fields shown to
// operators. Category and Theater are parsed and validated before an
// Analysis exists.
type Analysis struct {
	Title    string
	Summary  string
	Anchor   string
	Actors   []string
	Category family.Category
	Theater  family.Theater
	Timeline []family.TimelineEntry
}

// analysisResponse is the wire shape of an incident analysis answer.
type analysisResponse struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Anchor   string   `json:"anchor"`
	Actors   []string `json:"actors"`
	Category string   `json:"category"`
	Theater  string   `json:"theater"`
	Timeline []struct {
		Date     string `json:"date"`
		Headline string `json:"headline"`
	} `json:"timeline"`
}

func (r analysisResponse) validate() (Analysis, error) {
	if r.Title == "" || r.Anchor == "" {
		return Analysis{}, fmt.Errorf("analysis missing title or anchor")
	}
	cat, ok := family.ParseCategory(r.Category)
	if !ok {
		return Analysis{}, fmt.Errorf("unknown category %q", r.Category)
	}
	th, ok := family.ParseTheater(r.Theater)
	if !ok {
		return Analysis{}, fmt.Errorf("unknown theater %q", r.Theater)
	}

	a := Analysis{
		Title:    r.Title,
		Summary:  r.Summary,
		Anchor:   r.Anchor,
		Actors:   r.Actors,
		Category: cat,
		Theater:  th,
	}
	for _, e := range r.Timeline {
		if e.Headline == "" {
			continue
		}
		at, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			// Undated entries keep their headline under a zero time;
			// the store sorts them first rather than dropping them.
			at = time.Time{}
		}
		a.Timeline = append(a.Timeline, family.TimelineEntry{At: at, Headline: e.Headline})
	}
	return a, nil
}

// MergeVerdict is the answer to an anchor comparison between two live
// incidents.
type MergeVerdict struct {
	SameIncident bool   `json:"same_incident"`
	Rationale    string `json:"rationale"`
}

// SplitPart is one child narrative proposed when partitioning an
// overgrown incident.
type SplitPart struct {
	Title     string   `json:"title"`
	Anchor    string   `json:"anchor"`
	RecordIDs []string `json:"record_ids"`
}

// SplitVerdict is the answer to a partition request. Split=false means
// the incident reads as a single narrative and should stand.
type SplitVerdict struct {
	Split bool        `json:"split"`
	Parts []SplitPart `json:"parts"`
}

// validateSplit enforces the partition contract: at least two named
// parts, all IDs from the member set, no ID in two parts. Member IDs the
// model omitted are returned separately for the caller to place.
func validateSplit(v SplitVerdict, members map[string]bool) (SplitVerdict, []string, error) {
	if !v.Split {
		return SplitVerdict{}, nil, nil
	}
	if len(v.Parts) < 2 {
		return SplitVerdict{}, nil, fmt.Errorf("split verdict with %d parts", len(v.Parts))
	}

	seen := make(map[string]bool)
	for _, p := range v.Parts {
		if p.Title == "" || p.Anchor == "" {
			return SplitVerdict{}, nil, fmt.Errorf("split part missing title or anchor")
		}
		if len(p.RecordIDs) == 0 {
			return SplitVerdict{}, nil, fmt.Errorf("split part %q has no members", p.Title)
		}
		for _, id := range p.RecordIDs {
			if !members[id] {
				return SplitVerdict{}, nil, fmt.Errorf("split part %q references unknown record %q", p.Title, id)
			}
			if seen[id] {
				return SplitVerdict{}, nil, fmt.Errorf("record %q appears in two parts", id)
			}
			seen[id] = true
		}
	}

	var leftover []string
	for id := range members {
		if !seen[id] {
			leftover = append(leftover, id)
		}
	}
	return v, leftover, nil
}
