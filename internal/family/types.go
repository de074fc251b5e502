// Package family defines the Event Family domain model: the canonical
// long-lived incident records the pipeline creates, grows, merges, and
// splits, plus the input records they own.
//
// An Event Family absorbs evidence for days or weeks. Its grouping key is
// derived from category and theater only, so the record keeps matching new
// evidence even as the actor list shifts over the life of a story.
package family

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an Event Family.
type Status string

const (
	StatusSeed     Status = "seed"     // Created by the merge engine, awaiting enrichment
	StatusActive   Status = "active"   // Promoted by the downstream enrichment stage
	StatusMerged   Status = "merged"   // Absorbed into another family
	StatusSplit    Status = "split"    // Divided into child families
	StatusArchived Status = "archived" // Retired manually
)

// Terminal reports whether the status permits no further direct mutation.
// Assignment against a terminal family must target its live successor.
func (s Status) Terminal() bool {
	switch s {
	case StatusMerged, StatusSplit, StatusArchived:
		return true
	}
	return false
}

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusSeed, StatusActive, StatusMerged, StatusSplit, StatusArchived:
		return Status(s), true
	}
	return "", false
}

// RecordState is the lifecycle tag of an input record.
type RecordState string

const (
	RecordUnassigned RecordState = "unassigned" // Eligible for clustering
	RecordAssigned   RecordState = "assigned"   // Owned by an Event Family
	RecordRecycled   RecordState = "recycled"   // Rejected by validation, out of rotation
)

// Record is a relevance-filtered input title. Records are created by the
// upstream filter and only ever mutated here (assignment, recycling).
type Record struct {
	ID        string
	Text      string
	Relevant  bool
	FamilyID  string // Owning Event Family, empty while unassigned
	State     RecordState
	Published time.Time
	Fetched   time.Time
}

// TimelineEntry is one dated sub-event within a family's narrative.
type TimelineEntry struct {
	At       time.Time `json:"at"`
	Headline string    `json:"headline"`
}

// EventFamily is the canonical clustered-incident record.
type EventFamily struct {
	ID      string
	Title   string
	Summary string

	// Anchor is the one-sentence semantic-purpose statement used as the
	// stable thematic test for later admission decisions. Fit checks run
	// against the anchor, not the raw text, so they don't drift as the
	// member set grows.
	Anchor string

	Actors   []string
	Category Category
	Theater  Theater
	Key      string
	Status   Status

	Members  []string // Owned record IDs
	Timeline []TimelineEntry

	// ParentID is set when this family was produced by a split. Families
	// sharing a non-empty ParentID are siblings and permanently exempt
	// from key-based and interpretive consolidation with each other.
	ParentID string

	MergedInto     string // Successor family ID once Status == merged
	MergeRationale string

	Notes string // Append-only processing audit trail

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a seed family from analyzer output fields.
func New(title, summary, anchor string, actors []string, cat Category, th Theater) *EventFamily {
	now := time.Now().UTC()
	return &EventFamily{
		ID:        uuid.NewString(),
		Title:     title,
		Summary:   summary,
		Anchor:    anchor,
		Actors:    actors,
		Category:  cat,
		Theater:   th,
		Key:       DeriveKey(cat, th),
		Status:    StatusSeed,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Siblings reports whether two families were produced by the same split.
func Siblings(a, b *EventFamily) bool {
	return a.ParentID != "" && a.ParentID == b.ParentID
}

// HasMember reports whether the family already owns the record.
func (f *EventFamily) HasMember(recordID string) bool {
	for _, id := range f.Members {
		if id == recordID {
			return true
		}
	}
	return false
}

// AddMembers unions record IDs into the owned set. Re-adding an existing
// member is a no-op, which keeps assignment idempotent.
func (f *EventFamily) AddMembers(recordIDs []string) int {
	added := 0
	for _, id := range recordIDs {
		if !f.HasMember(id) {
			f.Members = append(f.Members, id)
			added++
		}
	}
	return added
}
