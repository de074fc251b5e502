package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/storyline/internal/family"
)

// maxSuccessorHops bounds merge-chain traversal. A chain longer than this
// is treated as a structural inconsistency rather than followed forever.
const maxSuccessorHops = 16

const familyColumns = `
	id, title, summary, anchor, actors, category, theater, grouping_key,
	status, members, member_count, timeline, parent_id, merged_into,
	merge_rationale, notes, created_at, updated_at
`

// InsertFamily inserts a new family row. A violation of the live-key
// uniqueness index is mapped to ErrKeyConflict so the caller can re-run
// the merge path; it is never a fatal error.
// Thread-safe: acquires write lock.
func (s *Store) InsertFamily(f *family.EventFamily) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actors, err := json.Marshal(emptyIfNil(f.Actors))
	if err != nil {
		return fmt.Errorf("marshal actors: %w", err)
	}
	members, err := json.Marshal(emptyIfNil(f.Members))
	if err != nil {
		return fmt.Errorf("marshal members: %w", err)
	}
	timeline, err := json.Marshal(f.Timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO event_families (
			id, title, summary, anchor, actors, category, theater,
			grouping_key, status, members, member_count, timeline,
			parent_id, merged_into, merge_rationale, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.ID, f.Title, f.Summary, f.Anchor, string(actors),
		string(f.Category), string(f.Theater), f.Key, string(f.Status),
		string(members), len(f.Members), string(timeline),
		f.ParentID, f.MergedInto, f.MergeRationale, f.Notes,
		f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert family %s key %s: %w", f.ID, f.Key, ErrKeyConflict)
		}
		return fmt.Errorf("insert family %s: %w", f.ID, err)
	}
	return nil
}

// FamilyByID fetches one family, or ErrNotFound.
// Thread-safe: acquires read lock.
func (s *Store) FamilyByID(id string) (*family.EventFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return familyByID(s.db, id)
}

// rowQuerier abstracts *sql.DB and *sql.Tx for single-row reads.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func familyByID(q rowQuerier, id string) (*family.EventFamily, error) {
	row := q.QueryRow(`SELECT `+familyColumns+` FROM event_families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("family %s: %w", id, ErrNotFound)
	}
	return f, err
}

// LiveFamilyByKey finds the non-terminal family holding a grouping key,
// excluding siblings of the incoming family: when excludeParent is
// non-empty, candidates with that parent are skipped, because split
// children must never re-merge with each other.
// Thread-safe: acquires read lock.
func (s *Store) LiveFamilyByKey(key, excludeParent string) (*family.EventFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + familyColumns + `
		FROM event_families
		WHERE grouping_key = ? AND status IN ('seed', 'active')
	`
	args := []any{key}
	if excludeParent != "" {
		query += ` AND parent_id != ?`
		args = append(args, excludeParent)
	}
	query += ` ORDER BY created_at ASC LIMIT 1`

	row := s.db.QueryRow(query, args...)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("key %s: %w", key, ErrNotFound)
	}
	return f, err
}

// AbsorbMembers unions record IDs into a family's owned set, extends its
// timeline, appends a processing note, and tags the records assigned, all
// in one transaction. Re-applying the same absorption is harmless: the
// union skips known members and the record updates are no-ops.
// Thread-safe: acquires write lock.
func (s *Store) AbsorbMembers(familyID string, recordIDs []string, timeline []family.TimelineEntry, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	f, err := familyByID(tx, familyID)
	if err != nil {
		return err
	}
	if f.Status.Terminal() {
		return fmt.Errorf("family %s is %s: %w", familyID, f.Status, ErrInconsistent)
	}

	f.AddMembers(recordIDs)
	f.Timeline = append(f.Timeline, timeline...)
	sort.SliceStable(f.Timeline, func(i, j int) bool {
		return f.Timeline[i].At.Before(f.Timeline[j].At)
	})

	members, err := json.Marshal(emptyIfNil(f.Members))
	if err != nil {
		return fmt.Errorf("marshal members: %w", err)
	}
	tl, err := json.Marshal(f.Timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE event_families
		SET members = ?, member_count = ?, timeline = ?,
		    notes = notes || ?, updated_at = ?
		WHERE id = ?
	`, string(members), len(f.Members), string(tl), noteLine(note), time.Now().UTC(), familyID)
	if err != nil {
		return fmt.Errorf("absorb into family %s: %w", familyID, err)
	}

	if err := s.assignRecordsLocked(tx, familyID, recordIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkMerged transitions the loser to merged, recording the survivor and
// rationale. Member movement happens separately via AbsorbMembers on the
// survivor; the two steps are each idempotent so a crash between them is
// recovered by re-running the pass.
// Thread-safe: acquires write lock.
func (s *Store) MarkMerged(loserID, winnerID, rationale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE event_families
		SET status = 'merged', merged_into = ?, merge_rationale = ?,
		    notes = notes || ?, updated_at = ?
		WHERE id = ? AND status IN ('seed', 'active')
	`, winnerID, rationale, noteLine("merged into "+winnerID+": "+rationale), time.Now().UTC(), loserID)
	if err != nil {
		return fmt.Errorf("mark merged %s: %w", loserID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("family %s not live: %w", loserID, ErrNotFound)
	}
	return nil
}

// MarkSplit transitions a parent to split and inserts its children (seed
// status, parent reference set) in one transaction, re-pointing each
// child's records. The parent reference permanently exempts the children
// from re-merging with each other.
// Thread-safe: acquires write lock.
func (s *Store) MarkSplit(parentID string, children []*family.EventFamily) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE event_families
		SET status = 'split', notes = notes || ?, updated_at = ?
		WHERE id = ? AND status IN ('seed', 'active')
	`, noteLine(fmt.Sprintf("split into %d children", len(children))), time.Now().UTC(), parentID)
	if err != nil {
		return fmt.Errorf("mark split %s: %w", parentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("family %s not live: %w", parentID, ErrNotFound)
	}

	for _, child := range children {
		child.ParentID = parentID
		child.Status = family.StatusSeed

		actors, err := json.Marshal(emptyIfNil(child.Actors))
		if err != nil {
			return fmt.Errorf("marshal actors: %w", err)
		}
		members, err := json.Marshal(emptyIfNil(child.Members))
		if err != nil {
			return fmt.Errorf("marshal members: %w", err)
		}
		timeline, err := json.Marshal(child.Timeline)
		if err != nil {
			return fmt.Errorf("marshal timeline: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO event_families (
				id, title, summary, anchor, actors, category, theater,
				grouping_key, status, members, member_count, timeline,
				parent_id, merged_into, merge_rationale, notes,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			child.ID, child.Title, child.Summary, child.Anchor, string(actors),
			string(child.Category), string(child.Theater), child.Key,
			string(child.Status), string(members), len(child.Members),
			string(timeline), child.ParentID, "", "",
			child.Notes+noteLine("created by split of "+parentID),
			child.CreatedAt, child.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert child %s: %w", child.ID, err)
		}

		if err := s.assignRecordsLocked(tx, child.ID, child.Members); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LiveFamilies returns all families in seed or active status.
// Thread-safe: acquires read lock.
func (s *Store) LiveFamilies() ([]*family.EventFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryFamilies(`
		SELECT ` + familyColumns + `
		FROM event_families
		WHERE status IN ('seed', 'active')
		ORDER BY created_at ASC
	`)
}

// FamiliesByStatus returns families with any of the given statuses.
// Thread-safe: acquires read lock.
func (s *Store) FamiliesByStatus(statuses ...family.Status) ([]*family.EventFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	return s.queryFamilies(`
		SELECT `+familyColumns+`
		FROM event_families
		WHERE status IN (`+placeholders+`)
		ORDER BY created_at ASC
	`, args...)
}

// LargeLiveFamilies returns live families whose owned-record count has
// reached the split threshold.
// Thread-safe: acquires read lock.
func (s *Store) LargeLiveFamilies(threshold int) ([]*family.EventFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryFamilies(`
		SELECT `+familyColumns+`
		FROM event_families
		WHERE status IN ('seed', 'active') AND member_count >= ?
		ORDER BY member_count DESC
	`, threshold)
}

// CandidatesForOrphan shortlists live families for an orphan record:
// same category, and either the same theater or substantial actor-name
// overlap. Empty category or theater widens that dimension to every
// live family; orphan signals come from keyword heuristics and are not
// always derivable. Actor filtering happens in Go; actor sets are small.
// Thread-safe: acquires read lock.
func (s *Store) CandidatesForOrphan(cat family.Category, th family.Theater, actors []string, limit int) ([]*family.EventFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + familyColumns + `
		FROM event_families
		WHERE status IN ('seed', 'active') AND category = ?
		ORDER BY updated_at DESC
	`
	args := []any{string(cat)}
	if cat == "" {
		query = `
			SELECT ` + familyColumns + `
			FROM event_families
			WHERE status IN ('seed', 'active')
			ORDER BY updated_at DESC
		`
		args = nil
	}

	families, err := s.queryFamilies(query, args...)
	if err != nil {
		return nil, err
	}

	actorSet := make(map[string]bool, len(actors))
	for _, a := range actors {
		actorSet[strings.ToLower(a)] = true
	}

	var out []*family.EventFamily
	for _, f := range families {
		if th == "" || f.Theater == th || actorOverlap(actorSet, f.Actors) >= 2 {
			out = append(out, f)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// FamilyPair is a candidate pair for interpretive merging, oldest first.
type FamilyPair struct {
	A *family.EventFamily
	B *family.EventFamily
}

// PairCandidates shortlists live family pairs worth a merge comparison:
// same category, compatible theater, not siblings of the same split.
// Pairing happens in Go over the live set; the live population is small
// by construction. Bounded by limit.
// Thread-safe: acquires read lock.
func (s *Store) PairCandidates(limit int) ([]FamilyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	families, err := s.queryFamilies(`
		SELECT ` + familyColumns + `
		FROM event_families
		WHERE status IN ('seed', 'active')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}

	var out []FamilyPair
	for i := 0; i < len(families); i++ {
		for j := i + 1; j < len(families); j++ {
			a, b := families[i], families[j]
			if a.Category != b.Category {
				continue
			}
			if !family.CompatibleTheaters(a.Theater, b.Theater) {
				continue
			}
			if family.Siblings(a, b) {
				continue
			}
			out = append(out, FamilyPair{A: a, B: b})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// LiveSuccessor follows merge-target chains from a family to the live
// family that ultimately owns its evidence. A broken or circular chain is
// ErrInconsistent: fatal for that item, alert-worthy, never retried blindly.
// Thread-safe: acquires read lock.
func (s *Store) LiveSuccessor(id string) (*family.EventFamily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := id
	for hop := 0; hop < maxSuccessorHops; hop++ {
		f, err := familyByID(s.db, current)
		if err != nil {
			return nil, fmt.Errorf("successor chain from %s: %w", id, ErrInconsistent)
		}
		if !f.Status.Terminal() {
			return f, nil
		}
		if f.Status == family.StatusMerged && f.MergedInto != "" {
			current = f.MergedInto
			continue
		}
		// split and archived families have no single successor to follow
		return nil, fmt.Errorf("family %s terminal (%s) with no successor: %w", current, f.Status, ErrInconsistent)
	}
	return nil, fmt.Errorf("successor chain from %s exceeds %d hops: %w", id, maxSuccessorHops, ErrInconsistent)
}

// AppendNote appends one audit line to a family's processing notes.
// Thread-safe: acquires write lock.
func (s *Store) AppendNote(familyID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE event_families SET notes = notes || ?, updated_at = ? WHERE id = ?
	`, noteLine(note), time.Now().UTC(), familyID)
	return err
}

// FamilyCounts returns family totals by status.
// Thread-safe: acquires read lock.
func (s *Store) FamilyCounts() (map[family.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM event_families GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[family.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[family.Status(status)] = n
	}
	return counts, rows.Err()
}

// queryFamilies executes a query and scans family rows.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryFamilies(query string, args ...any) ([]*family.EventFamily, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var families []*family.EventFamily
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, err
		}
		families = append(families, f)
	}
	return families, rows.Err()
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFamily(row scanner) (*family.EventFamily, error) {
	var f family.EventFamily
	var actors, members, timeline, category, theater, status string
	var memberCount int

	err := row.Scan(
		&f.ID, &f.Title, &f.Summary, &f.Anchor, &actors, &category,
		&theater, &f.Key, &status, &members, &memberCount, &timeline,
		&f.ParentID, &f.MergedInto, &f.MergeRationale, &f.Notes,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	st, ok := family.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("family %s has unknown status %q: %w", f.ID, status, ErrInconsistent)
	}
	f.Status = st
	f.Category = family.Category(category)
	f.Theater = family.Theater(theater)

	if err := json.Unmarshal([]byte(actors), &f.Actors); err != nil {
		return nil, fmt.Errorf("family %s actors: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(members), &f.Members); err != nil {
		return nil, fmt.Errorf("family %s members: %w", f.ID, err)
	}
	if err := json.Unmarshal([]byte(timeline), &f.Timeline); err != nil {
		return nil, fmt.Errorf("family %s timeline: %w", f.ID, err)
	}
	return &f, nil
}

// isUniqueViolation detects a sqlite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// actorOverlap counts how many of a family's actors appear in the set.
func actorOverlap(set map[string]bool, actors []string) int {
	n := 0
	for _, a := range actors {
		if set[strings.ToLower(a)] {
			n++
		}
	}
	return n
}

// emptyIfNil keeps JSON columns as [] rather than null.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// noteLine formats one audit-trail line.
func noteLine(note string) string {
	if note == "" {
		return ""
	}
	return fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), note)
}
