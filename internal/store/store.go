// Package store provides SQLite persistence for Storyline: the filtered
// input records and the Event Family table every pipeline pass reads and
// conditionally writes.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/storyline/internal/family"
)

// ErrKeyConflict is returned by InsertFamily when another live family
// already holds the grouping key. Callers re-run the merge path instead
// of surfacing it.
var ErrKeyConflict = errors.New("grouping key already held by a live family")

// ErrNotFound is returned when a family or record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInconsistent marks a structural inconsistency: a merge chain that
// never reaches a live family. Items hitting it are logged and excluded
// from automated processing.
var ErrInconsistent = errors.New("structural inconsistency")

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	// Build connection string based on database type
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// For in-memory databases, limit to 1 connection to avoid issues
	// with multiple connections getting different databases
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Enable WAL mode for file-based databases (not :memory:)
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		relevant INTEGER NOT NULL DEFAULT 1,
		family_id TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'unassigned',
		published_at DATETIME,
		fetched_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_records_state ON records(state);
	CREATE INDEX IF NOT EXISTS idx_records_family ON records(family_id);

	CREATE TABLE IF NOT EXISTS event_families (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		summary TEXT,
		anchor TEXT,
		actors TEXT NOT NULL DEFAULT '[]',
		category TEXT NOT NULL,
		theater TEXT NOT NULL,
		grouping_key TEXT NOT NULL,
		status TEXT NOT NULL,
		members TEXT NOT NULL DEFAULT '[]',
		member_count INTEGER NOT NULL DEFAULT 0,
		timeline TEXT NOT NULL DEFAULT '[]',
		parent_id TEXT NOT NULL DEFAULT '',
		merged_into TEXT NOT NULL DEFAULT '',
		merge_rationale TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_families_status ON event_families(status);
	CREATE INDEX IF NOT EXISTS idx_families_category ON event_families(category);

	-- Load-bearing integrity check: at most one live family per grouping
	-- key, except split children (parent_id set), which may share keys
	-- with each other and with unrelated families. A key collision
	-- between children of different splits is not blocked here; the
	-- merger pass reconciles those, sibling pairs excepted.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_families_live_key
		ON event_families(grouping_key)
		WHERE status IN ('seed', 'active') AND parent_id = '';
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveRecords stores input records, returning the count of new inserts.
// Duplicates (by ID) are silently ignored via INSERT OR IGNORE, so the
// upstream filter can resubmit safely.
// Thread-safe: acquires write lock.
func (s *Store) SaveRecords(records []family.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		return 0, nil
	}

	stmt, err := s.db.Prepare(`
		INSERT OR IGNORE INTO records (
			id, text, relevant, family_id, state, published_at, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	newCount := 0
	for _, rec := range records {
		state := rec.State
		if state == "" {
			state = family.RecordUnassigned
		}
		result, err := stmt.Exec(
			rec.ID,
			rec.Text,
			boolToInt(rec.Relevant),
			rec.FamilyID,
			string(state),
			rec.Published,
			rec.Fetched,
		)
		if err != nil {
			return newCount, err
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return newCount, err
		}
		if affected > 0 {
			newCount++
		}
	}

	return newCount, nil
}

// UnassignedRecords returns relevant records awaiting clustering, oldest
// first so nothing starves.
// Thread-safe: acquires read lock.
func (s *Store) UnassignedRecords(limit int) ([]family.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, text, relevant, family_id, state, published_at, fetched_at
		FROM records
		WHERE relevant = 1 AND state = 'unassigned'
		ORDER BY fetched_at ASC
		LIMIT ?
	`
	return s.queryRecords(query, limit)
}

// OrphanPool returns relevant unassigned records fetched before the cutoff:
// the orphans accumulated by earlier clustering cycles, as opposed to
// records the current cycle is still working on.
// Thread-safe: acquires read lock.
func (s *Store) OrphanPool(limit int, before time.Time) ([]family.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, text, relevant, family_id, state, published_at, fetched_at
		FROM records
		WHERE relevant = 1 AND state = 'unassigned' AND fetched_at < ?
		ORDER BY fetched_at ASC
		LIMIT ?
	`
	return s.queryRecords(query, before, limit)
}

// RecordsByIDs fetches specific records. Missing IDs are skipped, not errors.
// Thread-safe: acquires read lock.
func (s *Store) RecordsByIDs(ids []string) ([]family.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `
		SELECT id, text, relevant, family_id, state, published_at, fetched_at
		FROM records
		WHERE id IN (` + placeholders + `)
	`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryRecords(query, args...)
}

// AssignRecords points records at their owning family and tags them
// assigned. Re-assigning an already-assigned record to the same family is
// a no-op; re-pointing it at a new family (merge, split) overwrites the
// owner, preserving the one-owner-at-a-time invariant.
// Thread-safe: acquires write lock.
func (s *Store) AssignRecords(familyID string, recordIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignRecordsLocked(s.db, familyID, recordIDs)
}

// execer abstracts *sql.DB and *sql.Tx for shared helpers.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// assignRecordsLocked does the record-side half of assignment. Caller must
// hold the write lock.
func (s *Store) assignRecordsLocked(ex execer, familyID string, recordIDs []string) error {
	for _, id := range recordIDs {
		_, err := ex.Exec(
			`UPDATE records SET family_id = ?, state = 'assigned' WHERE id = ?`,
			familyID, id,
		)
		if err != nil {
			return fmt.Errorf("assign record %s: %w", id, err)
		}
	}
	return nil
}

// RecycleRecords tags records recycled and clears any owner. Recycled
// records leave the clustering rotation for good, which stops weak
// clusters from being regenerated every cycle.
// Thread-safe: acquires write lock.
func (s *Store) RecycleRecords(recordIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range recordIDs {
		_, err := s.db.Exec(
			`UPDATE records SET family_id = '', state = 'recycled' WHERE id = ?`,
			id,
		)
		if err != nil {
			return fmt.Errorf("recycle record %s: %w", id, err)
		}
	}
	return nil
}

// RecordCounts returns record totals by lifecycle tag.
// Thread-safe: acquires read lock.
func (s *Store) RecordCounts() (map[family.RecordState]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM records WHERE relevant = 1 GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[family.RecordState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[family.RecordState(state)] = n
	}
	return counts, rows.Err()
}

// queryRecords is a helper that executes a query and scans results.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryRecords(query string, args ...any) ([]family.Record, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []family.Record
	for rows.Next() {
		var rec family.Record
		var relevantInt int
		var state string
		err := rows.Scan(
			&rec.ID,
			&rec.Text,
			&relevantInt,
			&rec.FamilyID,
			&state,
			&rec.Published,
			&rec.Fetched,
		)
		if err != nil {
			return nil, err
		}
		rec.Relevant = relevantInt != 0
		rec.State = family.RecordState(state)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
