// Package feedback records like/dislike signals for rendered compositions and
// learns parameter ranges from them.
package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/irfansharif/collage/internal/template"
)

// Record is one feedback signal for a rendered composition.
type Record struct {
	ID          uuid.UUID
	TemplateKey string
	Seed        int64
	Params      template.Params
	Liked       bool
	Timestamp   time.Time
}

// NewRecord stamps a record with a fresh ID and the current time.
func NewRecord(key string, seed int64, params template.Params, liked bool) Record {
	return Record{
		ID:          uuid.New(),
		TemplateKey: key,
		Seed:        seed,
		Params:      params,
		Liked:       liked,
		Timestamp:   time.Now().UTC(),
	}
}

// Snapshot is the parameters a template was last rendered with at a seed.
// Learning changes what a seed renders, so feedback given after the fact is
// recorded against the snapshot rather than a re-derivation.
type Snapshot struct {
	TemplateKey string
	Seed        int64
	Params      template.Params
	Timestamp   time.Time
}

type snapshotKey struct {
	key  string
	seed int64
}

// Store is an append-only feedback log plus the render snapshots feedback
// refers to.
type Store interface {
	Append(ctx context.Context, rec Record) error
	// ForTemplate returns every record for key in append order.
	ForTemplate(ctx context.Context, key string) ([]Record, error)
	// SaveSnapshot records what (key, seed) rendered, replacing any earlier
	// snapshot for the pair.
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	// Snapshot returns the latest snapshot for (key, seed), if any.
	Snapshot(ctx context.Context, key string, seed int64) (Snapshot, bool, error)
}

// MemoryStore keeps records in memory for the life of the session.
type MemoryStore struct {
	mu        sync.RWMutex
	records   []Record
	snapshots map[snapshotKey]Snapshot
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[snapshotKey]Snapshot)}
}

func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryStore) ForTemplate(_ context.Context, key string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.TemplateKey == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshotKey{snap.TemplateKey, snap.Seed}] = snap
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context, key string, seed int64) (Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[snapshotKey{key, seed}]
	return snap, ok, nil
}

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the feedback database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating feedback directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening feedback database: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		template_key TEXT NOT NULL,
		seed INTEGER NOT NULL,
		liked INTEGER NOT NULL,
		params TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_template ON feedback(template_key);
	CREATE TABLE IF NOT EXISTS renders (
		template_key TEXT NOT NULL,
		seed INTEGER NOT NULL,
		params TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (template_key, seed)
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating feedback table: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	liked := 0
	if rec.Liked {
		liked = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, template_key, seed, liked, params, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.TemplateKey, rec.Seed, liked, string(params),
		rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("appending feedback: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ForTemplate(ctx context.Context, key string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_key, seed, liked, params, created_at FROM feedback WHERE template_key = ? ORDER BY rowid`, key)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec            Record
			id, params, ts string
		)
		if err := rows.Scan(&id, &rec.TemplateKey, &rec.Seed, &rec.Liked, &params, &ts); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("feedback id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
			return nil, fmt.Errorf("feedback %s params: %w", id, err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("feedback %s timestamp: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	params, err := json.Marshal(snap.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO renders (template_key, seed, params, created_at) VALUES (?, ?, ?, ?)`,
		snap.TemplateKey, snap.Seed, string(params),
		snap.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving render snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context, key string, seed int64) (Snapshot, bool, error) {
	var params, ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT params, created_at FROM renders WHERE template_key = ? AND seed = ?`, key, seed).
		Scan(&params, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("querying render snapshot: %w", err)
	}
	snap := Snapshot{TemplateKey: key, Seed: seed}
	if err := json.Unmarshal([]byte(params), &snap.Params); err != nil {
		return Snapshot{}, false, fmt.Errorf("render snapshot %s/%d params: %w", key, seed, err)
	}
	if snap.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return Snapshot{}, false, fmt.Errorf("render snapshot %s/%d timestamp: %w", key, seed, err)
	}
	return snap, true, nil
}

// Open returns the store for path: SQLite when a path is given, otherwise
// an in-memory store. The returned close function is never nil.
func Open(ctx context.Context, path string) (Store, func() error, error) {
	if path == "" {
		return NewMemoryStore(), func() error { return nil }, nil
	}
	s, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}
