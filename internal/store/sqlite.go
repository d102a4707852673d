package store

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

	"github.com/insurewright/onboarding/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the state document in SQLite: one row per decision state
// and one row per activity entry, ordered by insertion sequence.
type SQLiteStore struct {
	db   *sql.DB
	path string
	ids  []string
	now  func() time.Time

	mu    sync.RWMutex
	cache *types.AppState
}

// NewSQLiteStore opens the database at dbPath with WAL mode and runs migrations.
func NewSQLiteStore(dbPath string, ids []string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	o := applyOptions(opts)
	return &SQLiteStore{
		db:   db,
		path: dbPath,
		ids:  append([]string{}, ids...),
		now:  o.now,
	}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Invalidate drops the cache so the next Load rereads the database.
func (s *SQLiteStore) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// Load returns the cached document, assembling it from the database on first
// use. An empty database is seeded with the initial state.
func (s *SQLiteStore) Load(ctx context.Context) (*types.AppState, error) {
	s.mu.RLock()
	if s.cache != nil {
		cached := s.cache
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		return s.cache, nil
	}

	state, err := s.read(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		initial := types.NewAppState(s.ids, s.now())
		if err := s.write(ctx, initial); err != nil {
			return nil, err
		}
		s.cache = initial
		return initial, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if state.Heal(s.ids) {
		if err := s.write(ctx, state); err != nil {
			return nil, err
		}
	}
	s.cache = state
	return state, nil
}

// Save writes the document in a single transaction and replaces the cache.
// Activity entries already present are left untouched; the log is append-only.
func (s *SQLiteStore) Save(ctx context.Context, state *types.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(ctx, state); err != nil {
		return err
	}
	s.cache = state
	return nil
}

func (s *SQLiteStore) read(ctx context.Context) (*types.AppState, error) {
	var (
		version   int
		savedAtTS string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, last_saved_at FROM app_meta WHERE id = 1`,
	).Scan(&version, &savedAtTS)
	if err != nil {
		return nil, err
	}

	savedAt, err := time.Parse(time.RFC3339Nano, savedAtTS)
	if err != nil {
		return nil, fmt.Errorf("parse last_saved_at: %w", err)
	}

	state := &types.AppState{
		Version:     version,
		LastSavedAt: savedAt,
		Decisions:   make(map[string]*types.DecisionState),
		ActivityLog: []types.ActivityEntry{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT decision_id, state_json FROM decision_states`)
	if err != nil {
		return nil, fmt.Errorf("query decision states: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan decision state: %w", err)
		}
		var d types.DecisionState
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("decode decision state %s: %w", id, err)
		}
		state.Decisions[id] = &d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries, err := s.db.QueryContext(ctx, `SELECT entry_json FROM activity_log ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer entries.Close()

	for entries.Next() {
		var raw string
		if err := entries.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		var e types.ActivityEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode activity entry: %w", err)
		}
		state.ActivityLog = append(state.ActivityLog, e)
	}
	if err := entries.Err(); err != nil {
		return nil, err
	}

	return state, nil
}

// write must be called with s.mu held.
func (s *SQLiteStore) write(ctx context.Context, state *types.AppState) error {
	savedAt := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO app_meta (id, version, last_saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, last_saved_at = excluded.last_saved_at
	`, state.Version, savedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: write metadata: %v", ErrStorage, err)
	}

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO decision_states (decision_id, status, state_json, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(decision_id) DO UPDATE SET
			status = excluded.status, state_json = excluded.state_json, updated_at = excluded.updated_at
		WHERE decision_states.state_json <> excluded.state_json
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare state upsert: %v", ErrStorage, err)
	}
	defer upsert.Close()

	for id, d := range state.Decisions {
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("%w: encode decision state %s: %v", ErrStorage, id, err)
		}
		if _, err := upsert.ExecContext(ctx, id, string(d.Status), string(raw), savedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("%w: write decision state %s: %v", ErrStorage, id, err)
		}
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO activity_log (id, decision_id, action, entry_json, created_at) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare activity insert: %v", ErrStorage, err)
	}
	defer insert.Close()

	// The in-memory log is newest-first; insert oldest-first so seq follows time.
	for i := len(state.ActivityLog) - 1; i >= 0; i-- {
		e := state.ActivityLog[i]
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: encode activity entry %s: %v", ErrStorage, e.ID, err)
		}
		if _, err := insert.ExecContext(ctx, e.ID, e.DecisionID, string(e.Action), string(raw), e.Timestamp.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("%w: write activity entry %s: %v", ErrStorage, e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorage, err)
	}

	state.LastSavedAt = savedAt
	return nil
}
