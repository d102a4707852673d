package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/insurewright/onboarding/internal/types"
)

// JSONFileStore keeps the state document in a single JSON file.
type JSONFileStore struct {
	path string
	ids  []string
	now  func() time.Time

	mu        sync.RWMutex
	cache     *types.AppState
	lastWrite [sha256.Size]byte
}

// NewJSONFileStore creates a store for the document at path. ids are the
// catalog decision ids every loaded document is healed against.
func NewJSONFileStore(path string, ids []string, opts ...Option) *JSONFileStore {
	o := applyOptions(opts)
	return &JSONFileStore{
		path: path,
		ids:  append([]string{}, ids...),
		now:  o.now,
	}
}

// Path returns the document location.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Load returns the cached document, reading it from disk on first use.
// A missing document is created with one open state per decision. A document
// that cannot be parsed is replaced in memory by the initial state and left
// on disk untouched until the next save.
func (s *JSONFileStore) Load(ctx context.Context) (*types.AppState, error) {
	s.mu.RLock()
	if s.cache != nil {
		cached := s.cache
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have filled the cache while we waited.
	if s.cache != nil {
		return s.cache, nil
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		initial := types.NewAppState(s.ids, s.now())
		if err := s.write(initial); err != nil {
			return nil, err
		}
		s.cache = initial
		return initial, nil
	case err != nil:
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, s.path, err)
	}
	s.lastWrite = sha256.Sum256(data)

	state, err := decodeState(data)
	if err != nil {
		slog.Warn("state document unreadable, starting from initial state",
			"component", "store",
			"path", s.path,
			"error", err,
		)
		s.cache = types.NewAppState(s.ids, s.now())
		return s.cache, nil
	}

	if state.Heal(s.ids) {
		if err := s.write(state); err != nil {
			return nil, err
		}
	}
	s.cache = state
	return state, nil
}

// Save stamps lastSavedAt, writes the document atomically and replaces the cache.
// On failure the cache is left as it was.
func (s *JSONFileStore) Save(ctx context.Context, state *types.AppState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(state); err != nil {
		return err
	}
	s.cache = state
	return nil
}

// Invalidate drops the cache so the next Load rereads the file.
func (s *JSONFileStore) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// ChangedExternally reports whether the file on disk differs from what this
// store last wrote.
func (s *JSONFileStore) ChangedExternally() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return true
	}
	sum := sha256.Sum256(data)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return sum != s.lastWrite
}

// Close is a no-op; the file is not held open.
func (s *JSONFileStore) Close() error {
	return nil
}

// write must be called with s.mu held.
func (s *JSONFileStore) write(state *types.AppState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create state directory: %v", ErrStorage, err)
	}

	prev := state.LastSavedAt
	state.LastSavedAt = s.now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		state.LastSavedAt = prev
		return fmt.Errorf("%w: encode state: %v", ErrStorage, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		state.LastSavedAt = prev
		return fmt.Errorf("%w: write %s: %v", ErrStorage, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		state.LastSavedAt = prev
		return fmt.Errorf("%w: rename %s: %v", ErrStorage, tmp, err)
	}

	s.lastWrite = sha256.Sum256(data)
	return nil
}

func decodeState(data []byte) (*types.AppState, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty document")
	}
	var state types.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Version == 0 {
		state.Version = types.CurrentVersion
	}
	// A null entry is treated as missing so Heal recreates it.
	for id, d := range state.Decisions {
		if d == nil {
			delete(state.Decisions, id)
		}
	}
	return &state, nil
}
