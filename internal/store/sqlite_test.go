package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/insurewright/onboarding/internal/types"
)

func TestSQLiteStore_ActivityIsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path, testIDs)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	state, _ := s.Load(ctx)
	ts := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	// Given: two saves, each prepending one entry
	first := state.Clone()
	first.Prepend(types.ActivityEntry{ID: "A1", DecisionID: "ABR-001", Action: types.ActionFlagged, Timestamp: ts})
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second := first.Clone()
	second.Prepend(types.ActivityEntry{ID: "A2", DecisionID: "ABR-002", Action: types.ActionCommentAdded, Timestamp: ts.Add(time.Second)})
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Then: the table holds each entry once, in insertion order
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM activity_log`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("activity rows = %d, want 2", count)
	}

	var firstID string
	if err := s.db.QueryRow(`SELECT id FROM activity_log ORDER BY seq ASC LIMIT 1`).Scan(&firstID); err != nil {
		t.Fatal(err)
	}
	if firstID != "A1" {
		t.Errorf("oldest row = %s, want A1", firstID)
	}
}

func TestSQLiteStore_StatusColumnTracksState(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"), testIDs)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	state, _ := s.Load(ctx)
	next := state.Clone()
	next.Decisions["LOB-001"].Status = types.StatusConfirmed
	if err := s.Save(ctx, next); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM decision_states WHERE decision_id = 'LOB-001'`).Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != "confirmed" {
		t.Errorf("status = %s, want confirmed", status)
	}
}

func TestSQLiteStore_CancelledContextFailsSave(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"), testIDs)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	before, _ := s.Load(context.Background())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	next := before.Clone()
	next.Decisions["ABR-001"].Status = types.StatusDraft
	if err := s.Save(ctx, next); err == nil {
		t.Fatal("expected error with cancelled context")
	}

	after, _ := s.Load(context.Background())
	if after != before {
		t.Error("failed save must not replace the cache")
	}
}
