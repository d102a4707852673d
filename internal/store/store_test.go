package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/insurewright/onboarding/internal/types"
)

var (
	_ StateStore  = (*JSONFileStore)(nil)
	_ StateStore  = (*SQLiteStore)(nil)
	_ Invalidator = (*JSONFileStore)(nil)
	_ Invalidator = (*SQLiteStore)(nil)
)

var testIDs = []string{"ABR-001", "ABR-002", "LOB-001"}

type backend struct {
	name string
	open func(t *testing.T, path string, ids []string) StateStore
	file string
}

func backends() []backend {
	clock := WithClock(func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) })
	return []backend{
		{
			name: "json",
			file: "state.json",
			open: func(t *testing.T, path string, ids []string) StateStore {
				return NewJSONFileStore(path, ids, clock)
			},
		},
		{
			name: "sqlite",
			file: "state.db",
			open: func(t *testing.T, path string, ids []string) StateStore {
				s, err := NewSQLiteStore(path, ids, clock)
				if err != nil {
					t.Fatalf("NewSQLiteStore failed: %v", err)
				}
				return s
			},
		},
	}
}

func TestStateStore_FirstLoadCreatesInitialState(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			// Given: no persisted document
			path := filepath.Join(t.TempDir(), b.file)
			s := b.open(t, path, testIDs)
			defer s.Close()

			// When: the state is loaded
			state, err := s.Load(context.Background())
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			// Then: one open state per catalog id, version 1, empty log
			if state.Version != 1 {
				t.Errorf("Version = %d, want 1", state.Version)
			}
			if len(state.Decisions) != len(testIDs) {
				t.Errorf("Decisions = %d, want %d", len(state.Decisions), len(testIDs))
			}
			for _, id := range testIDs {
				if state.Decisions[id].Status != types.StatusOpen {
					t.Errorf("%s status = %s", id, state.Decisions[id].Status)
				}
			}
			if len(state.ActivityLog) != 0 {
				t.Errorf("ActivityLog = %d entries", len(state.ActivityLog))
			}

			// And: the initial document was persisted
			reopened := b.open(t, path, testIDs)
			defer reopened.Close()
			again, err := reopened.Load(context.Background())
			if err != nil {
				t.Fatalf("reload failed: %v", err)
			}
			if len(again.Decisions) != len(testIDs) {
				t.Errorf("persisted Decisions = %d", len(again.Decisions))
			}
		})
	}
}

func TestStateStore_SaveThenLoadRoundTrips(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), b.file)
			s := b.open(t, path, testIDs)
			defer s.Close()
			ctx := context.Background()

			state, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			// Given: a mutated clone with a table answer and two activity entries
			next := state.Clone()
			d := next.Decisions["ABR-001"]
			d.Status = types.StatusDraft
			d.Answer = types.TableAnswer([]types.TableRow{
				{types.Cell("line", "Public Liability"), types.Cell("max", 5000000)},
			})
			d.Notes = "check with broker"
			ts := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
			next.Prepend(types.ActivityEntry{ID: "01A", DecisionID: "ABR-001", Action: types.ActionAnswerSaved, Actor: types.RoleStakeholder, Timestamp: ts})
			next.Prepend(types.ActivityEntry{ID: "01B", DecisionID: "ABR-001", Action: types.ActionAnswerUpdated, Actor: types.RoleStakeholder, Timestamp: ts.Add(time.Minute)})

			// When: it is saved and read back by a fresh store
			if err := s.Save(ctx, next); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			reopened := b.open(t, path, testIDs)
			defer reopened.Close()
			got, err := reopened.Load(ctx)
			if err != nil {
				t.Fatalf("reload failed: %v", err)
			}

			// Then: the document is identical in content and order
			gd := got.Decisions["ABR-001"]
			if gd.Status != types.StatusDraft || gd.Notes != "check with broker" {
				t.Errorf("unexpected state: %+v", gd)
			}
			if !gd.Answer.Equal(d.Answer) {
				t.Errorf("answer mismatch")
			}
			rows, _ := gd.Answer.Table()
			if keys := rows[0].Keys(); keys[0] != "line" || keys[1] != "max" {
				t.Errorf("column order lost: %v", keys)
			}
			if len(got.ActivityLog) != 2 || got.ActivityLog[0].ID != "01B" || got.ActivityLog[1].ID != "01A" {
				t.Errorf("activity order wrong: %+v", got.ActivityLog)
			}
		})
	}
}

func TestStateStore_SaveStampsLastSavedAt(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, filepath.Join(t.TempDir(), b.file), testIDs)
			defer s.Close()

			state, _ := s.Load(context.Background())
			next := state.Clone()
			next.LastSavedAt = time.Time{}

			if err := s.Save(context.Background(), next); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			want := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
			if !next.LastSavedAt.Equal(want) {
				t.Errorf("LastSavedAt = %v, want %v", next.LastSavedAt, want)
			}
		})
	}
}

func TestStateStore_LoadHealsNewCatalogIDs(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), b.file)

			// Given: a document written against an older, smaller catalog
			old := b.open(t, path, []string{"ABR-001", "RETIRED-001"})
			state, _ := old.Load(context.Background())
			next := state.Clone()
			next.Decisions["ABR-001"].Status = types.StatusConfirmed
			if err := old.Save(context.Background(), next); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			old.Close()

			// When: it is loaded with the current catalog
			s := b.open(t, path, testIDs)
			defer s.Close()
			got, err := s.Load(context.Background())
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			// Then: new ids are open, existing states kept, orphans retained
			if got.Decisions["ABR-001"].Status != types.StatusConfirmed {
				t.Error("existing state was lost")
			}
			if got.Decisions["LOB-001"] == nil || got.Decisions["LOB-001"].Status != types.StatusOpen {
				t.Error("new id was not healed")
			}
			if _, ok := got.Decisions["RETIRED-001"]; !ok {
				t.Error("orphaned state should be retained")
			}
		})
	}
}

func TestStateStore_HealedDocumentIsPersisted(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), b.file)
			oldIDs := []string{"ABR-001", "RETIRED-001"}

			// Given: a document created against an older catalog
			old := b.open(t, path, oldIDs)
			if _, err := old.Load(context.Background()); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			old.Close()

			// When: the current catalog heals it
			s := b.open(t, path, testIDs)
			if _, err := s.Load(context.Background()); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			s.Close()

			// Then: reopening with the old catalog (which cannot heal) still sees the new id
			again := b.open(t, path, oldIDs)
			defer again.Close()
			got, err := again.Load(context.Background())
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			d := got.Decisions["LOB-001"]
			if d == nil {
				t.Fatal("healed id LOB-001 was not written back to storage")
			}
			if d.Status != types.StatusOpen {
				t.Errorf("LOB-001 status = %s, want open", d.Status)
			}
		})
	}
}

func TestStateStore_LoadIsCached(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, filepath.Join(t.TempDir(), b.file), testIDs)
			defer s.Close()

			first, _ := s.Load(context.Background())
			second, _ := s.Load(context.Background())
			if first != second {
				t.Error("second Load should return the cached document")
			}

			s.(Invalidator).Invalidate()
			third, _ := s.Load(context.Background())
			if third == first {
				t.Error("Load after Invalidate should reread")
			}
		})
	}
}

func TestStateStore_ConcurrentLoads(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, filepath.Join(t.TempDir(), b.file), testIDs)
			defer s.Close()

			var wg sync.WaitGroup
			results := make([]*types.AppState, 10)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					st, err := s.Load(context.Background())
					if err != nil {
						t.Errorf("Load failed: %v", err)
					}
					results[i] = st
				}(i)
			}
			wg.Wait()

			for i := 1; i < len(results); i++ {
				if results[i] != results[0] {
					t.Fatal("concurrent loads should converge on one cached document")
				}
			}
		})
	}
}
