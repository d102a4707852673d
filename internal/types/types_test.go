package types

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestAnswer_UnmarshalSelectsVariant(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind AnswerKind
	}{
		{"null", `null`, AnswerNone},
		{"string", `"Yes, within appetite"`, AnswerText},
		{"empty string", `""`, AnswerText},
		{"integer", `42`, AnswerNumber},
		{"negative float", `-1.5`, AnswerNumber},
		{"true", `true`, AnswerBool},
		{"false", `false`, AnswerBool},
		{"string list", `["pl","el"]`, AnswerList},
		{"empty array", `[]`, AnswerList},
		{"table", `[{"line":"Public Liability","max":5}]`, AnswerTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Answer
			if err := json.Unmarshal([]byte(tt.raw), &a); err != nil {
				t.Fatalf("Unmarshal(%s) failed: %v", tt.raw, err)
			}
			if a.Kind() != tt.kind {
				t.Errorf("Kind = %v, want %v", a.Kind(), tt.kind)
			}

			// Re-encoding yields the same wire form
			out, err := json.Marshal(a)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(out) != tt.raw {
				t.Errorf("Marshal = %s, want %s", out, tt.raw)
			}
		})
	}
}

func TestAnswer_UnmarshalRejectsUnsupportedShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"object", `{"a":1}`},
		{"mixed list", `["a", 1]`},
		{"string then object", `["a", {"b":1}]`},
		{"array of numbers", `[1,2,3]`},
		{"nested table cell", `[{"a":{"b":1}}]`},
		{"object then string", `[{"a":1}, "x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Answer
			err := json.Unmarshal([]byte(tt.raw), &a)
			if err == nil {
				t.Fatalf("expected error for %s, got answer of kind %v", tt.raw, a.Kind())
			}
		})
	}
}

func TestAnswer_InvalidAnswerSentinel(t *testing.T) {
	var a Answer
	err := json.Unmarshal([]byte(`[1,2]`), &a)
	if !errors.Is(err, ErrInvalidAnswer) {
		t.Errorf("expected ErrInvalidAnswer, got %v", err)
	}
}

func TestTableRow_PreservesKeyOrder(t *testing.T) {
	// Given: a row whose keys are not alphabetical
	raw := `{"line":"Public Liability","minTurnover":0,"maxTurnover":50000000,"action":"refer"}`

	// When: it is decoded and re-encoded
	var row TableRow
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	out, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// Then: the original order survives
	if string(out) != raw {
		t.Errorf("got %s, want %s", out, raw)
	}
	want := []string{"line", "minTurnover", "maxTurnover", "action"}
	got := row.Keys()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTableRow_DuplicateKeyOverwritesInPlace(t *testing.T) {
	var row TableRow
	if err := json.Unmarshal([]byte(`{"a":1,"b":2,"a":3}`), &row); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(row) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(row))
	}
	v, _ := row.Get("a")
	if v != float64(3) {
		t.Errorf("a = %v, want 3", v)
	}
}

func TestCell_WidensIntegers(t *testing.T) {
	c := Cell("maxTurnover", 50000000)
	if _, ok := c.Value.(float64); !ok {
		t.Errorf("expected float64, got %T", c.Value)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"refer", "refer"},
		{float64(50000000), "50000000"},
		{0.25, "0.25"},
		{7, "7"},
		{true, "true"},
		{nil, ""},
		{1e21, "1e+21"},
		{-2.5e22, "-2.5e+22"},
		{1e-7, "1e-7"},
		{1.5e-7, "1.5e-7"},
		{999999999999999900000.0, "999999999999999900000"},
		{0.000001, "0.000001"},
		{json.Number("1e21"), "1e+21"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatNumber_SpecialValues(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{math.Copysign(0, -1), "0"},
		{-0.5, "-0.5"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAnswer_Preview(t *testing.T) {
	long := strings.Repeat("x", 100)
	tests := []struct {
		name string
		a    Answer
		want string
	}{
		{"none", NoAnswer(), "—"},
		{"text", TextAnswer("hello"), "hello"},
		{"empty text", TextAnswer(""), "—"},
		{"long text truncated", TextAnswer(long), long[:80]},
		{"yes", BoolAnswer(true), "Yes"},
		{"no", BoolAnswer(false), "No"},
		{"number", NumberAnswer(30), "30"},
		{"list", ListAnswer([]string{"pl", "el"}), "pl, el"},
		{"table", TableAnswer([]TableRow{{Cell("a", 1)}, {Cell("a", 2)}}), "2 entries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Preview(); got != tt.want {
				t.Errorf("Preview = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnswer_CloneDoesNotAlias(t *testing.T) {
	rows := []TableRow{{Cell("line", "PL")}}
	a := TableAnswer(rows)
	b := a.Clone()

	got, _ := b.Table()
	got[0][0].Value = "changed"

	orig, _ := a.Table()
	if orig[0][0].Value != "PL" {
		t.Errorf("clone aliases original rows: %v", orig[0][0].Value)
	}
	if !a.Equal(b) {
		t.Error("clone should be Equal to original")
	}
}

func TestAnswer_Equal(t *testing.T) {
	if !NoAnswer().Equal(NoAnswer()) {
		t.Error("none should equal none")
	}
	if TextAnswer("1").Equal(NumberAnswer(1)) {
		t.Error("text and number must differ")
	}
	if !ListAnswer([]string{"a"}).Equal(ListAnswer([]string{"a"})) {
		t.Error("equal lists should be Equal")
	}
	if ListAnswer(nil).Equal(TableAnswer(nil)) {
		t.Error("empty list and empty table are different kinds")
	}
}

func TestNewAppState_OneOpenStatePerID(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	ids := []string{"ABR-001", "ABR-002", "LOB-001"}

	s := NewAppState(ids, now)

	if s.Version != 1 {
		t.Errorf("Version = %d, want 1", s.Version)
	}
	if len(s.Decisions) != len(ids) {
		t.Fatalf("Decisions = %d, want %d", len(s.Decisions), len(ids))
	}
	for _, id := range ids {
		d, ok := s.Decisions[id]
		if !ok {
			t.Fatalf("missing state for %s", id)
		}
		if d.DecisionID != id || d.Status != StatusOpen || !d.Answer.IsNone() {
			t.Errorf("unexpected initial state for %s: %+v", id, d)
		}
		if d.LastUpdatedAt != nil || d.ConfirmedAt != nil || d.ImplementedAt != nil {
			t.Errorf("timestamps should be nil for %s", id)
		}
	}
	if len(s.ActivityLog) != 0 {
		t.Errorf("ActivityLog should be empty, got %d", len(s.ActivityLog))
	}
}

func TestAppState_HealAddsMissingKeepsOrphans(t *testing.T) {
	s := NewAppState([]string{"OLD-001", "ABR-001"}, time.Now())

	added := s.Heal([]string{"ABR-001", "ABR-002"})

	if !added {
		t.Error("Heal should report an addition")
	}
	if _, ok := s.Decisions["ABR-002"]; !ok {
		t.Error("ABR-002 should have been created")
	}
	if _, ok := s.Decisions["OLD-001"]; !ok {
		t.Error("orphaned OLD-001 should be kept")
	}
	if s.Heal([]string{"ABR-001", "ABR-002"}) {
		t.Error("second Heal should be a no-op")
	}
}

func TestAppState_PrependIsNewestFirst(t *testing.T) {
	s := NewAppState(nil, time.Now())
	s.Prepend(ActivityEntry{ID: "1"})
	s.Prepend(ActivityEntry{ID: "2"})

	if s.ActivityLog[0].ID != "2" || s.ActivityLog[1].ID != "1" {
		t.Errorf("unexpected order: %+v", s.ActivityLog)
	}
}

func TestAppState_CloneIsDeep(t *testing.T) {
	s := NewAppState([]string{"ABR-001"}, time.Now())
	c := s.Clone()

	c.Decisions["ABR-001"].Status = StatusDraft
	c.Decisions["ABR-001"].Comments = append(c.Decisions["ABR-001"].Comments, Comment{ID: "c1"})
	c.Prepend(ActivityEntry{ID: "a1"})

	if s.Decisions["ABR-001"].Status != StatusOpen {
		t.Error("clone mutation leaked into status")
	}
	if len(s.Decisions["ABR-001"].Comments) != 0 {
		t.Error("clone mutation leaked into comments")
	}
	if len(s.ActivityLog) != 0 {
		t.Error("clone mutation leaked into activity log")
	}
}

func TestDecisionState_NilSlicesMarshalAsEmptyArrays(t *testing.T) {
	d := DecisionState{DecisionID: "ABR-001", Status: StatusOpen}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"attachments":[]`, `"comments":[]`, `"answer":null`, `"confirmedAt":null`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
}

func TestComputeStats(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E"}
	s := NewAppState(ids, time.Now())
	s.Decisions["A"].Status = StatusDraft
	s.Decisions["B"].Status = StatusConfirmed
	s.Decisions["C"].Status = StatusImplemented
	s.Decisions["D"].FlaggedForDiscussion = true

	st := ComputeStats(ids, s)

	want := Stats{Total: 5, Answered: 3, Confirmed: 2, Draft: 1, Remaining: 3, Flagged: 1}
	if st != want {
		t.Errorf("ComputeStats = %+v, want %+v", st, want)
	}
}

func TestRole_DisplayName(t *testing.T) {
	if RoleStakeholder.DisplayName() != "Neil" {
		t.Errorf("stakeholder name = %q", RoleStakeholder.DisplayName())
	}
	if RoleTeam.DisplayName() != "Product Team" {
		t.Errorf("team name = %q", RoleTeam.DisplayName())
	}
}
