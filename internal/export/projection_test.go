package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/types"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]catalog.Category{
			{Slug: "rating", Name: "Rating Methodology", Order: 2},
			{Slug: "appetite", Name: "Appetite & Business Rules", Order: 1},
		},
		[]catalog.Definition{
			{ID: "RAT-001", CategorySlug: "rating", Title: "Base Rate", Question: "What is the base rate?", InputType: types.InputNumeric, Required: true, Order: 1},
			{ID: "ABR-002", CategorySlug: "appetite", Title: "Excluded Trades", Question: "Which trades are excluded?", InputType: types.InputFreeText, Order: 2},
			{ID: "ABR-001", CategorySlug: "appetite", Title: "Revenue Thresholds", Question: "What are the thresholds?", InputType: types.InputDataTable, Required: true, Order: 1,
				TableColumns: []catalog.TableColumn{{Key: "line", Label: "Line"}}},
		},
	)
	if err != nil {
		t.Fatalf("catalog.New failed: %v", err)
	}
	return c
}

func TestBuildProjection_UnansweredStoreIsAllOpen(t *testing.T) {
	cat := catalog.Default()
	state := types.NewAppState(cat.IDs(), time.Now())

	proj := BuildProjection(cat, state)

	if len(proj) != len(cat.Categories()) {
		t.Fatalf("categories = %d, want %d", len(proj), len(cat.Categories()))
	}
	total := 0
	for _, group := range proj {
		for _, d := range group.Decisions {
			total++
			if d.Status != types.StatusOpen {
				t.Errorf("%s status = %s, want open", d.ID, d.Status)
			}
			if !d.Answer.IsNone() {
				t.Errorf("%s answer should be null", d.ID)
			}
		}
	}
	if total != cat.Len() {
		t.Errorf("decisions = %d, want %d", total, cat.Len())
	}
}

func TestBuildProjection_OrderAndDefaults(t *testing.T) {
	cat := testCatalog(t)

	// Given: a state that lacks RAT-001 entirely and has ABR-001 confirmed
	confirmed := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	state := types.NewAppState([]string{"ABR-001", "ABR-002"}, time.Now())
	state.Decisions["ABR-001"].Status = types.StatusConfirmed
	state.Decisions["ABR-001"].ConfirmedAt = &confirmed
	state.Decisions["ABR-001"].Notes = "agreed"

	proj := BuildProjection(cat, state)

	if proj[0].Slug != "appetite" || proj[1].Slug != "rating" {
		t.Fatalf("category order = %s, %s", proj[0].Slug, proj[1].Slug)
	}
	if proj[0].Category != "Appetite & Business Rules" {
		t.Errorf("category name = %q", proj[0].Category)
	}
	if proj[0].Decisions[0].ID != "ABR-001" || proj[0].Decisions[1].ID != "ABR-002" {
		t.Errorf("decision order wrong: %+v", proj[0].Decisions)
	}

	abr := proj[0].Decisions[0]
	if abr.Status != types.StatusConfirmed || abr.Notes != "agreed" || abr.ConfirmedAt == nil {
		t.Errorf("ABR-001 = %+v", abr)
	}

	rat := proj[1].Decisions[0]
	if rat.Status != types.StatusOpen || !rat.Answer.IsNone() || rat.Notes != "" || rat.ConfirmedAt != nil {
		t.Errorf("missing state should default: %+v", rat)
	}
}

func TestBuildProjection_DoesNotMutateState(t *testing.T) {
	cat := testCatalog(t)
	state := types.NewAppState(cat.IDs(), time.Now())
	before, _ := json.Marshal(state)

	BuildProjection(cat, state)

	after, _ := json.Marshal(state)
	if string(before) != string(after) {
		t.Error("projection mutated the state")
	}
}

func TestProjection_JSONShape(t *testing.T) {
	cat := testCatalog(t)
	state := types.NewAppState(cat.IDs(), time.Now())

	data, err := json.Marshal(BuildProjection(cat, state))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"id":"RAT-001","title":"Base Rate","question":"What is the base rate?","status":"open","answer":null,"notes":"","confirmedAt":null}`
	if !strings.Contains(string(data), want) {
		t.Errorf("projection JSON missing %s\ngot %s", want, data)
	}
	if !strings.HasPrefix(string(data), `[{"category":"Appetite & Business Rules","slug":"appetite","decisions":[`) {
		t.Errorf("unexpected prefix: %s", data[:80])
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)
	if got := Filename("md", now); got != "uw-decisions-export-2026-10-18.md" {
		t.Errorf("Filename = %q", got)
	}
	if got := Filename("json", now); got != "uw-decisions-export-2026-10-18.json" {
		t.Errorf("Filename = %q", got)
	}
}
