// Package export projects the catalog and current decision states into the
// stakeholder export formats and publishes them to the extraction engine.
package export

import (
	"fmt"
	"time"

	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/types"
)

// DecisionExport is one decision in the export projection.
type DecisionExport struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Question    string       `json:"question"`
	Status      types.Status `json:"status"`
	Answer      types.Answer `json:"answer"`
	Notes       string       `json:"notes"`
	ConfirmedAt *time.Time   `json:"confirmedAt"`
}

// CategoryExport groups exported decisions under their category name.
type CategoryExport struct {
	Category  string           `json:"category"`
	Slug      string           `json:"slug"`
	Decisions []DecisionExport `json:"decisions"`
}

// BuildProjection walks categories and their decisions in catalog order.
// A decision with no stored state is exported as open and unanswered.
func BuildProjection(cat *catalog.Catalog, state *types.AppState) []CategoryExport {
	categories := cat.Categories()
	out := make([]CategoryExport, 0, len(categories))

	for _, c := range categories {
		defs := cat.DecisionsIn(c.Slug)
		group := CategoryExport{
			Category:  c.Name,
			Slug:      c.Slug,
			Decisions: make([]DecisionExport, 0, len(defs)),
		}
		for _, def := range defs {
			rec := DecisionExport{
				ID:       def.ID,
				Title:    def.Title,
				Question: def.Question,
				Status:   types.StatusOpen,
				Answer:   types.NoAnswer(),
			}
			if d, ok := state.Decisions[def.ID]; ok && d != nil {
				if d.Status != "" {
					rec.Status = d.Status
				}
				rec.Answer = d.Answer.Clone()
				rec.Notes = d.Notes
				if d.ConfirmedAt != nil {
					t := *d.ConfirmedAt
					rec.ConfirmedAt = &t
				}
			}
			group.Decisions = append(group.Decisions, rec)
		}
		out = append(out, group)
	}

	return out
}

// Filename returns the download name for an export generated at now.
func Filename(ext string, now time.Time) string {
	return fmt.Sprintf("uw-decisions-export-%s.%s", now.UTC().Format("2006-01-02"), ext)
}
