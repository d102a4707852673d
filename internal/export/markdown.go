package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/insurewright/onboarding/internal/types"
)

const (
	glyphConfirmed = "\u2705"
	glyphDraft     = "\u270f\ufe0f"
	glyphOther     = "\u2b55"
)

// RenderMarkdown formats the projection as the stakeholder summary document.
// Output is deterministic for a given projection and generatedAt.
func RenderMarkdown(projection []CategoryExport, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# UW Decisions — Stakeholder Export\n\nGenerated: %s\n\n---\n\n", generatedAt.Format("2006-01-02"))

	for _, cat := range projection {
		fmt.Fprintf(&b, "## %s\n\n", cat.Category)
		for _, dec := range cat.Decisions {
			fmt.Fprintf(&b, "### %s %s: %s\n\n", statusGlyph(dec.Status), dec.ID, dec.Title)
			fmt.Fprintf(&b, "**Question:** %s\n\n", dec.Question)
			fmt.Fprintf(&b, "**Status:** %s\n\n", dec.Status)
			writeAnswer(&b, dec.Answer)
			if dec.Notes != "" {
				fmt.Fprintf(&b, "**Notes:** %s\n\n", dec.Notes)
			}
			b.WriteString("---\n\n")
		}
	}

	return b.String()
}

// Implemented decisions share the open glyph.
func statusGlyph(s types.Status) string {
	switch s {
	case types.StatusConfirmed:
		return glyphConfirmed
	case types.StatusDraft:
		return glyphDraft
	default:
		return glyphOther
	}
}

func writeAnswer(b *strings.Builder, a types.Answer) {
	switch a.Kind() {
	case types.AnswerNone:
		b.WriteString("**Answer:** *Not yet answered*\n\n")
	case types.AnswerText:
		text, _ := a.Text()
		fmt.Fprintf(b, "**Answer:**\n\n%s\n\n", text)
	case types.AnswerBool:
		v, _ := a.Bool()
		if v {
			b.WriteString("**Answer:** Yes\n\n")
		} else {
			b.WriteString("**Answer:** No\n\n")
		}
	case types.AnswerNumber:
		n, _ := a.Number()
		fmt.Fprintf(b, "**Answer:** %s\n\n", types.FormatValue(n))
	case types.AnswerList:
		items, _ := a.List()
		if len(items) > 0 {
			fmt.Fprintf(b, "**Answer:** %s\n\n", strings.Join(items, ", "))
		}
	case types.AnswerTable:
		rows, _ := a.Table()
		if len(rows) > 0 {
			writeTable(b, rows)
		}
	}
}

// writeTable uses the first row's keys as the header. Each row contributes
// its own values in its own order.
func writeTable(b *strings.Builder, rows []types.TableRow) {
	b.WriteString("**Answer:**\n\n")

	keys := rows[0].Keys()
	sep := make([]string, len(keys))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(keys, " | ") + " |\n")
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	for _, row := range rows {
		values := make([]string, len(row))
		for i, cell := range row {
			values[i] = types.FormatValue(cell.Value)
		}
		b.WriteString("| " + strings.Join(values, " | ") + " |\n")
	}
	b.WriteString("\n")
}

// RenderPretty renders markdown for a terminal.
func RenderPretty(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(width, 40)),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	return r.Render(md)
}
