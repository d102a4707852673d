package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/insurewright/onboarding/internal/catalog"
	"github.com/insurewright/onboarding/internal/types"
	"github.com/insurewright/onboarding/internal/validation"
)

var (
	listStatus    string
	listCategory  string
	answerNotes   string
	answerForce   bool
	commentAuthor string
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect and edit decisions without running the server",
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decisions with their status",
	Args:  cobra.NoArgs,
	RunE:  runDecisionsList,
}

var decisionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionsShow,
}

var decisionsAnswerCmd = &cobra.Command{
	Use:   "answer <id> <value>",
	Short: "Save an answer and move the decision to draft",
	Long: `Save an answer and move the decision to draft.

Text and single-select decisions take the value literally. Every other input
type takes a JSON value: a number, true/false, an array of option values, or
an array of row objects for data tables.`,
	Args: cobra.ExactArgs(2),
	RunE: runDecisionsAnswer,
}

var decisionsCommentCmd = &cobra.Command{
	Use:   "comment <id> <text>",
	Short: "Add a comment to a decision",
	Args:  cobra.ExactArgs(2),
	RunE:  runDecisionsComment,
}

func init() {
	decisionsListCmd.Flags().StringVar(&listStatus, "status", "", "Only show decisions with this status")
	decisionsListCmd.Flags().StringVar(&listCategory, "category", "", "Only show decisions in this category slug")
	decisionsAnswerCmd.Flags().StringVar(&answerNotes, "notes", "", "Notes saved with the answer")
	decisionsAnswerCmd.Flags().BoolVar(&answerForce, "force", false, "Overwrite a confirmed or implemented answer")
	decisionsCommentCmd.Flags().StringVar(&commentAuthor, "author", string(types.RoleTeam), "Comment author: neil or team")

	decisionsCmd.AddCommand(decisionsListCmd)
	decisionsCmd.AddCommand(decisionsShowCmd)
	decisionsCmd.AddCommand(decisionsAnswerCmd)
	decisionsCmd.AddCommand(decisionsCommentCmd)
	decisionsCmd.AddCommand(lifecycleCommand("confirm", "Confirm a decision's answer", confirmDecision))
	decisionsCmd.AddCommand(lifecycleCommand("reopen", "Return a confirmed decision to draft", reopenDecision))
	decisionsCmd.AddCommand(lifecycleCommand("flag", "Toggle the discussion flag", flagDecision))
	decisionsCmd.AddCommand(lifecycleCommand("implement", "Mark a decision as implemented", implementDecision))
}

type decisionRow struct {
	ID       string       `json:"id"`
	Category string       `json:"category"`
	Title    string       `json:"title"`
	Status   types.Status `json:"status"`
	Flagged  bool         `json:"flagged"`
	Answer   types.Answer `json:"answer"`
}

func runDecisionsList(cmd *cobra.Command, args []string) error {
	status := types.Status(listStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", listStatus)
	}

	env, err := openOffline()
	if err != nil {
		return err
	}
	defer env.Close()

	defs := env.catalog.Decisions()
	if listCategory != "" {
		if _, ok := env.catalog.Category(listCategory); !ok {
			return fmt.Errorf("category %q not found", listCategory)
		}
		defs = env.catalog.DecisionsIn(listCategory)
	}

	state, err := env.service.State(cmd.Context())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	rows := make([]decisionRow, 0, len(defs))
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		d, ok := state.Decisions[def.ID]
		if !ok {
			d = types.NewDecisionState(def.ID)
		}
		if status != "" && d.Status != status {
			continue
		}
		ids = append(ids, def.ID)
		rows = append(rows, decisionRow{
			ID:       def.ID,
			Category: def.CategorySlug,
			Title:    def.Title,
			Status:   d.Status,
			Flagged:  d.FlaggedForDiscussion,
			Answer:   d.Answer,
		})
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"decisions": rows,
			"stats":     types.ComputeStats(ids, state),
		})
	}

	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No decisions found.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"ID", "Category", "Title", "Status", "Flag", "Answer"})
	for _, r := range rows {
		flag := ""
		if r.Flagged {
			flag = "*"
		}
		tw.AppendRow(table.Row{r.ID, r.Category, truncate(r.Title, 40), r.Status, flag, truncate(r.Answer.Preview(), 40)})
	}
	st := types.ComputeStats(env.catalog.IDs(), state)
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d/%d confirmed", st.Confirmed, st.Total), "", st.Flagged, ""})
	tw.Render()
	return nil
}

func runDecisionsShow(cmd *cobra.Command, args []string) error {
	env, err := openOffline()
	if err != nil {
		return err
	}
	defer env.Close()

	def, err := env.definition(args[0])
	if err != nil {
		return err
	}
	d, err := env.service.Decision(cmd.Context(), def.ID)
	if err != nil {
		return fmt.Errorf("load decision: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"definition": def,
			"state":      d,
		})
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "ID:\t%s\n", def.ID)
	fmt.Fprintf(w, "Title:\t%s\n", def.Title)
	fmt.Fprintf(w, "Question:\t%s\n", def.Question)
	fmt.Fprintf(w, "Input:\t%s\n", def.InputType)
	fmt.Fprintf(w, "Status:\t%s\n", d.Status)
	fmt.Fprintf(w, "Flagged:\t%t\n", d.FlaggedForDiscussion)
	fmt.Fprintf(w, "Answer:\t%s\n", orDash(d.Answer.Preview()))
	fmt.Fprintf(w, "Notes:\t%s\n", orDash(d.Notes))
	if d.ConfirmedAt != nil {
		fmt.Fprintf(w, "Confirmed:\t%s\n", d.ConfirmedAt.Format("2006-01-02 15:04"))
	}
	if d.ImplementedAt != nil {
		fmt.Fprintf(w, "Implemented:\t%s\n", d.ImplementedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()

	for _, c := range d.Comments {
		fmt.Fprintf(cmd.OutOrStdout(), "\n[%s] %s:\n  %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.AuthorName, c.Content)
	}
	return nil
}

func runDecisionsAnswer(cmd *cobra.Command, args []string) error {
	env, err := openOffline()
	if err != nil {
		return err
	}
	defer env.Close()

	def, err := env.definition(args[0])
	if err != nil {
		return err
	}
	answer, err := parseAnswer(def, args[1])
	if err != nil {
		return err
	}
	errs := append(validation.ValidateAnswer(def, answer), validation.ValidateNotes(answerNotes)...)
	if len(errs) > 0 {
		return validationFailure(errs)
	}

	save := env.service.SaveDraftAnswer
	if answerForce {
		save = env.service.SaveAnswer
	}
	res := save(cmd.Context(), def.ID, answer, answerNotes)
	if res.IsFinalized() {
		return fmt.Errorf("%s (or pass --force)", res.Message)
	}
	return reportResult(cmd, def.ID, "answer saved", res.Success, resultError(res), res)
}

// parseAnswer reads a command-line value according to the definition's input type.
func parseAnswer(def catalog.Definition, raw string) (types.Answer, error) {
	switch def.InputType {
	case types.InputFreeText, types.InputRichText, types.InputSingleSelect:
		return types.TextAnswer(raw), nil
	}
	var a types.Answer
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return types.NoAnswer(), fmt.Errorf("%s answers must be JSON: %w", def.InputType, err)
	}
	return a, nil
}

func validationFailure(errs []validation.ValidationError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("invalid answer: %s", strings.Join(msgs, "; "))
}

func runDecisionsComment(cmd *cobra.Command, args []string) error {
	author := types.Role(commentAuthor)
	if errs := validation.ValidateComment(args[1], author); len(errs) > 0 {
		return validationFailure(errs)
	}

	env, err := openOffline()
	if err != nil {
		return err
	}
	defer env.Close()

	def, err := env.definition(args[0])
	if err != nil {
		return err
	}
	res := env.service.AddComment(cmd.Context(), def.ID, args[1], author)
	return reportResult(cmd, def.ID, "comment added", res.Success, resultError(res), res)
}

type lifecycleFunc func(ctx context.Context, env *offlineEnv, id string) (message string, result any, err error)

// lifecycleCommand builds a single-argument command around one lifecycle transition.
func lifecycleCommand(use, short string, fn lifecycleFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openOffline()
			if err != nil {
				return err
			}
			defer env.Close()

			def, err := env.definition(args[0])
			if err != nil {
				return err
			}
			msg, result, err := fn(cmd.Context(), env, def.ID)
			return reportResult(cmd, def.ID, msg, err == nil, err, result)
		},
	}
}

func confirmDecision(ctx context.Context, env *offlineEnv, id string) (string, any, error) {
	res := env.service.Confirm(ctx, id)
	return "confirmed", res, resultError(res)
}

func reopenDecision(ctx context.Context, env *offlineEnv, id string) (string, any, error) {
	res := env.service.Reopen(ctx, id)
	return "reopened", res, resultError(res)
}

func flagDecision(ctx context.Context, env *offlineEnv, id string) (string, any, error) {
	res := env.service.ToggleFlag(ctx, id)
	msg := "unflagged"
	if res.Flagged {
		msg = "flagged for discussion"
	}
	return msg, res, resultError(res.Result)
}

func implementDecision(ctx context.Context, env *offlineEnv, id string) (string, any, error) {
	res := env.service.MarkImplemented(ctx, id)
	return "marked implemented", res, resultError(res)
}

// reportResult prints the outcome of a mutation in the selected output format.
func reportResult(cmd *cobra.Command, id, msg string, ok bool, err error, result any) error {
	if !ok {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, msg)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "\u2026"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
