package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/insurewright/onboarding/internal/decision"
)

var (
	activityLimit    int
	activityDecision string
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the activity log, newest first",
	Args:  cobra.NoArgs,
	RunE:  runActivity,
}

func init() {
	activityCmd.Flags().IntVar(&activityLimit, "limit", 50, "Maximum number of entries (0 for all)")
	activityCmd.Flags().StringVar(&activityDecision, "decision", "", "Only show entries for this decision id")
}

func runActivity(cmd *cobra.Command, args []string) error {
	if activityLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	env, err := openOffline()
	if err != nil {
		return err
	}
	defer env.Close()

	if activityDecision != "" {
		if _, err := env.definition(activityDecision); err != nil {
			return err
		}
	}

	entries, err := env.service.Activity(cmd.Context(), decision.ActivityFilter{
		DecisionID: activityDecision,
		Limit:      activityLimit,
	})
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"entries": entries,
			"total":   len(entries),
		})
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No activity yet.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"Time", "Decision", "Action", "By", "Summary"})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.Timestamp.Format("2006-01-02 15:04"),
			e.DecisionID,
			e.Action,
			e.ActorName,
			truncate(e.Summary, 60),
		})
	}
	tw.Render()
	return nil
}
