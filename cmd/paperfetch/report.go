// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperfetch/internal/ledger"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect the acquisition ledger from past fetch runs",
	Long: `Report reads the sqlite ledger written by fetch --ledger. Without
flags it lists recent runs with their outcome tallies; --run shows every
outcome of one run in input order, including the source that served each
paper and the error that stopped the ones that failed.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("run", "", "show the outcomes of one run ID")
	reportCmd.Flags().Int("limit", 10, "maximum runs to list")
	reportCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	path := expandHome(viper.GetString("ledger.path"))
	if path == "" {
		return fmt.Errorf("no ledger configured: pass --ledger on fetch or set ledger.path")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("ledger %s: %w", path, err)
	}

	led, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer led.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		return reportRun(cmd, led, runID, jsonOutput)
	}
	limit, _ := cmd.Flags().GetInt("limit")
	return reportRecent(cmd, led, limit, jsonOutput)
}

func reportRecent(cmd *cobra.Command, led *ledger.Ledger, limit int, jsonOutput bool) error {
	runs, err := led.RecentRuns(context.Background(), limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-36s  %-19s  %-19s  %5s  %5s  %5s  %5s  %5s\n",
		"Run", "Started", "Finished", "Total", "OK", "Skip", "Miss", "Fail")
	fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("-", 110))

	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-36s  %-19s  %-19s  %5d  %5d  %5d  %5d  %5d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), finished,
			r.Total, r.Succeeded, r.Skipped, r.NotFound, r.Failed)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d runs\n", len(runs))
	return nil
}

func reportRun(cmd *cobra.Command, led *ledger.Ledger, runID string, jsonOutput bool) error {
	outcomes, err := led.RunOutcomes(context.Background(), runID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	}

	if len(outcomes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No outcomes recorded for run %s.\n", runID)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-4s  %-9s  %-40s  %-15s  %s\n",
		"Pos", "Status", "Identifier", "Source", "Error")
	fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("-", 110))

	for _, o := range outcomes {
		id := o.Identifier
		if len(id) > 40 {
			id = id[:37] + "..."
		}
		errText := o.Error
		if len(errText) > 35 {
			errText = errText[:32] + "..."
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-4d  %-9s  %-40s  %-15s  %s\n",
			o.Position+1, o.Status, id, o.Source, errText)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d outcomes\n", len(outcomes))
	return nil
}
