package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/constants"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/pipeline"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent clustering runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().Int("limit", constants.DefaultRunHistory, "Number of runs to list")
	runsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, store database.Store) error {
		runs, err := store.ListRuns(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if jsonOutput {
			return outputJSON(runs)
		}
		if len(runs) == 0 {
			fmt.Println("No clustering runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tDURATION\tEPS\tMIN\tFINDER\tFACES\tCLUSTERS\tNOISE\tID")
		fmt.Fprintln(w, "-------\t--------\t---\t---\t------\t-----\t--------\t-----\t--")
		for _, run := range runs {
			var summary pipeline.Report
			if err := json.Unmarshal(run.Summary, &summary); err != nil {
				return fmt.Errorf("decoding summary of run %s: %w", run.ID, err)
			}
			fmt.Fprintf(w, "%s\t%s\t%.3f\t%d\t%s\t%d\t%d\t%d\t%s\n",
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				formatDuration(run.FinishedAt.Sub(run.StartedAt)),
				run.Eps, run.MinSamples, run.Finder,
				summary.TotalFaces, summary.Final.NonEmptyClusters, summary.NoiseFaces, run.ID)
		}
		w.Flush()
		return nil
	})
}
