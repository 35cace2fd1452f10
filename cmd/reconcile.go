package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/pipeline"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Replay manual corrections without re-clustering",
	Long: `Replay every stored correction against the current assignments and refresh
face counts and representative faces. Embeddings are not clustered again.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().Bool("json", false, "Output the report as JSON")
	reconcileCmd.Flags().Bool("merge-duplicates", true, "Merge clusters that share a person name into the lowest id")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := pipeline.OptionsFromConfig(cfg.Cluster)
	opts.Logger = log
	if cmd.Flags().Changed("merge-duplicates") {
		opts.MergeDuplicateNames = mustGetBool(cmd, "merge-duplicates")
	}

	report, err := pipeline.New(store, opts).Reconcile(ctx)
	if errors.Is(err, database.ErrRunInProgress) {
		return errors.New("a clustering run is in progress, try again later")
	}
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(report)
	}

	printCorrections(report.Corrections.Applied, report.Corrections.Skipped, len(report.Corrections.Conflicts))
	for _, c := range report.Corrections.Conflicts {
		fmt.Printf("  name %q is used by clusters %v\n", c.Name, c.ClusterIDs)
	}
	if report.Corrections.MergedClusters > 0 {
		fmt.Printf("Merged:           %d faces from %d duplicate clusters\n",
			report.Corrections.MergedFaces, report.Corrections.MergedClusters)
	}
	fmt.Printf("Final:            %d clusters (%d named), %d assigned, %d unassigned\n",
		report.Final.NonEmptyClusters, report.Final.NamedClusters, report.Final.AssignedFaces, report.Final.UnassignedFaces)
	printTopClusters(report.TopClusters)
	return nil
}
