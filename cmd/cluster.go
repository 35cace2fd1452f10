package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/pipeline"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster all face embeddings and replay manual corrections",
	Long: `Run DBSCAN over every stored face embedding, map the new groups onto the
existing cluster ids, replay all manual corrections and refresh face counts
and representative faces.

The results are persisted in two steps (raw labels, then corrections). If a
run is interrupted, running it again converges to the same final state.

Examples:
  # Cluster with the configured parameters
  face-cluster cluster

  # Stricter grouping with larger minimum neighborhoods
  face-cluster cluster --eps 0.4 --min-size 5

  # Preview without changing anything
  face-cluster cluster --dry-run

  # Output the report as JSON
  face-cluster cluster --json`,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	addClusterFlags(clusterCmd)
	clusterCmd.Flags().Bool("dry-run", false, "Cluster and report without persisting anything")
	clusterCmd.Flags().Bool("json", false, "Output the run report as JSON")
}

func runCluster(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyClusterFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := pipeline.OptionsFromConfig(cfg.Cluster)
	opts.DryRun = dryRun
	opts.Logger = log

	bar := newClusterProgressBar(ctx, store, jsonOutput)
	if bar != nil {
		opts.Progress = func(delta int) { _ = bar.Add(delta) }
	}

	if !jsonOutput {
		fmt.Printf("Clustering faces (eps=%.3f, min-size=%d, finder=%s)...\n",
			opts.Params.Eps, opts.Params.MinSamples, opts.Finder.Name())
	}

	report, err := pipeline.New(store, opts).Run(ctx)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrNoEmbeddings):
			return errors.New("no face embeddings found, import faces first")
		case errors.Is(err, database.ErrRunInProgress):
			return errors.New("another clustering run is in progress")
		case errors.Is(err, context.Canceled):
			return errors.New("clustering cancelled")
		}
		return fmt.Errorf("clustering failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(report)
	}
	printRunReport(report)
	return nil
}

// newClusterProgressBar creates a progress bar sized by the stored face count, or nil for JSON output.
func newClusterProgressBar(ctx context.Context, store database.StatsReader, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput {
		return nil
	}
	total := -1
	if stats, err := store.GetStats(ctx); err == nil && stats.TotalFaces > 0 {
		total = stats.TotalFaces
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Finding neighbors"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func printRunReport(r *pipeline.Report) {
	fmt.Println()
	if r.DryRun {
		fmt.Println("Dry run, nothing was saved.")
	} else {
		fmt.Printf("Run:              %s\n", r.RunID)
	}
	fmt.Printf("Faces:            %d (dimension %d)\n", r.TotalFaces, r.Dimension)
	fmt.Printf("Clusters found:   %d\n", r.TotalClusters)
	fmt.Printf("Clustered faces:  %d\n", r.ClusteredFaces)
	fmt.Printf("Noise faces:      %d\n", r.NoiseFaces)
	fmt.Printf("Avg cluster size: %.1f\n", r.AverageClusterSize)
	fmt.Printf("Identities:       %d matched, %d joined, %d recycled, %d created, %d vacated\n",
		r.Labels.Matched, r.Labels.Joined, r.Labels.Recycled, r.Labels.Created, r.Labels.Vacated)

	printCorrections(r.Corrections.Applied, r.Corrections.Skipped, len(r.Corrections.Conflicts))
	fmt.Printf("Final:            %d clusters (%d named), %d assigned, %d unassigned\n",
		r.Final.NonEmptyClusters, r.Final.NamedClusters, r.Final.AssignedFaces, r.Final.UnassignedFaces)
	printTopClusters(r.TopClusters)
	fmt.Printf("\nCompleted in %s\n", formatDuration(r.Duration))
}

func printCorrections(applied, skipped, conflicts int) {
	fmt.Printf("Corrections:      %d applied, %d skipped", applied, skipped)
	if conflicts > 0 {
		fmt.Printf(", %d name conflicts", conflicts)
	}
	fmt.Println()
}

func printTopClusters(top []pipeline.ClusterSize) {
	if len(top) == 0 {
		return
	}
	fmt.Println("\nLargest clusters:")
	for _, c := range top {
		name := c.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  #%-6d %-30s %d faces\n", c.ClusterID, name, c.FaceCount)
	}
}

// formatDuration formats a duration as a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
