package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/database"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show photo, face and cluster counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, store database.Store) error {
		stats, err := store.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		if jsonOutput {
			return outputJSON(stats)
		}
		fmt.Printf("Photos:           %d\n", stats.TotalPhotos)
		fmt.Printf("Faces:            %d (%d unassigned)\n", stats.TotalFaces, stats.UnassignedFaces)
		fmt.Printf("Clusters:         %d (%d named)\n", stats.TotalClusters, stats.NamedClusters)
		fmt.Printf("Corrections:      %d\n", stats.TotalCorrections)
		return nil
	})
}
