package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/bookkeeping"
	"github.com/kozaktomas/face-cluster/internal/clusterstate"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/pipeline"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Recompute cluster face counts and representative faces",
	Long: `Recompute face_count and the representative face of every cluster from the
current face assignments. Clusters referenced by faces but missing from the
clusters table are recreated.

Use --check to list inconsistent clusters without changing anything.`,
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)

	repairCmd.Flags().Bool("check", false, "Only report inconsistent clusters")
	repairCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRepair(cmd *cobra.Command, args []string) error {
	checkOnly := mustGetBool(cmd, "check")
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

	if checkOnly {
		return runRepairCheck(ctx, store, jsonOutput)
	}

	opts := pipeline.OptionsFromConfig(cfg.Cluster)
	opts.Logger = log
	res, err := pipeline.New(store, opts).Repair(ctx)
	if errors.Is(err, database.ErrRunInProgress) {
		return errors.New("a clustering run is in progress, try again later")
	}
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(res)
	}
	fmt.Printf("Clusters:                %d (%d empty)\n", res.Clusters, res.EmptyClusters)
	fmt.Printf("Face counts fixed:       %d\n", res.CountsChanged)
	fmt.Printf("Representatives fixed:   %d\n", res.RepresentativesChanged)
	fmt.Printf("Missing clusters added:  %d\n", res.RestoredClusters)
	return nil
}

func runRepairCheck(ctx context.Context, store database.Store, jsonOutput bool) error {
	state, err := clusterstate.Load(ctx, store)
	if err != nil {
		return fmt.Errorf("loading cluster state: %w", err)
	}
	counts, err := store.CountFacesByCluster(ctx)
	if err != nil {
		return fmt.Errorf("counting faces: %w", err)
	}
	if drift := bookkeeping.CountDrift(state, counts); len(drift) > 0 {
		return fmt.Errorf("face assignments of clusters %v changed during the check, try again", drift)
	}
	stale := bookkeeping.Check(state)

	if jsonOutput {
		if stale == nil {
			stale = []database.ClusterUpsert{}
		}
		return outputJSON(stale)
	}
	if len(stale) == 0 {
		fmt.Println("All clusters are consistent.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLUSTER\tSTORED FACES\tFACES\tSTORED REP\tREP")
	fmt.Fprintln(w, "-------\t------------\t-----\t----------\t---")
	for _, want := range stale {
		stored, _ := state.Cluster(want.ID)
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n",
			want.ID, stored.FaceCount, want.FaceCount, stored.RepresentativeFaceID, want.RepresentativeFaceID)
	}
	w.Flush()
	fmt.Printf("\n%d inconsistent clusters, run 'face-cluster repair' to fix them\n", len(stale))
	return nil
}
