package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/facematch"
	"github.com/kozaktomas/face-cluster/internal/pipeline"
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Record manual corrections",
	Long: `Record manual corrections. Corrections are ground truth: they are stored
and replayed immediately, and again after every clustering run.`,
}

var correctExcludeCmd = &cobra.Command{
	Use:   "exclude <face-id>",
	Short: "Mark a face as not belonging to any cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorrectExclude,
}

var correctAssignCmd = &cobra.Command{
	Use:   "assign <face-id>",
	Short: "Assign a face to a person",
	Long: `Assign a face to a person, by name or by target cluster.

Examples:
  # Assign face 42 to Alice (her lowest-id cluster, or a new one)
  face-cluster correct assign 42 --name "Alice"

  # Assign face 42 to named cluster 7
  face-cluster correct assign 42 --cluster 7`,
	Args: cobra.ExactArgs(1),
	RunE: runCorrectAssign,
}

var correctRemoveCmd = &cobra.Command{
	Use:   "remove <face-id>",
	Short: "Delete a face's correction",
	Long: `Delete a face's correction. The face keeps its current cluster until the
next clustering run.`,
	Args: cobra.ExactArgs(1),
	RunE: runCorrectRemove,
}

var correctRenameCmd = &cobra.Command{
	Use:   "rename <cluster-id> [name]",
	Short: "Set or clear a cluster's name",
	Long: `Set or clear a cluster's name.

A name already held by another cluster is refused. Assign the faces to that
person with "correct assign --name" instead.`,
	Args: cobra.RangeArgs(1, 2),
	RunE:  runCorrectRename,
}

var correctRepresentativeCmd = &cobra.Command{
	Use:   "representative <cluster-id> <face-id>",
	Short: "Set a cluster's representative face",
	Args:  cobra.ExactArgs(2),
	RunE:  runCorrectRepresentative,
}

func init() {
	rootCmd.AddCommand(correctCmd)
	correctCmd.AddCommand(correctExcludeCmd, correctAssignCmd, correctRemoveCmd, correctRenameCmd, correctRepresentativeCmd)

	correctAssignCmd.Flags().String("name", "", "Person name")
	correctAssignCmd.Flags().Int64("cluster", 0, "Target cluster id")
}

func runCorrectExclude(cmd *cobra.Command, args []string) error {
	faceID, err := parseID("face", args[0])
	if err != nil {
		return err
	}
	return applyCorrection(database.Correction{FaceID: faceID, IsExcluded: true})
}

func runCorrectAssign(cmd *cobra.Command, args []string) error {
	faceID, err := parseID("face", args[0])
	if err != nil {
		return err
	}
	name := facematch.CanonicalName(mustGetString(cmd, "name"))
	clusterID := mustGetInt64(cmd, "cluster")
	if clusterID < 0 {
		return fmt.Errorf("invalid cluster id %d", clusterID)
	}
	if name == "" && clusterID == database.NoCluster {
		return errors.New("either --name or --cluster is required")
	}
	return applyCorrection(database.Correction{FaceID: faceID, PersonName: name, ManualClusterID: clusterID})
}

// applyCorrection stores a correction and replays all corrections. An assignment
// to a cluster without a name borrows the cluster's name.
func applyCorrection(c database.Correction) error {
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

	if err := refuseDuringRun(ctx, store); err != nil {
		return err
	}
	if _, err := store.GetFace(ctx, c.FaceID); err != nil {
		return fmt.Errorf("failed to get face %d: %w", c.FaceID, err)
	}
	if !c.IsExcluded && c.ManualClusterID != database.NoCluster {
		target, err := store.GetCluster(ctx, c.ManualClusterID)
		if err != nil {
			return fmt.Errorf("failed to get cluster %d: %w", c.ManualClusterID, err)
		}
		if c.PersonName == "" {
			c.PersonName = target.Name
		}
		if c.PersonName == "" {
			return fmt.Errorf("cluster %d has no name, pass --name", c.ManualClusterID)
		}
	}

	if err := store.UpsertCorrection(ctx, c); err != nil {
		return fmt.Errorf("failed to store correction: %w", err)
	}

	opts := pipeline.OptionsFromConfig(cfg.Cluster)
	opts.Logger = log
	report, err := pipeline.New(store, opts).Reconcile(ctx)
	if errors.Is(err, database.ErrRunInProgress) {
		fmt.Println("Correction stored. It will be applied by the next reconcile or clustering run.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("correction stored but reconcile failed: %w", err)
	}

	face, err := store.GetFace(ctx, c.FaceID)
	if err != nil {
		return fmt.Errorf("failed to get face %d: %w", c.FaceID, err)
	}
	if face.ClusterID == database.NoCluster {
		fmt.Printf("Face %d is now unassigned\n", face.ID)
	} else {
		fmt.Printf("Face %d is now in cluster %d\n", face.ID, face.ClusterID)
	}
	printCorrections(report.Corrections.Applied, report.Corrections.Skipped, len(report.Corrections.Conflicts))
	return nil
}

func runCorrectRemove(cmd *cobra.Command, args []string) error {
	faceID, err := parseID("face", args[0])
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, store database.Store) error {
		if err := refuseDuringRun(ctx, store); err != nil {
			return err
		}
		deleted, err := store.DeleteCorrection(ctx, faceID)
		if err != nil {
			return fmt.Errorf("failed to delete correction: %w", err)
		}
		if !deleted {
			return fmt.Errorf("face %d has no correction", faceID)
		}
		fmt.Printf("Correction of face %d removed\n", faceID)
		return nil
	})
}

func runCorrectRename(cmd *cobra.Command, args []string) error {
	clusterID, err := parseID("cluster", args[0])
	if err != nil {
		return err
	}
	var name string
	if len(args) == 2 {
		name = facematch.CanonicalName(args[1])
	}
	return withStore(func(ctx context.Context, store database.Store) error {
		if err := refuseDuringRun(ctx, store); err != nil {
			return err
		}
		if err := database.CheckNameAvailable(ctx, store, clusterID, name); err != nil {
			return fmt.Errorf("cannot rename cluster %d: %w", clusterID, err)
		}
		if err := store.RenameCluster(ctx, clusterID, name); err != nil {
			return fmt.Errorf("failed to rename cluster %d: %w", clusterID, err)
		}
		if name == "" {
			fmt.Printf("Name of cluster %d cleared\n", clusterID)
		} else {
			fmt.Printf("Cluster %d renamed to %q\n", clusterID, name)
		}
		return nil
	})
}

func runCorrectRepresentative(cmd *cobra.Command, args []string) error {
	clusterID, err := parseID("cluster", args[0])
	if err != nil {
		return err
	}
	faceID, err := parseID("face", args[1])
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, store database.Store) error {
		if err := refuseDuringRun(ctx, store); err != nil {
			return err
		}
		face, err := store.GetFace(ctx, faceID)
		if err != nil {
			return fmt.Errorf("failed to get face %d: %w", faceID, err)
		}
		if face.ClusterID != clusterID {
			return fmt.Errorf("face %d is not a member of cluster %d", faceID, clusterID)
		}
		if err := store.SetRepresentative(ctx, clusterID, faceID); err != nil {
			return fmt.Errorf("failed to set representative: %w", err)
		}
		fmt.Printf("Face %d is now the representative of cluster %d\n", faceID, clusterID)
		return nil
	})
}

func refuseDuringRun(ctx context.Context, locker database.RunLocker) error {
	running, err := locker.RunInProgress(ctx)
	if err != nil {
		return fmt.Errorf("checking run lock: %w", err)
	}
	if running {
		return errors.New("a clustering run is in progress, try again later")
	}
	return nil
}
