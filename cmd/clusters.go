package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/constants"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/facematch"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Inspect face clusters",
}

var clustersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters, largest first",
	Long: `List clusters ordered by face count.

Examples:
  # The 100 largest clusters
  face-cluster clusters list

  # Only named clusters with at least 5 faces
  face-cluster clusters list --named --min-faces 5

  # Include clusters that lost all their faces
  face-cluster clusters list --min-faces 0`,
	Args: cobra.NoArgs,
	RunE: runClustersList,
}

var clustersShowCmd = &cobra.Command{
	Use:   "show <cluster-id>",
	Short: "Show a cluster and its faces",
	Args:  cobra.ExactArgs(1),
	RunE:  runClustersShow,
}

var clustersByNameCmd = &cobra.Command{
	Use:   "by-name <person-name>",
	Short: "Find the clusters bearing a person's name",
	Args:  cobra.ExactArgs(1),
	RunE:  runClustersByName,
}

func init() {
	rootCmd.AddCommand(clustersCmd)
	clustersCmd.AddCommand(clustersListCmd, clustersShowCmd, clustersByNameCmd)

	clustersListCmd.Flags().Int("limit", constants.DefaultPageSize, "Maximum number of clusters to list")
	clustersListCmd.Flags().Int("offset", 0, "Number of clusters to skip")
	clustersListCmd.Flags().Int("min-faces", 1, "Only clusters with at least this many faces")
	clustersListCmd.Flags().Bool("named", false, "Only named clusters")
	clustersListCmd.Flags().Bool("json", false, "Output as JSON")
	clustersShowCmd.Flags().Bool("json", false, "Output as JSON")
	clustersByNameCmd.Flags().Bool("json", false, "Output as JSON")
	clustersByNameCmd.Flags().Bool("loose", false, "Ignore case, diacritics and dashes when comparing names")
}

// withStore loads the configuration, opens the store and runs fn against it.
func withStore(fn func(ctx context.Context, store database.Store) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, store)
}

func runClustersList(cmd *cobra.Command, args []string) error {
	query := database.ClusterQuery{
		MinFaces:  mustGetInt(cmd, "min-faces"),
		NamedOnly: mustGetBool(cmd, "named"),
		Limit:     mustGetInt(cmd, "limit"),
		Offset:    mustGetInt(cmd, "offset"),
	}
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, store database.Store) error {
		clusters, total, err := store.PageClusters(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to list clusters: %w", err)
		}
		if jsonOutput {
			return outputJSON(clusters)
		}
		if len(clusters) == 0 {
			fmt.Println("No clusters found.")
			return nil
		}
		printClusterTable(clusters)
		fmt.Printf("\nShowing %d of %d clusters\n", len(clusters), total)
		return nil
	})
}

func printClusterTable(clusters []database.Cluster) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFACES\tREPRESENTATIVE")
	fmt.Fprintln(w, "--\t----\t-----\t--------------")
	for _, c := range clusters {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", c.ID, displayName(c.Name), c.FaceCount, c.RepresentativeFaceID)
	}
	w.Flush()
}

func runClustersShow(cmd *cobra.Command, args []string) error {
	id, err := parseID("cluster", args[0])
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, store database.Store) error {
		cluster, err := store.GetCluster(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get cluster %d: %w", id, err)
		}
		faces, err := store.GetClusterFaces(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get cluster faces: %w", err)
		}

		if jsonOutput {
			return outputJSON(struct {
				*database.Cluster
				Faces []database.Face `json:"faces"`
			}{cluster, faces})
		}

		fmt.Printf("Cluster:        %d\n", cluster.ID)
		fmt.Printf("Name:           %s\n", displayName(cluster.Name))
		fmt.Printf("Faces:          %d\n", cluster.FaceCount)
		fmt.Printf("Representative: %d\n", cluster.RepresentativeFaceID)
		if len(faces) == 0 {
			return nil
		}
		fmt.Println()
		printFaceTable(faces)
		return nil
	})
}

func printFaceTable(faces []database.Face) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tPHOTO\tBBOX (T,R,B,L)\tCONFIDENCE")
	fmt.Fprintln(w, "----\t-----\t--------------\t----------")
	for _, f := range faces {
		fmt.Fprintf(w, "%d\t%d\t%d,%d,%d,%d\t%.2f\n",
			f.ID, f.PhotoID, f.BBox.Top, f.BBox.Right, f.BBox.Bottom, f.BBox.Left, f.Confidence)
	}
	w.Flush()
}

func runClustersByName(cmd *cobra.Command, args []string) error {
	name := facematch.CanonicalName(args[0])
	if name == "" {
		return errors.New("person name is required")
	}
	jsonOutput := mustGetBool(cmd, "json")
	loose := mustGetBool(cmd, "loose")

	return withStore(func(ctx context.Context, store database.Store) error {
		var clusters []database.Cluster
		var err error
		if loose {
			clusters, err = store.ListClusters(ctx)
			clusters = facematch.FilterByLooseName(clusters, name)
		} else {
			clusters, err = store.FindClustersByName(ctx, name)
		}
		if err != nil {
			return fmt.Errorf("failed to find clusters: %w", err)
		}
		if jsonOutput {
			return outputJSON(clusters)
		}
		if len(clusters) == 0 {
			fmt.Printf("No clusters named %q.\n", name)
			return nil
		}
		printClusterTable(clusters)
		return nil
	})
}
