package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/config"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt64 gets an int64 flag value or panics if the flag doesn't exist.
func mustGetInt64(cmd *cobra.Command, name string) int64 {
	val, err := cmd.Flags().GetInt64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetFloat64 gets a float64 flag value or panics if the flag doesn't exist.
func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	val, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// addClusterFlags registers the clustering tunables that override the configuration.
func addClusterFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("eps", 0, "DBSCAN neighborhood radius (default from CLUSTER_EPSILON)")
	cmd.Flags().Int("min-size", 0, "Minimum neighborhood size including the face itself (default from MIN_CLUSTER_SIZE)")
	cmd.Flags().Int("workers", 0, "Parallel workers for distance computation (default from CLUSTER_WORKERS)")
	cmd.Flags().String("neighbors", "", "Neighbor finder: exact or hnsw (default from CLUSTER_NEIGHBORS)")
	cmd.Flags().Int("top", 0, "Number of largest clusters listed in the report (default from CLUSTER_TOP_N)")
}

// applyClusterFlags copies explicitly set flags over the configuration and
// validates the result.
func applyClusterFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("eps") {
		cfg.Cluster.Eps = mustGetFloat64(cmd, "eps")
	}
	if flags.Changed("min-size") {
		cfg.Cluster.MinSamples = mustGetInt(cmd, "min-size")
	}
	if flags.Changed("workers") {
		cfg.Cluster.Workers = mustGetInt(cmd, "workers")
	}
	if flags.Changed("neighbors") {
		cfg.Cluster.Neighbors = mustGetString(cmd, "neighbors")
	}
	if flags.Changed("top") {
		cfg.Cluster.TopN = mustGetInt(cmd, "top")
	}
	return cfg.Validate()
}

// parseID parses a positive face or cluster id argument.
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}
