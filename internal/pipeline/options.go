package pipeline

import (
	"log/slog"

	"github.com/kozaktomas/face-cluster/internal/config"
	"github.com/kozaktomas/face-cluster/internal/constants"
	"github.com/kozaktomas/face-cluster/internal/dbscan"
)

// Options configures a Pipeline
type Options struct {
	Params              dbscan.Params
	Finder              dbscan.NeighborFinder // exact finder when nil
	TopN                int
	MergeDuplicateNames bool
	DryRun              bool                // cluster and report without persisting anything
	Progress            dbscan.ProgressFunc // neighborhood progress, optional
	Logger              *slog.Logger
}

// DefaultOptions returns the built-in tunables.
func DefaultOptions() Options {
	return Options{
		Params:              dbscan.Params{Eps: constants.DefaultEpsilon, MinSamples: constants.DefaultMinSamples},
		TopN:                constants.DefaultTopClusters,
		MergeDuplicateNames: true,
	}
}

// OptionsFromConfig builds options from the cluster configuration.
func OptionsFromConfig(cfg config.ClusterConfig) Options {
	return Options{
		Params:              dbscan.Params{Eps: cfg.Eps, MinSamples: cfg.MinSamples},
		Finder:              NewFinder(cfg),
		TopN:                cfg.TopN,
		MergeDuplicateNames: cfg.MergeDuplicateNames,
	}
}

// NewFinder returns the neighbor finder selected by the configuration.
func NewFinder(cfg config.ClusterConfig) dbscan.NeighborFinder {
	if cfg.Neighbors == config.NeighborsHNSW {
		return dbscan.NewHNSWFinder(cfg.HNSWCandidates)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = constants.WorkerPoolSize
	}
	return &dbscan.ExactFinder{Workers: workers}
}
