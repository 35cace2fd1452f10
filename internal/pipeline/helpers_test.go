package pipeline

import "github.com/kozaktomas/face-cluster/internal/config"

func testClusterConfig(neighbors string) config.ClusterConfig {
	return config.ClusterConfig{
		Eps:            0.5,
		MinSamples:     3,
		Workers:        2,
		Neighbors:      neighbors,
		HNSWCandidates: 16,
		TopN:           5,
	}
}
