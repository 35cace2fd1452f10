package dbscan

import (
	"context"
	"math/rand"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-cluster/internal/constants"
)

// HNSWFinder approximates neighborhoods with an in-memory HNSW graph.
// Candidates returned by the graph are re-checked with the exact distance, so a
// reported neighbor is always within eps, but true neighbors beyond the first
// Candidates results can be missed. The graph is seeded, so results are
// reproducible for a fixed input order.
type HNSWFinder struct {
	Candidates int
	Seed       int64
}

// NewHNSWFinder creates an HNSW neighbor finder with the given candidate count
func NewHNSWFinder(candidates int) *HNSWFinder {
	if candidates <= 0 {
		candidates = constants.DefaultHNSWCandidates
	}
	return &HNSWFinder{Candidates: candidates, Seed: constants.HNSWSeed}
}

// Name returns the finder name used in reports
func (f *HNSWFinder) Name() string {
	return "hnsw"
}

// newGraph creates an empty graph with Euclidean distance.
func (f *HNSWFinder) newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = max(constants.HNSWEfSearch, f.Candidates)
	g.Distance = hnsw.EuclideanDistance
	g.Rng = rand.New(rand.NewSource(f.Seed)) //nolint:gosec // reproducibility, not security
	return g
}

// Neighbors builds the graph from all non-zero points and queries each point.
func (f *HNSWFinder) Neighbors(ctx context.Context, points [][]float32, eps float64, progress ProgressFunc) ([][]int, error) {
	n := len(points)
	neighbors := make([][]int, n)

	g := f.newGraph()
	for i, p := range points {
		if IsZero(p) {
			continue
		}
		g.Add(hnsw.MakeNode(i, p))
	}

	k := max(f.Candidates, 1)
	for i, p := range points {
		if i%constants.NeighborChunkSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		var row []int
		if g.Len() > 0 && !IsZero(p) {
			for _, node := range g.Search(p, k) {
				if node.Key == i {
					continue
				}
				if Distance(p, points[node.Key]) <= eps {
					row = append(row, node.Key)
				}
			}
		}
		neighbors[i] = sortedWithSelf(row, i)

		if progress != nil {
			progress(1)
		}
	}

	return neighbors, nil
}
