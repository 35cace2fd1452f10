package dbscan

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/face-cluster/internal/constants"
)

// ExactFinder computes exact neighborhoods with brute-force pairwise distances,
// spreading rows over Workers goroutines.
type ExactFinder struct {
	Workers int
}

// Name returns the finder name used in reports
func (f *ExactFinder) Name() string {
	return "exact"
}

// Neighbors returns, for every point, the sorted indexes of points within eps.
func (f *ExactFinder) Neighbors(ctx context.Context, points [][]float32, eps float64, progress ProgressFunc) ([][]int, error) {
	n := len(points)
	neighbors := make([][]int, n)
	if n == 0 {
		return neighbors, nil
	}

	zero := make([]bool, n)
	for i, p := range points {
		zero[i] = IsZero(p)
	}

	workers := max(f.Workers, 1)
	chunks := (n + constants.NeighborChunkSize - 1) / constants.NeighborChunkSize
	workers = min(workers, chunks)

	var next atomic.Int64
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				chunk := int(next.Add(1)) - 1
				if chunk >= chunks {
					return
				}
				start := chunk * constants.NeighborChunkSize
				end := min(start+constants.NeighborChunkSize, n)
				for i := start; i < end; i++ {
					neighbors[i] = rowNeighbors(points, zero, i, eps)
				}
				if progress != nil {
					progress(end - start)
				}
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return neighbors, nil
}

// rowNeighbors scans all points for the neighborhood of point i. The result is
// ascending because j is visited in order.
func rowNeighbors(points [][]float32, zero []bool, i int, eps float64) []int {
	var row []int
	for j := range points {
		if j == i {
			row = append(row, j)
			continue
		}
		if zero[i] || zero[j] || len(points[i]) != len(points[j]) {
			continue
		}
		if euclidean(points[i], points[j]) <= eps {
			row = append(row, j)
		}
	}
	return row
}
