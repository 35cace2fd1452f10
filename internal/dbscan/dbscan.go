// Package dbscan groups normalized face embeddings with density-based clustering.
//
// A point is a core point when at least MinSamples points (itself included) lie
// within Eps. Clusters are the density-reachability closure of core points; every
// other point is noise. Labels are run-local integers: only the membership of the
// partition is reproducible, never the label values.
package dbscan

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kozaktomas/face-cluster/internal/constants"
)

// Params are the density parameters of a clustering run
type Params struct {
	Eps        float64
	MinSamples int
}

// Validate checks Eps > 0 and MinSamples >= 1.
func (p Params) Validate() error {
	if !(p.Eps > 0) {
		return fmt.Errorf("eps must be > 0, got %v", p.Eps)
	}
	if p.MinSamples < 1 {
		return fmt.Errorf("min samples must be >= 1, got %d", p.MinSamples)
	}
	return nil
}

// ProgressFunc is called with the number of points whose neighborhood was computed
// since the previous call. It may be called from several goroutines.
type ProgressFunc func(delta int)

// NeighborFinder computes the Eps-neighborhood of every point.
// neighbors[i] must contain i itself and be sorted ascending.
type NeighborFinder interface {
	Name() string
	Neighbors(ctx context.Context, points [][]float32, eps float64, progress ProgressFunc) ([][]int, error)
}

// Result holds one label per input point
type Result struct {
	Labels      []int
	NumClusters int
	Noise       int
}

// Groups returns the member indexes of every cluster keyed by label, noise excluded.
func (r *Result) Groups() map[int][]int {
	groups := make(map[int][]int, r.NumClusters)
	for i, l := range r.Labels {
		if l == constants.NoiseLabel {
			continue
		}
		groups[l] = append(groups[l], i)
	}
	return groups
}

// Sizes returns cluster sizes indexed by label.
func (r *Result) Sizes() []int {
	sizes := make([]int, r.NumClusters)
	for _, l := range r.Labels {
		if l != constants.NoiseLabel {
			sizes[l]++
		}
	}
	return sizes
}

// Clusterer runs DBSCAN over a fixed set of points.
type Clusterer struct {
	Params   Params
	Finder   NeighborFinder
	Progress ProgressFunc
}

// NewClusterer creates a clusterer using the exact neighbor finder when finder is nil.
func NewClusterer(params Params, finder NeighborFinder) *Clusterer {
	if finder == nil {
		finder = &ExactFinder{Workers: constants.WorkerPoolSize}
	}
	return &Clusterer{Params: params, Finder: finder}
}

// Fit labels every point. Neighborhoods may be computed concurrently, but the
// expansion visits points in input order so the partition never depends on
// worker scheduling.
func (c *Clusterer) Fit(ctx context.Context, points [][]float32) (*Result, error) {
	if err := c.Params.Validate(); err != nil {
		return nil, err
	}
	if c.Finder == nil {
		return nil, errors.New("no neighbor finder configured")
	}

	neighbors, err := c.Finder.Neighbors(ctx, points, c.Params.Eps, c.Progress)
	if err != nil {
		return nil, fmt.Errorf("computing neighborhoods: %w", err)
	}
	if len(neighbors) != len(points) {
		return nil, fmt.Errorf("neighbor finder returned %d rows for %d points", len(neighbors), len(points))
	}

	return expand(neighbors, c.Params.MinSamples), nil
}

// expand assigns cluster labels from precomputed neighborhoods.
func expand(neighbors [][]int, minSamples int) *Result {
	n := len(neighbors)
	labels := make([]int, n)
	core := make([]bool, n)
	for i := range neighbors {
		labels[i] = constants.NoiseLabel
		core[i] = len(neighbors[i]) >= minSamples
	}

	label := 0
	var stack []int
	for i := range n {
		if !core[i] || labels[i] != constants.NoiseLabel {
			continue
		}

		labels[i] = label
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, q := range neighbors[p] {
				if labels[q] != constants.NoiseLabel {
					continue
				}
				// Border points join the first cluster that reaches them.
				labels[q] = label
				if core[q] {
					stack = append(stack, q)
				}
			}
		}
		label++
	}

	noise := 0
	for _, l := range labels {
		if l == constants.NoiseLabel {
			noise++
		}
	}

	return &Result{Labels: labels, NumClusters: label, Noise: noise}
}

// sortedWithSelf appends i to row when missing and sorts ascending.
func sortedWithSelf(row []int, i int) []int {
	found := false
	for _, j := range row {
		if j == i {
			found = true
			break
		}
	}
	if !found {
		row = append(row, i)
	}
	sort.Ints(row)
	return row
}
