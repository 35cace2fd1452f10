// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Clustering constants
const (
	// DefaultEpsilon is the default DBSCAN neighborhood radius for unit-normalized
	// face embeddings. Lower values = stricter grouping.
	DefaultEpsilon = 0.5

	// DefaultMinSamples is the default minimum neighborhood size (itself included)
	// for a face to be a core point
	DefaultMinSamples = 3

	// NoiseLabel is the clusterer label of faces not density-reachable from any core point
	NoiseLabel = -1

	// DefaultTopClusters is the number of largest clusters listed in the run report
	DefaultTopClusters = 10
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for distance computation
	WorkerPoolSize = 8

	// NeighborChunkSize is the number of rows a worker claims at a time
	NeighborChunkSize = 64

	// DefaultHNSWCandidates is the number of approximate neighbors requested per face
	// when the HNSW neighbor finder is used
	DefaultHNSWCandidates = 64
)

// HNSW graph parameters
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSeed seeds the level generator so graphs are reproducible for a fixed input
	HNSWSeed = 42
)

// Import constants
const (
	// DuplicateBoxIoU is the IoU at which two detections on one photo are treated as the same face
	DuplicateBoxIoU = 0.9
)

// Pagination constants
const (
	// DefaultPageSize is the default number of clusters returned per API page
	DefaultPageSize = 100

	// MaxPageSize is the largest page the API accepts
	MaxPageSize = 1000

	// DefaultRunHistory is the default number of runs listed
	DefaultRunHistory = 20
)
