// Package pipeline orchestrates a clustering run: load embeddings, cluster them,
// persist raw labels, replay corrections and keep cluster bookkeeping consistent.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-cluster/internal/bookkeeping"
	"github.com/kozaktomas/face-cluster/internal/clusterstate"
	"github.com/kozaktomas/face-cluster/internal/constants"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/dbscan"
	"github.com/kozaktomas/face-cluster/internal/reconcile"
)

var (
	// ErrNoEmbeddings is returned when there is nothing to cluster. Nothing is changed.
	ErrNoEmbeddings = errors.New("no face embeddings to cluster")
	// ErrDimensionMismatch is returned when embeddings differ in length. Nothing is changed.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Pipeline runs clustering, reconciliation and bookkeeping against a store.
type Pipeline struct {
	store database.Store
	opts  Options
	log   *slog.Logger
	now   func() time.Time
}

// New creates a Pipeline.
func New(store database.Store, opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Finder == nil {
		opts.Finder = &dbscan.ExactFinder{Workers: constants.WorkerPoolSize}
	}
	return &Pipeline{store: store, opts: opts, log: log, now: time.Now}
}

// Run performs a full clustering run.
//
// Raw labels (with bookkeeping) and the reconciliation result (with bookkeeping)
// are persisted as two separate units, so an interrupted run leaves either the
// previous state, raw labels, or the final state. Running again converges.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	started := p.now()
	report := &Report{
		DryRun:     p.opts.DryRun,
		Eps:        p.opts.Params.Eps,
		MinSamples: p.opts.Params.MinSamples,
		Finder:     p.opts.Finder.Name(),
		StartedAt:  started,
	}
	if err := p.opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clustering parameters: %w", err)
	}

	embeddings, err := p.store.ListEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, ErrNoEmbeddings
	}
	slices.SortFunc(embeddings, func(a, b database.FaceEmbedding) int {
		switch {
		case a.FaceID < b.FaceID:
			return -1
		case a.FaceID > b.FaceID:
			return 1
		}
		return 0
	})

	dim, err := checkDimensions(embeddings)
	if err != nil {
		return nil, err
	}
	report.TotalFaces = len(embeddings)
	report.Dimension = dim

	faceIDs := make([]int64, len(embeddings))
	vectors := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		faceIDs[i] = e.FaceID
		vectors[i] = e.Embedding
	}

	p.log.Info("clustering faces",
		"faces", len(faceIDs),
		"dimension", dim,
		"eps", p.opts.Params.Eps,
		"min_samples", p.opts.Params.MinSamples,
		"finder", p.opts.Finder.Name(),
	)

	clusterer := dbscan.NewClusterer(p.opts.Params, p.opts.Finder)
	clusterer.Progress = p.opts.Progress
	result, err := clusterer.Fit(ctx, dbscan.Normalize(vectors))
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}

	groups := labelGroups(result, faceIDs)
	report.TotalClusters = result.NumClusters
	report.NoiseFaces = result.Noise
	report.ClusteredFaces = len(faceIDs) - result.Noise
	if result.NumClusters > 0 {
		report.AverageClusterSize = float64(report.ClusteredFaces) / float64(result.NumClusters)
	}
	p.log.Info("clustering finished",
		"clusters", result.NumClusters,
		"clustered", report.ClusteredFaces,
		"noise", result.Noise,
	)

	if !p.opts.DryRun {
		release, err := p.store.AcquireRunLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring run lock: %w", err)
		}
		defer release()
	}

	state, err := clusterstate.Load(ctx, p.store)
	if err != nil {
		return nil, fmt.Errorf("loading cluster state: %w", err)
	}

	report.Labels = state.ApplyRawLabels(faceIDs, groups)
	bookkeeping.Run(state)
	if err := p.persist(ctx, state, "raw labels"); err != nil {
		return nil, err
	}

	report.Corrections = p.reconciler().Apply(state)
	report.Bookkeeping = bookkeeping.Run(state)
	if err := p.persist(ctx, state, "reconciliation"); err != nil {
		return nil, err
	}

	report.Final = state.Summarize()
	report.TopClusters = topClusters(state, p.opts.TopN)
	report.FinishedAt = p.now()
	report.Duration = report.FinishedAt.Sub(started)

	p.log.Info("run finished",
		"corrections_applied", report.Corrections.Applied,
		"corrections_skipped", report.Corrections.Skipped,
		"merged_faces", report.Corrections.MergedFaces,
		"clusters", report.Final.NonEmptyClusters,
		"named", report.Final.NamedClusters,
		"duration", report.Duration,
	)

	if !p.opts.DryRun {
		report.RunID = uuid.NewString()
		p.saveRun(ctx, report)
	}

	return report, nil
}

// Reconcile replays corrections and refreshes bookkeeping without re-clustering.
func (p *Pipeline) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	state, release, err := p.lockAndLoad(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &ReconcileReport{
		Corrections: p.reconciler().Apply(state),
		Bookkeeping: bookkeeping.Run(state),
	}
	if err := p.persist(ctx, state, "reconciliation"); err != nil {
		return nil, err
	}
	report.Final = state.Summarize()
	report.TopClusters = topClusters(state, p.opts.TopN)
	return report, nil
}

// Repair recomputes face counts and representatives of every cluster.
func (p *Pipeline) Repair(ctx context.Context) (*bookkeeping.Result, error) {
	state, release, err := p.lockAndLoad(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res := bookkeeping.Run(state)
	if err := p.persist(ctx, state, "bookkeeping"); err != nil {
		return nil, err
	}
	return &res, nil
}

func (p *Pipeline) lockAndLoad(ctx context.Context) (*clusterstate.State, func(), error) {
	release := func() {}
	if !p.opts.DryRun {
		var err error
		release, err = p.store.AcquireRunLock(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("acquiring run lock: %w", err)
		}
	}
	state, err := clusterstate.Load(ctx, p.store)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("loading cluster state: %w", err)
	}
	return state, release, nil
}

func (p *Pipeline) reconciler() *reconcile.Reconciler {
	return reconcile.New(reconcile.Options{
		MergeDuplicateNames: p.opts.MergeDuplicateNames,
		Logger:              p.log,
	})
}

// persist writes the accumulated changes of state as one unit.
func (p *Pipeline) persist(ctx context.Context, state *clusterstate.State, step string) error {
	changes := state.ChangeSet()
	if p.opts.DryRun {
		p.log.Debug("dry run, not persisting", "step", step,
			"clusters", len(changes.Clusters), "assignments", len(changes.Assignments))
		state.ResetChanges()
		return nil
	}
	if changes.IsEmpty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("persisting %s: %w", step, err)
	}
	if err := p.store.ApplyChanges(ctx, changes); err != nil {
		return fmt.Errorf("persisting %s: %w", step, err)
	}
	p.log.Debug("persisted changes", "step", step,
		"clusters", len(changes.Clusters), "assignments", len(changes.Assignments))
	state.ResetChanges()
	return nil
}

func (p *Pipeline) saveRun(ctx context.Context, report *Report) {
	summary, err := json.Marshal(report)
	if err != nil {
		p.log.Warn("failed to encode run summary", "error", err)
		return
	}
	run := database.RunRecord{
		ID:         report.RunID,
		Eps:        report.Eps,
		MinSamples: report.MinSamples,
		Finder:     report.Finder,
		Summary:    summary,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		p.log.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

func checkDimensions(embeddings []database.FaceEmbedding) (int, error) {
	dim := len(embeddings[0].Embedding)
	if dim == 0 {
		return 0, fmt.Errorf("%w: face %d has an empty embedding", ErrDimensionMismatch, embeddings[0].FaceID)
	}
	for _, e := range embeddings[1:] {
		if len(e.Embedding) != dim {
			return 0, fmt.Errorf("%w: face %d has %d dimensions, expected %d",
				ErrDimensionMismatch, e.FaceID, len(e.Embedding), dim)
		}
	}
	return dim, nil
}

// labelGroups converts clusterer labels into groups of face ids.
func labelGroups(result *dbscan.Result, faceIDs []int64) [][]int64 {
	byLabel := result.Groups()
	groups := make([][]int64, 0, len(byLabel))
	for label := range result.NumClusters {
		idx := byLabel[label]
		if len(idx) == 0 {
			continue
		}
		group := make([]int64, len(idx))
		for i, j := range idx {
			group[i] = faceIDs[j]
		}
		groups = append(groups, group)
	}
	return groups
}
