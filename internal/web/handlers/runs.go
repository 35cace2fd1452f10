package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kozaktomas/face-cluster/internal/constants"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/pipeline"
)

// RunsHandler handles run history and maintenance passes
type RunsHandler struct {
	store database.Store
	opts  pipeline.Options
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(store database.Store, opts pipeline.Options) *RunsHandler {
	return &RunsHandler{store: store, opts: opts}
}

// RunResponse represents a recorded clustering run
type RunResponse struct {
	ID         string          `json:"id"`
	Eps        float64         `json:"eps"`
	MinSamples int             `json:"min_samples"`
	Finder     string          `json:"finder"`
	Summary    json.RawMessage `json:"summary"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// List returns the most recent clustering runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", constants.DefaultRunHistory)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, RunResponse{
			ID:         run.ID,
			Eps:        run.Eps,
			MinSamples: run.MinSamples,
			Finder:     run.Finder,
			Summary:    run.Summary,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Reconcile replays all corrections without re-clustering
func (h *RunsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := pipeline.New(h.store, h.opts).Reconcile(r.Context())
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Repair recomputes face counts and representatives
func (h *RunsHandler) Repair(w http.ResponseWriter, r *http.Request) {
	res, err := pipeline.New(h.store, h.opts).Repair(r.Context())
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
