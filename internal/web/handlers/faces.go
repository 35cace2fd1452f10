package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/facematch"
	"github.com/kozaktomas/face-cluster/internal/pipeline"
)

// FacesHandler handles face lookups and manual corrections.
// Corrections are stored and then replayed right away, so the response
// already reflects the face's new cluster.
type FacesHandler struct {
	store database.Store
	opts  pipeline.Options
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(store database.Store, opts pipeline.Options) *FacesHandler {
	return &FacesHandler{store: store, opts: opts}
}

// FaceResponse represents a face in API responses
type FaceResponse struct {
	ID         int64               `json:"id"`
	PhotoID    int64               `json:"photo_id"`
	BBox       database.BBox       `json:"bbox"`
	Confidence float64             `json:"confidence"`
	ClusterID  int64               `json:"cluster_id,omitempty"`
	Correction *CorrectionResponse `json:"correction,omitempty"`
}

// CorrectionResponse represents a manual correction in API responses
type CorrectionResponse struct {
	IsExcluded      bool      `json:"is_excluded"`
	PersonName      string    `json:"person_name,omitempty"`
	ManualClusterID int64     `json:"manual_cluster_id,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CorrectionResultResponse is returned after a correction was stored and replayed
type CorrectionResultResponse struct {
	Face      FaceResponse              `json:"face"`
	Reconcile *pipeline.ReconcileReport `json:"reconcile"`
}

func faceToResponse(f database.Face, c *database.Correction) FaceResponse {
	resp := FaceResponse{
		ID:         f.ID,
		PhotoID:    f.PhotoID,
		BBox:       f.BBox,
		Confidence: f.Confidence,
		ClusterID:  f.ClusterID,
	}
	if c != nil {
		resp.Correction = &CorrectionResponse{
			IsExcluded:      c.IsExcluded,
			PersonName:      c.PersonName,
			ManualClusterID: c.ManualClusterID,
			UpdatedAt:       c.UpdatedAt,
		}
	}
	return resp
}

// Get returns a face and its correction
func (h *FacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid face id")
		return
	}
	h.respondFace(w, r, id, http.StatusOK, nil)
}

// Exclude marks a face as not belonging to any cluster
func (h *FacesHandler) Exclude(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid face id")
		return
	}
	h.applyCorrection(w, r, database.Correction{FaceID: id, IsExcluded: true})
}

// AssignRequest is the body of a face assignment. Either a person name or a
// target cluster must be given; an unnamed target cluster requires a name.
type AssignRequest struct {
	PersonName string `json:"person_name" validate:"required_without=ClusterID,max=200"`
	ClusterID  int64  `json:"cluster_id" validate:"gte=0"`
}

// Assign assigns a face to a person
func (h *FacesHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid face id")
		return
	}
	var req AssignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := facematch.CanonicalName(req.PersonName)
	if req.ClusterID != database.NoCluster {
		target, err := h.store.GetCluster(r.Context(), req.ClusterID)
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
		if name == "" {
			name = target.Name
		}
	}
	if name == "" {
		respondError(w, http.StatusBadRequest, "person_name is required for an unnamed cluster")
		return
	}

	h.applyCorrection(w, r, database.Correction{FaceID: id, PersonName: name, ManualClusterID: req.ClusterID})
}

// RemoveCorrection deletes a face's correction. The face keeps its current
// cluster until the next clustering run.
func (h *FacesHandler) RemoveCorrection(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid face id")
		return
	}

	deleted, err := h.store.DeleteCorrection(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "face has no correction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FacesHandler) applyCorrection(w http.ResponseWriter, r *http.Request, c database.Correction) {
	if _, err := h.store.GetFace(r.Context(), c.FaceID); err != nil {
		respondStoreError(w, r, err)
		return
	}
	if err := h.store.UpsertCorrection(r.Context(), c); err != nil {
		respondStoreError(w, r, err)
		return
	}

	report, err := pipeline.New(h.store, h.opts).Reconcile(r.Context())
	if errors.Is(err, database.ErrRunInProgress) {
		// stored corrections are replayed by the running job or the next one
		respondError(w, http.StatusConflict, "correction stored, clustering run in progress")
		return
	}
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	h.respondFace(w, r, c.FaceID, http.StatusOK, report)
}

func (h *FacesHandler) respondFace(w http.ResponseWriter, r *http.Request, id int64, status int, report *pipeline.ReconcileReport) {
	face, err := h.store.GetFace(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	correction, err := h.store.GetCorrection(r.Context(), id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		respondStoreError(w, r, err)
		return
	}

	resp := faceToResponse(*face, correction)
	if report == nil {
		respondJSON(w, status, resp)
		return
	}
	respondJSON(w, status, CorrectionResultResponse{Face: resp, Reconcile: report})
}
