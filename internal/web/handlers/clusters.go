package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-cluster/internal/constants"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/facematch"
)

// ClustersHandler handles cluster listing and metadata edits
type ClustersHandler struct {
	store database.Store
}

// NewClustersHandler creates a new clusters handler
func NewClustersHandler(store database.Store) *ClustersHandler {
	return &ClustersHandler{store: store}
}

// ClusterResponse represents a cluster in API responses
type ClusterResponse struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name,omitempty"`
	FaceCount            int       `json:"face_count"`
	RepresentativeFaceID int64     `json:"representative_face_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ClusterListResponse is a page of clusters
type ClusterListResponse struct {
	Clusters []ClusterResponse `json:"clusters"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// ClusterDetailResponse is a cluster with its member faces
type ClusterDetailResponse struct {
	ClusterResponse
	Faces []FaceResponse `json:"faces"`
}

func clusterToResponse(c database.Cluster) ClusterResponse {
	return ClusterResponse{
		ID:                   c.ID,
		Name:                 c.Name,
		FaceCount:            c.FaceCount,
		RepresentativeFaceID: c.RepresentativeFaceID,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

// List returns a page of clusters, largest first
func (h *ClustersHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", constants.DefaultPageSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	minFaces, err := intQuery(r, "min_faces", 1)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 || limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}

	clusters, total, err := h.store.PageClusters(r.Context(), database.ClusterQuery{
		MinFaces:  minFaces,
		NamedOnly: r.URL.Query().Get("named") == "true",
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	resp := ClusterListResponse{
		Clusters: make([]ClusterResponse, 0, len(clusters)),
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}
	for _, c := range clusters {
		resp.Clusters = append(resp.Clusters, clusterToResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get returns a cluster with its faces
func (h *ClustersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}

	cluster, err := h.store.GetCluster(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	faces, err := h.store.GetClusterFaces(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	resp := ClusterDetailResponse{
		ClusterResponse: clusterToResponse(*cluster),
		Faces:           make([]FaceResponse, 0, len(faces)),
	}
	for _, f := range faces {
		resp.Faces = append(resp.Faces, faceToResponse(f, nil))
	}
	respondJSON(w, http.StatusOK, resp)
}

// ByName returns the clusters bearing a person's name. With loose=true the
// comparison ignores case, diacritics and dashes.
func (h *ClustersHandler) ByName(w http.ResponseWriter, r *http.Request) {
	name := facematch.CanonicalName(chi.URLParam(r, "name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	var clusters []database.Cluster
	var err error
	if r.URL.Query().Get("loose") == "true" {
		clusters, err = h.store.ListClusters(r.Context())
		clusters = facematch.FilterByLooseName(clusters, name)
	} else {
		clusters, err = h.store.FindClustersByName(r.Context(), name)
	}
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	resp := make([]ClusterResponse, 0, len(clusters))
	for _, c := range clusters {
		resp = append(resp, clusterToResponse(c))
	}
	respondJSON(w, http.StatusOK, resp)
}

// RenameRequest is the body of a cluster rename. An empty name clears it.
type RenameRequest struct {
	Name string `json:"name" validate:"max=200"`
}

// Rename sets or clears a cluster's name. A name held by another cluster is refused with 409.
func (h *ClustersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}
	var req RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := facematch.CanonicalName(req.Name)
	if err := database.CheckNameAvailable(r.Context(), h.store, id, name); err != nil {
		respondStoreError(w, r, err)
		return
	}
	if err := h.store.RenameCluster(r.Context(), id, name); err != nil {
		respondStoreError(w, r, err)
		return
	}
	cluster, err := h.store.GetCluster(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, clusterToResponse(*cluster))
}

// RepresentativeRequest is the body of a representative face change
type RepresentativeRequest struct {
	FaceID int64 `json:"face_id" validate:"required,gt=0"`
}

// SetRepresentative sets the representative face of a cluster. The face must be a member.
func (h *ClustersHandler) SetRepresentative(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cluster id")
		return
	}
	var req RepresentativeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	face, err := h.store.GetFace(r.Context(), req.FaceID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if face.ClusterID != id {
		respondError(w, http.StatusBadRequest, "face is not a member of the cluster")
		return
	}

	if err := h.store.SetRepresentative(r.Context(), id, req.FaceID); err != nil {
		respondStoreError(w, r, err)
		return
	}
	cluster, err := h.store.GetCluster(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, clusterToResponse(*cluster))
}
