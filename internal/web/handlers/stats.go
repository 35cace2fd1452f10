package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-cluster/internal/database"
)

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	store database.StatsReader
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(store database.StatsReader) *StatsHandler {
	return &StatsHandler{store: store}
}

// Get returns photo, face, cluster and correction counts
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
