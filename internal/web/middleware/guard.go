package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// RunChecker reports whether a clustering run holds the run lock
type RunChecker interface {
	RunInProgress(ctx context.Context) (bool, error)
}

// RefuseDuringRun rejects requests with 409 Conflict while a clustering run is
// persisting results, so interactive edits never interleave with a run.
func RefuseDuringRun(checker RunChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			running, err := checker.RunInProgress(r.Context())
			if err != nil {
				slog.Error("checking run lock", "error", err)
				writeError(w, http.StatusServiceUnavailable, "cannot check clustering run state")
				return
			}
			if running {
				writeError(w, http.StatusConflict, "clustering run in progress")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
