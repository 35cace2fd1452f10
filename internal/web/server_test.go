package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-cluster/internal/config"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/database/mock"
	"github.com/kozaktomas/face-cluster/internal/logger"
)

func newTestServer(t *testing.T) (*Server, *mock.MockStore) {
	t.Helper()
	store := mock.NewMockStore()
	store.AddCluster(database.Cluster{ID: 1, Name: "Alice", FaceCount: 2, RepresentativeFaceID: 1})
	for id := int64(1); id <= 3; id++ {
		cluster := int64(1)
		if id == 3 {
			cluster = database.NoCluster
		}
		store.AddFace(database.Face{ID: id, PhotoID: 1, Embedding: []float32{0, 1}, ClusterID: cluster})
	}

	cfg := config.Load()
	cfg.Web.CORSOrigins = []string{"http://localhost:5173"}
	return NewServer(cfg, store, logger.Discard()), store
}

func TestServer_Routes(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{http.MethodGet, "/api/v1/stats", "", http.StatusOK},
		{http.MethodGet, "/api/v1/clusters", "", http.StatusOK},
		{http.MethodGet, "/api/v1/clusters/1", "", http.StatusOK},
		{http.MethodGet, "/api/v1/clusters/5", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/people/Alice", "", http.StatusOK},
		{http.MethodGet, "/api/v1/faces/3", "", http.StatusOK},
		{http.MethodGet, "/api/v1/runs", "", http.StatusOK},
		{http.MethodPost, "/api/v1/faces/3/assign", `{"person_name":"Alice"}`, http.StatusOK},
		{http.MethodPut, "/api/v1/clusters/1", `{"name":"Alice B"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/reconcile", "", http.StatusOK},
		{http.MethodPost, "/api/v1/repair", "", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/clusters/1", "", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			recorder := httptest.NewRecorder()
			srv.Router().ServeHTTP(recorder, req)

			if recorder.Code != tc.want {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.want, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServer_WritesRefusedDuringRun(t *testing.T) {
	srv, store := newTestServer(t)
	release, err := store.AcquireRunLock(context.Background())
	if err != nil {
		t.Fatalf("AcquireRunLock: %v", err)
	}
	defer release()

	writes := []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/faces/1/exclude", ""},
		{http.MethodPost, "/api/v1/faces/3/assign", `{"person_name":"Bob"}`},
		{http.MethodPut, "/api/v1/clusters/1", `{"name":"Bob"}`},
		{http.MethodDelete, "/api/v1/faces/1/correction", ""},
		{http.MethodPost, "/api/v1/reconcile", ""},
	}
	for _, w := range writes {
		recorder := httptest.NewRecorder()
		srv.Router().ServeHTTP(recorder, httptest.NewRequest(w.method, w.path, strings.NewReader(w.body)))
		if recorder.Code != http.StatusConflict {
			t.Errorf("%s %s: expected 409, got %d", w.method, w.path, recorder.Code)
		}
	}

	// reads stay available
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/clusters/1", nil))
	if recorder.Code != http.StatusOK {
		t.Errorf("expected reads to succeed during a run, got %d", recorder.Code)
	}
	if _, err := store.GetCorrection(context.Background(), 3); err == nil {
		t.Error("refused assign must not store a correction")
	}
}

func TestServer_CORSAndSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/clusters", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected allowed origin header, got %q", got)
	}

	recorder = httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
}
