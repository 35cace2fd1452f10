package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-cluster/internal/database"
)

func faceRequest(t *testing.T, method, path string, id string, body any) *http.Request {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = jsonRequest(t, method, path, body)
	}
	return requestWithChiParams(req, map[string]string{"id": id})
}

func TestFacesHandler_Get(t *testing.T) {
	store := testStore(t)
	store.AddCorrection(database.Correction{FaceID: 2, PersonName: "Alice", ManualClusterID: 1})
	handler := NewFacesHandler(store, testOptions())

	recorder := httptest.NewRecorder()
	handler.Get(recorder, faceRequest(t, http.MethodGet, "/api/v1/faces/2", "2", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp FaceResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.ClusterID != 1 || resp.Correction == nil || resp.Correction.PersonName != "Alice" {
		t.Errorf("unexpected face response: %+v", resp)
	}

	recorder = httptest.NewRecorder()
	handler.Get(recorder, faceRequest(t, http.MethodGet, "/api/v1/faces/42", "42", nil))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestFacesHandler_Exclude(t *testing.T) {
	store := testStore(t)
	handler := NewFacesHandler(store, testOptions())

	recorder := httptest.NewRecorder()
	handler.Exclude(recorder, faceRequest(t, http.MethodPost, "/api/v1/faces/2/exclude", "2", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp CorrectionResultResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Face.ClusterID != database.NoCluster {
		t.Errorf("expected excluded face to have no cluster, got %d", resp.Face.ClusterID)
	}
	if resp.Reconcile == nil || resp.Reconcile.Corrections.Applied != 1 {
		t.Errorf("expected one applied correction, got %+v", resp.Reconcile)
	}

	cluster, _ := store.GetCluster(context.Background(), 1)
	if cluster.FaceCount != 2 {
		t.Errorf("expected cluster 1 to keep 2 faces, got %d", cluster.FaceCount)
	}
}

func TestFacesHandler_Assign(t *testing.T) {
	tests := []struct {
		name        string
		faceID      string
		body        AssignRequest
		wantStatus  int
		wantCluster int64
		wantName    string
	}{
		{"new person", "6", AssignRequest{PersonName: "Bob"}, http.StatusOK, 3, "Bob"},
		{"existing person by name", "6", AssignRequest{PersonName: "alice"}, http.StatusOK, 3, "alice"},
		{"named cluster without name", "4", AssignRequest{ClusterID: 1}, http.StatusOK, 1, "Alice"},
		{"name wins over cluster", "6", AssignRequest{PersonName: "Alice", ClusterID: 2}, http.StatusOK, 1, "Alice"},
		{"unnamed cluster without name", "4", AssignRequest{ClusterID: 2}, http.StatusBadRequest, 0, ""},
		{"unknown cluster", "4", AssignRequest{ClusterID: 77}, http.StatusNotFound, 0, ""},
		{"empty request", "4", AssignRequest{}, http.StatusBadRequest, 0, ""},
		{"unknown face", "99", AssignRequest{PersonName: "Bob"}, http.StatusNotFound, 0, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := testStore(t)
			recorder := httptest.NewRecorder()
			NewFacesHandler(store, testOptions()).Assign(recorder,
				faceRequest(t, http.MethodPost, "/api/v1/faces/"+tc.faceID+"/assign", tc.faceID, tc.body))

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus != http.StatusOK {
				return
			}

			var resp CorrectionResultResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Face.ClusterID != tc.wantCluster {
				t.Errorf("expected cluster %d, got %d", tc.wantCluster, resp.Face.ClusterID)
			}
			cluster, err := store.GetCluster(context.Background(), resp.Face.ClusterID)
			if err != nil {
				t.Fatalf("target cluster missing: %v", err)
			}
			if cluster.Name != tc.wantName {
				t.Errorf("expected cluster name %q, got %q", tc.wantName, cluster.Name)
			}
		})
	}
}

func TestFacesHandler_Assign_RunInProgress(t *testing.T) {
	store := testStore(t)
	store.SetLocked(true)

	recorder := httptest.NewRecorder()
	NewFacesHandler(store, testOptions()).Assign(recorder,
		faceRequest(t, http.MethodPost, "/api/v1/faces/6/assign", "6", AssignRequest{PersonName: "Bob"}))

	assertStatusCode(t, recorder, http.StatusConflict)
	if _, err := store.GetCorrection(context.Background(), 6); err != nil {
		t.Errorf("expected correction to be stored for the next run, got %v", err)
	}
}

func TestFacesHandler_RemoveCorrection(t *testing.T) {
	store := testStore(t)
	store.AddCorrection(database.Correction{FaceID: 3, IsExcluded: true})
	handler := NewFacesHandler(store, testOptions())

	recorder := httptest.NewRecorder()
	handler.RemoveCorrection(recorder, faceRequest(t, http.MethodDelete, "/api/v1/faces/3/correction", "3", nil))
	assertStatusCode(t, recorder, http.StatusNoContent)

	recorder = httptest.NewRecorder()
	handler.RemoveCorrection(recorder, faceRequest(t, http.MethodDelete, "/api/v1/faces/3/correction", "3", nil))
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "face has no correction")
}
