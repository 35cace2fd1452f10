package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-cluster/internal/database"
)

func TestClustersHandler_List(t *testing.T) {
	store := testStore(t)
	store.AddCluster(database.Cluster{ID: 9}) // tombstone
	handler := NewClustersHandler(store)

	tests := []struct {
		name      string
		query     string
		wantIDs   []int64
		wantTotal int
	}{
		{"default hides empty clusters", "", []int64{1, 2}, 2},
		{"include empty", "?min_faces=0", []int64{1, 2, 9}, 3},
		{"named only", "?named=true", []int64{1}, 1},
		{"paginated", "?limit=1&offset=1", []int64{2}, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/clusters"+tc.query, nil))

			assertStatusCode(t, recorder, http.StatusOK)
			assertContentType(t, recorder, "application/json")

			var resp ClusterListResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Total != tc.wantTotal {
				t.Errorf("expected total %d, got %d", tc.wantTotal, resp.Total)
			}
			if len(resp.Clusters) != len(tc.wantIDs) {
				t.Fatalf("expected %d clusters, got %d", len(tc.wantIDs), len(resp.Clusters))
			}
			for i, id := range tc.wantIDs {
				if resp.Clusters[i].ID != id {
					t.Errorf("cluster %d: expected id %d, got %d", i, id, resp.Clusters[i].ID)
				}
			}
		})
	}
}

func TestClustersHandler_List_InvalidQuery(t *testing.T) {
	recorder := httptest.NewRecorder()
	NewClustersHandler(testStore(t)).List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/clusters?limit=x", nil))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid limit")
}

func TestClustersHandler_Get(t *testing.T) {
	handler := NewClustersHandler(testStore(t))

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/clusters/1", nil), map[string]string{"id": "1"})
	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp ClusterDetailResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Name != "Alice" || len(resp.Faces) != 3 {
		t.Errorf("expected Alice with 3 faces, got %q with %d", resp.Name, len(resp.Faces))
	}

	recorder = httptest.NewRecorder()
	req = requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/clusters/99", nil), map[string]string{"id": "99"})
	handler.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)

	recorder = httptest.NewRecorder()
	req = requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/clusters/abc", nil), map[string]string{"id": "abc"})
	handler.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid cluster id")
}

func TestClustersHandler_ByName(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/people/Alice", nil),
		map[string]string{"name": "  Alice "})
	NewClustersHandler(testStore(t)).ByName(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp []ClusterResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp) != 1 || resp[0].ID != 1 {
		t.Errorf("expected cluster 1, got %+v", resp)
	}
}

func TestClustersHandler_ByName_Loose(t *testing.T) {
	store := testStore(t)
	store.AddCluster(database.Cluster{ID: 7, Name: "Zoë"})
	handler := NewClustersHandler(store)

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/people/zoe?loose=true", nil),
		map[string]string{"name": "zoe"})
	handler.ByName(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp []ClusterResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp) != 1 || resp[0].ID != 7 {
		t.Errorf("expected cluster 7, got %+v", resp)
	}

	recorder = httptest.NewRecorder()
	req = requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/people/zoe", nil),
		map[string]string{"name": "zoe"})
	handler.ByName(recorder, req)
	parseJSONResponse(t, recorder, &resp)
	if len(resp) != 0 {
		t.Errorf("expected no exact match, got %+v", resp)
	}
}

func TestClustersHandler_Rename(t *testing.T) {
	store := testStore(t)
	handler := NewClustersHandler(store)

	recorder := httptest.NewRecorder()
	req := requestWithChiParams(jsonRequest(t, http.MethodPut, "/api/v1/clusters/2", RenameRequest{Name: " Bob  Smith "}),
		map[string]string{"id": "2"})
	handler.Rename(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp ClusterResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Name != "Bob Smith" {
		t.Errorf("expected canonical name 'Bob Smith', got %q", resp.Name)
	}
}

func TestClustersHandler_Rename_NameTaken(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		newName    string
		wantStatus int
	}{
		{"held by another cluster", "2", " Alice ", http.StatusConflict},
		{"own name", "1", "Alice", http.StatusOK},
		{"clear", "2", "", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := testStore(t)
			recorder := httptest.NewRecorder()
			req := requestWithChiParams(jsonRequest(t, http.MethodPut, "/api/v1/clusters/"+tc.id, RenameRequest{Name: tc.newName}),
				map[string]string{"id": tc.id})
			NewClustersHandler(store).Rename(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus != http.StatusConflict {
				return
			}
			c, err := store.GetCluster(context.Background(), 2)
			if err != nil {
				t.Fatalf("GetCluster() error = %v", err)
			}
			if c.Name == "Alice" {
				t.Error("refused rename must not change the cluster")
			}
		})
	}
}

func TestClustersHandler_SetRepresentative(t *testing.T) {
	tests := []struct {
		name       string
		faceID     int64
		wantStatus int
	}{
		{"member", 3, http.StatusOK},
		{"not a member", 4, http.StatusBadRequest},
		{"missing face", 99, http.StatusNotFound},
		{"invalid body", 0, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := testStore(t)
			recorder := httptest.NewRecorder()
			req := requestWithChiParams(
				jsonRequest(t, http.MethodPut, "/api/v1/clusters/1/representative", RepresentativeRequest{FaceID: tc.faceID}),
				map[string]string{"id": "1"})
			NewClustersHandler(store).SetRepresentative(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus == http.StatusOK {
				var resp ClusterResponse
				parseJSONResponse(t, recorder, &resp)
				if resp.RepresentativeFaceID != tc.faceID {
					t.Errorf("expected representative %d, got %d", tc.faceID, resp.RepresentativeFaceID)
				}
			}
		})
	}
}
