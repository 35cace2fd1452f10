package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/database/mock"
	"github.com/kozaktomas/face-cluster/internal/logger"
)

const detectionsInput = `{"photo":"a.jpg","width":100,"height":100,"bbox":{"top":0,"right":50,"bottom":50,"left":0},"confidence":0.9,"embedding":[1,0]}
not json

{"photo":"a.jpg","bbox":{"top":50,"right":10,"bottom":10,"left":0},"confidence":0.9,"embedding":[1,0]}
{"photo":"b.jpg","bbox":{"top":0,"right":20,"bottom":20,"left":0},"confidence":0.8,"embedding":[0,1]}
{"photo":"a.jpg","bbox":{"top":0,"right":100,"bottom":40,"left":60},"confidence":0.7,"embedding":[0,1]}
{"photo":"a.jpg","bbox":{"top":1,"right":50,"bottom":50,"left":0},"confidence":0.6,"embedding":[1,0]}
{"bbox":{"top":0,"right":20,"bottom":20,"left":0},"confidence":0.8,"embedding":[0,1]}
`

func TestReadDetections(t *testing.T) {
	groups, invalid, err := readDetections(strings.NewReader(detectionsInput), logger.Discard())
	if err != nil {
		t.Fatalf("readDetections: %v", err)
	}
	if invalid != 3 {
		t.Errorf("expected 3 invalid lines, got %d", invalid)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(groups))
	}
	if groups[0].photo.FilePath != "a.jpg" || len(groups[0].detections) != 3 {
		t.Errorf("expected a.jpg with 3 detections, got %s with %d", groups[0].photo.FilePath, len(groups[0].detections))
	}
	if groups[0].photo.Width != 100 {
		t.Errorf("expected photo metadata from the first line, got width %d", groups[0].photo.Width)
	}
	if groups[1].photo.FilePath != "b.jpg" || len(groups[1].detections) != 1 {
		t.Errorf("expected b.jpg with 1 detection, got %s with %d", groups[1].photo.FilePath, len(groups[1].detections))
	}
}

func TestImportDetections(t *testing.T) {
	ctx := context.Background()
	store := mock.NewMockStore()

	groups, _, err := readDetections(strings.NewReader(detectionsInput), logger.Discard())
	if err != nil {
		t.Fatalf("readDetections: %v", err)
	}

	stats, err := importDetections(ctx, store, groups, 0.9, nil)
	if err != nil {
		t.Fatalf("importDetections: %v", err)
	}
	// the last a.jpg box nearly coincides with the first one
	want := ImportStats{Photos: 2, Imported: 3, Duplicates: 1}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}

	faces, err := store.GetPhotoFaces(ctx, 1)
	if err != nil {
		t.Fatalf("GetPhotoFaces: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 faces on a.jpg, got %d", len(faces))
	}
	for _, f := range faces {
		if f.ClusterID != database.NoCluster {
			t.Errorf("imported face %d should be unassigned, got cluster %d", f.ID, f.ClusterID)
		}
	}

	// importing the same file again adds nothing
	stats, err = importDetections(ctx, store, groups, 0.9, nil)
	if err != nil {
		t.Fatalf("second importDetections: %v", err)
	}
	if stats.Imported != 0 || stats.Duplicates != 4 {
		t.Errorf("expected all 4 detections to be duplicates, got %+v", stats)
	}
}

func TestImportDetections_WrongDimension(t *testing.T) {
	ctx := context.Background()

	t.Run("stored faces set the dimension", func(t *testing.T) {
		store := mock.NewMockStore()
		store.AddFace(database.Face{ID: 1, PhotoID: 9, Embedding: []float32{1, 0, 0}})

		groups, _, _ := readDetections(strings.NewReader(detectionsInput), logger.Discard())
		stats, err := importDetections(ctx, store, groups, 0.9, nil)
		if err != nil {
			t.Fatalf("importDetections: %v", err)
		}
		want := ImportStats{WrongDimension: 4}
		if stats != want {
			t.Errorf("expected %+v, got %+v", want, stats)
		}
		if dim, _ := store.EmbeddingDimension(ctx); dim != 3 {
			t.Errorf("expected stored dimension 3, got %d", dim)
		}
	})

	t.Run("first detection sets the dimension", func(t *testing.T) {
		input := `{"photo":"a.jpg","bbox":{"top":0,"right":50,"bottom":50,"left":0},"confidence":0.9,"embedding":[1,0]}
{"photo":"b.jpg","bbox":{"top":0,"right":50,"bottom":50,"left":0},"confidence":0.9,"embedding":[1,0,0]}
{"photo":"b.jpg","bbox":{"top":60,"right":90,"bottom":90,"left":60},"confidence":0.9,"embedding":[0,1]}
`
		store := mock.NewMockStore()
		groups, _, _ := readDetections(strings.NewReader(input), logger.Discard())
		stats, err := importDetections(ctx, store, groups, 0.9, nil)
		if err != nil {
			t.Fatalf("importDetections: %v", err)
		}
		want := ImportStats{Photos: 2, Imported: 2, WrongDimension: 1}
		if stats != want {
			t.Errorf("expected %+v, got %+v", want, stats)
		}
	})
}

func TestImportDetections_StoreError(t *testing.T) {
	store := mock.NewMockStore()
	store.InsertFaceError = errors.New("disk full")

	groups, _, _ := readDetections(strings.NewReader(detectionsInput), logger.Discard())
	if _, err := importDetections(context.Background(), store, groups, 0.9, nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseID("face", tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
