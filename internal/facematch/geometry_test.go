package facematch

import (
	"errors"
	"math"
	"testing"

	"github.com/kozaktomas/face-cluster/internal/database"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		bbox1    database.BBox
		bbox2    database.BBox
		expected float64
	}{
		{
			name:     "identical boxes",
			bbox1:    database.BBox{Top: 0, Left: 0, Bottom: 10, Right: 10},
			bbox2:    database.BBox{Top: 0, Left: 0, Bottom: 10, Right: 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			bbox1:    database.BBox{Top: 0, Left: 0, Bottom: 10, Right: 10},
			bbox2:    database.BBox{Top: 20, Left: 20, Bottom: 30, Right: 30},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			bbox1:    database.BBox{Top: 0, Left: 0, Bottom: 10, Right: 10},
			bbox2:    database.BBox{Top: 5, Left: 5, Bottom: 15, Right: 15},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			bbox1:    database.BBox{Top: 0, Left: 0, Bottom: 20, Right: 20},
			bbox2:    database.BBox{Top: 5, Left: 5, Bottom: 15, Right: 15},
			expected: 100.0 / 400.0,
		},
		{
			name:     "degenerate box",
			bbox1:    database.BBox{},
			bbox2:    database.BBox{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.bbox1, tt.bbox2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.bbox1, tt.bbox2, result, tt.expected)
			}
		})
	}
}

func TestValidateBBox(t *testing.T) {
	tests := []struct {
		name    string
		bbox    database.BBox
		wantErr bool
	}{
		{"valid", database.BBox{Top: 10, Right: 50, Bottom: 60, Left: 5}, false},
		{"top equals bottom", database.BBox{Top: 10, Right: 50, Bottom: 10, Left: 5}, true},
		{"inverted horizontally", database.BBox{Top: 10, Right: 5, Bottom: 60, Left: 50}, true},
		{"zero", database.BBox{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBBox(tt.bbox)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateBBox(%v) error = %v, wantErr %v", tt.bbox, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidBBox) {
				t.Errorf("expected ErrInvalidBBox, got %v", err)
			}
		})
	}
}

func TestValidateDetection(t *testing.T) {
	box := database.BBox{Top: 0, Right: 10, Bottom: 10, Left: 0}
	emb := []float32{1, 2, 3}

	if err := ValidateDetection(box, 0.9, emb); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateDetection(box, 1.5, emb); err == nil {
		t.Error("expected error for confidence > 1")
	}
	if err := ValidateDetection(box, -0.1, emb); err == nil {
		t.Error("expected error for negative confidence")
	}
	if err := ValidateDetection(box, 0.5, nil); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestDedupeBoxes(t *testing.T) {
	boxes := []database.BBox{
		{Top: 0, Left: 0, Bottom: 10, Right: 10},
		{Top: 0, Left: 0, Bottom: 10, Right: 11}, // near-duplicate of 0
		{Top: 50, Left: 50, Bottom: 60, Right: 60},
	}

	keep := DedupeBoxes(boxes, 0.8)

	if len(keep) != 2 || keep[0] != 0 || keep[1] != 2 {
		t.Errorf("DedupeBoxes() = %v, want [0 2]", keep)
	}
}
