package dbscan

import (
	"math"
	"testing"
)

func TestNormalize_UnitNorm(t *testing.T) {
	vectors := [][]float32{
		{3, 4},
		{1, 1, 1, 1},
		{-2, 0, 0},
		{0.001, 0.002, 0.003},
	}

	out := Normalize(vectors)

	for i, v := range out {
		if norm := Norm(v); math.Abs(norm-1) > 1e-6 {
			t.Errorf("row %d: expected unit norm, got %v", i, norm)
		}
		// Direction preserved: every component keeps the original ratio to the norm.
		orig := Norm(vectors[i])
		for j := range v {
			want := float64(vectors[i][j]) / orig
			if math.Abs(float64(v[j])-want) > 1e-6 {
				t.Errorf("row %d col %d: got %v, want %v", i, j, v[j], want)
			}
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	vectors := [][]float32{{3, 4}}
	Normalize(vectors)
	if vectors[0][0] != 3 || vectors[0][1] != 4 {
		t.Errorf("input was modified: %v", vectors[0])
	}
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	out := Normalize([][]float32{{0, 0, 0}})
	if !IsZero(out[0]) {
		t.Errorf("expected zero vector to stay zero, got %v", out[0])
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, math.Sqrt2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, math.Inf(1)},
		{"both zero", []float32{0, 0}, []float32{0, 0}, math.Inf(1)},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.IsInf(tt.expected, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("Distance() = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("Distance() = %v, want %v", got, tt.expected)
			}
		})
	}
}
