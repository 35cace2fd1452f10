package dbscan

import "math"

// Normalize returns a copy of vectors with every row scaled to unit Euclidean norm,
// so that Euclidean distance between rows behaves like a cosine dissimilarity.
// Zero vectors have no direction: they are copied unchanged and Distance treats
// them as infinitely far from every other vector.
func Normalize(vectors [][]float32) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		row := make([]float32, len(v))
		norm := Norm(v)
		if norm == 0 {
			copy(row, v)
		} else {
			for j, x := range v {
				row[j] = float32(float64(x) / norm)
			}
		}
		out[i] = row
	}
	return out
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance between a and b.
// Returns +Inf when either vector is zero or the lengths differ.
func Distance(a, b []float32) float64 {
	if len(a) != len(b) || IsZero(a) || IsZero(b) {
		return math.Inf(1)
	}
	return euclidean(a, b)
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
