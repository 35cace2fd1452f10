package facematch

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/face-cluster/internal/database"
)

// ErrInvalidBBox is returned for bounding boxes that are empty or inverted.
var ErrInvalidBBox = errors.New("invalid bounding box")

// ValidateBBox checks that top < bottom and left < right.
func ValidateBBox(b database.BBox) error {
	if b.Top >= b.Bottom || b.Left >= b.Right {
		return fmt.Errorf("%w: top=%d bottom=%d left=%d right=%d", ErrInvalidBBox, b.Top, b.Bottom, b.Left, b.Right)
	}
	return nil
}

// ValidateDetection checks a detected face before it is stored.
func ValidateDetection(b database.BBox, confidence float64, embedding []float32) error {
	if err := ValidateBBox(b); err != nil {
		return err
	}
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", confidence)
	}
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}
	return nil
}

// ComputeIoU calculates Intersection over Union between two bounding boxes.
func ComputeIoU(a, b database.BBox) float64 {
	// Calculate intersection.
	left := max(a.Left, b.Left)
	top := max(a.Top, b.Top)
	right := min(a.Right, b.Right)
	bottom := min(a.Bottom, b.Bottom)

	if right <= left || bottom <= top {
		return 0 // No intersection
	}

	intersection := float64(right-left) * float64(bottom-top)

	// Calculate union.
	area1 := float64(a.Right-a.Left) * float64(a.Bottom-a.Top)
	area2 := float64(b.Right-b.Left) * float64(b.Bottom-b.Top)
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// DedupeBoxes returns the indexes of boxes to keep, dropping any box whose IoU with an
// earlier kept box reaches threshold. Detectors occasionally report the same face twice.
func DedupeBoxes(boxes []database.BBox, threshold float64) []int {
	keep := make([]int, 0, len(boxes))
	for i, b := range boxes {
		duplicate := false
		for _, k := range keep {
			if ComputeIoU(boxes[k], b) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			keep = append(keep, i)
		}
	}
	return keep
}
