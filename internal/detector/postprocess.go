package detector

import (
	"fmt"
	"math"
)

// decodeOutput turns a raw YOLO head into candidate regions. The head is
// [1, 4+classes, anchors] as exported by ultralytics, or the transposed
// [1, anchors, 4+classes]; each anchor carries (cx, cy, w, h, scores...).
func decodeOutput(data []float32, shape []int64, numClasses int, floor float64, lb letterbox) ([]Region, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	attrs := int64(4 + numClasses)
	var anchors int
	var channelsFirst bool
	switch {
	case shape[1] == attrs:
		channelsFirst, anchors = true, int(shape[2])
	case shape[2] == attrs:
		channelsFirst, anchors = false, int(shape[1])
	default:
		return nil, fmt.Errorf("output shape %v does not carry %d attributes", shape, attrs)
	}
	if len(data) != anchors*int(attrs) {
		return nil, fmt.Errorf("output length %d does not match shape %v", len(data), shape)
	}

	at := func(anchor, attr int) float64 {
		if channelsFirst {
			return float64(data[attr*anchors+anchor])
		}
		return float64(data[anchor*int(attrs)+attr])
	}

	var regions []Region
	for a := range anchors {
		// NaN scores never compare greater, so an all-NaN anchor keeps best < 0.
		best, bestScore := -1, math.Inf(-1)
		for c := range numClasses {
			if s := at(a, 4+c); s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < floor {
			continue
		}
		box := lb.unmap(at(a, 0), at(a, 1), at(a, 2), at(a, 3))
		regions = append(regions, Region{Box: box, Confidence: bestScore, Class: Class(best)})
	}
	return regions, nil
}
