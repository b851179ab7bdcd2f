package detector

import (
	"image"
	"sort"
)

// IoU returns the intersection over union of two boxes.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return float64(ia) / float64(union)
}

func area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// sortByConfidence orders regions by descending confidence. Equal scores keep
// their input order.
func sortByConfidence(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Confidence > regions[j].Confidence
	})
}

// NonMaxSuppression keeps the highest scoring region of every overlapping
// group. Regions of different classes never suppress each other. The result
// is sorted by descending confidence.
func NonMaxSuppression(regions []Region, iouThreshold float64) []Region {
	if len(regions) == 0 {
		return nil
	}
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sortByConfidence(sorted)

	suppressed := make([]bool, len(sorted))
	kept := make([]Region, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].Class != sorted[i].Class {
				continue
			}
			if IoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
