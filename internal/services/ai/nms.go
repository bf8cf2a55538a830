package ai

import (
	"sort"

	"camtrap/internal/models"
)

// SuppressionConfig controls post-decode filtering.
type SuppressionConfig struct {
	ConfidenceThreshold float64
	IOUThreshold        float64
	LegacyOverlap       bool
}

// Overlap returns the overlap measure selected by the config.
func (c SuppressionConfig) Overlap() OverlapFunc {
	if c.LegacyOverlap {
		return LegacyIOU
	}
	return IOU
}

// Apply filters by confidence and then runs per-class suppression.
func (c SuppressionConfig) Apply(detections []models.Detection) []models.Detection {
	return NonMaxSuppressionWith(FilterByConfidence(detections, c.ConfidenceThreshold), c.IOUThreshold, c.Overlap())
}

// FilterByConfidence keeps detections with Confidence >= threshold, preserving order.
func FilterByConfidence(detections []models.Detection, threshold float64) []models.Detection {
	kept := make([]models.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}

// NonMaxSuppression runs greedy suppression per class using IOU.
func NonMaxSuppression(detections []models.Detection, iouThreshold float64) []models.Detection {
	return NonMaxSuppressionWith(detections, iouThreshold, IOU)
}

// NonMaxSuppressionWith groups detections by ClassIndex and suppresses within each group.
// Groups are emitted in ascending class order, each sorted by descending confidence with
// ties kept in input order. A box survives when its overlap with every box already kept
// for its class is <= iouThreshold.
func NonMaxSuppressionWith(detections []models.Detection, iouThreshold float64, overlap OverlapFunc) []models.Detection {
	if len(detections) == 0 {
		return []models.Detection{}
	}

	groups := make(map[int][]models.Detection)
	for _, d := range detections {
		groups[d.ClassIndex] = append(groups[d.ClassIndex], d)
	}

	classes := make([]int, 0, len(groups))
	for class := range groups {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	result := make([]models.Detection, 0, len(detections))
	for _, class := range classes {
		result = append(result, suppressClass(groups[class], iouThreshold, overlap)...)
	}
	return result
}

func suppressClass(candidates []models.Detection, iouThreshold float64, overlap OverlapFunc) []models.Detection {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	accepted := make([]models.Detection, 0, len(candidates))
	for _, candidate := range candidates {
		keep := true
		for _, kept := range accepted {
			if overlap(candidate, kept) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			accepted = append(accepted, candidate)
		}
	}
	return accepted
}
