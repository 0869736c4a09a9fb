// Package counting holds the pure headcount policy: which detections count
// as present people for a given set of thresholds.
package counting

import "github.com/vizmon/headcount/pkg/types"

// Counts reports whether a single detection satisfies the policy: it must
// carry the person class, meet the confidence threshold and cover at least
// the minimum box area.
func Counts(d types.Detection, th types.Thresholds) bool {
	return d.IsPerson() && d.Confidence >= th.Confidence && d.Area() >= th.MinArea
}

// Count filters detections through the policy and returns the ones that
// count plus the resulting headcount. The input slice is never modified and
// the result preserves input order.
func Count(dets []types.Detection, th types.Thresholds) ([]types.Detection, int) {
	counted := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		if Counts(d, th) {
			counted = append(counted, d)
		}
	}
	return counted, len(counted)
}
