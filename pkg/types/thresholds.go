package types

import "fmt"

// Slider bounds for the tuning knobs. The dashboard enforces these on
// update; the counting policy assumes values inside them.
const (
	ConfidenceFloor = 0.0
	ConfidenceCeil  = 1.0
	MinAreaFloor    = 1000
	MinAreaCeil     = 50000

	DefaultConfidence = 0.45
	DefaultMinArea    = 8000
)

// Thresholds are the live tuning knobs applied to each frame's detections.
type Thresholds struct {
	Confidence float64 // Minimum confidence for a detection to count
	MinArea    int     // Minimum bounding box area in pixels
}

// DefaultThresholds returns the initial slider positions.
func DefaultThresholds() Thresholds {
	return Thresholds{Confidence: DefaultConfidence, MinArea: DefaultMinArea}
}

// Validate checks both knobs against their slider bounds.
func (t Thresholds) Validate() error {
	if t.Confidence < ConfidenceFloor || t.Confidence > ConfidenceCeil {
		return fmt.Errorf("confidence %.2f outside [%g, %g]", t.Confidence, float64(ConfidenceFloor), float64(ConfidenceCeil))
	}
	if t.MinArea < MinAreaFloor || t.MinArea > MinAreaCeil {
		return fmt.Errorf("min area %d outside [%d, %d]", t.MinArea, MinAreaFloor, MinAreaCeil)
	}
	return nil
}
