package session

import (
	"time"

	"github.com/vizmon/headcount/internal/counting"
	"github.com/vizmon/headcount/pkg/types"
)

// State is the lifecycle phase of the session controller.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

// String returns the lowercase state name used in API payloads.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DetectionInfo is the wire form of one raw detection, flagged with whether
// the counting policy accepted it. The dashboard debug table lists all of
// them, counted or not.
type DetectionInfo struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
	Area       int     `json:"area"`
	Counted    bool    `json:"counted"`
}

// ThresholdInfo is the wire form of the live thresholds.
type ThresholdInfo struct {
	Confidence float64 `json:"confidence"`
	MinArea    int     `json:"min_area"`
}

// Snapshot is one observable moment of the session: its state, the latest
// headcount and detections, and bookkeeping for the dashboard.
type Snapshot struct {
	State           string          `json:"state"`
	SessionID       string          `json:"session_id,omitempty"`
	Message         string          `json:"message,omitempty"`
	FramesProcessed uint64          `json:"frames_processed"`
	FramesSkipped   uint64          `json:"frames_skipped"`
	Headcount       int             `json:"headcount"`
	Detections      []DetectionInfo `json:"detections"`
	Thresholds      ThresholdInfo   `json:"thresholds"`
	LogFailures     uint64          `json:"log_write_failures"`
	StartedAt       string          `json:"started_at,omitempty"`
	StoppedAt       string          `json:"stopped_at,omitempty"`
	Timestamp       string          `json:"timestamp"`
}

func newDetectionInfo(d types.Detection, th types.Thresholds) DetectionInfo {
	return DetectionInfo{
		ClassID:    d.ClassID,
		Label:      d.Label,
		Confidence: d.Confidence,
		Box:        [4]int{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y},
		Area:       d.Area(),
		Counted:    counting.Counts(d, th),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
