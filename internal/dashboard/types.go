package dashboard

// attendanceRow is the JSON shape of one attendance log row.
type attendanceRow struct {
	Timestamp string `json:"timestamp"`
	Headcount int    `json:"headcount"`
}

// thresholdsRequest carries a thresholds update. A missing field keeps its
// current value.
type thresholdsRequest struct {
	Confidence *float64 `json:"confidence"`
	MinArea    *int     `json:"min_area"`
}
