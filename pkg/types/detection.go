package types

import "image"

// PersonClassID is the COCO class index for "person". The counting policy
// only ever counts this class.
const PersonClassID = 0

// Detection is a single object reported by the detector for one frame.
// Confidence is the model's post-NMS score in [0,1]; Box is in frame
// pixel coordinates.
type Detection struct {
	ClassID    int             // Model class index
	Label      string          // Human readable class name (e.g., "person")
	Confidence float64         // Post-NMS confidence score
	Box        image.Rectangle // Bounding box in frame coordinates
}

// Area returns the bounding box area in pixels.
func (d Detection) Area() int {
	return d.Box.Dx() * d.Box.Dy()
}

// IsPerson reports whether the detection carries the person class.
func (d Detection) IsPerson() bool {
	return d.ClassID == PersonClassID
}
