package detector

import (
	"bytes"
	"image"
	"image/jpeg"
	"math"

	"github.com/nfnt/resize"

	"github.com/vizmon/headcount/pkg/types"
)

// Both backends speak the same request/response schema. Requests carry the
// JPEG frame (base64 under encoding/json) and the NMS options; responses
// carry either the detections or an error message.

type wireRequest struct {
	ID     uint64  `json:"id"`
	Image  []byte  `json:"image"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Conf   float64 `json:"conf"`
	IOU    float64 `json:"iou"`
}

type wireResponse struct {
	ID         uint64          `json:"id"`
	Detections []wireDetection `json:"detections"`
	Error      string          `json:"error,omitempty"`
}

// wireDetection boxes are x1,y1,x2,y2 in pixels of the image that was sent.
type wireDetection struct {
	ClassID    int        `json:"class_id"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

// prepareImage downscales img so its longest edge fits bound and encodes it
// as JPEG. It returns the encoded bytes, the sent dimensions and the factor
// that maps sent coordinates back to frame coordinates.
func prepareImage(img image.Image, bound int) ([]byte, int, int, float64, error) {
	if bound <= 0 {
		bound = DefaultInputSize
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := 1.0

	longest := w
	if h > longest {
		longest = h
	}
	if longest > bound {
		scale = float64(longest) / float64(bound)
		if w >= h {
			img = resize.Resize(uint(bound), 0, img, resize.Bilinear)
		} else {
			img = resize.Resize(0, uint(bound), img, resize.Bilinear)
		}
		b = img.Bounds()
		w, h = b.Dx(), b.Dy()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, 0, 0, 0, err
	}
	return buf.Bytes(), w, h, scale, nil
}

// toDetections maps wire detections back into frame coordinates, scaling
// boxes up and clamping them to the frame bounds.
func toDetections(wire []wireDetection, scale float64, frame image.Rectangle) []types.Detection {
	dets := make([]types.Detection, 0, len(wire))
	for _, d := range wire {
		box := image.Rect(
			int(math.Round(d.Box[0]*scale)),
			int(math.Round(d.Box[1]*scale)),
			int(math.Round(d.Box[2]*scale)),
			int(math.Round(d.Box[3]*scale)),
		).Intersect(frame)

		dets = append(dets, types.Detection{
			ClassID:    d.ClassID,
			Label:      d.Label,
			Confidence: d.Confidence,
			Box:        box,
		})
	}
	return dets
}
