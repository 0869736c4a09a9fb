package types

import (
	"image"
	"time"
)

// Frame represents a single decoded video frame with metadata
type Frame struct {
	Image     *image.RGBA // Decoded RGBA pixel data
	Number    uint64      // Sequential frame number
	Timestamp time.Time   // Frame capture timestamp
}

// Bounds returns the pixel bounds of the frame image.
func (f *Frame) Bounds() image.Rectangle {
	if f == nil || f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}
