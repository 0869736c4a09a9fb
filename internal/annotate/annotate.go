// Package annotate draws counted detections onto frames: a box outline and
// a confidence label, which is what the dashboard live stream shows.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/vizmon/headcount/pkg/types"
)

// BoxColor is the outline and label color for counted detections.
var BoxColor = color.RGBA{G: 255, A: 255}

const boxThickness = 2

// Draw overlays every given detection on the frame image in place: a
// rectangle around its box and its confidence formatted to two decimals
// just above it. Pixels outside the outlines and label glyphs are left
// untouched, so callers pass only the detections that counted.
func Draw(img *image.RGBA, counted []types.Detection) {
	for _, d := range counted {
		drawRect(img, d.Box, BoxColor, boxThickness)
		drawLabel(img, d.Box, fmt.Sprintf("%.2f", d.Confidence), BoxColor)
	}
}

func drawRect(img *image.RGBA, box image.Rectangle, col color.Color, thickness int) {
	bounds := img.Bounds()
	setPixel := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.Set(x, y, col)
		}
	}

	x1, y1 := box.Min.X, box.Min.Y
	x2, y2 := box.Max.X, box.Max.Y
	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

func drawLabel(img *image.RGBA, box image.Rectangle, text string, col color.Color) {
	face := basicfont.Face7x13

	// Baseline sits just above the box; if the box is too close to the top
	// of the frame, put the label inside the box instead.
	pt := image.Pt(box.Min.X, box.Min.Y-6)
	if pt.Y-face.Ascent < img.Bounds().Min.Y {
		pt = image.Pt(box.Min.X, box.Min.Y+boxThickness+face.Ascent+2)
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(pt.X, pt.Y),
	}
	d.DrawString(text)
}
