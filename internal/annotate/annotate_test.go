package annotate

import (
	"image"
	"testing"

	"github.com/vizmon/headcount/pkg/types"
)

func blankFrame(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func isBoxColor(img *image.RGBA, x, y int) bool {
	r, g, b, a := img.At(x, y).RGBA()
	wr, wg, wb, wa := BoxColor.RGBA()
	return r == wr && g == wg && b == wb && a == wa
}

func countBoxColor(img *image.RGBA, rect image.Rectangle) int {
	n := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if isBoxColor(img, x, y) {
				n++
			}
		}
	}
	return n
}

func TestDrawRectangleOutline(t *testing.T) {
	img := blankFrame(200, 200)
	det := types.Detection{ClassID: types.PersonClassID, Confidence: 0.87, Box: image.Rect(40, 40, 120, 160)}

	Draw(img, []types.Detection{det})

	// Both rows of the two pixel thick outline are painted.
	for _, p := range []image.Point{{40, 40}, {41, 41}, {80, 40}, {40, 100}, {120, 160}, {119, 159}} {
		if !isBoxColor(img, p.X, p.Y) {
			t.Errorf("expected outline pixel at %v", p)
		}
	}

	// The box interior stays untouched.
	if isBoxColor(img, 80, 100) {
		t.Error("interior pixel was painted")
	}

	// Pixels far from the box and label stay untouched.
	for _, p := range []image.Point{{10, 10}, {150, 190}, {190, 20}} {
		if isBoxColor(img, p.X, p.Y) {
			t.Errorf("stray paint at %v", p)
		}
	}
}

func TestDrawLabelAboveBox(t *testing.T) {
	img := blankFrame(200, 200)
	det := types.Detection{ClassID: types.PersonClassID, Confidence: 0.45, Box: image.Rect(50, 60, 150, 180)}

	Draw(img, []types.Detection{det})

	// "0.45" renders in the strip above the box.
	strip := image.Rect(50, 60-19, 110, 60-2)
	if countBoxColor(img, strip) == 0 {
		t.Error("no label pixels above the box")
	}
}

func TestDrawLabelMovesInsideWhenBoxNearTop(t *testing.T) {
	img := blankFrame(200, 200)
	det := types.Detection{ClassID: types.PersonClassID, Confidence: 0.99, Box: image.Rect(20, 0, 180, 100)}

	Draw(img, []types.Detection{det})

	// No room above the frame, so glyphs land in the box interior.
	interior := image.Rect(23, 3, 177, 30)
	if countBoxColor(img, interior) == 0 {
		t.Error("no label pixels inside a box touching the frame top")
	}
}

func TestDrawClipsOutOfBoundsBoxes(t *testing.T) {
	img := blankFrame(100, 100)
	dets := []types.Detection{
		{ClassID: types.PersonClassID, Confidence: 0.5, Box: image.Rect(-20, -20, 30, 30)},
		{ClassID: types.PersonClassID, Confidence: 0.5, Box: image.Rect(80, 80, 140, 140)},
	}

	// Must not panic and must only touch in-bounds pixels.
	Draw(img, dets)

	if !isBoxColor(img, 29, 10) {
		t.Error("clipped box edge missing inside the frame")
	}
}

func TestDrawNothingForEmptyList(t *testing.T) {
	img := blankFrame(64, 64)
	Draw(img, nil)

	if n := countBoxColor(img, img.Bounds()); n != 0 {
		t.Fatalf("empty detection list painted %d pixels", n)
	}
}
