package assets

import (
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/smegmarip/stash-emojify-plugin/internal/emoji"
)

// DefaultSize is the edge length of built-in emoji images
const DefaultSize = 256

// Render draws the built-in emoji for a category on a transparent square canvas.
// Left and right refer to the face, so the left eye is drawn on the viewer's right.
func Render(category emoji.Category, size int) image.Image {
	if size <= 0 {
		size = DefaultSize
	}
	s := float64(size)
	dc := gg.NewContext(size, size)

	// Face
	dc.DrawCircle(s/2, s/2, s*0.47)
	dc.SetRGB255(255, 204, 77)
	dc.FillPreserve()
	dc.SetRGB255(227, 160, 8)
	dc.SetLineWidth(s * 0.02)
	dc.Stroke()

	// Eyes
	drawEye(dc, s*0.66, s*0.38, s, category.LeftEyeClosed())
	drawEye(dc, s*0.34, s*0.38, s, category.RightEyeClosed())

	// Mouth
	dc.SetRGB255(102, 51, 0)
	dc.SetLineWidth(s * 0.045)
	dc.SetLineCap(gg.LineCapRound)
	if category.Smiling() {
		dc.DrawArc(s/2, s*0.56, s*0.22, math.Pi*0.15, math.Pi*0.85)
	} else {
		dc.DrawArc(s/2, s*0.84, s*0.2, math.Pi*1.2, math.Pi*1.8)
	}
	dc.Stroke()

	return dc.Image()
}

func drawEye(dc *gg.Context, x, y, s float64, closed bool) {
	dc.SetRGB255(102, 51, 0)
	if closed {
		dc.SetLineWidth(s * 0.035)
		dc.SetLineCap(gg.LineCapRound)
		dc.DrawArc(x, y, s*0.07, math.Pi*0.1, math.Pi*0.9)
		dc.Stroke()
		return
	}
	dc.DrawEllipse(x, y, s*0.045, s*0.075)
	dc.Fill()
}
