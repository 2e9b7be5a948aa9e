// Package overlay composites emoji images over detected faces.
package overlay

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/smegmarip/stash-emojify-plugin/internal/emoji"
)

// EmojiScaleFactor is the emoji width relative to the face width
const EmojiScaleFactor = 0.8

// Placement computes where a resized emoji of the given source size lands on a face.
//
// The emoji width is EmojiScaleFactor of the face width. The height follows the source
// aspect ratio (integer arithmetic) and is then scaled by EmojiScaleFactor a second time.
// The emoji is centered horizontally on the face, and its top edge sits a third of the
// emoji height above the face center. An empty rectangle means nothing should be drawn.
func Placement(emojiSize image.Point, face emoji.BoundingBox) image.Rectangle {
	if emojiSize.X <= 0 || emojiSize.Y <= 0 {
		return image.Rectangle{}
	}

	width := int(face.Width * EmojiScaleFactor)
	if width <= 0 {
		return image.Rectangle{}
	}
	height := int(float64(emojiSize.Y*width/emojiSize.X) * EmojiScaleFactor)
	if height <= 0 {
		return image.Rectangle{}
	}

	centerX, centerY := face.Center()
	x := centerX - float64(width/2)
	y := centerY - float64(height/3)

	min := image.Pt(int(math.Round(x)), int(math.Round(y)))
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(width, height))}
}

// Overlay draws the emoji over the face on a copy of base and returns the copy.
// The result always has the dimensions of base; base itself is never modified.
// Face coordinates are relative to the top-left corner of base.
func Overlay(base image.Image, emojiImg image.Image, face emoji.BoundingBox) *image.NRGBA {
	canvas := imaging.Clone(base)

	target := Placement(emojiImg.Bounds().Size(), face)
	if target.Empty() {
		return canvas
	}

	scaled := Resize(emojiImg, target.Dx(), target.Dy())
	draw.Draw(canvas, target, scaled, image.Point{}, draw.Over)

	return canvas
}

// Resize scales img to width x height with nearest-neighbor sampling
func Resize(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
