// Package emojify detects faces in a photo and covers each one with the emoji
// matching its expression.
package emojify

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/smegmarip/stash-emojify-plugin/internal/assets"
	"github.com/smegmarip/stash-emojify-plugin/internal/detector"
	"github.com/smegmarip/stash-emojify-plugin/internal/emoji"
	"github.com/smegmarip/stash-emojify-plugin/internal/imageio"
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
	"github.com/smegmarip/stash-emojify-plugin/internal/notify"
	"github.com/smegmarip/stash-emojify-plugin/internal/overlay"
)

// AssetSource resolves a category to its emoji image
type AssetSource interface {
	Lookup(category emoji.Category) (image.Image, error)
}

// Emojifier runs the detect, classify and overlay pipeline
type Emojifier struct {
	newDetector detector.Factory
	assets      AssetSource
	notifier    notify.Notifier
}

// FaceResult describes how one detected face was handled
type FaceResult struct {
	Signals  emoji.FaceSignals
	Category emoji.Category
	Applied  bool // false when no emoji image was available
}

// Result is the outcome of emojifying one photo
type Result struct {
	Image *image.NRGBA
	Faces []FaceResult
	Path  string // set by ProcessFile when an output file was written
}

// Applied returns the number of faces that received an emoji
func (r *Result) Applied() int {
	n := 0
	for _, f := range r.Faces {
		if f.Applied {
			n++
		}
	}
	return n
}

// New creates an Emojifier. A nil notifier logs notifications.
func New(newDetector detector.Factory, source AssetSource, notifier notify.Notifier) *Emojifier {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Emojifier{
		newDetector: newDetector,
		assets:      source,
		notifier:    notifier,
	}
}

// Process emojifies img. The input is never modified; when no face is found the
// result holds an unmodified copy and a single notification is sent.
func (e *Emojifier) Process(ctx context.Context, img image.Image) (*Result, error) {
	return e.process(ctx, img, "image")
}

// ProcessNamed is Process with a name used in logs and notifications
func (e *Emojifier) ProcessNamed(ctx context.Context, name string, img image.Image) (*Result, error) {
	return e.process(ctx, img, name)
}

// ProcessFile emojifies the photo at src and writes it to dst when at least one
// face received an emoji
func (e *Emojifier) ProcessFile(ctx context.Context, src, dst string) (*Result, error) {
	img, err := imageio.Load(src)
	if err != nil {
		return nil, err
	}

	result, err := e.process(ctx, img, src)
	if err != nil {
		return nil, err
	}

	if result.Applied() == 0 {
		log.Infof("No emoji applied to %s, nothing written", src)
		return result, nil
	}

	if err := imageio.Save(result.Image, dst); err != nil {
		return nil, err
	}
	result.Path = dst

	log.Infof("Emojified %d/%d faces in %s -> %s", result.Applied(), len(result.Faces), src, dst)
	return result, nil
}

func (e *Emojifier) process(ctx context.Context, img image.Image, label string) (*Result, error) {
	det, err := e.newDetector(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	defer func() {
		if err := det.Close(); err != nil {
			log.Warnf("Failed to close detector: %v", err)
		}
	}()

	faces, err := det.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}

	result := &Result{Faces: make([]FaceResult, 0, len(faces))}

	if len(faces) == 0 {
		log.Debugf("No faces detected in %s", label)
		e.notify(notify.TitleNoFaces, fmt.Sprintf("0 faces found in %s", label))
		result.Image = imaging.Clone(img)
		return result, nil
	}

	log.Debugf("Detected %d faces in %s", len(faces), label)

	// Each face builds on the canvas produced by the previous one
	var canvas image.Image = img
	for i, face := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		category := emoji.Classify(face)
		fr := FaceResult{Signals: face, Category: category}

		emojiImg, err := e.assets.Lookup(category)
		if err != nil {
			if !errors.Is(err, assets.ErrAssetNotFound) {
				log.Warnf("Face %d: %v", i, err)
			}
			e.notify(notify.TitleNoEmoji, fmt.Sprintf("no emoji for %s (face %d in %s)", category, i, label))
			result.Faces = append(result.Faces, fr)
			continue
		}

		canvas = overlay.Overlay(canvas, emojiImg, face.Box)
		fr.Applied = true
		result.Faces = append(result.Faces, fr)
		log.Tracef("Face %d: %s at %+v", i, category, face.Box)
	}

	out, ok := canvas.(*image.NRGBA)
	if !ok || result.Applied() == 0 {
		out = imaging.Clone(canvas)
	}
	result.Image = out
	return result, nil
}

func (e *Emojifier) notify(title, message string) {
	if err := e.notifier.Notify(title, message); err != nil {
		log.Warnf("Failed to send notification: %v", err)
	}
}
