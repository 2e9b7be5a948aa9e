// Package emoji maps detected face expressions to emoji categories.
package emoji

import (
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

const (
	// SmilingThreshold is the smiling probability a face must exceed to count as smiling
	SmilingThreshold = 0.15

	// EyeOpenThreshold is the open probability below which an eye counts as closed
	EyeOpenThreshold = 0.5
)

// Classify picks the emoji category for a face.
// Equality with a threshold counts as not smiling and as an open eye.
func Classify(face FaceSignals) Category {
	log.Debugf("Classify: smilingProbability=%.3f leftEyeOpenProbability=%.3f rightEyeOpenProbability=%.3f",
		face.SmilingProbability, face.LeftEyeOpenProbability, face.RightEyeOpenProbability)

	smiling := face.SmilingProbability > SmilingThreshold
	leftEyeClosed := face.LeftEyeOpenProbability < EyeOpenThreshold
	rightEyeClosed := face.RightEyeOpenProbability < EyeOpenThreshold

	var category Category
	if smiling {
		switch {
		case leftEyeClosed && !rightEyeClosed:
			category = LeftWink
		case !leftEyeClosed && rightEyeClosed:
			category = RightWink
		case leftEyeClosed:
			category = ClosedEyeSmile
		default:
			category = Smile
		}
	} else {
		switch {
		case leftEyeClosed && !rightEyeClosed:
			category = LeftWinkFrown
		case !leftEyeClosed && rightEyeClosed:
			category = RightWinkFrown
		case leftEyeClosed:
			category = ClosedEyeFrown
		default:
			category = Frown
		}
	}

	log.Debugf("Classify: %s", category)
	return category
}
