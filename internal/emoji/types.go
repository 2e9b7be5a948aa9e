package emoji

// BoundingBox represents face coordinates in image pixels.
// X and Y are the top-left corner of the face.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// FaceSignals is one detected face as reported by a detector backend
type FaceSignals struct {
	SmilingProbability      float64     `json:"smiling_probability"`
	LeftEyeOpenProbability  float64     `json:"left_eye_open_probability"`
	RightEyeOpenProbability float64     `json:"right_eye_open_probability"`
	Box                     BoundingBox `json:"box"`
}

// Category is the emoji chosen for a face expression
type Category int

const (
	Smile Category = iota
	Frown
	LeftWink
	RightWink
	LeftWinkFrown
	RightWinkFrown
	ClosedEyeSmile
	ClosedEyeFrown
)

// Categories lists every category in declaration order
var Categories = []Category{
	Smile,
	Frown,
	LeftWink,
	RightWink,
	LeftWinkFrown,
	RightWinkFrown,
	ClosedEyeSmile,
	ClosedEyeFrown,
}

// assetNames pairs each category with its emoji asset name
var assetNames = map[Category]string{
	Smile:          "smile",
	Frown:          "frown",
	LeftWink:       "leftwink",
	RightWink:      "rightwink",
	LeftWinkFrown:  "leftwinkfrown",
	RightWinkFrown: "rightwinkfrown",
	ClosedEyeSmile: "closed_smile",
	ClosedEyeFrown: "closed_frown",
}

// String converts Category to string representation
func (c Category) String() string {
	switch c {
	case Smile:
		return "SMILE"
	case Frown:
		return "FROWN"
	case LeftWink:
		return "LEFT_WINK"
	case RightWink:
		return "RIGHT_WINK"
	case LeftWinkFrown:
		return "LEFT_WINK_FROWN"
	case RightWinkFrown:
		return "RIGHT_WINK_FROWN"
	case ClosedEyeSmile:
		return "CLOSED_EYE_SMILE"
	case ClosedEyeFrown:
		return "CLOSED_EYE_FROWN"
	default:
		return "n/a"
	}
}

// AssetName returns the asset name for the category, or "" if the category is unknown
func (c Category) AssetName() string {
	return assetNames[c]
}

// Smiling reports whether the category shows a smile
func (c Category) Smiling() bool {
	return c == Smile || c == LeftWink || c == RightWink || c == ClosedEyeSmile
}

// LeftEyeClosed reports whether the category shows the left eye closed
func (c Category) LeftEyeClosed() bool {
	return c == LeftWink || c == LeftWinkFrown || c == ClosedEyeSmile || c == ClosedEyeFrown
}

// RightEyeClosed reports whether the category shows the right eye closed
func (c Category) RightEyeClosed() bool {
	return c == RightWink || c == RightWinkFrown || c == ClosedEyeSmile || c == ClosedEyeFrown
}
