package detector

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/disintegration/imaging"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/smegmarip/stash-emojify-plugin/internal/emoji"
	"github.com/smegmarip/stash-emojify-plugin/internal/imageio"
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// Eye aspect ratios mapped onto the 0..1 open probability range
const (
	ClosedEyeAspectRatio = 0.1
	OpenEyeAspectRatio   = 0.3
)

// ImageAnnotator is the part of the Vision client CloudVision calls
type ImageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// CloudVision detects faces with the Google Cloud Vision API
type CloudVision struct {
	client   ImageAnnotator
	maxFaces int
}

// NewCloudVision creates a Cloud Vision detector. An empty credentialsFile uses
// application default credentials.
func NewCloudVision(ctx context.Context, credentialsFile string, maxFaces int) (*CloudVision, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	return NewCloudVisionClient(client, maxFaces), nil
}

// NewCloudVisionClient wraps an existing annotator client
func NewCloudVisionClient(client ImageAnnotator, maxFaces int) *CloudVision {
	if maxFaces <= 0 {
		maxFaces = DefaultMaxFaces
	}
	return &CloudVision{client: client, maxFaces: maxFaces}
}

// Detect implements Detector
func (v *CloudVision) Detect(ctx context.Context, img image.Image) ([]emoji.FaceSignals, error) {
	var encoded bytes.Buffer
	if err := imageio.Encode(&encoded, img, imaging.JPEG); err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: encoded.Bytes()},
			Features: []*visionpb.Feature{{
				Type:       visionpb.Feature_FACE_DETECTION,
				MaxResults: int32(v.maxFaces),
			}},
		}},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}

	var annotations []*visionpb.FaceAnnotation
	if responses := resp.GetResponses(); len(responses) > 0 {
		if status := responses[0].GetError(); status != nil && status.GetCode() != 0 {
			return nil, fmt.Errorf("failed to detect faces: vision error %d: %s", status.GetCode(), status.GetMessage())
		}
		annotations = responses[0].GetFaceAnnotations()
	}

	faces := make([]emoji.FaceSignals, 0, len(annotations))
	for _, annotation := range annotations {
		faces = append(faces, FaceSignalsFromAnnotation(annotation))
	}

	log.Debugf("Detect: cloud vision returned %d faces", len(faces))
	return faces, nil
}

// Close implements Detector
func (v *CloudVision) Close() error {
	return v.client.Close()
}

// FaceSignalsFromAnnotation converts a Cloud Vision face annotation
func FaceSignalsFromAnnotation(a *visionpb.FaceAnnotation) emoji.FaceSignals {
	poly := a.GetFdBoundingPoly()
	if len(poly.GetVertices()) == 0 {
		poly = a.GetBoundingPoly()
	}

	return emoji.FaceSignals{
		SmilingProbability: LikelihoodProbability(a.GetJoyLikelihood()),
		LeftEyeOpenProbability: EyeOpenProbability(a.GetLandmarks(),
			visionpb.FaceAnnotation_Landmark_LEFT_EYE_TOP_BOUNDARY,
			visionpb.FaceAnnotation_Landmark_LEFT_EYE_BOTTOM_BOUNDARY,
			visionpb.FaceAnnotation_Landmark_LEFT_EYE_LEFT_CORNER,
			visionpb.FaceAnnotation_Landmark_LEFT_EYE_RIGHT_CORNER),
		RightEyeOpenProbability: EyeOpenProbability(a.GetLandmarks(),
			visionpb.FaceAnnotation_Landmark_RIGHT_EYE_TOP_BOUNDARY,
			visionpb.FaceAnnotation_Landmark_RIGHT_EYE_BOTTOM_BOUNDARY,
			visionpb.FaceAnnotation_Landmark_RIGHT_EYE_LEFT_CORNER,
			visionpb.FaceAnnotation_Landmark_RIGHT_EYE_RIGHT_CORNER),
		Box: BoxFromPoly(poly),
	}
}

// LikelihoodProbability maps a likelihood bucket to a probability
func LikelihoodProbability(l visionpb.Likelihood) float64 {
	switch l {
	case visionpb.Likelihood_VERY_UNLIKELY:
		return 0.05
	case visionpb.Likelihood_UNLIKELY:
		return 0.25
	case visionpb.Likelihood_POSSIBLE:
		return 0.5
	case visionpb.Likelihood_LIKELY:
		return 0.75
	case visionpb.Likelihood_VERY_LIKELY:
		return 0.95
	default:
		return 0
	}
}

// EyeOpenProbability estimates how open an eye is from its boundary landmarks.
// Eyes with missing landmarks count as open.
func EyeOpenProbability(landmarks []*visionpb.FaceAnnotation_Landmark, top, bottom, left, right visionpb.FaceAnnotation_Landmark_Type) float64 {
	points := make(map[visionpb.FaceAnnotation_Landmark_Type]*visionpb.Position, 4)
	for _, l := range landmarks {
		if l.GetPosition() != nil {
			points[l.GetType()] = l.GetPosition()
		}
	}

	t, b, l, r := points[top], points[bottom], points[left], points[right]
	if t == nil || b == nil || l == nil || r == nil {
		return 1
	}

	width := distance(l, r)
	if width == 0 {
		return 1
	}

	ratio := distance(t, b) / width
	p := (ratio - ClosedEyeAspectRatio) / (OpenEyeAspectRatio - ClosedEyeAspectRatio)
	return math.Max(0, math.Min(1, p))
}

// BoxFromPoly returns the axis-aligned bounds of a polygon
func BoxFromPoly(poly *visionpb.BoundingPoly) emoji.BoundingBox {
	vertices := poly.GetVertices()
	if len(vertices) == 0 {
		return emoji.BoundingBox{}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range vertices {
		x, y := float64(v.GetX()), float64(v.GetY())
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	return emoji.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func distance(a, b *visionpb.Position) float64 {
	return math.Hypot(float64(a.GetX()-b.GetX()), float64(a.GetY()-b.GetY()))
}
