package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/smegmarip/stash-emojify-plugin/internal/emoji"
	"github.com/smegmarip/stash-emojify-plugin/internal/imageio"
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// ServiceClient talks to an HTTP face classification service
type ServiceClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Options    Options
}

// ServiceDetectResponse is the detect endpoint response
type ServiceDetectResponse struct {
	Faces []ServiceFace `json:"faces"`
}

// ServiceFace is a single face in the detect response
type ServiceFace struct {
	Box struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"box"`
	SmilingProbability      *float64 `json:"smiling_probability"`
	LeftEyeOpenProbability  *float64 `json:"left_eye_open_probability"`
	RightEyeOpenProbability *float64 `json:"right_eye_open_probability"`
}

// NewServiceClient creates a new face classification service client
func NewServiceClient(baseURL string, opts Options) *ServiceClient {
	return &ServiceClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Options: opts,
	}
}

// Health checks if the service is available
func (c *ServiceClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// Detect implements Detector
func (c *ServiceClient) Detect(ctx context.Context, img image.Image) ([]emoji.FaceSignals, error) {
	var encoded bytes.Buffer
	if err := imageio.Encode(&encoded, img, imaging.JPEG); err != nil {
		return nil, err
	}
	return c.DetectBytes(ctx, encoded.Bytes())
}

// DetectBytes sends already encoded image data to the service
func (c *ServiceClient) DetectBytes(ctx context.Context, imageData []byte) ([]emoji.FaceSignals, error) {
	query := url.Values{}
	query.Set("classifications", "none")
	if c.Options.ClassificationEnabled {
		query.Set("classifications", "all")
	}
	query.Set("tracking", fmt.Sprintf("%t", c.Options.TrackingEnabled))
	endpoint := fmt.Sprintf("%s/faces/detect?%s", c.BaseURL, query.Encode())

	// Create multipart form
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := io.Copy(part, bytes.NewReader(imageData)); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Tracef("Detect: POST %s (%d bytes)", endpoint, len(imageData))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ServiceDetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	faces := make([]emoji.FaceSignals, len(result.Faces))
	for i, f := range result.Faces {
		faces[i] = emoji.FaceSignals{
			SmilingProbability:      valueOr(f.SmilingProbability, 0),
			LeftEyeOpenProbability:  valueOr(f.LeftEyeOpenProbability, 1),
			RightEyeOpenProbability: valueOr(f.RightEyeOpenProbability, 1),
			Box: emoji.BoundingBox{
				X:      f.Box.X,
				Y:      f.Box.Y,
				Width:  f.Box.Width,
				Height: f.Box.Height,
			},
		}
	}

	log.Debugf("Detect: service returned %d faces", len(faces))
	return faces, nil
}

// Close implements Detector
func (c *ServiceClient) Close() error {
	c.HTTPClient.CloseIdleConnections()
	return nil
}

// valueOr substitutes missing probabilities: not smiling, eyes open
func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
