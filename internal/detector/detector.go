// Package detector provides face detectors that report expression probabilities.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/smegmarip/stash-emojify-plugin/internal/emoji"
)

// Backend names a detector implementation
type Backend string

const (
	BackendService     Backend = "service"     // HTTP face classification service
	BackendCloudVision Backend = "cloudvision" // Google Cloud Vision
)

// ErrUnknownBackend is returned by New for an unrecognised backend name
var ErrUnknownBackend = errors.New("unknown detector backend")

// Detector finds faces and reports their expression signals.
// A Detector is used for a single emojify call and closed afterwards.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]emoji.FaceSignals, error)
	Close() error
}

// Options tunes what a detector computes
type Options struct {
	ClassificationEnabled bool
	TrackingEnabled       bool
}

// DefaultOptions enables expression classification without face tracking
func DefaultOptions() Options {
	return Options{
		ClassificationEnabled: true,
		TrackingEnabled:       false,
	}
}

// Config selects and configures a backend
type Config struct {
	Backend         Backend
	ServiceURL      string
	CredentialsFile string
	MaxFaces        int
	Options         Options
}

// Factory creates a fresh Detector for each use
type Factory func(ctx context.Context) (Detector, error)

// New creates a detector for the configured backend
func New(ctx context.Context, cfg Config) (Detector, error) {
	if cfg.MaxFaces <= 0 {
		cfg.MaxFaces = DefaultMaxFaces
	}

	switch cfg.Backend {
	case BackendService, "":
		if cfg.ServiceURL == "" {
			return nil, fmt.Errorf("detector service URL not configured")
		}
		client := NewServiceClient(cfg.ServiceURL, cfg.Options)
		if err := client.Health(ctx); err != nil {
			return nil, fmt.Errorf("detector service unavailable: %w", err)
		}
		return client, nil

	case BackendCloudVision:
		return NewCloudVision(ctx, cfg.CredentialsFile, cfg.MaxFaces)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// NewFactory returns a Factory that builds detectors from cfg
func NewFactory(cfg Config) Factory {
	return func(ctx context.Context) (Detector, error) {
		return New(ctx, cfg)
	}
}

// DefaultMaxFaces caps the number of faces requested from backends that need a limit
const DefaultMaxFaces = 20
