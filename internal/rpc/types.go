package rpc

import (
	"context"
	"fmt"
	"sync"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/stashapp/stash/pkg/plugin/common"

	"github.com/smegmarip/stash-emojify-plugin/internal/config"
	"github.com/smegmarip/stash-emojify-plugin/internal/emoji"
	"github.com/smegmarip/stash-emojify-plugin/internal/emojify"
	"github.com/smegmarip/stash-emojify-plugin/internal/notify"
	"github.com/smegmarip/stash-emojify-plugin/internal/stash"
)

// Service is the main RPC service struct
type Service struct {
	mu               sync.Mutex
	stopping         bool
	cancel           context.CancelFunc
	serverConnection common.StashServerConnection
	graphqlClient    *graphql.Client
	config           *config.PluginConfig
	tagCache         *stash.TagCache
	emojifier        *emojify.Emojifier
	notifications    *notify.Recorder
}

// FaceSummary describes one face of an emojified image
type FaceSummary struct {
	Category string            `json:"category"`
	Applied  bool              `json:"applied"`
	Box      emoji.BoundingBox `json:"box"`
}

// ImageOutcome is the result of emojifying a single Stash image
type ImageOutcome struct {
	ImageID    string        `json:"image_id"`
	OutputPath string        `json:"output_path,omitempty"`
	Faces      []FaceSummary `json:"faces"`
	Skipped    string        `json:"skipped,omitempty"`
}

// EmojifyImageResponse is the envelope logged for the emojifyImage task
type EmojifyImageResponse struct {
	Result *ImageOutcome `json:"result"`
}

// BatchStats counts outcomes across a batch task
type BatchStats struct {
	Processed int
	Emojified int
	NoFaces   int
	Skipped   int
	Failed    int
	Outputs   []string
}

func (b *BatchStats) add(outcome *ImageOutcome, err error) {
	b.Processed++
	// A file can be written even when tagging the source fails afterwards
	if outcome != nil && outcome.OutputPath != "" {
		b.Outputs = append(b.Outputs, outcome.OutputPath)
	}

	switch {
	case err != nil:
		b.Failed++
	case outcome.Skipped != "":
		b.Skipped++
	case outcome.OutputPath != "":
		b.Emojified++
	case len(outcome.Faces) == 0:
		b.NoFaces++
	default:
		b.Skipped++
	}
}

func (b *BatchStats) String() string {
	return fmt.Sprintf("%d processed, %d emojified, %d without faces, %d skipped, %d failed",
		b.Processed, b.Emojified, b.NoFaces, b.Skipped, b.Failed)
}
