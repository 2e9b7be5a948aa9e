package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/stashapp/stash/pkg/plugin/common"

	"github.com/smegmarip/stash-emojify-plugin/internal/assets"
	"github.com/smegmarip/stash-emojify-plugin/internal/config"
	"github.com/smegmarip/stash-emojify-plugin/internal/detector"
	"github.com/smegmarip/stash-emojify-plugin/internal/emojify"
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
	"github.com/smegmarip/stash-emojify-plugin/internal/notify"
	"github.com/smegmarip/stash-emojify-plugin/internal/stash"
)

// Run handles RPC task execution
func (s *Service) Run(input common.PluginInput, output *common.PluginOutput) error {
	ctx := s.begin()
	defer s.end()

	// Initialize GraphQL client and tag cache
	s.serverConnection = input.ServerConnection
	s.graphqlClient = stash.Client(input.ServerConnection)
	s.tagCache = stash.NewTagCache()

	// Load plugin configuration
	settings, err := stash.GetPluginConfiguration(ctx, s.graphqlClient, config.PluginID)
	if err != nil {
		log.Warnf("Failed to get plugin configuration: %v, using defaults", err)
	}
	cfg, err := config.Load(settings)
	if err != nil {
		return s.errorOutput(output, fmt.Errorf("failed to load config: %w", err))
	}
	s.config = cfg

	store := assets.NewStore(cfg.AssetsDir)
	if err := store.Preload(); err != nil {
		return s.errorOutput(output, fmt.Errorf("failed to load emoji assets: %w", err))
	}

	s.notifications = &notify.Recorder{}
	s.emojifier = emojify.New(
		detector.NewFactory(cfg.DetectorConfig()),
		store,
		notify.Multi{notify.LogNotifier{}, s.notifications},
	)

	mode := input.Args.String("mode")
	argsMap := input.Args.ToMap()
	limit := intArg(argsMap, "limit")

	log.Infof("Emojify plugin started - mode: %s", mode)
	log.Debugf("Configuration: Detector=%s, BatchSize=%d, Cooldown=%ds, OutputDir=%q",
		cfg.DetectorBackend, cfg.MaxBatchSize, cfg.CooldownSeconds, cfg.OutputDir)
	log.Debugf("Mode: %s, Limit: %d", mode, limit)

	var outputStr string

	switch mode {
	case "emojifyImage":
		imageID := idArg(argsMap, "imageId")
		if imageID == "" {
			err = fmt.Errorf("imageId is required")
			break
		}
		log.Infof("Emojifying image: %s", imageID)
		var outcome *ImageOutcome
		outcome, err = s.emojifyImage(ctx, imageID)
		s.writeOutputs(ctx, outcomeOutputs(outcome))
		if err == nil {
			if res, _err := json.Marshal(EmojifyImageResponse{Result: outcome}); _err == nil {
				log.Infof("emojifyImage=%s", string(res))
			}
		}
		outputStr = "Image emojification completed"

	case "emojifyGallery":
		galleryID := idArg(argsMap, "galleryId")
		if galleryID == "" {
			err = fmt.Errorf("galleryId is required")
			break
		}
		log.Infof("Emojifying gallery: %s (limit=%d)", galleryID, limit)
		var stats *BatchStats
		stats, err = s.emojifyGallery(ctx, galleryID, limit)
		outputStr = s.finishBatch(ctx, "Gallery emojification completed", stats)

	case "emojifyImagesNew":
		log.Infof("Emojifying new images (limit=%d)", limit)
		var stats *BatchStats
		stats, err = s.emojifyImages(ctx, true, limit)
		outputStr = s.finishBatch(ctx, "New image emojification completed", stats)

	case "emojifyImagesAll":
		log.Infof("Emojifying all images (limit=%d)", limit)
		var stats *BatchStats
		stats, err = s.emojifyImages(ctx, false, limit)
		outputStr = s.finishBatch(ctx, "Image emojification completed", stats)

	case "resetEmojified":
		log.Infof("Resetting emojified images (limit=%d)", limit)
		var count int
		count, err = s.resetEmojified(ctx, limit)
		outputStr = fmt.Sprintf("Reset %d images", count)

	default:
		err = fmt.Errorf("unknown mode: %s", mode)
	}

	if err != nil {
		return s.errorOutput(output, err)
	}

	if n := len(s.notifications.Notifications()); n > 0 {
		log.Infof("%d notifications raised during this task", n)
	}

	*output = common.PluginOutput{
		Output: &outputStr,
	}

	return nil
}

// finishBatch triggers the post-write scan and builds the task summary
func (s *Service) finishBatch(ctx context.Context, prefix string, stats *BatchStats) string {
	if stats == nil {
		return prefix
	}
	s.writeOutputs(ctx, stats.Outputs)
	log.Infof("%s: %s", prefix, stats)
	return fmt.Sprintf("%s: %s", prefix, stats)
}

// writeOutputs asks Stash to import newly written files when configured to
func (s *Service) writeOutputs(ctx context.Context, outputs []string) {
	if !s.config.ScanAfterWrite || len(outputs) == 0 {
		return
	}

	seen := make(map[string]bool)
	var dirs []string
	for _, path := range outputs {
		dir := filepath.Dir(path)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	// Files already written are scanned even when the task was stopped
	if _, err := stash.TriggerMetadataScan(context.WithoutCancel(ctx), s.graphqlClient, dirs); err != nil {
		log.Warnf("Failed to trigger metadata scan: %v", err)
	}
}

func outcomeOutputs(outcome *ImageOutcome) []string {
	if outcome == nil || outcome.OutputPath == "" {
		return nil
	}
	return []string{outcome.OutputPath}
}
