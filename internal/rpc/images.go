package rpc

import (
	"context"
	"fmt"
	"image"
	"os"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/smegmarip/stash-emojify-plugin/internal/imageio"
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
	"github.com/smegmarip/stash-emojify-plugin/internal/stash"
)

// ============================================================================
// Image Business Logic (Service Layer)
// ============================================================================

// emojifyImage emojifies a single image by ID
func (s *Service) emojifyImage(ctx context.Context, imageID string) (*ImageOutcome, error) {
	log.Infof("Fetching image: %s", imageID)
	img, err := stash.GetImage(ctx, s.graphqlClient, graphql.ID(imageID))
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return s.processImage(ctx, img)
}

// processImage runs the emojifier on a Stash image, writes the result and tags the source
func (s *Service) processImage(ctx context.Context, img *stash.Image) (*ImageOutcome, error) {
	if s.isStopping() {
		return nil, errCancelled
	}

	if len(img.Files) == 0 {
		return nil, fmt.Errorf("image %s has no files", img.ID)
	}

	outcome := &ImageOutcome{ImageID: string(img.ID), Faces: []FaceSummary{}}
	imagePath := img.Files[0].Path
	log.Debugf("Image path: %s", imagePath)

	// Our own output files are marked done so batches never emojify them again
	if isEmojiOutput(imagePath) {
		outcome.Skipped = "emojify output"
		log.Debugf("Skipping emojify output %s", imagePath)
		return outcome, s.tagImage(ctx, img, s.config.EmojifiedTagName, s.config.NoFacesTagName)
	}

	source, local, err := s.loadImage(ctx, img)
	if err != nil {
		return nil, err
	}

	result, err := s.emojifier.ProcessNamed(ctx, imagePath, source)
	if err != nil {
		return nil, fmt.Errorf("failed to emojify image %s: %w", img.ID, err)
	}

	for _, face := range result.Faces {
		outcome.Faces = append(outcome.Faces, FaceSummary{
			Category: face.Category.String(),
			Applied:  face.Applied,
			Box:      face.Signals.Box,
		})
	}

	switch {
	case len(result.Faces) == 0:
		log.Infof("No faces detected in image %s", img.ID)
		return outcome, s.tagImage(ctx, img, s.config.NoFacesTagName, s.config.EmojifiedTagName)

	case result.Applied() == 0:
		outcome.Skipped = "no emoji available"
		log.Warnf("No emoji applied to image %s (%d faces)", img.ID, len(result.Faces))
		return outcome, nil
	}

	if !local && s.config.OutputDir == "" {
		return nil, fmt.Errorf("image %s is not a plain file; set an output directory", img.ID)
	}

	outputPath := imageio.OutputPath(imagePath, s.config.OutputDir, s.config.OutputFormat)
	if err := imageio.Save(result.Image, outputPath); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	outcome.OutputPath = outputPath

	log.Infof("Emojified %d/%d faces in image %s -> %s", result.Applied(), len(result.Faces), img.ID, outputPath)
	return outcome, s.tagImage(ctx, img, s.config.EmojifiedTagName, s.config.NoFacesTagName)
}

// loadImage reads the image file directly when it is reachable, otherwise downloads it from Stash
func (s *Service) loadImage(ctx context.Context, img *stash.Image) (image.Image, bool, error) {
	imagePath := img.Files[0].Path
	if info, err := os.Stat(imagePath); err == nil && info.Mode().IsRegular() {
		decoded, err := imageio.Load(imagePath)
		return decoded, true, err
	}

	if img.Paths.Image == "" {
		return nil, false, fmt.Errorf("image %s is not readable and has no URL", img.ID)
	}

	imageURL := s.NormalizeHost(img.Paths.Image)
	log.Debugf("Downloading image %s from %s", img.ID, imageURL)
	data, err := stash.DownloadImage(ctx, imageURL, s.serverConnection.SessionCookie)
	if err != nil {
		return nil, false, err
	}

	decoded, err := imageio.DecodeBytes(data)
	return decoded, false, err
}

// tagImage adds the named tag and drops the opposite outcome tag
func (s *Service) tagImage(ctx context.Context, img *stash.Image, addName, removeName string) error {
	addID, err := stash.GetOrCreateTag(ctx, s.graphqlClient, s.tagCache, addName)
	if err != nil {
		return fmt.Errorf("failed to get tag %q: %w", addName, err)
	}

	if removeID, found, err := stash.FindTag(ctx, s.graphqlClient, s.tagCache, removeName); err == nil && found {
		if err := stash.RemoveTagsFromImage(ctx, s.graphqlClient, img, removeID); err != nil {
			log.Warnf("Failed to remove tag %q from image %s: %v", removeName, img.ID, err)
		}
	}

	return stash.AddTagToImage(ctx, s.graphqlClient, img, addID)
}

// emojifyGallery processes the images of a gallery
func (s *Service) emojifyGallery(ctx context.Context, galleryID string, limit int) (*BatchStats, error) {
	gallery, err := stash.GetGallery(ctx, s.graphqlClient, graphql.ID(galleryID))
	if err != nil {
		return nil, err
	}

	images, err := s.collectImages(ctx, stash.InGallery(gallery.ID), limit)
	if err != nil {
		return nil, err
	}

	log.Infof("Gallery '%s' has %d images to process", gallery.Title, len(images))
	return s.processBatch(ctx, images)
}

// emojifyImages processes all images, or only those without an outcome tag
func (s *Service) emojifyImages(ctx context.Context, newOnly bool, limit int) (*BatchStats, error) {
	var filter *stash.ImageFilterType

	if newOnly {
		emojifiedID, err := stash.GetOrCreateTag(ctx, s.graphqlClient, s.tagCache, s.config.EmojifiedTagName)
		if err != nil {
			return nil, fmt.Errorf("failed to get emojified tag: %w", err)
		}
		noFacesID, err := stash.GetOrCreateTag(ctx, s.graphqlClient, s.tagCache, s.config.NoFacesTagName)
		if err != nil {
			return nil, fmt.Errorf("failed to get no-faces tag: %w", err)
		}
		filter = stash.WithoutTags(emojifiedID, noFacesID)
	}

	images, err := s.collectImages(ctx, filter, limit)
	if err != nil {
		return nil, err
	}

	log.Infof("Found %d images to process", len(images))
	return s.processBatch(ctx, images)
}

// collectImages pages through matching images up front so tagging during
// processing cannot shift later pages
func (s *Service) collectImages(ctx context.Context, filter *stash.ImageFilterType, limit int) ([]stash.Image, error) {
	perPage := s.config.MaxBatchSize
	var collected []stash.Image

	for page := 1; ; page++ {
		if s.isStopping() {
			return nil, errCancelled
		}

		images, total, err := stash.FindImages(ctx, s.graphqlClient, filter, page, perPage)
		if err != nil {
			return nil, err
		}

		collected = append(collected, images...)

		if limit > 0 && len(collected) >= limit {
			return collected[:limit], nil
		}
		if len(images) < perPage || len(collected) >= total {
			return collected, nil
		}
	}
}

// processBatch emojifies images one by one with a cooldown after every full batch
func (s *Service) processBatch(ctx context.Context, images []stash.Image) (*BatchStats, error) {
	stats := &BatchStats{}
	total := len(images)

	for i := range images {
		if s.isStopping() || ctx.Err() != nil {
			return stats, errCancelled
		}

		log.Progress(float64(i) / float64(total))
		log.Infof("Processing image %d/%d: %s", i+1, total, images[i].ID)

		outcome, err := s.processImage(ctx, &images[i])
		if err != nil {
			log.Warnf("Failed to emojify image %s: %v", images[i].ID, err)
		}
		stats.add(outcome, err)

		if (i+1)%s.config.MaxBatchSize == 0 && i+1 < total {
			if err := s.applyCooldown(ctx); err != nil {
				return stats, err
			}
		}
	}

	log.Progress(1.0)
	return stats, nil
}

// resetEmojified removes the outcome tags so images can be processed again
func (s *Service) resetEmojified(ctx context.Context, limit int) (int, error) {
	var tagIDs []graphql.ID
	for _, name := range []string{s.config.EmojifiedTagName, s.config.NoFacesTagName} {
		id, found, err := stash.FindTag(ctx, s.graphqlClient, s.tagCache, name)
		if err != nil {
			return 0, err
		}
		if found {
			tagIDs = append(tagIDs, id)
		}
	}

	if len(tagIDs) == 0 {
		log.Info("No emojify tags exist, nothing to reset")
		return 0, nil
	}

	images, err := s.collectImages(ctx, stash.WithAnyTag(tagIDs...), limit)
	if err != nil {
		return 0, err
	}

	log.Infof("Found %d images to reset", len(images))

	resetCount := 0
	for i := range images {
		if s.isStopping() {
			return resetCount, errCancelled
		}

		log.Progress(float64(i) / float64(len(images)))

		if err := stash.RemoveTagsFromImage(ctx, s.graphqlClient, &images[i], tagIDs...); err != nil {
			log.Warnf("Failed to reset image %s: %v", images[i].ID, err)
			continue
		}
		resetCount++
	}

	log.Progress(1.0)
	log.Infof("Reset %d/%d images", resetCount, len(images))
	return resetCount, nil
}
