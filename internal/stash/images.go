package stash

import (
	"context"
	"fmt"
	"io"
	"net/http"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// ============================================================================
// Image Data Operations (Repository Layer)
// ============================================================================

// FindImages finds images with optional filtering
func FindImages(ctx context.Context, client *graphql.Client, filter *ImageFilterType, page int, perPage int) ([]Image, int, error) {
	var query struct {
		FindImages struct {
			Count  int
			Images []Image
		} `graphql:"findImages(filter: $filter, image_filter: $image_filter)"`
	}

	filterInput := &FindFilterType{
		Page:    &page,
		PerPage: &perPage,
	}

	if filter == nil {
		filter = &ImageFilterType{}
	}

	variables := map[string]interface{}{
		"filter":       filterInput,
		"image_filter": filter,
	}

	if err := client.Query(ctx, &query, variables); err != nil {
		return nil, 0, fmt.Errorf("failed to query images: %w", err)
	}

	log.Debugf("Found %d images (page %d, per_page %d, total %d)", len(query.FindImages.Images), page, perPage, query.FindImages.Count)
	return query.FindImages.Images, query.FindImages.Count, nil
}

// WithoutTags matches images carrying none of tagIDs
func WithoutTags(tagIDs ...graphql.ID) *ImageFilterType {
	return &ImageFilterType{
		Tags: &HierarchicalMultiCriterionInput{
			Value:    idStrings(tagIDs),
			Modifier: CriterionModifierExcludes,
		},
	}
}

// WithAnyTag matches images carrying at least one of tagIDs
func WithAnyTag(tagIDs ...graphql.ID) *ImageFilterType {
	return &ImageFilterType{
		Tags: &HierarchicalMultiCriterionInput{
			Value:    idStrings(tagIDs),
			Modifier: CriterionModifierIncludes,
		},
	}
}

// GetImage retrieves a single image by ID
func GetImage(ctx context.Context, client *graphql.Client, imageID graphql.ID) (*Image, error) {
	var query struct {
		FindImage *Image `graphql:"findImage(id: $id)"`
	}

	variables := map[string]interface{}{
		"id": imageID,
	}

	if err := client.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	if query.FindImage == nil {
		return nil, fmt.Errorf("image %s not found", imageID)
	}

	return query.FindImage, nil
}

// UpdateImage applies an image update
func UpdateImage(ctx context.Context, client *graphql.Client, input ImageUpdateInput) error {
	var mutation struct {
		ImageUpdate ImageUpdate `graphql:"imageUpdate(input: $input)"`
	}

	variables := map[string]interface{}{
		"input": input,
	}

	if err := client.Mutate(ctx, &mutation, variables); err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}

	log.Debugf("Updated image %s", input.ID)
	return nil
}

// AddTagToImage adds a tag to an image, keeping its existing tags
func AddTagToImage(ctx context.Context, client *graphql.Client, image *Image, tagID graphql.ID) error {
	if image.HasTag(tagID) {
		log.Tracef("Image %s already has tag %s", image.ID, tagID)
		return nil
	}

	tagIDs := make([]string, 0, len(image.Tags)+1)
	for _, tag := range image.Tags {
		tagIDs = append(tagIDs, string(tag.ID))
	}
	tagIDs = append(tagIDs, string(tagID))

	input := ImageUpdateInput{
		ID:     string(image.ID),
		TagIds: tagIDs,
	}

	if err := UpdateImage(ctx, client, input); err != nil {
		return fmt.Errorf("failed to add tag to image: %w", err)
	}

	image.Tags = append(image.Tags, Tag{ID: tagID})
	log.Tracef("Added tag %s to image %s", tagID, image.ID)
	return nil
}

// RemoveTagsFromImage removes any of tagIDs from an image
func RemoveTagsFromImage(ctx context.Context, client *graphql.Client, image *Image, tagIDs ...graphql.ID) error {
	remove := make(map[graphql.ID]bool, len(tagIDs))
	for _, id := range tagIDs {
		remove[id] = true
	}

	kept := []string{}
	var keptTags []Tag
	for _, tag := range image.Tags {
		if !remove[tag.ID] {
			kept = append(kept, string(tag.ID))
			keptTags = append(keptTags, tag)
		}
	}

	if len(keptTags) == len(image.Tags) {
		return nil
	}

	input := ImageUpdateInput{
		ID:     string(image.ID),
		TagIds: kept,
	}

	if err := UpdateImage(ctx, client, input); err != nil {
		return fmt.Errorf("failed to remove tags from image: %w", err)
	}

	image.Tags = keptTags
	log.Tracef("Removed tags %v from image %s", tagIDs, image.ID)
	return nil
}

// DownloadImage downloads an image from Stash HTTP endpoint
func DownloadImage(ctx context.Context, imageURL string, sessionCookie *http.Cookie) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if sessionCookie != nil {
		req.AddCookie(sessionCookie)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return imageBytes, nil
}

func idStrings(ids []graphql.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
