package stash

import (
	"context"
	"fmt"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// GetGallery retrieves a single gallery by ID
func GetGallery(ctx context.Context, client *graphql.Client, galleryID graphql.ID) (*Gallery, error) {
	var query struct {
		FindGallery *Gallery `graphql:"findGallery(id: $id)"`
	}

	variables := map[string]interface{}{
		"id": galleryID,
	}

	if err := client.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("failed to query gallery: %w", err)
	}

	if query.FindGallery == nil {
		return nil, fmt.Errorf("gallery %s not found", galleryID)
	}

	log.Debugf("Gallery %s '%s' has %d images", galleryID, query.FindGallery.Title, query.FindGallery.ImageCount)
	return query.FindGallery, nil
}

// InGallery matches images belonging to a gallery
func InGallery(galleryID graphql.ID) *ImageFilterType {
	return &ImageFilterType{
		Galleries: &MultiCriterionInput{
			Value:    []string{string(galleryID)},
			Modifier: CriterionModifierIncludes,
		},
	}
}
