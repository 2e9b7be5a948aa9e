package stash

import (
	"context"
	"fmt"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// FindTag looks a tag up by exact name without creating it
func FindTag(ctx context.Context, client *graphql.Client, cache *TagCache, tagName string) (graphql.ID, bool, error) {
	if id, ok := cache.Get(tagName); ok {
		log.Tracef("Tag '%s' found in cache: %s", tagName, id)
		return id, true, nil
	}

	var query struct {
		FindTags struct {
			Count int
			Tags  []Tag
		} `graphql:"findTags(tag_filter: $filter)"`
	}

	filterInput := &TagFilterType{
		Name: &StringCriterionInput{
			Value:    tagName,
			Modifier: CriterionModifierEquals,
		},
	}

	variables := map[string]interface{}{
		"filter": filterInput,
	}

	if err := client.Query(ctx, &query, variables); err != nil {
		return "", false, fmt.Errorf("failed to query tags: %w", err)
	}

	if len(query.FindTags.Tags) == 0 {
		return "", false, nil
	}

	tagID := query.FindTags.Tags[0].ID
	cache.Set(tagName, tagID)
	log.Debugf("Found existing tag '%s': %s", tagName, tagID)
	return tagID, true, nil
}

// GetOrCreateTag finds a tag by name or creates it if it doesn't exist
func GetOrCreateTag(ctx context.Context, client *graphql.Client, cache *TagCache, tagName string) (graphql.ID, error) {
	tagID, found, err := FindTag(ctx, client, cache, tagName)
	if err != nil {
		return "", err
	}
	if found {
		return tagID, nil
	}

	var mutation struct {
		TagCreate Tag `graphql:"tagCreate(input: $input)"`
	}

	variables := map[string]interface{}{
		"input": TagCreateInput{Name: graphql.String(tagName)},
	}

	if err := client.Mutate(ctx, &mutation, variables); err != nil {
		return "", fmt.Errorf("failed to create tag: %w", err)
	}

	tagID = mutation.TagCreate.ID
	cache.Set(tagName, tagID)
	log.Infof("Created tag '%s': %s", tagName, tagID)
	return tagID, nil
}

// TriggerMetadataScan asks Stash to scan paths for new files; no paths scans every library
func TriggerMetadataScan(ctx context.Context, client *graphql.Client, paths []string) (string, error) {
	var mutation struct {
		MetadataScan graphql.ID `graphql:"metadataScan(input: $input)"`
	}

	variables := map[string]interface{}{
		"input": ScanMetadataInput{Paths: paths},
	}

	if err := client.Mutate(ctx, &mutation, variables); err != nil {
		return "", fmt.Errorf("failed to trigger metadata scan: %w", err)
	}

	log.Infof("Triggered metadata scan (job %s)", mutation.MetadataScan)
	return string(mutation.MetadataScan), nil
}
