package stash

import (
	graphql "github.com/hasura/go-graphql-client"
	"github.com/stashapp/stash/pkg/models"
)

// ImagePaths represents the paths for an image
type ImagePaths struct {
	Image string `graphql:"image"`
}

// ImageFile represents a file associated with an image
type ImageFile struct {
	Path   string `graphql:"path"`
	Width  int    `graphql:"width"`
	Height int    `graphql:"height"`
}

// Image represents a Stash image
type Image struct {
	ID    graphql.ID  `graphql:"id"`
	Title string      `graphql:"title"`
	Paths ImagePaths  `graphql:"paths"`
	Files []ImageFile `graphql:"files"`
	Tags  []Tag       `graphql:"tags"`
}

// HasTag reports whether the image carries tagID
func (i Image) HasTag(tagID graphql.ID) bool {
	for _, tag := range i.Tags {
		if tag.ID == tagID {
			return true
		}
	}
	return false
}

// Tag represents a Stash tag
type Tag struct {
	ID   graphql.ID `graphql:"id"`
	Name string     `graphql:"name"`
}

// Folder represents a folder in the file system.
type Folder struct {
	ID   string `graphql:"id"`
	Path string `graphql:"path"`
}

// Gallery represents a Stash gallery
type Gallery struct {
	ID         graphql.ID `graphql:"id"`
	Title      string     `graphql:"title"`
	Folder     *Folder    `graphql:"folder"`
	Tags       []Tag      `graphql:"tags"`
	ImageCount int        `graphql:"image_count"`
}

// ============================================================================
// Re-exported types from github.com/stashapp/stash/pkg/models
// ============================================================================

// Criterion Input Types
type (
	StringCriterionInput            = models.StringCriterionInput
	HierarchicalMultiCriterionInput = models.HierarchicalMultiCriterionInput
	MultiCriterionInput             = models.MultiCriterionInput
)

// Filter Types
type (
	ImageFilterType = models.ImageFilterType
	TagFilterType   = models.TagFilterType
	FindFilterType  = models.FindFilterType
)

// Input Types
type (
	ImageUpdateInput = models.ImageUpdateInput
)

const (
	CriterionModifierIncludesAll = models.CriterionModifierIncludesAll
	CriterionModifierIncludes    = models.CriterionModifierIncludes
	CriterionModifierExcludes    = models.CriterionModifierExcludes
	CriterionModifierEquals      = models.CriterionModifierEquals
)

// TagCreateInput represents input for creating a tag
type TagCreateInput struct {
	Name graphql.String `graphql:"name" json:"name"`
}

// ScanMetadataInput limits a metadata scan to specific paths
type ScanMetadataInput struct {
	Paths []string `json:"paths"`
}

// ImageUpdate represents the result of updating an image
type ImageUpdate struct {
	ID graphql.ID `graphql:"id"`
}
