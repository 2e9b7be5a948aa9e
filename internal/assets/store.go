// Package assets resolves emoji categories to emoji images.
package assets

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/smegmarip/stash-emojify-plugin/internal/emoji"
	"github.com/smegmarip/stash-emojify-plugin/internal/log"
)

// ErrAssetNotFound is returned when a category has no emoji image
var ErrAssetNotFound = errors.New("emoji asset not found")

// Store provides thread-safe cached emoji lookups by category
type Store struct {
	dir   string
	size  int
	cache map[emoji.Category]image.Image
	mu    sync.RWMutex
}

// NewStore creates an asset store. Images are read from dir as <asset name>.png;
// categories without a file there, or an empty dir, use the built-in rendering.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		size:  DefaultSize,
		cache: make(map[emoji.Category]image.Image),
	}
}

// Lookup returns the emoji image for a category
func (s *Store) Lookup(category emoji.Category) (image.Image, error) {
	name := category.AssetName()
	if name == "" {
		return nil, fmt.Errorf("%w: category %d", ErrAssetNotFound, int(category))
	}

	s.mu.RLock()
	img, ok := s.cache[category]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := s.load(category, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[category] = img
	s.mu.Unlock()
	return img, nil
}

// Preload resolves every category so broken custom assets fail early
func (s *Store) Preload() error {
	for _, category := range emoji.Categories {
		if _, err := s.Lookup(category); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) load(category emoji.Category, name string) (image.Image, error) {
	if s.dir != "" {
		path := filepath.Join(s.dir, name+".png")
		if _, err := os.Stat(path); err == nil {
			img, err := imaging.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load emoji asset %s: %w", path, err)
			}
			log.Debugf("Loaded emoji asset %s for %s", path, category)
			return img, nil
		}
		log.Tracef("No custom asset %s for %s, using built-in", path, category)
	}

	return Render(category, s.size), nil
}

// ExportBuiltIn writes the built-in emoji images to dir as PNG files
func ExportBuiltIn(dir string, size int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}

	for _, category := range emoji.Categories {
		path := filepath.Join(dir, category.AssetName()+".png")
		if err := imaging.Save(Render(category, size), path); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
		log.Debugf("Exported %s to %s", category, path)
	}

	return nil
}
