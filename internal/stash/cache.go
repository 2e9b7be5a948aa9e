package stash

import (
	"strings"
	"sync"

	graphql "github.com/hasura/go-graphql-client"
)

// TagCache remembers tag IDs by name for the lifetime of one plugin task.
// Stash tag names are unique regardless of case, so keys are case-folded.
type TagCache struct {
	ids map[string]graphql.ID
	mu  sync.RWMutex
}

// NewTagCache creates an empty tag cache
func NewTagCache() *TagCache {
	return &TagCache{ids: make(map[string]graphql.ID)}
}

func tagKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get returns the cached ID for a tag name
func (c *TagCache) Get(name string) (graphql.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[tagKey(name)]
	return id, ok
}

// Set records the ID for a tag name
func (c *TagCache) Set(name string, id graphql.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[tagKey(name)] = id
}
