package dataset

import (
	"fmt"
	"sync"

	"go.ngs.io/climate-preproc/internal/domain"
)

// Loader loads a single-variable cube from a file.
type Loader interface {
	LoadCube(path string) (*domain.Cube, error)
}

// CachedLoader keeps realized cubes in memory, keyed by path. It is meant
// for small, frequently reused files such as cell area fields.
type CachedLoader struct {
	loader Loader
	cache  map[string]*domain.Cube // Cache loaded cubes.
	mu     sync.RWMutex            // Protect cache.
}

// NewCachedLoader wraps loader with an in-memory cache.
func NewCachedLoader(loader Loader) *CachedLoader {
	return &CachedLoader{
		loader: loader,
		cache:  make(map[string]*domain.Cube),
	}
}

// LoadCube returns a copy of the cached cube, loading it on first use.
func (c *CachedLoader) LoadCube(path string) (*domain.Cube, error) {
	c.mu.RLock()
	cube, ok := c.cache[path]
	c.mu.RUnlock()
	if ok {
		return cube.Copy(), nil
	}

	cube, err := c.loader.LoadCube(path)
	if err != nil {
		return nil, err
	}
	if err := cube.Realize(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	c.mu.Lock()
	c.cache[path] = cube
	c.mu.Unlock()
	return cube.Copy(), nil
}

// Len returns the number of cached cubes.
func (c *CachedLoader) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
