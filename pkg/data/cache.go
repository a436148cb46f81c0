package data

import (
	"path/filepath"
	"slices"
	"sync"
)

type entry struct {
	value any
	gen   uint64
	valid bool
}

// Cache holds decoded data module values keyed by absolute path.
//
// Each entry carries a generation that is bumped on invalidation, so a load
// that started before an invalidation cannot mark its (possibly stale)
// result valid.
type Cache struct {
	entries map[string]*entry
	mu      sync.RWMutex
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Get returns the cached value for p if it is valid.
func (c *Cache) Get(p string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[filepath.Clean(p)]
	if !ok || !e.valid {
		return nil, false
	}

	return e.value, true
}

// Store sets the value for p and marks it valid.
func (c *Cache) Store(p string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p = filepath.Clean(p)

	e, ok := c.entries[p]
	if !ok {
		e = &entry{}
		c.entries[p] = e
	}

	e.value = value
	e.valid = true
}

// Invalidate marks the entry for p invalid. It reports whether a valid entry
// was invalidated.
func (c *Cache) Invalidate(p string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[filepath.Clean(p)]
	if !ok {
		return false
	}

	wasValid := e.valid
	e.valid = false
	e.value = nil
	e.gen++

	return wasValid
}

// InvalidateAll marks every entry invalid and returns how many were valid.
func (c *Cache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.entries {
		if e.valid {
			n++
		}

		e.valid = false
		e.value = nil
		e.gen++
	}

	return n
}

// Len returns the number of valid entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if e.valid {
			n++
		}
	}

	return n
}

// Paths returns the sorted paths of all entries, valid or not.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}

	slices.Sort(paths)

	return paths
}

// lookup returns the value for p if valid, and otherwise the current
// generation to pass to [Cache.storeAt]. The entry is created if missing.
func (c *Cache) lookup(p string) (any, bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[p]
	if !ok {
		e = &entry{}
		c.entries[p] = e
	}

	return e.value, e.valid, e.gen
}

// storeAt stores value for p only if no invalidation happened since gen was
// observed. It reports whether the value was stored.
func (c *Cache) storeAt(p string, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[p]
	if !ok || e.gen != gen {
		return false
	}

	e.value = value
	e.valid = true

	return true
}
