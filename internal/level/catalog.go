package level

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/felixgeelhaar/playground/internal/domain"
)

// Catalog provides access to the loaded levels. Levels from the override
// directory replace built-in levels with the same number.
type Catalog struct {
	builtin   *Loader
	overrides *Loader

	mu      sync.RWMutex
	levels  map[int]*domain.Level
	numbers []int
}

// NewCatalog creates a catalog of the built-in levels plus overrideDir.
// An empty overrideDir disables overrides.
func NewCatalog(overrideDir string) *Catalog {
	c := &Catalog{
		builtin: NewBuiltinLoader(),
		levels:  make(map[int]*domain.Level),
	}
	if overrideDir != "" {
		c.overrides = NewLoader(overrideDir)
	}
	return c
}

// NewCatalogFrom builds a catalog from already loaded levels
func NewCatalogFrom(levels ...*domain.Level) (*Catalog, error) {
	c := &Catalog{levels: make(map[int]*domain.Level)}
	for _, lvl := range levels {
		if err := lvl.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.levels[lvl.Number]; dup {
			return nil, fmt.Errorf("%w: duplicate level %d", domain.ErrInvalidLevel, lvl.Number)
		}
		c.levels[lvl.Number] = lvl
	}
	c.index()
	return c, nil
}

// Load reads the built-in and override levels into memory
func (c *Catalog) Load() error {
	levels := make(map[int]*domain.Level)

	if c.builtin != nil {
		builtin, err := c.builtin.LoadAll()
		if err != nil {
			return fmt.Errorf("load built-in levels: %w", err)
		}
		for _, lvl := range builtin {
			levels[lvl.Number] = lvl
		}
	}

	if c.overrides != nil {
		custom, err := c.overrides.LoadAll()
		if err != nil {
			return fmt.Errorf("load custom levels: %w", err)
		}
		for _, lvl := range custom {
			if _, ok := levels[lvl.Number]; ok {
				slog.Info("level overridden", "level", lvl.Number, "slug", lvl.Slug)
			}
			levels[lvl.Number] = lvl
		}
	}

	c.mu.Lock()
	c.levels = levels
	c.index()
	c.mu.Unlock()
	return nil
}

// Reload re-reads all level files
func (c *Catalog) Reload() error {
	return c.Load()
}

// index rebuilds the sorted level numbers; callers hold mu
func (c *Catalog) index() {
	c.numbers = c.numbers[:0]
	for n := range c.levels {
		c.numbers = append(c.numbers, n)
	}
	sort.Ints(c.numbers)
}

// Get returns a level by number
func (c *Catalog) Get(n int) (*domain.Level, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lvl, ok := c.levels[n]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrLevelNotFound, n)
	}
	return lvl, nil
}

// List returns all levels ordered by number
func (c *Catalog) List() []*domain.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	levels := make([]*domain.Level, 0, len(c.numbers))
	for _, n := range c.numbers {
		levels = append(levels, c.levels[n])
	}
	return levels
}

// Numbers returns the level numbers in ascending order
func (c *Catalog) Numbers() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int(nil), c.numbers...)
}

// Count returns the number of levels
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.levels)
}

// Navigation returns the neighbouring level numbers of n.
// Gaps in numbering are skipped.
func (c *Catalog) Navigation(n int) domain.Navigation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var nav domain.Navigation
	i := sort.SearchInts(c.numbers, n)
	if i > 0 {
		nav.Prev = c.numbers[i-1]
	}
	if i < len(c.numbers) && c.numbers[i] == n {
		i++
	}
	if i < len(c.numbers) {
		nav.Next = c.numbers[i]
	}
	return nav
}

// Previous returns the level before n, or 0 when n is the first
func (c *Catalog) Previous(n int) int {
	return c.Navigation(n).Prev
}

// Stats returns statistics about the loaded levels
func (c *Catalog) Stats() CatalogStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CatalogStats{LevelCount: len(c.levels)}
	for _, lvl := range c.levels {
		stats.ExerciseCount += len(lvl.Exercises)
	}
	return stats
}

// CatalogStats holds statistics about the catalog
type CatalogStats struct {
	LevelCount    int `json:"level_count"`
	ExerciseCount int `json:"exercise_count"`
}
