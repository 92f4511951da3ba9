package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/level"
	"github.com/felixgeelhaar/playground/internal/progress"
	"github.com/felixgeelhaar/playground/internal/renderer"
	"github.com/felixgeelhaar/playground/internal/storage"
)

// ManagerConfig holds manager settings
type ManagerConfig struct {
	EnforceUnlock bool
	Renderer      []renderer.Option
}

// LevelOverview is one entry of the level listing
type LevelOverview struct {
	Number      int              `json:"number"`
	Slug        string           `json:"slug"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Exercises   int              `json:"exercises"`
	Unlocked    bool             `json:"unlocked"`
	Completed   bool             `json:"completed"`
	Summary     progress.Summary `json:"summary"`
}

// Manager owns one controller per visited level plus the cross-level ledger
type Manager struct {
	catalog    *level.Catalog
	store      *storage.Adapter
	ledger     *Ledger
	dispatcher *domain.EventDispatcher
	cfg        ManagerConfig

	mu          sync.Mutex
	controllers map[int]*Controller

	scheduler *gocron.Scheduler
}

// NewManager creates a manager and loads the cross-level ledger
func NewManager(ctx context.Context, catalog *level.Catalog, store *storage.Adapter, dispatcher *domain.EventDispatcher, cfg ManagerConfig) *Manager {
	if dispatcher == nil {
		dispatcher = domain.NewEventDispatcher()
	}

	ledger := NewLedger(store, catalog.Numbers())
	ledger.Load(ctx)

	return &Manager{
		catalog:     catalog,
		store:       store,
		ledger:      ledger,
		dispatcher:  dispatcher,
		cfg:         cfg,
		controllers: make(map[int]*Controller),
	}
}

// Catalog returns the level catalog
func (m *Manager) Catalog() *level.Catalog {
	return m.catalog
}

// Get returns the controller for level n, creating and loading it on first use.
// With unlock enforcement, locked levels return domain.ErrLevelLocked.
func (m *Manager) Get(ctx context.Context, n int) (*Controller, error) {
	if m.cfg.EnforceUnlock && !m.Unlocked(n) {
		if _, err := m.catalog.Get(n); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: complete level %d first", domain.ErrLevelLocked, m.catalog.Previous(n))
	}
	return m.controller(ctx, n)
}

func (m *Manager) controller(ctx context.Context, n int) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.controllers[n]; ok {
		return c, nil
	}

	lvl, err := m.catalog.Get(n)
	if err != nil {
		return nil, err
	}

	c, err := New(lvl, Deps{
		Store:      m.store,
		Ledger:     m.ledger,
		Dispatcher: m.dispatcher,
		Navigation: m.catalog.Navigation(n),
		Renderer:   m.cfg.Renderer,
	})
	if err != nil {
		return nil, err
	}
	c.Load(ctx)

	m.controllers[n] = c
	slog.Debug("level controller created", "level", n)
	return c, nil
}

// Unlocked reports whether level n may be played: the first level always is,
// any other once the level before it is completed.
func (m *Manager) Unlocked(n int) bool {
	prev := m.catalog.Previous(n)
	return prev == 0 || m.ledger.Has(prev)
}

// Levels lists the catalog with per-level progress
func (m *Manager) Levels(ctx context.Context) ([]LevelOverview, error) {
	levels := m.catalog.List()
	out := make([]LevelOverview, 0, len(levels))
	for _, lvl := range levels {
		c, err := m.controller(ctx, lvl.Number)
		if err != nil {
			return nil, err
		}
		out = append(out, LevelOverview{
			Number:      lvl.Number,
			Slug:        lvl.Slug,
			Title:       lvl.Title,
			Description: lvl.Description,
			Exercises:   len(lvl.Exercises),
			Unlocked:    m.Unlocked(lvl.Number),
			Completed:   m.ledger.Has(lvl.Number),
			Summary:     c.Summary(),
		})
	}
	return out, nil
}

// Progress returns the cross-level progress
func (m *Manager) Progress() LedgerState {
	return m.ledger.State()
}

// FlushAll persists every controller with unsaved changes
func (m *Manager) FlushAll(ctx context.Context) error {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.mu.Unlock()

	var errs []error
	for _, c := range controllers {
		if err := c.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("level %d: %w", c.Level().Number, err))
		}
	}
	return errors.Join(errs...)
}

// StartAutosave flushes dirty controllers every interval until Close
func (m *Manager) StartAutosave(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(interval).Do(m.autosave); err != nil {
		return fmt.Errorf("schedule autosave: %w", err)
	}
	s.StartAsync()

	m.mu.Lock()
	m.scheduler = s
	m.mu.Unlock()

	slog.Info("autosave started", "interval", interval)
	return nil
}

func (m *Manager) autosave() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.FlushAll(ctx); err != nil {
		slog.Warn("autosave failed", "error", err)
	}
}

// Close stops autosave and flushes all controllers
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	s := m.scheduler
	m.scheduler = nil
	m.mu.Unlock()

	if s != nil {
		s.Stop()
	}
	return m.FlushAll(ctx)
}
