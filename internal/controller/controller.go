// Package controller orchestrates one level's exercises: simulated runs,
// answer checks, level completion and reset, and persistence of progress.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/progress"
	"github.com/felixgeelhaar/playground/internal/renderer"
	"github.com/felixgeelhaar/playground/internal/storage"
	"github.com/felixgeelhaar/playground/internal/validation"
)

// User-facing check messages
const (
	MessagePassed = "Correct! Exercise complete."
	MessageFailed = "Not quite. Try again."
)

// ErrRunSuperseded is returned by Run when a newer run of the same exercise started
var ErrRunSuperseded = errors.New("run superseded by a newer run")

// RunState is the in-memory state of an exercise's last simulated run
type RunState struct {
	Status    domain.RunStatus `json:"status"`
	RunID     string           `json:"run_id,omitempty"`
	Output    string           `json:"output,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CheckResult is the outcome of checking a submission
type CheckResult struct {
	Exercise int                 `json:"exercise"`
	Passed   bool                `json:"passed"`
	Message  string              `json:"message"`
	Failure  *validation.Failure `json:"failure,omitempty"`
	Summary  progress.Summary    `json:"summary"`
}

// Completion is the outcome of completing a level
type Completion struct {
	Level           int               `json:"level"`
	CompletedAt     time.Time         `json:"completed_at"`
	CompletedLevels []int             `json:"completed_levels"`
	TotalProgress   int               `json:"total_progress"`
	Navigation      domain.Navigation `json:"navigation"`
}

// Snapshot is a consistent copy of a controller's state
type Snapshot struct {
	Progress   domain.LevelProgress `json:"progress"`
	Summary    progress.Summary     `json:"summary"`
	Runs       map[int]RunState     `json:"runs"`
	Navigation domain.Navigation    `json:"navigation"`
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

// Controller holds the progress of one level for the daemon's lifetime
type Controller struct {
	level      *domain.Level
	store      *storage.Adapter
	renderer   *renderer.Renderer
	rules      *validation.RuleSet
	ledger     *Ledger
	dispatcher *domain.EventDispatcher
	nav        domain.Navigation
	logger     *slog.Logger

	mu       sync.Mutex
	progress domain.LevelProgress
	runs     map[int]RunState
	inflight map[int]inflight
	seq      uint64
	dirty    bool
}

// Deps are the collaborators a controller needs
type Deps struct {
	Store      *storage.Adapter
	Ledger     *Ledger
	Dispatcher *domain.EventDispatcher
	Navigation domain.Navigation
	Renderer   []renderer.Option
}

// New creates a controller with default progress. Call Load to overlay
// persisted state.
func New(level *domain.Level, deps Deps) (*Controller, error) {
	r, err := renderer.New(level, deps.Renderer...)
	if err != nil {
		return nil, fmt.Errorf("level %d: %w", level.Number, err)
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = domain.NewEventDispatcher()
	}

	c := &Controller{
		level:      level,
		store:      deps.Store,
		renderer:   r,
		rules:      validation.FromLevel(level),
		ledger:     deps.Ledger,
		dispatcher: deps.Dispatcher,
		nav:        deps.Navigation,
		logger:     slog.Default().With("level", level.Number),
		inflight:   make(map[int]inflight),
	}
	c.progress = c.defaults()
	c.runs = c.defaultRuns()
	return c, nil
}

// Level returns the level definition
func (c *Controller) Level() *domain.Level {
	return c.level
}

func (c *Controller) defaults() domain.LevelProgress {
	return domain.LevelProgress{
		LevelNumber: c.level.Number,
		Exercises:   progress.Initialize(c.level.Exercises),
		Metrics:     c.level.DefaultMetrics(),
	}
}

func (c *Controller) defaultRuns() map[int]RunState {
	runs := make(map[int]RunState, len(c.level.Exercises))
	for _, ex := range c.level.Exercises {
		runs[ex.ID] = RunState{Status: domain.RunPending}
	}
	return runs
}

// Load overlays the persisted progress onto the defaults.
// Absent or malformed data leaves the defaults in place.
func (c *Controller) Load(ctx context.Context) {
	var stored domain.LevelProgress
	found := c.store.Load(ctx, domain.ProgressKey(c.level.Number), &stored)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.progress = c.defaults()
	c.runs = c.defaultRuns()
	if !found {
		return
	}

	c.progress.Exercises = progress.Overlay(c.progress.Exercises, stored.Exercises)
	c.progress.Metrics = progress.OverlayMetrics(c.progress.Metrics, stored.Metrics)
	if progress.AllComplete(c.progress.Exercises) {
		c.progress.CompletedAt = stored.CompletedAt
	}
	for _, r := range c.progress.Exercises {
		if r.Completed {
			c.runs[r.ID] = RunState{Status: domain.RunCompleted}
		}
	}
}

// Run simulates running an exercise. A run started while another run of the
// same exercise is in flight cancels the older one.
func (c *Controller) Run(ctx context.Context, exerciseID int) (renderer.Result, error) {
	if _, ok := c.level.Exercise(exerciseID); !ok {
		return renderer.Result{}, fmt.Errorf("%w: level %d exercise %d", domain.ErrExerciseNotFound, c.level.Number, exerciseID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if prev, ok := c.inflight[exerciseID]; ok {
		prev.cancel()
	}
	c.seq++
	seq := c.seq
	c.inflight[exerciseID] = inflight{seq: seq, cancel: cancel}
	if !c.isCompleted(exerciseID) {
		c.runs[exerciseID] = RunState{Status: domain.RunRunning, UpdatedAt: time.Now()}
	}
	c.mu.Unlock()

	res, err := c.renderer.Render(runCtx, exerciseID)

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.inflight[exerciseID]
	if !ok || current.seq != seq {
		return renderer.Result{}, ErrRunSuperseded
	}
	delete(c.inflight, exerciseID)

	if err != nil {
		if !c.isCompleted(exerciseID) {
			c.runs[exerciseID] = RunState{Status: domain.RunPending, UpdatedAt: time.Now()}
		}
		return renderer.Result{}, err
	}

	status := res.Status
	if c.isCompleted(exerciseID) {
		status = domain.RunCompleted
	}
	c.runs[exerciseID] = RunState{Status: status, RunID: res.ID, Output: res.Text, UpdatedAt: time.Now()}

	if c.progress.Metrics == nil {
		c.progress.Metrics = make(map[string]any, len(res.Metrics))
	}
	for k, v := range res.Metrics {
		c.progress.Metrics[k] = domain.NormalizeMetric(v)
	}
	c.dirty = true

	c.logger.Debug("exercise run", "exercise", exerciseID, "status", res.Status, "duration", res.Duration)
	return res, nil
}

// Check validates a submission. A failed check is not an error.
func (c *Controller) Check(ctx context.Context, exerciseID int, fields map[string]string) (CheckResult, error) {
	if _, ok := c.level.Exercise(exerciseID); !ok {
		return CheckResult{}, fmt.Errorf("%w: level %d exercise %d", domain.ErrExerciseNotFound, c.level.Number, exerciseID)
	}

	res := c.rules.Check(exerciseID, fields)

	c.mu.Lock()
	if !res.Passed {
		summary := c.summaryLocked()
		c.mu.Unlock()
		return CheckResult{Exercise: exerciseID, Message: MessageFailed, Failure: res.Failure, Summary: summary}, nil
	}

	newlyCompleted := !c.isCompleted(exerciseID)
	c.progress.Exercises = progress.MarkComplete(c.progress.Exercises, exerciseID)
	run := c.runs[exerciseID]
	run.Status = domain.RunCompleted
	run.UpdatedAt = time.Now()
	c.runs[exerciseID] = run
	c.dirty = true
	c.saveLocked(ctx)
	summary := c.summaryLocked()
	c.mu.Unlock()

	if newlyCompleted {
		c.logger.Info("exercise completed", "exercise", exerciseID, "completed", summary.Completed, "total", summary.Total)
		c.dispatcher.Publish(domain.NewExerciseCompletedEvent(c.level.Number, exerciseID))
	}

	return CheckResult{Exercise: exerciseID, Passed: true, Message: MessagePassed, Summary: summary}, nil
}

// CompleteLevel records the level as completed once every exercise is done.
// Calling it again is harmless; the level is recorded once.
func (c *Controller) CompleteLevel(ctx context.Context) (Completion, error) {
	c.mu.Lock()
	if !progress.AllComplete(c.progress.Exercises) {
		done, total := progress.CompletedCount(c.progress.Exercises), len(c.progress.Exercises)
		c.mu.Unlock()
		return Completion{}, fmt.Errorf("%w: %d of %d exercises complete", domain.ErrLevelIncomplete, done, total)
	}

	if c.progress.CompletedAt == nil {
		now := time.Now().UTC()
		c.progress.CompletedAt = &now
		c.dirty = true
	}
	completedAt := *c.progress.CompletedAt
	c.saveLocked(ctx)
	c.mu.Unlock()

	state, added, err := c.ledger.MarkCompleted(ctx, c.level.Number)
	if err != nil {
		return Completion{}, err
	}

	if added {
		c.logger.Info("level completed", "total_progress", state.TotalProgress)
		c.dispatcher.Publish(domain.NewLevelCompletedEvent(c.level.Number, state.CompletedLevels, state.TotalProgress))
	}

	return Completion{
		Level:           c.level.Number,
		CompletedAt:     completedAt,
		CompletedLevels: state.CompletedLevels,
		TotalProgress:   state.TotalProgress,
		Navigation:      c.nav,
	}, nil
}

// ResetLevel restores default progress, clears run output and cancels
// in-flight runs. Resetting twice is the same as resetting once.
func (c *Controller) ResetLevel(ctx context.Context) Snapshot {
	c.mu.Lock()
	for id, f := range c.inflight {
		f.cancel()
		delete(c.inflight, id)
	}
	c.progress = c.defaults()
	c.runs = c.defaultRuns()
	c.dirty = true
	c.saveLocked(ctx)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("level reset")
	c.dispatcher.Publish(domain.NewLevelResetEvent(c.level.Number))
	return snap
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Summary returns the derived progress summary
func (c *Controller) Summary() progress.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaryLocked()
}

// Dirty reports whether there are unsaved changes
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Flush persists unsaved changes
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}
	return c.saveLocked(ctx)
}

// saveLocked writes progress and clears the dirty flag on success.
// Failures are logged; the next flush retries.
func (c *Controller) saveLocked(ctx context.Context) error {
	if err := c.store.Save(ctx, domain.ProgressKey(c.level.Number), c.progress); err != nil {
		c.logger.Warn("failed to save progress", "error", err)
		return err
	}
	c.dirty = false
	return nil
}

func (c *Controller) isCompleted(exerciseID int) bool {
	for _, r := range c.progress.Exercises {
		if r.ID == exerciseID {
			return r.Completed
		}
	}
	return false
}

func (c *Controller) summaryLocked() progress.Summary {
	return progress.Summarize(c.progress.Exercises, c.level.BadgeLadder())
}

func (c *Controller) snapshotLocked() Snapshot {
	p := c.progress
	p.Exercises = append([]domain.ExerciseRecord(nil), c.progress.Exercises...)
	p.Metrics = progress.OverlayMetrics(nil, c.progress.Metrics)
	if c.progress.CompletedAt != nil {
		t := *c.progress.CompletedAt
		p.CompletedAt = &t
	}

	runs := make(map[int]RunState, len(c.runs))
	for id, r := range c.runs {
		runs[id] = r
	}

	return Snapshot{
		Progress:   p,
		Summary:    c.summaryLocked(),
		Runs:       runs,
		Navigation: c.nav,
	}
}
