// Package renderer produces the simulated output of running an exercise:
// a delay followed by a canned narrative filled with random cosmetic metrics.
package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/playground/internal/domain"
)

// ErrUnknownExercise is returned when rendering an exercise the level does not define
var ErrUnknownExercise = errors.New("unknown exercise")

const defaultFailureText = "Run failed."

// Result is the outcome of one simulated run
type Result struct {
	ID       string           `json:"id"`
	Exercise int              `json:"exercise"`
	Status   domain.RunStatus `json:"status"`
	Text     string           `json:"text"`
	Metrics  map[string]any   `json:"metrics"`
	Duration time.Duration    `json:"duration_ns"`
}

type options struct {
	minDelay time.Duration
	maxDelay time.Duration
	rng      *rand.Rand
}

// Option configures a Renderer or a single Render call
type Option func(*options)

// WithDelay sets the range the simulated run time is drawn from
func WithDelay(min, max time.Duration) Option {
	return func(o *options) {
		o.minDelay = min
		o.maxDelay = max
	}
}

// WithRand sets the random source
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rng = r
	}
}

// WithSeed uses a fresh random source seeded with seed
func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

type compiled struct {
	def     *domain.ExerciseDef
	output  *template.Template
	failure *template.Template
}

// Renderer renders simulated runs for one level
type Renderer struct {
	exercises map[int]*compiled

	mu   sync.Mutex // guards opts.rng
	opts options
}

// New compiles the output templates of every exercise in level
func New(level *domain.Level, opts ...Option) (*Renderer, error) {
	o := options{
		minDelay: 400 * time.Millisecond,
		maxDelay: 1200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	r := &Renderer{exercises: make(map[int]*compiled, len(level.Exercises)), opts: o}
	for i := range level.Exercises {
		ex := &level.Exercises[i]
		c := &compiled{def: ex}

		var err error
		name := fmt.Sprintf("level%d.exercise%d", level.Number, ex.ID)
		if c.output, err = template.New(name).Parse(ex.Run.Output); err != nil {
			return nil, fmt.Errorf("parse output of exercise %d: %w", ex.ID, err)
		}
		if ex.Run.FailureOutput != "" {
			if c.failure, err = template.New(name + ".failure").Parse(ex.Run.FailureOutput); err != nil {
				return nil, fmt.Errorf("parse failure output of exercise %d: %w", ex.ID, err)
			}
		}
		r.exercises[ex.ID] = c
	}
	return r, nil
}

// Render waits for the simulated run time, then draws metrics and fills the
// exercise's output template. It returns ctx.Err() if ctx ends first.
func (r *Renderer) Render(ctx context.Context, exerciseID int, opts ...Option) (Result, error) {
	c, ok := r.exercises[exerciseID]
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownExercise, exerciseID)
	}

	// Per-call options get their own copy; a per-call rng is not shared.
	o := r.opts
	for _, opt := range opts {
		opt(&o)
	}
	lock := o.rng == r.opts.rng

	if lock {
		r.mu.Lock()
	}
	delay := drawDelay(o.rng, o.minDelay, o.maxDelay)
	failed := c.def.Run.FailureRate > 0 && o.rng.Float64() < c.def.Run.FailureRate
	metrics := drawMetrics(o.rng, c.def.Run.Metrics)
	if lock {
		r.mu.Unlock()
	}

	start := time.Now()
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, ctx.Err()
		case <-timer.C:
		}
	}

	res := Result{
		ID:       uuid.New().String(),
		Exercise: exerciseID,
		Status:   domain.RunSuccess,
		Metrics:  metrics,
	}

	tmpl := c.output
	if failed {
		res.Status = domain.RunFailure
		tmpl = c.failure
	}

	if tmpl == nil {
		res.Text = defaultFailureText
	} else {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, metrics); err != nil {
			return Result{}, fmt.Errorf("render exercise %d: %w", exerciseID, err)
		}
		res.Text = buf.String()
	}
	res.Duration = time.Since(start)
	return res, nil
}

func drawDelay(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)+1))
}

// drawMetrics draws every metric uniformly from its range. Names are drawn in
// sorted order so a seeded source gives repeatable values.
func drawMetrics(rng *rand.Rand, ranges map[string]domain.MetricRange) map[string]any {
	out := make(map[string]any, len(ranges))
	for _, name := range sortedKeys(ranges) {
		mr := ranges[name]
		v := mr.Min
		if mr.Max > mr.Min {
			v += rng.Intn(mr.Max - mr.Min + 1)
		}
		if mr.Format != "" {
			out[name] = fmt.Sprintf(mr.Format, v)
		} else {
			out[name] = v
		}
	}
	return out
}

func sortedKeys(m map[string]domain.MetricRange) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
