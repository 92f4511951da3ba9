package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Level is one self-contained tutorial page with a fixed set of exercises.
type Level struct {
	Number      int              `json:"number" yaml:"number"`
	Slug        string           `json:"slug" yaml:"slug"`
	Title       string           `json:"title" yaml:"title"`
	Description string           `json:"description" yaml:"description"`
	Metrics     map[string]any   `json:"metrics,omitempty" yaml:"metrics"`
	Badges      []BadgeThreshold `json:"badges,omitempty" yaml:"badges"`
	Exercises   []ExerciseDef    `json:"exercises" yaml:"exercises"`
}

// ExerciseDef is the static definition of one exercise within a level.
type ExerciseDef struct {
	ID     int         `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	Prompt string      `json:"prompt,omitempty" yaml:"prompt"`
	Sample string      `json:"sample,omitempty" yaml:"sample"`
	Fields []string    `json:"fields,omitempty" yaml:"fields"`
	Checks []CheckDef  `json:"checks,omitempty" yaml:"checks"`
	Run    RunTemplate `json:"run" yaml:"run"`
}

// CheckDef is one textual requirement on a submitted field.
type CheckDef struct {
	Field    string   `json:"field" yaml:"field"`
	Contains []string `json:"contains,omitempty" yaml:"contains"`
	Equals   string   `json:"equals,omitempty" yaml:"equals"`
}

// RunTemplate describes the canned output of a simulated run.
type RunTemplate struct {
	FailureRate   float64                `json:"failure_rate,omitempty" yaml:"failure_rate"`
	Output        string                 `json:"output" yaml:"output"`
	FailureOutput string                 `json:"failure_output,omitempty" yaml:"failure_output"`
	Metrics       map[string]MetricRange `json:"metrics,omitempty" yaml:"metrics"`
}

// MetricRange bounds a cosmetic metric drawn at render time.
type MetricRange struct {
	Min    int    `json:"min" yaml:"min"`
	Max    int    `json:"max" yaml:"max"`
	Format string `json:"format,omitempty" yaml:"format"` // fmt verb, e.g. "%d%%"
}

// BadgeThreshold is one rung of a level's badge ladder. A tier qualifies
// when both minimums are met; the last qualifying tier wins.
type BadgeThreshold struct {
	Name         string  `json:"name" yaml:"name"`
	MinCompleted int     `json:"min_completed,omitempty" yaml:"min_completed"`
	MinPercent   float64 `json:"min_percent,omitempty" yaml:"min_percent"`
}

// DefaultBadges is the ladder used when a level declares none.
func DefaultBadges() []BadgeThreshold {
	return []BadgeThreshold{
		{Name: "Novice"},
		{Name: "Learner", MinCompleted: 1},
		{Name: "Developer", MinPercent: 60},
		{Name: "Master", MinPercent: 100},
	}
}

// Exercise returns the exercise definition with the given id.
func (l *Level) Exercise(id int) (*ExerciseDef, bool) {
	for i := range l.Exercises {
		if l.Exercises[i].ID == id {
			return &l.Exercises[i], true
		}
	}
	return nil, false
}

// BadgeLadder returns the level's badge thresholds, falling back to defaults.
func (l *Level) BadgeLadder() []BadgeThreshold {
	if len(l.Badges) == 0 {
		return DefaultBadges()
	}
	return l.Badges
}

// DefaultMetrics returns a copy of the level's default metrics bag.
func (l *Level) DefaultMetrics() map[string]any {
	m := make(map[string]any, len(l.Metrics))
	for k, v := range l.Metrics {
		m[k] = NormalizeMetric(v)
	}
	return m
}

// Validate checks the definition for structural errors.
func (l *Level) Validate() error {
	if l.Number <= 0 {
		return fmt.Errorf("%w: level number must be positive, got %d", ErrInvalidLevel, l.Number)
	}
	if l.Title == "" {
		return fmt.Errorf("%w: level %d has no title", ErrInvalidLevel, l.Number)
	}
	if len(l.Exercises) == 0 {
		return fmt.Errorf("%w: level %d has no exercises", ErrInvalidLevel, l.Number)
	}

	seen := make(map[int]bool, len(l.Exercises))
	for _, ex := range l.Exercises {
		if ex.ID <= 0 {
			return fmt.Errorf("%w: level %d: exercise id must be positive, got %d", ErrInvalidLevel, l.Number, ex.ID)
		}
		if seen[ex.ID] {
			return fmt.Errorf("%w: level %d: duplicate exercise id %d", ErrInvalidLevel, l.Number, ex.ID)
		}
		seen[ex.ID] = true
		if ex.Name == "" {
			return fmt.Errorf("%w: level %d: exercise %d has no name", ErrInvalidLevel, l.Number, ex.ID)
		}
		for _, c := range ex.Checks {
			if c.Field == "" {
				return fmt.Errorf("%w: level %d: exercise %d has a check without a field", ErrInvalidLevel, l.Number, ex.ID)
			}
		}
		for name, r := range ex.Run.Metrics {
			if r.Min > r.Max {
				return fmt.Errorf("%w: level %d: exercise %d metric %q has min > max", ErrInvalidLevel, l.Number, ex.ID, name)
			}
			if err := checkMetricFormat(r.Format); err != nil {
				return fmt.Errorf("%w: level %d: exercise %d metric %q: %v", ErrInvalidLevel, l.Number, ex.ID, name, err)
			}
		}
		if ex.Run.FailureRate < 0 || ex.Run.FailureRate > 1 {
			return fmt.Errorf("%w: level %d: exercise %d failure_rate out of range", ErrInvalidLevel, l.Number, ex.ID)
		}
	}
	return nil
}

// checkMetricFormat rejects formats that do not take exactly one integer.
// fmt marks bad verbs, missing operands and extra operands with "%!".
func checkMetricFormat(format string) error {
	if format == "" {
		return nil
	}
	if out := fmt.Sprintf(format, 1); strings.Contains(out, "%!") {
		return fmt.Errorf("format %q does not take a single integer", format)
	}
	return nil
}

// ExerciseRecord is one exercise's completion flag inside LevelProgress.
type ExerciseRecord struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// LevelProgress is the persisted aggregate for one level.
type LevelProgress struct {
	LevelNumber int              `json:"levelNumber"`
	Exercises   []ExerciseRecord `json:"exercises"`
	Metrics     map[string]any   `json:"metrics,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// UnmarshalJSON decodes the blob and normalizes metric numbers, so a
// progress value survives a save and load unchanged.
func (p *LevelProgress) UnmarshalJSON(data []byte) error {
	type plain LevelProgress
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw.Metrics = NormalizeMetrics(raw.Metrics)
	*p = LevelProgress(raw)
	return nil
}

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// NormalizeMetric gives metric numbers one representation regardless of
// where they came from: whole numbers are int, fractions stay float64.
// Non-numeric values are returned unchanged.
func NormalizeMetric(v any) any {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && math.Abs(n) <= maxExactInt {
			return int(n)
		}
		return n
	case float32:
		return NormalizeMetric(float64(n))
	case int64:
		return int(n)
	case int32:
		return int(n)
	case uint64:
		if n <= maxExactInt {
			return int(n)
		}
		return float64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return NormalizeMetric(f)
		}
		return n.String()
	}
	return v
}

// NormalizeMetrics returns a copy of m with every value normalized.
func NormalizeMetrics(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = NormalizeMetric(v)
	}
	return out
}

// ProgressKey returns the storage key for a level's progress blob.
func ProgressKey(level int) string {
	return fmt.Sprintf("level%dProgress", level)
}

// Cross-level storage keys.
const (
	CompletedLevelsKey = "completedLevels"
	TotalProgressKey   = "totalProgress"
)

// RunStatus is the in-memory state of an exercise's simulated run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunFailure   RunStatus = "failure"
	RunCompleted RunStatus = "completed"
)

// Navigation links a level to its neighbours. Zero means no neighbour.
type Navigation struct {
	Prev int `json:"prev,omitempty"`
	Next int `json:"next,omitempty"`
}
