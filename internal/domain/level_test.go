package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func validLevel() *Level {
	return &Level{
		Number: 1,
		Title:  "Basics",
		Exercises: []ExerciseDef{
			{ID: 1, Name: "Hello"},
			{ID: 2, Name: "Loops", Checks: []CheckDef{{Field: "code", Contains: []string{"for"}}}},
		},
	}
}

func TestLevel_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(l *Level)
		wantErr bool
	}{
		{"valid", func(l *Level) {}, false},
		{"zero number", func(l *Level) { l.Number = 0 }, true},
		{"missing title", func(l *Level) { l.Title = "" }, true},
		{"no exercises", func(l *Level) { l.Exercises = nil }, true},
		{"non-positive exercise id", func(l *Level) { l.Exercises[0].ID = 0 }, true},
		{"duplicate exercise id", func(l *Level) { l.Exercises[1].ID = 1 }, true},
		{"unnamed exercise", func(l *Level) { l.Exercises[0].Name = "" }, true},
		{"check without field", func(l *Level) { l.Exercises[1].Checks[0].Field = "" }, true},
		{"inverted metric range", func(l *Level) {
			l.Exercises[0].Run.Metrics = map[string]MetricRange{"rows": {Min: 10, Max: 1}}
		}, true},
		{"percent metric format", func(l *Level) {
			l.Exercises[0].Run.Metrics = map[string]MetricRange{"hit": {Min: 1, Max: 9, Format: "%d%%"}}
		}, false},
		{"zero-padded metric format", func(l *Level) {
			l.Exercises[0].Run.Metrics = map[string]MetricRange{"cls": {Min: 1, Max: 9, Format: "0.%02d"}}
		}, false},
		{"string verb in metric format", func(l *Level) {
			l.Exercises[0].Run.Metrics = map[string]MetricRange{"hit": {Min: 1, Max: 9, Format: "%s"}}
		}, true},
		{"metric format without verb", func(l *Level) {
			l.Exercises[0].Run.Metrics = map[string]MetricRange{"hit": {Min: 1, Max: 9, Format: "fixed"}}
		}, true},
		{"metric format with two verbs", func(l *Level) {
			l.Exercises[0].Run.Metrics = map[string]MetricRange{"hit": {Min: 1, Max: 9, Format: "%d/%d"}}
		}, true},
		{"failure rate above one", func(l *Level) { l.Exercises[0].Run.FailureRate = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLevel()
			tt.mutate(l)
			err := l.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidLevel) {
				t.Errorf("Validate() error = %v, want wrapped ErrInvalidLevel", err)
			}
		})
	}
}

func TestLevel_Exercise(t *testing.T) {
	l := validLevel()

	ex, ok := l.Exercise(2)
	if !ok {
		t.Fatal("Exercise(2) not found")
	}
	if ex.Name != "Loops" {
		t.Errorf("Exercise(2).Name = %q; want Loops", ex.Name)
	}

	if _, ok := l.Exercise(9); ok {
		t.Error("Exercise(9) should not be found")
	}
}

func TestLevel_BadgeLadder_Default(t *testing.T) {
	l := validLevel()
	ladder := l.BadgeLadder()
	if len(ladder) != 4 {
		t.Fatalf("BadgeLadder() len = %d; want 4", len(ladder))
	}
	if ladder[0].Name != "Novice" || ladder[3].Name != "Master" {
		t.Errorf("BadgeLadder() = %v", ladder)
	}
}

func TestLevel_DefaultMetrics_IsCopy(t *testing.T) {
	l := validLevel()
	l.Metrics = map[string]any{"queries": 0}

	m := l.DefaultMetrics()
	m["queries"] = 42

	if l.Metrics["queries"] != 0 {
		t.Errorf("DefaultMetrics() aliases level metrics: %v", l.Metrics)
	}
}

func TestProgressKey(t *testing.T) {
	if got := ProgressKey(7); got != "level7Progress" {
		t.Errorf("ProgressKey(7) = %q; want level7Progress", got)
	}
}

func TestNormalizeMetric(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"whole float", float64(12), 12},
		{"fraction", 3.5, 3.5},
		{"int64", int64(4), 4},
		{"json integer", json.Number("120"), 120},
		{"json fraction", json.Number("0.25"), 0.25},
		{"string", "87%", "87%"},
		{"int", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeMetric(tt.in); got != tt.want {
				t.Errorf("NormalizeMetric(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLevelProgress_JSONRoundTripKeepsMetricTypes(t *testing.T) {
	want := LevelProgress{
		LevelNumber: 2,
		Exercises:   []ExerciseRecord{{ID: 1, Name: "Query", Completed: true}},
		Metrics:     map[string]any{"queries_run": 7, "hit_rate": 0.75, "region": "eu-west-1"},
	}

	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got LevelProgress
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("round trip = %#v, want %#v", got, want)
	}
}
