package renderer

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/playground/internal/domain"
)

func cloudLevel() *domain.Level {
	return &domain.Level{
		Number: 4,
		Title:  "Cloud Computing",
		Exercises: []domain.ExerciseDef{
			{
				ID:   1,
				Name: "Deploy",
				Run: domain.RunTemplate{
					Output: "Deployed {{.instances}} instances at {{.cpu}} CPU",
					Metrics: map[string]domain.MetricRange{
						"instances": {Min: 3, Max: 3},
						"cpu":       {Min: 42, Max: 42, Format: "%d%%"},
					},
				},
			},
			{
				ID:   2,
				Name: "Scale",
				Run: domain.RunTemplate{
					FailureRate:   1,
					Output:        "Scaled to {{.replicas}}",
					FailureOutput: "Scaling stalled at {{.replicas}} replicas",
					Metrics:       map[string]domain.MetricRange{"replicas": {Min: 1, Max: 10}},
				},
			},
			{
				ID:   3,
				Name: "Teardown",
				Run:  domain.RunTemplate{FailureRate: 1, Output: "Gone"},
			},
		},
	}
}

func newTestRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	opts = append([]Option{WithDelay(0, 0), WithSeed(1)}, opts...)
	r, err := New(cloudLevel(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestRender_InterpolatesMetrics(t *testing.T) {
	r := newTestRenderer(t)

	res, err := r.Render(context.Background(), 1)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Status != domain.RunSuccess {
		t.Errorf("Status = %q; want success", res.Status)
	}
	if want := "Deployed 3 instances at 42% CPU"; res.Text != want {
		t.Errorf("Text = %q; want %q", res.Text, want)
	}
	if res.Metrics["instances"] != 3 {
		t.Errorf("Metrics[instances] = %v; want 3", res.Metrics["instances"])
	}
	if res.Metrics["cpu"] != "42%" {
		t.Errorf("Metrics[cpu] = %v; want 42%%", res.Metrics["cpu"])
	}
	if res.ID == "" {
		t.Error("ID is empty")
	}
}

func TestRender_FailureOutput(t *testing.T) {
	r := newTestRenderer(t)

	res, err := r.Render(context.Background(), 2)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Status != domain.RunFailure {
		t.Errorf("Status = %q; want failure", res.Status)
	}
	if !strings.HasPrefix(res.Text, "Scaling stalled at ") {
		t.Errorf("Text = %q", res.Text)
	}
	n, ok := res.Metrics["replicas"].(int)
	if !ok || n < 1 || n > 10 {
		t.Errorf("Metrics[replicas] = %v; want int in [1,10]", res.Metrics["replicas"])
	}
}

func TestRender_FailureWithoutTemplate(t *testing.T) {
	r := newTestRenderer(t)

	res, err := r.Render(context.Background(), 3)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Status != domain.RunFailure || res.Text != defaultFailureText {
		t.Errorf("Render() = %+v", res)
	}
}

func TestRender_SeededIsRepeatable(t *testing.T) {
	r := newTestRenderer(t)

	a, err := r.Render(context.Background(), 2, WithSeed(99))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b, err := r.Render(context.Background(), 2, WithSeed(99))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if a.Metrics["replicas"] != b.Metrics["replicas"] || a.Text != b.Text {
		t.Errorf("seeded renders differ: %v vs %v", a.Metrics, b.Metrics)
	}
}

func TestRender_MetricsWithinRange(t *testing.T) {
	r := newTestRenderer(t, WithRand(rand.New(rand.NewSource(7))))

	for i := 0; i < 100; i++ {
		res, err := r.Render(context.Background(), 2)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		n := res.Metrics["replicas"].(int)
		if n < 1 || n > 10 {
			t.Fatalf("replicas = %d; out of range", n)
		}
	}
}

func TestRender_UnknownExercise(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.Render(context.Background(), 42)
	if !errors.Is(err, ErrUnknownExercise) {
		t.Errorf("Render() error = %v; want ErrUnknownExercise", err)
	}
}

func TestRender_RespectsCancellation(t *testing.T) {
	r := newTestRenderer(t, WithDelay(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v; want context.Canceled", err)
	}
}

func TestRender_WaitsForDelay(t *testing.T) {
	r := newTestRenderer(t, WithDelay(20*time.Millisecond, 20*time.Millisecond))

	start := time.Now()
	if _, err := r.Render(context.Background(), 1); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Render() returned after %v; want >= 20ms", elapsed)
	}
}

func TestNew_InvalidTemplate(t *testing.T) {
	level := cloudLevel()
	level.Exercises[0].Run.Output = "{{.broken"

	if _, err := New(level); err == nil {
		t.Error("New() with a broken template should fail")
	}
}

func TestDrawDelay(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		d := drawDelay(rng, 10*time.Millisecond, 30*time.Millisecond)
		if d < 10*time.Millisecond || d > 30*time.Millisecond {
			t.Fatalf("drawDelay() = %v; out of range", d)
		}
	}
	if d := drawDelay(rng, 50*time.Millisecond, 10*time.Millisecond); d != 50*time.Millisecond {
		t.Errorf("drawDelay() with inverted range = %v; want 50ms", d)
	}
}
