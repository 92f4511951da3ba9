// Package mcp exposes the playground levels as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"time"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/playground/internal/controller"
	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/progress"
	"github.com/felixgeelhaar/playground/internal/validation"
)

// Server wraps the MCP server with playground functionality
type Server struct {
	mcpServer *server.Server
	manager   *controller.Manager
}

// Config contains configuration for the MCP server
type Config struct {
	Manager *controller.Manager
	Version string
}

// NewServer creates a new MCP server for the playground
func NewServer(cfg Config) *Server {
	s := &Server{manager: cfg.Manager}

	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "playground",
		Version: version,
	}, server.WithInstructions(`
The playground is a series of levels, each with a handful of exercises.
Running an exercise shows a simulated result. Checking an answer marks the
exercise complete when it contains what the exercise asks for. A level is
finished once every exercise is complete.

Available tools:
- playground_levels: List levels with progress and unlock state
- playground_level: Show one level's exercises and progress
- playground_run: Simulate running an exercise
- playground_check: Check an answer for an exercise
- playground_complete: Finish a level once all exercises are complete
- playground_reset: Reset a level to its starting state
- playground_progress: Show overall progress across levels
`))

	s.registerTools()
	return s
}

// registerTools registers all playground MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("playground_levels").
		Description("List all levels with completion summary and unlock state").
		Handler(s.handleLevels)

	s.mcpServer.Tool("playground_level").
		Description("Show a level's exercises, run states and badge").
		Handler(s.handleLevel)

	s.mcpServer.Tool("playground_run").
		Description("Simulate running an exercise and return its output and metrics").
		Handler(s.handleRun)

	s.mcpServer.Tool("playground_check").
		Description("Check an answer. Fields map names such as 'code' to submitted text.").
		Handler(s.handleCheck)

	s.mcpServer.Tool("playground_complete").
		Description("Finish a level. Fails until every exercise is complete.").
		Handler(s.handleComplete)

	s.mcpServer.Tool("playground_reset").
		Description("Reset a level's exercises and metrics to their starting state").
		Handler(s.handleReset)

	s.mcpServer.Tool("playground_progress").
		Description("Show completed levels and total progress").
		Handler(s.handleProgress)
}

// Input/Output types for tools

type LevelsInput struct{}

type LevelsOutput struct {
	Levels        []controller.LevelOverview `json:"levels"`
	TotalProgress int                        `json:"total_progress"`
}

type LevelInput struct {
	Level int `json:"level" jsonschema:"description=Level number"`
}

type ExerciseStatus struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Prompt    string   `json:"prompt,omitempty"`
	Fields    []string `json:"fields,omitempty"`
	Completed bool     `json:"completed"`
	RunStatus string   `json:"run_status"`
	Output    string   `json:"output,omitempty"`
}

type LevelOutput struct {
	Number     int               `json:"number"`
	Title      string            `json:"title"`
	Exercises  []ExerciseStatus  `json:"exercises"`
	Metrics    map[string]any    `json:"metrics,omitempty"`
	Summary    progress.Summary  `json:"summary"`
	Navigation domain.Navigation `json:"navigation"`
}

type ExerciseInput struct {
	Level    int `json:"level" jsonschema:"description=Level number"`
	Exercise int `json:"exercise" jsonschema:"description=Exercise id within the level"`
}

type RunOutput struct {
	Status   string         `json:"status"`
	Output   string         `json:"output"`
	Metrics  map[string]any `json:"metrics,omitempty"`
	Duration string         `json:"duration"`
}

type CheckInput struct {
	Level    int               `json:"level" jsonschema:"description=Level number"`
	Exercise int               `json:"exercise" jsonschema:"description=Exercise id within the level"`
	Fields   map[string]string `json:"fields" jsonschema:"description=Submitted answer as field name -> text map"`
}

type CheckOutput struct {
	Passed  bool                `json:"passed"`
	Message string              `json:"message"`
	Failure *validation.Failure `json:"failure,omitempty"`
	Summary progress.Summary    `json:"summary"`
}

type CompleteOutput struct {
	Level           int    `json:"level"`
	CompletedLevels []int  `json:"completed_levels"`
	TotalProgress   int    `json:"total_progress"`
	NextLevel       int    `json:"next_level,omitempty"`
	Message         string `json:"message"`
}

type ProgressInput struct{}

type ProgressOutput struct {
	CompletedLevels []int `json:"completed_levels"`
	TotalProgress   int   `json:"total_progress"`
	LevelCount      int   `json:"level_count"`
}

// Tool handlers

func (s *Server) handleLevels(ctx context.Context, _ LevelsInput) (LevelsOutput, error) {
	levels, err := s.manager.Levels(ctx)
	if err != nil {
		return LevelsOutput{}, fmt.Errorf("list levels: %w", err)
	}
	return LevelsOutput{Levels: levels, TotalProgress: s.manager.Progress().TotalProgress}, nil
}

func (s *Server) handleLevel(ctx context.Context, input LevelInput) (LevelOutput, error) {
	c, err := s.manager.Get(ctx, input.Level)
	if err != nil {
		return LevelOutput{}, err
	}

	lvl := c.Level()
	snap := c.Snapshot()
	completed := make(map[int]bool, len(snap.Progress.Exercises))
	for _, rec := range snap.Progress.Exercises {
		completed[rec.ID] = rec.Completed
	}

	out := LevelOutput{
		Number:     lvl.Number,
		Title:      lvl.Title,
		Metrics:    snap.Progress.Metrics,
		Summary:    snap.Summary,
		Navigation: snap.Navigation,
	}
	for _, ex := range lvl.Exercises {
		run := snap.Runs[ex.ID]
		out.Exercises = append(out.Exercises, ExerciseStatus{
			ID:        ex.ID,
			Name:      ex.Name,
			Prompt:    ex.Prompt,
			Fields:    ex.Fields,
			Completed: completed[ex.ID],
			RunStatus: string(run.Status),
			Output:    run.Output,
		})
	}
	return out, nil
}

func (s *Server) handleRun(ctx context.Context, input ExerciseInput) (RunOutput, error) {
	c, err := s.manager.Get(ctx, input.Level)
	if err != nil {
		return RunOutput{}, err
	}

	res, err := c.Run(ctx, input.Exercise)
	if err != nil {
		return RunOutput{}, fmt.Errorf("run exercise %d: %w", input.Exercise, err)
	}
	return RunOutput{
		Status:   string(res.Status),
		Output:   res.Text,
		Metrics:  res.Metrics,
		Duration: res.Duration.Round(time.Millisecond).String(),
	}, nil
}

func (s *Server) handleCheck(ctx context.Context, input CheckInput) (CheckOutput, error) {
	c, err := s.manager.Get(ctx, input.Level)
	if err != nil {
		return CheckOutput{}, err
	}

	res, err := c.Check(ctx, input.Exercise, input.Fields)
	if err != nil {
		return CheckOutput{}, err
	}
	return CheckOutput{
		Passed:  res.Passed,
		Message: res.Message,
		Failure: res.Failure,
		Summary: res.Summary,
	}, nil
}

func (s *Server) handleComplete(ctx context.Context, input LevelInput) (CompleteOutput, error) {
	c, err := s.manager.Get(ctx, input.Level)
	if err != nil {
		return CompleteOutput{}, err
	}

	done, err := c.CompleteLevel(ctx)
	if err != nil {
		return CompleteOutput{}, err
	}

	msg := fmt.Sprintf("Level %d complete!", done.Level)
	if done.Navigation.Next != 0 {
		msg += fmt.Sprintf(" Level %d is unlocked.", done.Navigation.Next)
	}
	return CompleteOutput{
		Level:           done.Level,
		CompletedLevels: done.CompletedLevels,
		TotalProgress:   done.TotalProgress,
		NextLevel:       done.Navigation.Next,
		Message:         msg,
	}, nil
}

func (s *Server) handleReset(ctx context.Context, input LevelInput) (LevelOutput, error) {
	c, err := s.manager.Get(ctx, input.Level)
	if err != nil {
		return LevelOutput{}, err
	}
	c.ResetLevel(ctx)
	return s.handleLevel(ctx, input)
}

func (s *Server) handleProgress(ctx context.Context, _ ProgressInput) (ProgressOutput, error) {
	state := s.manager.Progress()
	return ProgressOutput{
		CompletedLevels: state.CompletedLevels,
		TotalProgress:   state.TotalProgress,
		LevelCount:      s.manager.Catalog().Count(),
	}, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
