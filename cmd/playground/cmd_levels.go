package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/playground/internal/controller"
	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/renderer"
)

// cmdLevels lists the catalog with per-level progress
func cmdLevels() error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var resp struct {
		Levels   []controller.LevelOverview `json:"levels"`
		Progress controller.LedgerState     `json:"progress"`
	}
	if err := c.get("/v1/levels", &resp); err != nil {
		return fmt.Errorf("list levels: %w", err)
	}

	fmt.Println("Levels")
	fmt.Println("======")
	for _, lvl := range resp.Levels {
		marker := " "
		switch {
		case lvl.Completed:
			marker = "✓"
		case !lvl.Unlocked:
			marker = "🔒"
		}
		bar := renderProgressBar(lvl.Summary.Percentage/100, 20)
		fmt.Printf("%s %2d. %-28s %s %3.0f%% %s\n",
			marker, lvl.Number, lvl.Title, bar, lvl.Summary.Percentage, lvl.Summary.Badge)
	}

	fmt.Printf("\nTotal progress: %s %d%%\n",
		renderProgressBar(float64(resp.Progress.TotalProgress)/100, 20), resp.Progress.TotalProgress)
	return nil
}

// cmdLevel shows one level's exercises
func cmdLevel(args []string) error {
	n, err := parseLevelArg(args)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	var lvl struct {
		Number      int    `json:"number"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Exercises   []struct {
			ID     int      `json:"id"`
			Name   string   `json:"name"`
			Prompt string   `json:"prompt"`
			Fields []string `json:"fields"`
			Status string   `json:"status"`
		} `json:"exercises"`
		Metrics    map[string]any    `json:"metrics"`
		Navigation domain.Navigation `json:"navigation"`
		Summary    struct {
			Completed  int     `json:"completed"`
			Total      int     `json:"total"`
			Percentage float64 `json:"percentage"`
			Badge      string  `json:"badge"`
		} `json:"summary"`
		Unlocked bool `json:"unlocked"`
	}
	if err := c.get(fmt.Sprintf("/v1/levels/%d", n), &lvl); err != nil {
		return err
	}

	title := fmt.Sprintf("Level %d: %s", lvl.Number, lvl.Title)
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", len(title)))
	if lvl.Description != "" {
		fmt.Println(strings.TrimSpace(lvl.Description))
	}
	if !lvl.Unlocked {
		fmt.Printf("\n🔒 Complete level %d to unlock this level.\n", lvl.Navigation.Prev)
	}

	fmt.Println("\nExercises")
	fmt.Println("---------")
	for _, ex := range lvl.Exercises {
		marker := "○"
		if ex.Status == string(domain.RunCompleted) {
			marker = "✓"
		}
		fmt.Printf("%s %d. %s\n", marker, ex.ID, ex.Name)
		if ex.Prompt != "" {
			fmt.Printf("     %s\n", strings.TrimSpace(ex.Prompt))
		}
		if len(ex.Fields) > 0 {
			fmt.Printf("     fields: %s\n", strings.Join(ex.Fields, ", "))
		}
	}

	if len(lvl.Metrics) > 0 {
		fmt.Println("\nMetrics")
		fmt.Println("-------")
		for _, k := range sortedKeys(lvl.Metrics) {
			fmt.Printf("  %-20s %v\n", k, lvl.Metrics[k])
		}
	}

	fmt.Printf("\nProgress: %s %d/%d %s\n",
		renderProgressBar(lvl.Summary.Percentage/100, 20), lvl.Summary.Completed, lvl.Summary.Total, lvl.Summary.Badge)
	printNavigation(lvl.Navigation)
	return nil
}

// cmdRun simulates running an exercise
func cmdRun(args []string) error {
	n, id, err := parseExerciseArgs(args)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	fmt.Print("Running...")
	var res renderer.Result
	if err := c.post(fmt.Sprintf("/v1/levels/%d/exercises/%d/run", n, id), nil, &res); err != nil {
		fmt.Println()
		return err
	}

	mark := "✓"
	if res.Status == domain.RunFailure {
		mark = "✗"
	}
	fmt.Printf(" %s (%s)\n\n%s\n", mark, res.Duration.Round(time.Millisecond), res.Text)
	return nil
}

// cmdCheck submits an answer. Each argument is field=value or field=@file.
func cmdCheck(args []string) error {
	n, id, err := parseExerciseArgs(args)
	if err != nil {
		return err
	}
	fields, err := parseFields(args[2:])
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	var res controller.CheckResult
	body := map[string]interface{}{"fields": fields}
	if err := c.post(fmt.Sprintf("/v1/levels/%d/exercises/%d/check", n, id), body, &res); err != nil {
		return err
	}

	if res.Passed {
		fmt.Printf("✓ %s\n", res.Message)
	} else {
		fmt.Printf("✗ %s\n", res.Message)
		if res.Failure != nil {
			if res.Failure.Missing != "" {
				fmt.Printf("  hint: %s should contain %q\n", res.Failure.Field, res.Failure.Missing)
			} else {
				fmt.Printf("  hint: check the %s field\n", res.Failure.Field)
			}
		}
	}
	fmt.Printf("Progress: %s %d/%d %s\n",
		renderProgressBar(res.Summary.Percentage/100, 20), res.Summary.Completed, res.Summary.Total, res.Summary.Badge)
	if res.Summary.Complete {
		fmt.Printf("All exercises done. Run 'playground complete %d' to finish the level.\n", n)
	}
	return nil
}

// cmdSample prints an exercise's canned sample solution
func cmdSample(args []string) error {
	n, id, err := parseExerciseArgs(args)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	var resp struct {
		Name   string `json:"name"`
		Sample string `json:"sample"`
	}
	if err := c.get(fmt.Sprintf("/v1/levels/%d/exercises/%d/sample", n, id), &resp); err != nil {
		return err
	}
	if resp.Sample == "" {
		fmt.Printf("No sample for %s.\n", resp.Name)
		return nil
	}
	fmt.Printf("# %s\n%s\n", resp.Name, strings.TrimRight(resp.Sample, "\n"))
	return nil
}

// cmdComplete finishes a level
func cmdComplete(args []string) error {
	n, err := parseLevelArg(args)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	var done controller.Completion
	if err := c.post(fmt.Sprintf("/v1/levels/%d/complete", n), nil, &done); err != nil {
		return err
	}

	fmt.Printf("🎉 Level %d complete!\n", done.Level)
	fmt.Printf("Total progress: %s %d%%\n",
		renderProgressBar(float64(done.TotalProgress)/100, 20), done.TotalProgress)
	printNavigation(done.Navigation)
	return nil
}

// cmdReset restores a level to its starting state
func cmdReset(args []string) error {
	n, err := parseLevelArg(args)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	if err := c.post(fmt.Sprintf("/v1/levels/%d/reset", n), nil, nil); err != nil {
		return err
	}
	fmt.Printf("Level %d reset.\n", n)
	return nil
}

// cmdProgress shows progress across all levels
func cmdProgress() error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var resp struct {
		CompletedLevels []int `json:"completedLevels"`
		TotalProgress   int   `json:"totalProgress"`
		LevelCount      int   `json:"levelCount"`
	}
	if err := c.get("/v1/progress", &resp); err != nil {
		return err
	}

	fmt.Println("Progress")
	fmt.Println("========")
	fmt.Printf("Levels completed: %d of %d\n", len(resp.CompletedLevels), resp.LevelCount)
	if len(resp.CompletedLevels) > 0 {
		done := make([]string, len(resp.CompletedLevels))
		for i, n := range resp.CompletedLevels {
			done[i] = strconv.Itoa(n)
		}
		fmt.Printf("Completed:        %s\n", strings.Join(done, ", "))
	}
	fmt.Printf("Total:            %s %d%%\n",
		renderProgressBar(float64(resp.TotalProgress)/100, 20), resp.TotalProgress)
	return nil
}

func printNavigation(nav domain.Navigation) {
	var parts []string
	if nav.Prev != 0 {
		parts = append(parts, fmt.Sprintf("← level %d", nav.Prev))
	}
	if nav.Next != 0 {
		parts = append(parts, fmt.Sprintf("level %d →", nav.Next))
	}
	if len(parts) > 0 {
		fmt.Println(strings.Join(parts, "   "))
	}
}

func parseLevelArg(args []string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("level number required")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid level number %q", args[0])
	}
	return n, nil
}

func parseExerciseArgs(args []string) (int, int, error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("level number and exercise id required")
	}
	n, err := parseLevelArg(args)
	if err != nil {
		return 0, 0, err
	}
	id, err := strconv.Atoi(args[1])
	if err != nil || id < 1 {
		return 0, 0, fmt.Errorf("invalid exercise id %q", args[1])
	}
	return n, id, nil
}

// parseFields turns field=value and field=@file arguments into a submission
func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q (want field=value or field=@file)", arg)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			value = string(data)
		}
		fields[name] = value
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one field=value is required")
	}
	return fields, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
