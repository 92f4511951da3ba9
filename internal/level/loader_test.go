package level

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/playground/internal/domain"
)

func writeLevel(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

const mobileYAML = `number: 7
slug: mobile
title: Mobile Development
metrics:
  installs: 0
exercises:
  - id: 1
    name: Scaffold the app
    fields: [command]
    checks:
      - field: command
        contains: ["create"]
    run:
      output: "App created in {{.seconds}}s"
      metrics:
        seconds: {min: 2, max: 9}
`

func TestLoader_LoadLevel(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "07-mobile.yaml", mobileYAML)

	lvl, err := NewLoader(dir).LoadLevel("07-mobile.yaml")
	if err != nil {
		t.Fatalf("LoadLevel() error = %v", err)
	}

	if lvl.Number != 7 {
		t.Errorf("Number = %d; want 7", lvl.Number)
	}
	if lvl.Title != "Mobile Development" {
		t.Errorf("Title = %q; want %q", lvl.Title, "Mobile Development")
	}
	if len(lvl.Exercises) != 1 {
		t.Fatalf("len(Exercises) = %d; want 1", len(lvl.Exercises))
	}
	ex := lvl.Exercises[0]
	if ex.Checks[0].Contains[0] != "create" {
		t.Errorf("Checks = %+v", ex.Checks)
	}
	if r := ex.Run.Metrics["seconds"]; r.Min != 2 || r.Max != 9 {
		t.Errorf("Run.Metrics[seconds] = %+v", r)
	}
}

func TestLoader_LoadLevel_UnknownField(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "bad.yaml", "number: 1\ntitle: x\nexcercises: []\n")

	if _, err := NewLoader(dir).LoadLevel("bad.yaml"); err == nil {
		t.Error("LoadLevel() with a misspelled key should fail")
	}
}

func TestLoader_LoadLevel_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "bad.yaml", "number: 2\ntitle: Broken\nexercises:\n  - id: 1\n    name: a\n  - id: 1\n    name: b\n")

	_, err := NewLoader(dir).LoadLevel("bad.yaml")
	if !errors.Is(err, domain.ErrInvalidLevel) {
		t.Errorf("LoadLevel() error = %v; want ErrInvalidLevel", err)
	}
}

func TestLoader_LoadAll(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "b.yaml", strings.Replace(mobileYAML, "number: 7", "number: 9", 1))
	writeLevel(t, dir, "a.yml", mobileYAML)
	writeLevel(t, dir, "README.md", "# not a level")

	levels, err := NewLoader(dir).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("len(levels) = %d; want 2", len(levels))
	}
	if levels[0].Number != 7 || levels[1].Number != 9 {
		t.Errorf("levels not ordered: %d, %d", levels[0].Number, levels[1].Number)
	}
}

func TestLoader_LoadAll_DuplicateNumber(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "a.yaml", mobileYAML)
	writeLevel(t, dir, "b.yaml", mobileYAML)

	_, err := NewLoader(dir).LoadAll()
	if !errors.Is(err, domain.ErrInvalidLevel) {
		t.Errorf("LoadAll() error = %v; want ErrInvalidLevel", err)
	}
}

func TestLoader_LoadAll_MissingDir(t *testing.T) {
	levels, err := NewLoader(filepath.Join(t.TempDir(), "nope")).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("len(levels) = %d; want 0", len(levels))
	}
}

func TestBuiltinLevels(t *testing.T) {
	levels, err := NewBuiltinLoader().LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(levels) < 6 {
		t.Fatalf("len(levels) = %d; want at least 6", len(levels))
	}
	for i, lvl := range levels {
		if lvl.Number != i+1 {
			t.Errorf("levels[%d].Number = %d; want %d", i, lvl.Number, i+1)
		}
		for _, ex := range lvl.Exercises {
			if ex.Sample == "" {
				t.Errorf("level %d exercise %d has no sample", lvl.Number, ex.ID)
			}
		}
	}
}
