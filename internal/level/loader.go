// Package level loads the level catalog from YAML definitions.
package level

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/playground/internal/domain"
)

//go:embed levels/*.yaml
var builtin embed.FS

// Loader reads level definitions from a directory of YAML files
type Loader struct {
	fsys fs.FS
	dir  string
}

// NewLoader creates a loader for the level files in dir on disk
func NewLoader(dir string) *Loader {
	return &Loader{fsys: os.DirFS(dir), dir: "."}
}

// NewBuiltinLoader creates a loader for the levels compiled into the binary
func NewBuiltinLoader() *Loader {
	return &Loader{fsys: builtin, dir: "levels"}
}

// LoadLevel parses and validates a single level file
func (l *Loader) LoadLevel(name string) (*domain.Level, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(l.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read level file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var lvl domain.Level
	if err := dec.Decode(&lvl); err != nil {
		return nil, fmt.Errorf("parse level file %s: %w", name, err)
	}
	if err := lvl.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &lvl, nil
}

// LoadAll loads every *.yaml and *.yml file, ordered by level number.
// A missing directory yields no levels.
func (l *Loader) LoadAll() ([]*domain.Level, error) {
	entries, err := fs.ReadDir(l.fsys, l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read levels directory: %w", err)
	}

	var levels []*domain.Level
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}

		lvl, err := l.LoadLevel(name)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[lvl.Number]; dup {
			return nil, fmt.Errorf("%w: level %d defined in both %s and %s", domain.ErrInvalidLevel, lvl.Number, other, name)
		}
		seen[lvl.Number] = name
		levels = append(levels, lvl)
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].Number < levels[j].Number })
	return levels, nil
}
