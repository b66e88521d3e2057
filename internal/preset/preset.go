// Package preset loads starter snippets from YAML files.
package preset

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mpataki/codeplay/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultName is the preset a fresh editor starts with.
const DefaultName = "hello"

//go:embed builtin/*.yaml
var builtinFS embed.FS

func Parse(path string) (*models.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}
	return parse(data, filepath.Base(path))
}

func parse(data []byte, fileName string) (*models.Preset, error) {
	var p models.Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preset YAML: %w", err)
	}

	// Use preset name from file, or filename without extension
	if p.Name == "" {
		p.Name = strings.TrimSuffix(strings.TrimSuffix(fileName, ".yaml"), ".yml")
	}
	p.Language = models.ParseLanguage(string(p.Language))

	return &p, nil
}

// Builtin returns the presets compiled into the binary.
func Builtin() (map[string]*models.Preset, error) {
	presets := make(map[string]*models.Preset)
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		data, err := builtinFS.ReadFile("builtin/" + entry.Name())
		if err != nil {
			return nil, err
		}
		p, err := parse(data, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse builtin %s: %w", entry.Name(), err)
		}
		presets[p.Name] = p
	}
	return presets, nil
}

// LoadAll returns the built-in presets overlaid with those found in dirs.
// Later directories override earlier ones by name; missing directories are
// skipped.
func LoadAll(dirs []string) (map[string]*models.Preset, error) {
	presets, err := Builtin()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := loadFromDir(dir, presets); err != nil {
			// Skip directories that don't exist
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}

	return presets, nil
}

func loadFromDir(dir string, presets map[string]*models.Preset) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		p, err := Parse(path)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := Validate(p); err != nil {
			return fmt.Errorf("invalid preset %s: %w", path, err)
		}

		presets[p.Name] = p
	}

	return nil
}

func Validate(p *models.Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset must have a name")
	}
	if p.Language == "" {
		return fmt.Errorf("preset %q must have a language", p.Name)
	}
	if strings.TrimSpace(p.Source) == "" {
		return fmt.Errorf("preset %q must have source", p.Name)
	}
	return nil
}

// Sorted returns the presets ordered by name.
func Sorted(presets map[string]*models.Preset) []*models.Preset {
	out := make([]*models.Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
