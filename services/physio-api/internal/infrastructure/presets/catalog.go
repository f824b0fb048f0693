// Package presets loads the exercise programmes offered on each device.
package presets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"physio-server/services/physio-api/internal/domain/device"
)

//go:embed presets.yml
var defaultCatalog []byte

// Catalog holds the presets per device kind in file order.
type Catalog struct {
	byKind map[device.Kind][]device.Preset
}

var _ device.PresetCatalog = (*Catalog)(nil)

type catalogDocument struct {
	Presets map[string][]device.Preset `yaml:"presets"`
}

// Load reads the catalog at path, or the built-in one when path is empty.
func Load(path string, log zerolog.Logger) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		log.Info().Msg("using built-in device presets")
		return Parse(defaultCatalog)
	}

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read presets %q: %w", cleanPath, err)
	}
	log.Info().Str("path", cleanPath).Msg("loading device presets")

	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("presets %q: %w", cleanPath, err)
	}
	return catalog, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(doc.Presets) == 0 {
		return nil, errors.New("no presets defined")
	}

	catalog := &Catalog{byKind: make(map[device.Kind][]device.Preset)}
	// Sorted so error messages are stable.
	rawKinds := make([]string, 0, len(doc.Presets))
	for raw := range doc.Presets {
		rawKinds = append(rawKinds, raw)
	}
	sort.Strings(rawKinds)

	for _, raw := range rawKinds {
		kind, ok := device.ParseKind(raw)
		if !ok {
			return nil, fmt.Errorf("presets.%s: unknown device", raw)
		}
		seen := make(map[string]struct{})
		for idx, preset := range doc.Presets[raw] {
			preset.ID = strings.TrimSpace(preset.ID)
			if preset.ID == "" {
				return nil, fmt.Errorf("presets.%s[%d]: id is required", raw, idx)
			}
			if _, dup := seen[preset.ID]; dup {
				return nil, fmt.Errorf("presets.%s[%d]: duplicate id %q", raw, idx, preset.ID)
			}
			seen[preset.ID] = struct{}{}
			if preset.Intensity < 0 || preset.DurationSeconds < 0 || preset.Repetitions < 0 {
				return nil, fmt.Errorf("presets.%s[%d]: negative values are not allowed", raw, idx)
			}
			if strings.TrimSpace(preset.Name) == "" {
				preset.Name = preset.ID
			}
			preset.Kind = kind
			catalog.byKind[kind] = append(catalog.byKind[kind], preset)
		}
	}
	return catalog, nil
}

// List returns a copy of the presets for kind.
func (c *Catalog) List(kind device.Kind) []device.Preset {
	list := c.byKind[kind]
	out := make([]device.Preset, len(list))
	copy(out, list)
	return out
}

// Find looks a preset up by id.
func (c *Catalog) Find(kind device.Kind, id string) (device.Preset, bool) {
	for _, preset := range c.byKind[kind] {
		if preset.ID == id {
			return preset, true
		}
	}
	return device.Preset{}, false
}
