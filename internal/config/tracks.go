package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/confsync/internal/utils"
)

// DefaultTrack is the track that always exists for a conference.
type DefaultTrack struct {
	Name  string `yaml:"name"`
	Slug  string `yaml:"slug"`
	Color string `yaml:"color"`
	Order int    `yaml:"order"`
}

// TrackAliases maps feed track labels to canonical track names.
type TrackAliases struct {
	Default DefaultTrack      `yaml:"default_track"`
	Aliases map[string]string `yaml:"aliases"`

	// Replace drops the built-in aliases instead of merging over them.
	Replace bool `yaml:"replace"`
}

// DefaultTrackAliases returns the built-in cleanup table for the feed's
// historically duplicated "Main track" labels.
func DefaultTrackAliases() TrackAliases {
	return TrackAliases{
		Default: DefaultTrack{Name: "SFSCON", Slug: "sfscon", Color: "black", Order: -1},
		Aliases: map[string]string{
			"Main track - Main track": "SFSCON",
			"SFSCON - Main track":     "SFSCON",
		},
	}
}

// Resolve returns the canonical name for a feed track label.
func (t TrackAliases) Resolve(name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := t.Aliases[name]; ok {
		return canonical
	}
	return name
}

// LoadTrackAliases reads an optional YAML override. An empty path yields the defaults.
//
//	default_track: {name: SFSCON, slug: sfscon, color: black, order: -1}
//	aliases:
//	  "Main track - Main track": SFSCON
func LoadTrackAliases(path string) (TrackAliases, error) {
	out := DefaultTrackAliases()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return TrackAliases{}, fmt.Errorf("failed to read track alias file: %w", err)
	}

	var override TrackAliases
	if err := yaml.Unmarshal(data, &override); err != nil {
		return TrackAliases{}, fmt.Errorf("failed to parse track alias yaml: %w", err)
	}

	if override.Replace {
		out.Aliases = map[string]string{}
	}
	for from, to := range override.Aliases {
		out.Aliases[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}
	if override.Default.Name != "" {
		out.Default = override.Default
		if out.Default.Slug == "" {
			out.Default.Slug = utils.Slug(out.Default.Name)
		}
	}

	return out, nil
}
