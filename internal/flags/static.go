package flags

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File flags YAML layout
//
//	flags:
//	  recompute_enabled: true
//	  launch_mode: false
type File struct {
	Flags FileFlags `yaml:"flags"`
}

// FileFlags nil = not set (default applies)
type FileFlags struct {
	RecomputeEnabled *bool `yaml:"recompute_enabled"`
	ForecastEnabled  *bool `yaml:"forecast_enabled"`
	ChangeLogEnabled *bool `yaml:"changelog_enabled"`
	LaunchMode       *bool `yaml:"launch_mode"`
}

func (f FileFlags) overrides() map[Flag]bool {
	out := make(map[Flag]bool)
	set := func(flag Flag, v *bool) {
		if v != nil {
			out[flag] = *v
		}
	}
	set(RecomputeEnabled, f.RecomputeEnabled)
	set(ForecastEnabled, f.ForecastEnabled)
	set(ChangeLogEnabled, f.ChangeLogEnabled)
	set(LaunchMode, f.LaunchMode)
	return out
}

// Static fixed flag values (defaults, optionally overridden by a YAML file)
type Static struct {
	snapshot Snapshot
}

// NewStatic creates a provider that always returns snap
func NewStatic(snap Snapshot) *Static {
	return &Static{snapshot: snap}
}

// Snapshot implements Provider
func (s *Static) Snapshot(context.Context) Snapshot {
	return s.snapshot
}

// Load reads a flags YAML file.
// KnownFields(true)로 오타/미지원 플래그 즉시 실패
func Load(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flags file: %w", err)
	}
	return Parse(data)
}

// Parse decodes flags YAML
func Parse(data []byte) (*Static, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode flags file: %w", err)
	}
	return NewStatic(NewSnapshot(file.Flags.overrides())), nil
}

// LoadOrDefault returns defaults when path is empty
func LoadOrDefault(path string) (*Static, error) {
	if path == "" {
		return NewStatic(Defaults()), nil
	}
	return Load(path)
}
