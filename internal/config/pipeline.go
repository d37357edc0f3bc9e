package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/dualcam/internal/ffmpeg"
	"github.com/smazurov/dualcam/internal/logging"
	"github.com/smazurov/dualcam/internal/merge"
)

// PipelineConfig is the [pipeline] table. It can change while the daemon
// runs.
type PipelineConfig struct {
	AutoEnableDual bool   `toml:"auto_enable_dual" json:"auto_enable_dual"`
	MergeAudio     string `toml:"merge_audio" json:"merge_audio"`
	MergePreset    string `toml:"merge_preset" json:"merge_preset"`
	MergeTimeout   string `toml:"merge_timeout" json:"merge_timeout"`
}

// Reloadable is the part of the config file applied on every change.
type Reloadable struct {
	Pipeline PipelineConfig
	Logging  logging.Config
}

// MergeSettings converts the table into merge settings. Empty fields keep
// the values of base.
func (p PipelineConfig) MergeSettings(base merge.Settings) (merge.Settings, error) {
	out := base
	if p.MergeAudio != "" {
		policy, err := ffmpeg.ParseAudioPolicy(p.MergeAudio)
		if err != nil {
			return base, err
		}
		out.Audio = policy
	}
	if p.MergePreset != "" {
		if err := ffmpeg.ValidatePreset(p.MergePreset); err != nil {
			return base, fmt.Errorf("merge_preset: %w", err)
		}
		out.Preset = p.MergePreset
	}
	if p.MergeTimeout != "" {
		d, err := time.ParseDuration(p.MergeTimeout)
		if err != nil {
			return base, fmt.Errorf("merge_timeout: %w", err)
		}
		if d <= 0 {
			return base, errors.New("merge_timeout must be positive")
		}
		out.Timeout = d
	}
	return out, nil
}

// LoadReloadable reads the [pipeline] and [logging] tables of path. It is
// the loader used by the config watcher.
func LoadReloadable(path string) (Reloadable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reloadable{}, fmt.Errorf("read config: %w", err)
	}
	var raw struct {
		Pipeline PipelineConfig    `toml:"pipeline"`
		Logging  map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Reloadable{}, fmt.Errorf("parse config: %w", err)
	}
	if _, err := raw.Pipeline.MergeSettings(merge.DefaultSettings()); err != nil {
		return Reloadable{}, fmt.Errorf("invalid [pipeline]: %w", err)
	}

	out := Reloadable{
		Pipeline: raw.Pipeline,
		Logging:  logging.Config{Level: "info", Format: "text", Modules: make(map[string]string)},
	}
	applyLogging(&out.Logging, raw.Logging)
	return out, nil
}
