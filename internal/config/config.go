// Package config handles mdlfix configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/mdlfix/internal/repair"
)

// Config holds all tool settings.
type Config struct {
	Repair  RepairConfig  `yaml:"repair"`
	Batch   BatchConfig   `yaml:"batch"`
	Logging LoggingConfig `yaml:"logging"`
}

// RepairConfig selects the repair passes and their mesh filters.
type RepairConfig struct {
	FixNodes          bool      `yaml:"fix_nodes"`
	FixWinding        Selection `yaml:"fix_winding"`
	FixLODs           Selection `yaml:"fix_lods"`
	FixDecals         Selection `yaml:"fix_decals"`
	RemoveEmptyMeshes bool      `yaml:"remove_empty_meshes"`
	// WindingVote is "normal" (votes gated on normal agreement) or
	// "legacy" (every non-degenerate triangle votes flip).
	WindingVote string `yaml:"winding_vote"`
}

// BatchConfig holds batch processing settings.
type BatchConfig struct {
	// Workers caps concurrent models; 0 means one per CPU.
	Workers int `yaml:"workers"`
	// OutputDir receives repaired files; empty means rewrite in place.
	OutputDir string `yaml:"output_dir"`
	// DryRun repairs in memory but writes nothing.
	DryRun bool `yaml:"dry_run"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Repair: RepairConfig{
			FixNodes:    true,
			FixWinding:  Selection{Enabled: true},
			FixLODs:     Selection{Enabled: true},
			WindingVote: "normal",
		},
		Batch: BatchConfig{
			Workers: 0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Options converts the repair section into the engine's option set.
func (c *RepairConfig) Options() (repair.Options, error) {
	opts := repair.Options{
		FixNodes:          c.FixNodes,
		FixWinding:        c.FixWinding.MeshSelection(),
		FixLODs:           c.FixLODs.MeshSelection(),
		FixDecals:         c.FixDecals.MeshSelection(),
		RemoveEmptyMeshes: c.RemoveEmptyMeshes,
	}
	switch c.WindingVote {
	case "", "normal":
	case "legacy":
		opts.LegacyWindingVote = true
	default:
		return repair.Options{}, fmt.Errorf("unknown winding_vote %q (want normal or legacy)", c.WindingVote)
	}
	return opts, nil
}
