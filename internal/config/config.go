// Package config provides configuration types and defaults for smartchunk.
package config

import (
	"fmt"
	"runtime"

	"github.com/five82/smartchunk/internal/planner"
)

// Default constants mirror the original chunkify CLI's defaults.
const (
	DefaultTarget       float64 = 60.0
	DefaultAllowTinyLast bool   = false
)

// AutoWorkers returns the default worker count: one per CPU.
func AutoWorkers() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// Config holds all configuration for a probe/plan/split/stitch run.
type Config struct {
	// Paths
	InputPath string
	ChunksDir string
	OutputPath string // empty means stitch is skipped
	LogDir    string

	// Planning
	Planner planner.Config

	// Output format
	Fragment      bool
	Faststart     bool
	ForceFormat   string // empty means auto-detect from extension

	// Stages to skip
	NoSplit  bool
	NoStitch bool

	// Plan JSON output path, empty disables it
	PlanJSONPath string

	// Parallelism
	Workers int

	// Ambient
	Verbose bool
	NoLog   bool
}

// NewConfig returns a Config with the chunkify CLI's defaults applied.
func NewConfig(inputPath, chunksDir, outputPath string) *Config {
	return &Config{
		InputPath:  inputPath,
		ChunksDir:  chunksDir,
		OutputPath: outputPath,
		Planner: planner.Config{
			Target:        DefaultTarget,
			AllowTinyLast: DefaultAllowTinyLast,
		},
		Workers: AutoWorkers(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if c.ChunksDir == "" {
		return fmt.Errorf("chunks directory is required")
	}
	if c.Planner.Target <= 0 {
		return fmt.Errorf("target duration must be positive, got %g", c.Planner.Target)
	}
	if c.Planner.Min < 0 {
		return fmt.Errorf("min duration must be non-negative, got %g", c.Planner.Min)
	}
	if c.Planner.Max < 0 {
		return fmt.Errorf("max duration must be non-negative, got %g", c.Planner.Max)
	}
	if c.Planner.Max > 0 && c.Planner.Min > 0 && c.Planner.Max < c.Planner.Min {
		return fmt.Errorf("max duration (%g) must not be less than min duration (%g)", c.Planner.Max, c.Planner.Min)
	}
	if c.Planner.MinChunks < 0 {
		return fmt.Errorf("min chunks must be non-negative, got %d", c.Planner.MinChunks)
	}
	if c.Planner.MaxChunks < 0 {
		return fmt.Errorf("max chunks must be non-negative, got %d", c.Planner.MaxChunks)
	}
	if c.Planner.MinChunks > 0 && c.Planner.MaxChunks > 0 && c.Planner.MinChunks > c.Planner.MaxChunks {
		return fmt.Errorf("min chunks (%d) must not exceed max chunks (%d)", c.Planner.MinChunks, c.Planner.MaxChunks)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if !c.NoStitch && c.OutputPath == "" {
		return fmt.Errorf("final output path is required unless --no-stitch is set")
	}
	return nil
}
