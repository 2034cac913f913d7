package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TimeReference selects the epoch §6 delivers to Sink.PushT0.
type TimeReference string

const (
	TimeReferenceSync TimeReference = "sync"
	TimeReferenceWall TimeReference = "wall"
	TimeReferenceStep TimeReference = "step"
	TimeReferenceUser TimeReference = "user"
)

// PipelineConfig is the YAML-loaded ambient configuration layer for a run:
// buffer sizing, pool size, and the grouping/coincidence windows, kept
// separate from SystemConfig's calibration tables so a run can be
// reproduced from one small file instead of a long flag line.
type PipelineConfig struct {
	TimeReference TimeReference `yaml:"time_reference"`

	ReadAheadBytes int `yaml:"read_ahead_bytes"`
	PoolWorkers    int `yaml:"pool_workers"`

	Tables Paths     `yaml:"tables"`
	Mask   TableMask `yaml:"-"`

	GroupTimeWindow         float64 `yaml:"group_time_window"`
	GroupMaxDistance        float64 `yaml:"group_max_distance"`
	GroupMinEnergy          float64 `yaml:"group_min_energy"`
	GroupMaxEnergy          float64 `yaml:"group_max_energy"`
	GroupMaxHits            int     `yaml:"group_max_hits"`
	GroupMinHits            int     `yaml:"group_min_hits"`
	CoincidenceTimeWindow   float64 `yaml:"coincidence_time_window"`
}

// Default returns a PipelineConfig with the same fallbacks the source's
// iniparser defaults use for the sw_trigger section.
func Default() PipelineConfig {
	return PipelineConfig{
		TimeReference:         TimeReferenceSync,
		ReadAheadBytes:        128 * 1024,
		PoolWorkers:           0,
		Mask:                  LoadAll,
		GroupTimeWindow:       20.0,
		GroupMaxDistance:      100.0,
		GroupMinEnergy:        -1e6,
		GroupMaxEnergy:        +1e6,
		GroupMaxHits:          64,
		GroupMinHits:          0,
		CoincidenceTimeWindow: 2.0,
	}
}

// LoadPipelineConfig reads a YAML file over the Default() baseline: any
// field absent from the file keeps its default.
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading pipeline config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing pipeline config %q: %w", path, err)
	}
	return cfg, nil
}

// ApplyTo copies the grouping/coincidence/trigger parameters into a
// SystemConfig, the way the source's iniparser-driven sw_trigger section
// feeds SystemConfig's public sw_trigger_* fields directly.
func (p PipelineConfig) ApplyTo(c *SystemConfig) {
	c.SWTriggerGroupMaxHits = p.GroupMaxHits
	c.SWTriggerGroupMinHits = p.GroupMinHits
	c.SWTriggerGroupMinEnergy = p.GroupMinEnergy
	c.SWTriggerGroupMaxEnergy = p.GroupMaxEnergy
	c.SWTriggerGroupMaxDist = p.GroupMaxDistance
	c.SWTriggerGroupTimeWin = p.GroupTimeWindow
	c.SWCoincidenceTimeWindow = p.CoincidenceTimeWindow
}
