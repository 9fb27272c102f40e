package main

import (
	"fmt"
	"os"

	"github.com/born-ml/parsum/backend/cpu"
	"github.com/born-ml/parsum/reduce"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by -backend.
const (
	backendAuto   = "auto"
	backendCPU    = "cpu"
	backendWebGPU = "webgpu"
)

// Config is the CLI configuration. It can be loaded from a YAML file and is
// then overridden by explicit flags.
type Config struct {
	Backend string        `yaml:"backend"` // auto, cpu or webgpu
	N       int           `yaml:"n"`       // Length of the 1..=n demo input
	Reduce  reduce.Config `yaml:"reduce"`
	CPU     cpu.Config    `yaml:"cpu"`
}

// DefaultConfig returns the configuration of the reference demo run.
func DefaultConfig() Config {
	return Config{
		Backend: backendAuto,
		N:       16384,
		Reduce:  reduce.DefaultConfig(),
		CPU:     cpu.DefaultConfig(),
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	switch c.Backend {
	case backendAuto, backendCPU, backendWebGPU:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.N < 0 {
		return fmt.Errorf("n must be non-negative, got %d", c.N)
	}
	if c.Reduce.RecursiveThreshold < 0 {
		return fmt.Errorf("reduce.recursive_threshold must be non-negative, got %d", c.Reduce.RecursiveThreshold)
	}
	switch c.CPU.Mode {
	case "", cpu.ModePhased, cpu.ModeLanes:
	default:
		return fmt.Errorf("unknown cpu.mode %q", c.CPU.Mode)
	}
	return nil
}
