package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LayerSpec names one prunable layer and its post-pruning target size.
type LayerSpec struct {
	Name       string `yaml:"name"`
	TargetSize int    `yaml:"target_size"`
	Maxout     bool   `yaml:"maxout"`
}

// Config holds the pruning schedule configuration.
type Config struct {
	PruneEvery int         `yaml:"prune_every"`
	ResetEvery int         `yaml:"reset_every"`
	PruneSteps int         `yaml:"prune_steps"`
	LayoutPath string      `yaml:"layout"`
	Layers     []LayerSpec `yaml:"layers"`
}

// LoadConfig reads a YAML scheduler configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// ParseArchitecture parses an architecture string like "784 128 10" into a
// slice of layer widths.
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.Fields(archStr)
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		arch[i] = n
	}
	return arch, nil
}

// ParseLayerSpecs parses comma-separated "name:size" layer specs, e.g.
// "decgru:500,decmaxout:250".
func ParseLayerSpecs(s string) ([]LayerSpec, error) {
	var specs []LayerSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, sizeStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("bad layer spec %q, want name:size", part)
		}
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return nil, fmt.Errorf("bad target size in layer spec %q: %w", part, err)
		}
		specs = append(specs, LayerSpec{Name: name, TargetSize: size})
	}
	return specs, nil
}

// ValidateConfig validates a pruning configuration.
func ValidateConfig(cfg *Config) error {
	if cfg.PruneEvery <= 0 {
		return fmt.Errorf("prune_every must be positive")
	}
	if cfg.PruneSteps <= 0 {
		return fmt.Errorf("prune_steps must be positive")
	}
	if len(cfg.Layers) == 0 {
		return fmt.Errorf("at least one prunable layer is required")
	}
	for _, l := range cfg.Layers {
		if l.Name == "" {
			return fmt.Errorf("layer spec with empty name")
		}
		if l.TargetSize <= 0 {
			return fmt.Errorf("layer %s: target size must be positive", l.Name)
		}
	}
	return nil
}
