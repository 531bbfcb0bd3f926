package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/autoremesh"
)

// config mirrors the remesher options. Zero values keep the library
// defaults.
type config struct {
	TargetEdgeLength    float64       `yaml:"target_edge_length"`
	TargetVertexCount   int           `yaml:"target_vertex_count"`
	MaxSingularityCount int           `yaml:"max_singularity_count"`
	SharpEdgeDegrees    float64       `yaml:"sharp_edge_degrees"`
	RatioLow            float64       `yaml:"ratio_low"`
	RatioHigh           float64       `yaml:"ratio_high"`
	GradientSize        float64       `yaml:"gradient_size"`
	ConstrainOnFlatArea *bool         `yaml:"constrain_on_flat_area"`
	Workers             int           `yaml:"workers"`
	SearchIterations    int           `yaml:"search_iterations"`
	SweepTrials         int           `yaml:"sweep_trials"`
	IslandTimeout       time.Duration `yaml:"island_timeout"`
	DebugDir            string        `yaml:"debug_dir"`
}

func loadConfig(path string) (config, error) {
	var c config
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c config) options() []autoremesh.Option {
	var opts []autoremesh.Option
	if c.TargetEdgeLength > 0 {
		opts = append(opts, autoremesh.WithTargetEdgeLength(c.TargetEdgeLength))
	}
	if c.TargetVertexCount > 0 {
		opts = append(opts, autoremesh.WithTargetVertexCount(c.TargetVertexCount))
	}
	if c.MaxSingularityCount > 0 {
		opts = append(opts, autoremesh.WithMaxSingularityCount(c.MaxSingularityCount))
	}
	if c.SharpEdgeDegrees > 0 {
		opts = append(opts, autoremesh.WithSharpEdgeDegrees(c.SharpEdgeDegrees))
	}
	if c.RatioLow > 0 && c.RatioHigh > c.RatioLow {
		opts = append(opts, autoremesh.WithConstraintRatio(c.RatioLow, c.RatioHigh))
	}
	if c.GradientSize > 0 {
		opts = append(opts, autoremesh.WithGradientSize(c.GradientSize))
	}
	if c.ConstrainOnFlatArea != nil {
		opts = append(opts, autoremesh.WithConstrainOnFlatArea(*c.ConstrainOnFlatArea))
	}
	if c.Workers > 0 {
		opts = append(opts, autoremesh.WithWorkers(c.Workers))
	}
	if c.SearchIterations > 0 {
		opts = append(opts, autoremesh.WithSearchIterations(c.SearchIterations))
	}
	if c.SweepTrials > 0 {
		opts = append(opts, autoremesh.WithSweepTrials(c.SweepTrials))
	}
	if c.IslandTimeout > 0 {
		opts = append(opts, autoremesh.WithIslandTimeout(c.IslandTimeout))
	}
	if c.DebugDir != "" {
		opts = append(opts, autoremesh.WithDebugDir(c.DebugDir))
	}
	return opts
}
