package param

import (
	"context"
	"math"
)

// MinRatio is the lowest constraint ratio tried by Sweep.
const MinRatio = 0.01

// RatioStep is the distance between consecutive trial ratios.
const RatioStep = 0.01

// SweepConfig controls Sweep.
type SweepConfig struct {
	Ratio            Range
	MaxSingularities int
	// MaxTrials bounds the number of trial solves; 0 selects 200.
	MaxTrials int
}

// SweepResult is the accepted trial of a sweep.
type SweepResult struct {
	Ratio         float64
	Limit         float64
	Singularities int
	Trials        int
	Constraints   Constraints
}

// Sweep searches for a constraint ratio whose trial singularity count is
// within budget.
//
// The sweep starts at cfg.Ratio.Low and moves by RatioStep, downwards when
// constraining flat areas and upwards otherwise, so that every step selects
// fewer constraint seeds. It stops at the first acceptable ratio, or with
// ErrBudgetNotMet when the ratio leaves [MinRatio, cfg.Ratio.High) or
// MaxTrials is reached.
func Sweep(ctx context.Context, p *Parameterizer, cfg SweepConfig) (SweepResult, error) {
	maxTrials := cfg.MaxTrials
	if maxTrials <= 0 {
		maxTrials = 200
	}
	step := RatioStep
	if p.params.ConstrainOnFlatArea {
		step = -RatioStep
	}

	res := SweepResult{}
	for trial := range maxTrials {
		ratio := math.Round((cfg.Ratio.Low+float64(trial)*step)*1e6) / 1e6
		if ratio < MinRatio || ratio >= cfg.Ratio.High {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		limit := p.LimitRelativeHeight(Range{Low: ratio, High: cfg.Ratio.High})
		c := p.PrepareConstraints(limit)
		n, err := p.Singularities(ctx, c)
		if err != nil {
			return res, err
		}
		res = SweepResult{Ratio: ratio, Limit: limit, Singularities: n, Trials: trial + 1, Constraints: c}
		slogger().Debug("param: constraint trial",
			"ratio", ratio, "limit", limit, "constraints", c.Len(), "singularities", n)
		if n <= cfg.MaxSingularities {
			return res, nil
		}
	}
	return res, ErrBudgetNotMet
}
