package upload

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Progress simulates transfer progress: every Interval it adds a random
// step in [0, MaxStep) until 100 is reached.
type Progress struct {
	Interval time.Duration
	MaxStep  float64
	Rand     func() float64
}

func DefaultProgress() Progress {
	return Progress{Interval: 200 * time.Millisecond, MaxStep: 10}
}

// Run reports each tick's rounded percentage and returns once 100 was reported
// or ctx is done.
func (p Progress) Run(ctx context.Context, report func(percent int)) error {
	rnd := p.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	step := p.MaxStep
	if step <= 0 {
		step = 10
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	progress := 0.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			progress += rnd() * step
			if progress >= 100 {
				progress = 100
			}
			if report != nil {
				report(int(math.Round(progress)))
			}
			if progress >= 100 {
				return nil
			}
		}
	}
}
