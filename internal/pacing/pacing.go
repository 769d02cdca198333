// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pacing shapes the pause between page loads so traffic looks like
// irregular human browsing instead of a fixed-interval loop.
package pacing

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pdiddy/cite-hustle/pkg/types"
)

// Source supplies uniform floats in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Policy draws inter-item delays. It has no side effects; callers sleep.
type Policy struct {
	Base                   time.Duration
	DistractionProbability float64
	DistractionMin         time.Duration
	DistractionMax         time.Duration

	rng Source
}

// New returns a Policy built from cfg. A nil rng uses a time-seeded PCG source.
func New(cfg types.ScrapeConfig, rng Source) *Policy {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>17|1))
	}
	return &Policy{
		Base:                   cfg.BaseDelay,
		DistractionProbability: cfg.DistractionProbability,
		DistractionMin:         cfg.DistractionMin,
		DistractionMax:         cfg.DistractionMax,
		rng:                    rng,
	}
}

// NextDelay returns a duration uniform in [0.5·Base, 1.5·Base], plus, with
// DistractionProbability, an extra pause uniform in [DistractionMin, DistractionMax].
func (p *Policy) NextDelay() time.Duration {
	d := time.Duration(float64(p.Base) * (0.5 + p.rng.Float64()))
	if p.DistractionProbability > 0 && p.rng.Float64() < p.DistractionProbability {
		d += p.distraction()
	}
	return d
}

// MaxDelay is the upper bound NextDelay can ever return.
func (p *Policy) MaxDelay() time.Duration {
	d := time.Duration(float64(p.Base) * 1.5)
	if p.DistractionProbability > 0 {
		d += p.DistractionMax
	}
	return d
}

func (p *Policy) distraction() time.Duration {
	span := p.DistractionMax - p.DistractionMin
	if span <= 0 {
		return p.DistractionMin
	}
	return p.DistractionMin + time.Duration(float64(span)*p.rng.Float64())
}

// Sleep waits for d or until ctx is cancelled, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
