package service

import (
	"math"
	"time"
)

// UnlimitedTolerance is returned once a player has waited long enough for a
// fallback match against anyone.
const UnlimitedTolerance = math.MaxInt

// TolerancePolicy is the allowed rating gap as a function of wait time: Base,
// plus Step for every full GrowthInterval waited, unbounded from FallbackAfter on.
// The curve is monotone non-decreasing and never negative.
type TolerancePolicy struct {
	Base           int
	Step           int
	GrowthInterval time.Duration
	FallbackAfter  time.Duration
}

// NewTolerancePolicy grows by step every matchTimeout and falls back after
// fallbackMultiplier timeouts.
func NewTolerancePolicy(base, step int, matchTimeout time.Duration, fallbackMultiplier int) TolerancePolicy {
	return TolerancePolicy{
		Base:           base,
		Step:           step,
		GrowthInterval: matchTimeout,
		FallbackAfter:  time.Duration(fallbackMultiplier) * matchTimeout,
	}
}

func (p TolerancePolicy) Tolerance(wait time.Duration) int {
	if wait < 0 {
		wait = 0
	}
	if p.IsFallback(wait) {
		return UnlimitedTolerance
	}

	tol := p.base()
	if p.Step <= 0 || p.GrowthInterval <= 0 {
		return tol
	}

	steps := int64(wait / p.GrowthInterval)
	if steps > int64(math.MaxInt-tol)/int64(p.Step) {
		return UnlimitedTolerance
	}
	return tol + int(steps)*p.Step
}

func (p TolerancePolicy) IsFallback(wait time.Duration) bool {
	return p.FallbackAfter > 0 && wait >= p.FallbackAfter
}

func (p TolerancePolicy) base() int {
	if p.Base < 0 {
		return 0
	}
	return p.Base
}
