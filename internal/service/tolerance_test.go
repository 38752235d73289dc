package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTolerancePolicy_Monotone(t *testing.T) {
	policies := []TolerancePolicy{
		NewTolerancePolicy(50, 25, 30*time.Second, 3),
		NewTolerancePolicy(0, 0, 30*time.Second, 3),
		NewTolerancePolicy(100, 1000, time.Second, 5),
		{Base: -10, Step: 5, GrowthInterval: time.Second, FallbackAfter: time.Minute},
	}

	for _, p := range policies {
		prev := p.Tolerance(0)
		assert.GreaterOrEqual(t, prev, 0)
		for wait := time.Duration(0); wait <= 2*time.Minute; wait += 500 * time.Millisecond {
			cur := p.Tolerance(wait)
			assert.GreaterOrEqual(t, cur, prev, "tolerance decreased at %s for %+v", wait, p)
			assert.GreaterOrEqual(t, cur, 0)
			prev = cur
		}
	}
}

func TestTolerancePolicy_Growth(t *testing.T) {
	p := NewTolerancePolicy(50, 25, 30*time.Second, 3)

	assert.Equal(t, 50, p.Tolerance(0))
	assert.Equal(t, 50, p.Tolerance(-time.Second))
	assert.Equal(t, 50, p.Tolerance(29*time.Second))
	assert.Equal(t, 75, p.Tolerance(30*time.Second))
	assert.Equal(t, 100, p.Tolerance(89*time.Second))
}

func TestTolerancePolicy_FallbackBoundary(t *testing.T) {
	p := NewTolerancePolicy(50, 25, 30*time.Second, 3)

	assert.False(t, p.IsFallback(90*time.Second-time.Nanosecond))
	assert.Less(t, p.Tolerance(90*time.Second-time.Nanosecond), UnlimitedTolerance)

	assert.True(t, p.IsFallback(90*time.Second))
	assert.Equal(t, UnlimitedTolerance, p.Tolerance(90*time.Second))
	assert.Equal(t, UnlimitedTolerance, p.Tolerance(time.Hour))
}

func TestTolerancePolicy_NoOverflow(t *testing.T) {
	p := TolerancePolicy{Base: 1, Step: UnlimitedTolerance / 2, GrowthInterval: time.Nanosecond}

	assert.Equal(t, UnlimitedTolerance, p.Tolerance(time.Hour))
}
