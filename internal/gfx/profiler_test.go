package gfx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stepClock struct {
	t time.Duration
}

func (c *stepClock) now() time.Duration {
	return c.t
}

func TestFrameProfiler(t *testing.T) {
	clock := &stepClock{}
	p := NewFrameProfiler()
	p.now = clock.now

	assert.Zero(t, p.Last())
	assert.Zero(t, p.Average())

	p.End()
	assert.Zero(t, p.Last(), "end without begin")

	p.Begin()
	clock.t += 2 * time.Millisecond
	p.End()
	assert.Equal(t, 2*time.Millisecond, p.Last())

	p.Begin()
	clock.t += 4 * time.Millisecond
	p.End()
	assert.Equal(t, 4*time.Millisecond, p.Last())
	assert.Equal(t, 3*time.Millisecond, p.Average())
}

func TestFrameProfilerWraps(t *testing.T) {
	clock := &stepClock{}
	p := NewFrameProfiler()
	p.now = clock.now

	for i := 0; i < profilerHistory; i++ {
		p.Begin()
		clock.t += time.Millisecond
		p.End()
	}
	for i := 0; i < profilerHistory; i++ {
		p.Begin()
		clock.t += 3 * time.Millisecond
		p.End()
	}
	assert.Equal(t, 3*time.Millisecond, p.Average())
	assert.Equal(t, 3*time.Millisecond, p.Last())
}
