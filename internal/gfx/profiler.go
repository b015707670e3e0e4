package gfx

import (
	"time"

	"github.com/loov/hrtime"
)

const profilerHistory = 64

// FrameProfiler measures CPU time between Begin and End over the last
// profilerHistory frames.
type FrameProfiler struct {
	now     func() time.Duration
	started time.Duration
	running bool

	samples [profilerHistory]time.Duration
	count   int
	next    int
}

func NewFrameProfiler() *FrameProfiler {
	return &FrameProfiler{now: hrtime.Now}
}

func (p *FrameProfiler) Begin() {
	p.started = p.now()
	p.running = true
}

// End records the time since Begin. Without a matching Begin it does nothing.
func (p *FrameProfiler) End() {
	if !p.running {
		return
	}
	p.running = false
	p.samples[p.next] = p.now() - p.started
	p.next = (p.next + 1) % profilerHistory
	if p.count < profilerHistory {
		p.count++
	}
}

// Last is the most recent sample.
func (p *FrameProfiler) Last() time.Duration {
	if p.count == 0 {
		return 0
	}
	return p.samples[(p.next+profilerHistory-1)%profilerHistory]
}

func (p *FrameProfiler) Average() time.Duration {
	if p.count == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < p.count; i++ {
		total += p.samples[i]
	}
	return total / time.Duration(p.count)
}
