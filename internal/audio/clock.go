package audio

import "time"

// Clock supplies a monotonic reference reading. Injected so transport
// logic is testable without real time.
type Clock interface {
	Now() time.Duration
}

type systemClock struct {
	epoch time.Time
}

// NewSystemClock returns a Clock backed by the runtime's monotonic
// clock. Readings are relative to construction time and unaffected by
// wall-clock adjustments.
func NewSystemClock() Clock {
	return &systemClock{epoch: time.Now()}
}

func (c *systemClock) Now() time.Duration {
	return time.Since(c.epoch)
}

// playClock tracks the logical playback position of a session: a
// stored offset plus, while running, the reference time elapsed since
// the last Start. It is the single source of truth for position no
// matter how many sources are playing.
type playClock struct {
	clk       Clock
	offset    time.Duration
	startedAt time.Duration
	running   bool
}

func newPlayClock(clk Clock) *playClock {
	return &playClock{clk: clk}
}

// Start snapshots the reference clock against the current offset.
func (p *playClock) Start() {
	p.startedAt = p.clk.Now()
	p.running = true
}

// Position returns offset + elapsed while running, offset otherwise.
func (p *playClock) Position() time.Duration {
	if !p.running {
		return p.offset
	}
	return p.offset + (p.clk.Now() - p.startedAt)
}

// Pause folds the computed position back into the offset before
// stopping, so a later Start resumes exactly where playback left off.
func (p *playClock) Pause() time.Duration {
	p.offset = p.Position()
	p.running = false
	return p.offset
}

// SetOffset moves the logical position. While running it re-snapshots
// the reference clock so elapsed time restarts from the new offset.
func (p *playClock) SetOffset(d time.Duration) {
	p.offset = d
	if p.running {
		p.startedAt = p.clk.Now()
	}
}

func (p *playClock) Running() bool {
	return p.running
}
