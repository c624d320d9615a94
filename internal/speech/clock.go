// Package speech shims the upstream speech collaborators: a playback clock
// the producer reads pull-style, an utterance synthesizer that turns text
// into timed keyframes, and the fallback loader for an external landmark
// detector.
package speech

import (
	"sync"
	"time"
)

// Clock tracks playback position for one utterance. The producer tick polls
// Elapsed instead of receiving push events. Not ready means no utterance is
// playing and nothing should be queued.
type Clock struct {
	mu       sync.Mutex
	started  time.Time
	duration time.Duration
	playing  bool
	onEnd    func()
}

// NewClock returns a stopped clock.
func NewClock() *Clock {
	return &Clock{}
}

// OnEnd registers a callback fired once when playback runs past its duration.
func (c *Clock) OnEnd(fn func()) {
	c.mu.Lock()
	c.onEnd = fn
	c.mu.Unlock()
}

// Start begins playback of an utterance with a known duration.
func (c *Clock) Start(duration time.Duration) {
	c.mu.Lock()
	c.started = time.Now()
	c.duration = duration
	c.playing = true
	c.mu.Unlock()
}

// Stop halts playback immediately.
func (c *Clock) Stop() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
}

// Ready reports whether an utterance is currently playing.
func (c *Clock) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Elapsed returns the playback position. Past the utterance's duration the
// clock stops itself and fires the end callback.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return 0
	}

	elapsed := time.Since(c.started)
	if elapsed >= c.duration {
		c.playing = false
		fn := c.onEnd
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
		return c.duration
	}
	c.mu.Unlock()
	return elapsed
}
