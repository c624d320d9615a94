// Package perf tracks frame processing cost and derives a quality level used
// to prune low-magnitude channels under load.
package perf

import (
	"sync"
	"time"
)

const (
	// DefaultBudget is the per-frame processing budget at 60 Hz.
	DefaultBudget = 16670 * time.Microsecond

	defaultWindow = 60

	// Hysteresis: quality drops fast when 20% over budget and recovers
	// slowly when 20% under, so it does not oscillate.
	overBudgetRatio  = 1.2
	underBudgetRatio = 0.8
	downStep         = 0.1
	upStep           = 0.05

	minQuality = 0.5
	maxQuality = 1.0

	pruneBase = 0.05
)

// Snapshot is the optimizer's current view of processing cost.
type Snapshot struct {
	AvgFrameTime time.Duration
	Quality      float64
	Samples      int
}

// Optimizer keeps a rolling average of frame times against a fixed budget.
type Optimizer struct {
	mu sync.Mutex

	budget  time.Duration
	window  int
	samples []time.Duration
	next    int
	filled  bool

	quality float64
}

// NewOptimizer returns an optimizer with the given frame budget. A
// non-positive budget selects the 60 Hz default.
func NewOptimizer(budget time.Duration) *Optimizer {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Optimizer{
		budget:  budget,
		window:  defaultWindow,
		samples: make([]time.Duration, 0, defaultWindow),
		quality: maxQuality,
	}
}

// SetBudget adjusts the frame budget at runtime.
func (o *Optimizer) SetBudget(budget time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if budget > 0 {
		o.budget = budget
	}
}

// AddSample records one frame's processing time and re-evaluates quality.
func (o *Optimizer) AddSample(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.samples) < o.window {
		o.samples = append(o.samples, d)
	} else {
		o.samples[o.next] = d
		o.next = (o.next + 1) % o.window
		o.filled = true
	}

	avg := o.avgLocked()
	switch {
	case avg > time.Duration(float64(o.budget)*overBudgetRatio):
		o.quality -= downStep
		if o.quality < minQuality {
			o.quality = minQuality
		}
	case avg < time.Duration(float64(o.budget)*underBudgetRatio):
		o.quality += upStep
		if o.quality > maxQuality {
			o.quality = maxQuality
		}
	}
}

func (o *Optimizer) avgLocked() time.Duration {
	if len(o.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range o.samples {
		sum += s
	}
	return sum / time.Duration(len(o.samples))
}

// Quality returns the current quality level in [0.5, 1.0].
func (o *Optimizer) Quality() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.quality
}

// Snapshot returns the rolling average and quality level.
func (o *Optimizer) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		AvgFrameTime: o.avgLocked(),
		Quality:      o.quality,
		Samples:      len(o.samples),
	}
}

// Prune zeroes channels whose weight falls below pruneBase x quality. The
// zero still crosses the bridge, so delta compression transmits it once and
// the consumer's target converges to rest instead of freezing at the last
// supra-threshold value. At full quality nothing is pruned. The map is
// modified in place and returned.
func (o *Optimizer) Prune(channels map[string]float64) map[string]float64 {
	o.mu.Lock()
	quality := o.quality
	o.mu.Unlock()

	if quality >= maxQuality {
		return channels
	}

	threshold := pruneBase * quality
	for name, w := range channels {
		if w < threshold {
			channels[name] = 0
		}
	}
	return channels
}
