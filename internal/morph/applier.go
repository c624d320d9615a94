package morph

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarsync/internal/bridge"
)

const (
	// writeThreshold gates mesh writes: steps smaller than this are
	// skipped, so a converged channel costs nothing per frame.
	writeThreshold = 0.001

	// dampingHalfLife closes ~90% of the remaining distance to target
	// every 100ms.
	dampingWindow = 100 * time.Millisecond
	dampingKeep   = 0.1 // fraction of the delta remaining after one window
)

// Applier holds target weights from batches and eases current weights toward
// them with exponential damping. It stores targets only; interpolation state
// lives in the current map.
type Applier struct {
	reg *Registry
	log zerolog.Logger

	targets map[string]float64
	current map[string]float64
	lastSeq uint64

	droppedBatches uint64
}

// NewApplier creates an applier over a built registry.
func NewApplier(reg *Registry, log zerolog.Logger) *Applier {
	return &Applier{
		reg:     reg,
		log:     log.With().Str("component", "morph-applier").Logger(),
		targets: make(map[string]float64),
		current: make(map[string]float64),
	}
}

// ApplyBatch validates and stores a batch's channel targets. A malformed
// batch (non-finite or out-of-range weights, or a stale sequence number) is
// discarded wholesale and the prior targets stay in effect. Channel names
// the registry cannot resolve are ignored individually; the rest of the
// batch still applies.
func (a *Applier) ApplyBatch(b bridge.Batch) bool {
	if !b.Valid() || (a.lastSeq != 0 && b.Seq <= a.lastSeq) {
		a.droppedBatches++
		a.log.Warn().
			Uint64("seq", b.Seq).
			Uint64("lastSeq", a.lastSeq).
			Msg("malformed batch discarded, prior targets retained")
		return false
	}
	a.lastSeq = b.Seq

	for name, w := range b.Channels {
		if a.reg.Lookup(name) == nil {
			continue
		}
		a.targets[name] = w
	}
	return true
}

// Tick advances damping by dt and writes changed weights through the writer.
// Returns the number of writes issued; an identical batch re-applied after
// convergence produces zero.
func (a *Applier) Tick(dt time.Duration, w Writer) int {
	if dt <= 0 {
		return 0
	}

	// 1 - 0.1^(dt/100ms): the per-tick share of the remaining delta.
	factor := 1 - math.Pow(dampingKeep, dt.Seconds()/dampingWindow.Seconds())
	if factor > 1 {
		factor = 1
	}

	writes := 0
	for name, target := range a.targets {
		cur := a.current[name]
		step := (target - cur) * factor
		if math.Abs(step) <= writeThreshold {
			continue
		}

		next := cur + step
		a.current[name] = next
		for _, slot := range a.reg.Lookup(name) {
			w.SetMorphWeight(slot.Mesh, slot.Target, next)
		}
		writes++
	}
	return writes
}

// ActiveChannels counts channels whose current weight is meaningfully
// non-zero.
func (a *Applier) ActiveChannels() int {
	n := 0
	for _, w := range a.current {
		if w > writeThreshold {
			n++
		}
	}
	return n
}

// Current returns the eased weight of a channel.
func (a *Applier) Current(name string) float64 {
	return a.current[name]
}

// LastSeq returns the sequence number of the last accepted batch.
func (a *Applier) LastSeq() uint64 {
	return a.lastSeq
}

// DroppedBatches returns how many batches validation rejected.
func (a *Applier) DroppedBatches() uint64 {
	return a.droppedBatches
}
