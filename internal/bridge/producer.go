package bridge

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarsync/internal/bus"
)

// ProducerConfig holds the producer side's runtime-adjustable knobs.
type ProducerConfig struct {
	// FrameInterval is one frame at the target rate; it bounds both the
	// open batch's age and the fence wait.
	FrameInterval time.Duration

	// UpdateThreshold is the minimum per-channel change that gets queued.
	UpdateThreshold float64

	// MaxQueueDepth caps the batch queue; overflow drops oldest batches
	// wholesale.
	MaxQueueDepth int

	// SyncTimeout bounds the GPU fence wait. Zero means one frame.
	SyncTimeout time.Duration
}

// DefaultProducerConfig returns the 60 Hz defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		FrameInterval:   time.Second / 60,
		UpdateThreshold: 0.001,
		MaxQueueDepth:   10,
		SyncTimeout:     time.Second / 60,
	}
}

func (c *ProducerConfig) normalize() {
	if c.FrameInterval <= 0 {
		c.FrameInterval = time.Second / 60
	}
	if c.UpdateThreshold <= 0 {
		c.UpdateThreshold = 0.001
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = 10
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = c.FrameInterval
	}
}

// ProducerStats are the producer's lossy-backpressure counters.
type ProducerStats struct {
	BatchesSent   uint64
	DroppedFrames uint64
	FenceTimeouts uint64
	QueueDepth    int
	LastSeq       uint64
}

// Producer accumulates delta-compressed channel updates into batches and
// forwards them across the transport, one per tick, fence-synchronized.
// Nothing here blocks longer than the bounded fence wait.
type Producer struct {
	mu sync.Mutex

	cfg    ProducerConfig
	tr     ProducerTransport
	events *bus.EventBus
	log    zerolog.Logger

	lastSent map[string]float64
	open     *Batch
	openedAt time.Time
	queue    []*Batch
	seq      uint64

	stats         ProducerStats
	lastTelemetry Telemetry
	hasTelemetry  bool
	teleHistory   []Telemetry
}

// teleHistoryCap bounds the retained consumer reports, about a minute at the
// consumer's one-per-second cadence.
const teleHistoryCap = 60

// NewProducer creates a producer over a transport. A nil event bus disables
// event publication.
func NewProducer(cfg ProducerConfig, tr ProducerTransport, events *bus.EventBus, log zerolog.Logger) *Producer {
	cfg.normalize()
	return &Producer{
		cfg:      cfg,
		tr:       tr,
		events:   events,
		log:      log.With().Str("component", "bridge-producer").Logger(),
		lastSent: make(map[string]float64),
	}
}

func (p *Producer) publish(ev bus.Event) {
	if p.events != nil {
		p.events.Publish(ev)
	}
}

// Reconfigure applies new settings at runtime.
func (p *Producer) Reconfigure(cfg ProducerConfig) {
	cfg.normalize()
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// Update merges a channel sample into the open batch. Only channels whose
// change against the last-sent cache exceeds the threshold are queued.
func (p *Producer) Update(channels map[string]float64, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, w := range channels {
		if math.Abs(w-p.lastSent[name]) <= p.cfg.UpdateThreshold {
			continue
		}
		if p.open == nil {
			p.seq++
			p.open = &Batch{Seq: p.seq, Timestamp: now, Channels: make(map[string]float64)}
			p.openedAt = now
		}
		p.open.Channels[name] = w
		p.lastSent[name] = w
	}

	p.maybeCloseLocked(now)
}

// maybeCloseLocked enqueues the open batch once it is older than one frame
// interval, applying drop-oldest backpressure at the queue cap.
func (p *Producer) maybeCloseLocked(now time.Time) {
	if p.open == nil || now.Sub(p.openedAt) < p.cfg.FrameInterval {
		return
	}

	p.queue = append(p.queue, p.open)
	p.open = nil

	for len(p.queue) > p.cfg.MaxQueueDepth {
		dropped := p.queue[0]
		p.queue = p.queue[1:]
		p.stats.DroppedFrames++
		p.log.Debug().Uint64("seq", dropped.Seq).Msg("queue overflow, dropped oldest batch")
		p.publish(bus.Event{Type: bus.EventTypeFrameDropped, Data: map[string]any{
			"seq":     dropped.Seq,
			"dropped": p.stats.DroppedFrames,
		}})
	}
}

// Tick forwards at most one queued batch and then waits for the consumer's
// fence signal with a bounded timeout. On timeout it logs and proceeds; the
// next tick carries on regardless.
func (p *Producer) Tick(now time.Time) {
	p.mu.Lock()
	p.maybeCloseLocked(now)
	p.drainTelemetryLocked()

	if !p.tr.Ready() {
		// Not ready: keep buffering up to the cap; Update keeps the
		// queue trimmed.
		p.mu.Unlock()
		return
	}

	if len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}

	batch := p.queue[0]
	p.queue = p.queue[1:]
	timeout := p.cfg.SyncTimeout
	p.mu.Unlock()

	if err := p.tr.SendBatch(*batch); err != nil {
		p.log.Warn().Err(err).Uint64("seq", batch.Seq).Msg("batch send failed")
		return
	}

	p.mu.Lock()
	p.stats.BatchesSent++
	p.stats.LastSeq = batch.Seq
	p.mu.Unlock()

	p.awaitFence(batch.Seq, timeout)
}

// awaitFence blocks until the consumer confirms the sequence number or the
// timeout elapses. Never unbounded.
func (p *Producer) awaitFence(seq uint64, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case f, ok := <-p.tr.Fences():
			if !ok {
				return
			}
			if f.Seq >= seq {
				return
			}
			// Stale fence from an earlier batch; keep draining.
		case <-timer.C:
			p.mu.Lock()
			p.stats.FenceTimeouts++
			n := p.stats.FenceTimeouts
			p.mu.Unlock()
			p.log.Warn().
				Uint64("seq", seq).
				Dur("timeout", timeout).
				Uint64("total", n).
				Msg("GPU sync fence timeout, proceeding")
			p.publish(bus.Event{Type: bus.EventTypeFenceTimeout, Data: map[string]any{
				"seq":   seq,
				"total": n,
			}})
			return
		}
	}
}

func (p *Producer) drainTelemetryLocked() {
	for {
		select {
		case t, ok := <-p.tr.Telemetry():
			if !ok {
				return
			}
			p.lastTelemetry = t
			p.hasTelemetry = true
			p.teleHistory = append(p.teleHistory, t)
			if len(p.teleHistory) > teleHistoryCap {
				p.teleHistory = p.teleHistory[len(p.teleHistory)-teleHistoryCap:]
			}
		default:
			return
		}
	}
}

// Stats returns a snapshot of the backpressure counters.
func (p *Producer) Stats() ProducerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.QueueDepth = len(p.queue)
	return s
}

// LastTelemetry returns the most recent consumer report, if any arrived.
func (p *Producer) LastTelemetry() (Telemetry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTelemetry, p.hasTelemetry
}

// TelemetryHistory returns the retained consumer reports, oldest first.
func (p *Producer) TelemetryHistory() []Telemetry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Telemetry, len(p.teleHistory))
	copy(out, p.teleHistory)
	return out
}
