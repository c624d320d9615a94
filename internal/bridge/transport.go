package bridge

import (
	"errors"
)

// ErrNotReady is returned when a transport cannot currently deliver.
var ErrNotReady = errors.New("bridge: transport not ready")

// ProducerTransport is the producer's view of the bridge.
type ProducerTransport interface {
	Ready() bool
	SendBatch(Batch) error
	Fences() <-chan Fence
	Telemetry() <-chan Telemetry
	Close() error
}

// ConsumerTransport is the consumer's view of the bridge.
type ConsumerTransport interface {
	Ready() bool
	Batches() <-chan Batch
	SignalFence(Fence) error
	SendTelemetry(Telemetry) error
	Close() error
}

// Loopback is an in-process transport pairing both ends with buffered
// channels. Used when producer and consumer run in the same process, and in
// tests.
type Loopback struct {
	batches   chan Batch
	fences    chan Fence
	telemetry chan Telemetry
	done      chan struct{}
}

// NewLoopback returns both ends of an in-process bridge. The batch buffer
// should be at least the producer's queue depth.
func NewLoopback(buffer int) (*Loopback, *Loopback) {
	if buffer <= 0 {
		buffer = 16
	}
	lb := &Loopback{
		batches:   make(chan Batch, buffer),
		fences:    make(chan Fence, buffer),
		telemetry: make(chan Telemetry, buffer),
		done:      make(chan struct{}),
	}
	return lb, lb
}

func (l *Loopback) Ready() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// SendBatch delivers without blocking; a full buffer drops the batch and
// reports not-ready so the producer's own backpressure accounting kicks in.
func (l *Loopback) SendBatch(b Batch) error {
	if !l.Ready() {
		return ErrNotReady
	}
	select {
	case l.batches <- b:
		return nil
	default:
		return ErrNotReady
	}
}

func (l *Loopback) Fences() <-chan Fence        { return l.fences }
func (l *Loopback) Telemetry() <-chan Telemetry { return l.telemetry }
func (l *Loopback) Batches() <-chan Batch       { return l.batches }

func (l *Loopback) SignalFence(f Fence) error {
	if !l.Ready() {
		return ErrNotReady
	}
	select {
	case l.fences <- f:
		return nil
	default:
		return ErrNotReady
	}
}

func (l *Loopback) SendTelemetry(t Telemetry) error {
	if !l.Ready() {
		return ErrNotReady
	}
	select {
	case l.telemetry <- t:
		return nil
	default:
		return ErrNotReady
	}
}

func (l *Loopback) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}
