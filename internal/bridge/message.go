// Package bridge batches, transports, and fence-synchronizes channel-weight
// updates between the animation producer and the rendering consumer. The two
// sides share no memory; everything crosses as messages.
package bridge

import (
	"math"
	"time"
)

// Batch is one frame's worth of channel updates: a flat map from channel key
// to weight, with a strictly increasing sequence number.
type Batch struct {
	Seq       uint64             `json:"seq"`
	Timestamp time.Time          `json:"timestamp"`
	Channels  map[string]float64 `json:"channels"`
}

// Valid reports whether every weight is a finite number in [0,1]. Batches
// failing this are malformed and discarded wholesale.
func (b *Batch) Valid() bool {
	for _, w := range b.Channels {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 || w > 1 {
			return false
		}
	}
	return true
}

// Fence is the consumer's frame-synchronized signal: its GPU work for the
// batch with this sequence number has completed.
type Fence struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Telemetry is the consumer's periodic report back to the producer.
type Telemetry struct {
	FPS            float64   `json:"fps"`
	FrameTimeMs    float64   `json:"frameTimeMs"`
	MorphUpdateMs  float64   `json:"morphUpdateMs"`
	ActiveChannels int       `json:"activeChannels"`
	Timestamp      time.Time `json:"timestamp"`
}

// Envelope frames messages on stream transports.
type Envelope struct {
	Type      string     `json:"type"` // "batch", "fence", "telemetry"
	Batch     *Batch     `json:"batch,omitempty"`
	Fence     *Fence     `json:"fence,omitempty"`
	Telemetry *Telemetry `json:"telemetry,omitempty"`
}

const (
	EnvelopeBatch     = "batch"
	EnvelopeFence     = "fence"
	EnvelopeTelemetry = "telemetry"
)
