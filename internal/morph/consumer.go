package morph

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarsync/internal/bridge"
)

// telemetryInterval spaces the consumer's reports back to the producer.
const telemetryInterval = time.Second

// Consumer drives the applier from the render loop: drain incoming batches,
// ease weights, signal the fence for the frame's batch, and report telemetry.
type Consumer struct {
	tr      bridge.ConsumerTransport
	applier *Applier
	log     zerolog.Logger

	preFence func() bool

	frames        int
	frameTimeSum  time.Duration
	morphTimeSum  time.Duration
	lastTelemetry time.Time
}

// SetPreFence installs a hook run after the applier tick and before the
// fence is signalled, typically a bounded GPU-fence wait confirming the
// writes reached the device. Its result rides along unused; the bridge
// fence fires either way so the producer never stalls.
func (c *Consumer) SetPreFence(fn func() bool) {
	c.preFence = fn
}

// NewConsumer wires an applier to its transport.
func NewConsumer(tr bridge.ConsumerTransport, applier *Applier, log zerolog.Logger) *Consumer {
	return &Consumer{
		tr:      tr,
		applier: applier,
		log:     log.With().Str("component", "morph-consumer").Logger(),
	}
}

// Frame runs one render tick: apply pending batches, damp toward targets,
// write through the writer, then fence and telemetry. dt is the elapsed
// wall time since the previous frame. Returns the write count.
func (c *Consumer) Frame(dt time.Duration, w Writer) int {
	start := time.Now()

	applied := false
drain:
	for {
		select {
		case b := <-c.tr.Batches():
			if c.applier.ApplyBatch(b) {
				applied = true
			}
		default:
			break drain
		}
	}

	writes := c.applier.Tick(dt, w)
	morphTime := time.Since(start)

	// The fence answers the batch that reached the mesh this frame.
	if applied {
		if c.preFence != nil && !c.preFence() {
			c.log.Debug().Msg("GPU fence wait timed out before bridge fence")
		}
		if err := c.tr.SignalFence(bridge.Fence{Seq: c.applier.LastSeq(), Timestamp: time.Now()}); err != nil {
			c.log.Debug().Err(err).Msg("fence signal failed")
		}
	}

	c.frames++
	c.frameTimeSum += dt
	c.morphTimeSum += morphTime
	c.maybeReport(start)

	return writes
}

func (c *Consumer) maybeReport(now time.Time) {
	if now.Sub(c.lastTelemetry) < telemetryInterval || c.frames == 0 {
		return
	}

	avgFrame := c.frameTimeSum / time.Duration(c.frames)
	avgMorph := c.morphTimeSum / time.Duration(c.frames)
	t := bridge.Telemetry{
		FrameTimeMs:    float64(avgFrame.Microseconds()) / 1000,
		MorphUpdateMs:  float64(avgMorph.Microseconds()) / 1000,
		ActiveChannels: c.applier.ActiveChannels(),
		Timestamp:      now,
	}
	if avgFrame > 0 {
		t.FPS = float64(time.Second) / float64(avgFrame)
	}

	if err := c.tr.SendTelemetry(t); err != nil {
		c.log.Debug().Err(err).Msg("telemetry send failed")
	}

	c.frames = 0
	c.frameTimeSum = 0
	c.morphTimeSum = 0
	c.lastTelemetry = now
}
