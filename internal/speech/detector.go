package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Detector supplies live viseme measurements from camera landmarks, used in
// place of synthesized keyframes when available.
type Detector interface {
	Measure() (map[string]float64, error)
	Close() error
}

// DetectorSource is one place a detector can be loaded from, such as a local
// module or a remote CDN build.
type DetectorSource interface {
	Name() string
	Load(ctx context.Context) (Detector, error)
}

// ErrNoDetectorSource is the terminal failure after every source and retry
// is exhausted. Callers fall back to synthesized animation and expose a
// not-ready flag; the animation core keeps running.
var ErrNoDetectorSource = errors.New("speech: no detector source available")

const detectorRetries = 2

// LoadDetector tries each source in order, retrying each a fixed number of
// times, and returns the first detector that loads. All failures aggregate
// into the returned error.
func LoadDetector(ctx context.Context, sources []DetectorSource, log zerolog.Logger) (Detector, error) {
	var attempts []error

	for _, src := range sources {
		for try := 0; try <= detectorRetries; try++ {
			if err := ctx.Err(); err != nil {
				attempts = append(attempts, err)
				return nil, errors.Join(ErrNoDetectorSource, errors.Join(attempts...))
			}

			det, err := src.Load(ctx)
			if err == nil {
				log.Info().Str("source", src.Name()).Int("attempt", try+1).Msg("landmark detector loaded")
				return det, nil
			}

			log.Warn().Str("source", src.Name()).Int("attempt", try+1).Err(err).Msg("detector load failed")
			attempts = append(attempts, fmt.Errorf("%s attempt %d: %w", src.Name(), try+1, err))
		}
	}

	return nil, errors.Join(ErrNoDetectorSource, errors.Join(attempts...))
}

// FileSource loads a recorded landmark capture from disk: a JSON array of
// timestamped channel-weight frames, replayed against the wall clock as live
// measurements.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + filepath.Base(s.Path) }

type captureFrame struct {
	AtMs     float64            `json:"atMs"`
	Channels map[string]float64 `json:"channels"`
}

func (s FileSource) Load(_ context.Context) (Detector, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}

	var frames []captureFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	if len(frames) == 0 {
		return nil, errors.New("capture has no frames")
	}

	return &replayDetector{frames: frames, start: time.Now()}, nil
}

// replayDetector plays a capture back on a loop, wrapping at the last frame's
// timestamp so the face keeps moving.
type replayDetector struct {
	frames []captureFrame
	start  time.Time
}

func (d *replayDetector) Measure() (map[string]float64, error) {
	span := d.frames[len(d.frames)-1].AtMs
	if span <= 0 {
		return d.frames[0].Channels, nil
	}

	at := math.Mod(float64(time.Since(d.start).Milliseconds()), span)
	cur := d.frames[0]
	for _, f := range d.frames {
		if f.AtMs > at {
			break
		}
		cur = f
	}
	return cur.Channels, nil
}

func (d *replayDetector) Close() error { return nil }
