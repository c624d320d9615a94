package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarsync/internal/anim"
)

func TestSynthesizeTimings(t *testing.T) {
	u := Synthesize("ma")

	// m (60ms closure) then aa (100ms vowel).
	if len(u.Keyframes) != 2 {
		t.Fatalf("expected 2 keyframes, got %d", len(u.Keyframes))
	}
	if u.Keyframes[0].At != 0 {
		t.Errorf("first keyframe should start at 0, got %v", u.Keyframes[0].At)
	}
	if u.Keyframes[1].At != 60*time.Millisecond {
		t.Errorf("vowel should start after the 60ms closure, got %v", u.Keyframes[1].At)
	}
	if u.Duration != 160*time.Millisecond {
		t.Errorf("expected total 160ms, got %v", u.Duration)
	}
}

func TestSynthesizeTimestampsMonotonic(t *testing.T) {
	u := Synthesize("hello there, how are you today?")
	if len(u.Keyframes) == 0 {
		t.Fatal("expected keyframes")
	}

	s := anim.NewScheduler()
	for _, kf := range u.Keyframes {
		if err := s.Push(kf); err != nil {
			t.Fatalf("keyframe at %v rejected: %v", kf.At, err)
		}
	}
}

func TestSynthesizeCarriesExpression(t *testing.T) {
	u := Synthesize("this is amazing, wow")

	found := false
	for _, kf := range u.Keyframes {
		if kf.Channels["browInnerUp"] > 0 || kf.Channels["eyeWideLeft"] > 0 {
			found = true
			break
		}
	}
	if !found {
		t.Error("an excited utterance should carry expression channels")
	}
}

func TestSynthesizeWeightsInRange(t *testing.T) {
	u := Synthesize("she sells sea shells by the sea shore!")
	for _, kf := range u.Keyframes {
		for name, w := range kf.Channels {
			if w < 0 || w > 1 {
				t.Errorf("channel %s out of range at %v: %f", name, kf.At, w)
			}
		}
	}
}

func TestClockLifecycle(t *testing.T) {
	c := NewClock()
	if c.Ready() {
		t.Error("fresh clock should not be ready")
	}
	if c.Elapsed() != 0 {
		t.Error("stopped clock should read 0")
	}

	ended := make(chan struct{})
	c.OnEnd(func() { close(ended) })

	c.Start(10 * time.Millisecond)
	if !c.Ready() {
		t.Error("started clock should be ready")
	}

	time.Sleep(20 * time.Millisecond)
	if got := c.Elapsed(); got != 10*time.Millisecond {
		t.Errorf("elapsed should clamp to duration, got %v", got)
	}
	select {
	case <-ended:
	default:
		t.Error("end callback should have fired")
	}
	if c.Ready() {
		t.Error("clock should stop itself at the end")
	}
}

func TestClockStop(t *testing.T) {
	c := NewClock()
	c.Start(time.Hour)
	c.Stop()
	if c.Ready() || c.Elapsed() != 0 {
		t.Error("stopped clock should be idle")
	}
}

type stubSource struct {
	name  string
	fails int
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Load(context.Context) (Detector, error) {
	s.calls++
	if s.calls <= s.fails {
		return nil, errors.New("unreachable")
	}
	return stubDetector{}, nil
}

type stubDetector struct{}

func (stubDetector) Measure() (map[string]float64, error) { return nil, nil }
func (stubDetector) Close() error                         { return nil }

func TestLoadDetectorFallsThroughSources(t *testing.T) {
	cdn := &stubSource{name: "cdn", fails: 99}
	local := &stubSource{name: "local", fails: 1}

	det, err := LoadDetector(context.Background(), []DetectorSource{cdn, local}, zerolog.Nop())
	if err != nil {
		t.Fatalf("second source should have succeeded: %v", err)
	}
	det.Close()

	if cdn.calls != detectorRetries+1 {
		t.Errorf("first source should be retried %d times, got %d", detectorRetries+1, cdn.calls)
	}
	if local.calls != 2 {
		t.Errorf("second source should succeed on its retry, got %d calls", local.calls)
	}
}

func TestLoadDetectorExhaustedAggregates(t *testing.T) {
	a := &stubSource{name: "a", fails: 99}
	b := &stubSource{name: "b", fails: 99}

	_, err := LoadDetector(context.Background(), []DetectorSource{a, b}, zerolog.Nop())
	if !errors.Is(err, ErrNoDetectorSource) {
		t.Fatalf("expected ErrNoDetectorSource, got %v", err)
	}
}

func TestFileSourceReplaysCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.json")
	capture := `[{"atMs":0,"channels":{"jawOpen":0.4,"viseme_aa":0.6}},{"atMs":5000,"channels":{"jawOpen":0.1}}]`
	if err := os.WriteFile(path, []byte(capture), 0644); err != nil {
		t.Fatal(err)
	}

	det, err := LoadDetector(context.Background(), []DetectorSource{FileSource{Path: path}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("capture should load: %v", err)
	}
	defer det.Close()

	m, err := det.Measure()
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	// Replay just started, so the first frame is active.
	if m["jawOpen"] != 0.4 || m["viseme_aa"] != 0.6 {
		t.Errorf("expected the first capture frame, got %v", m)
	}
}

func TestFileSourceMissingFileExhausts(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}
	_, err := LoadDetector(context.Background(), []DetectorSource{src}, zerolog.Nop())
	if !errors.Is(err, ErrNoDetectorSource) {
		t.Fatalf("missing capture must exhaust into ErrNoDetectorSource, got %v", err)
	}
}
