package anim

import (
	"testing"
	"time"
)

func TestCatmullRomEndpoints(t *testing.T) {
	cases := []struct{ p0, p1, p2, p3 float64 }{
		{0, 0.2, 0.8, 1},
		{1, 0.5, 0.5, 0},
		{0, 0, 1, 1},
		{0.3, 0.9, 0.1, 0.7},
	}
	for _, c := range cases {
		if got := CatmullRom(c.p0, c.p1, c.p2, c.p3, 0); got != c.p1 {
			t.Errorf("t=0: expected %f, got %f", c.p1, got)
		}
		if got := CatmullRom(c.p0, c.p1, c.p2, c.p3, 1); got != c.p2 {
			t.Errorf("t=1: expected %f, got %f", c.p2, got)
		}
	}
}

func TestCatmullRomClamped(t *testing.T) {
	// Steep tangents can overshoot; the result must stay in [0,1].
	for i := 0; i <= 20; i++ {
		tt := float64(i) / 20
		v := CatmullRom(0, 0, 1, 1, tt)
		if v < 0 || v > 1 {
			t.Errorf("t=%f: value %f out of range", tt, v)
		}
	}
}

func TestSchedulerRejectsStaleKeyframes(t *testing.T) {
	s := NewScheduler()

	if err := s.Push(Keyframe{At: 100 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 1}}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Push(Keyframe{At: 100 * time.Millisecond}); err != ErrNonMonotonic {
		t.Errorf("equal timestamp should be rejected, got %v", err)
	}
	if err := s.Push(Keyframe{At: 50 * time.Millisecond}); err != ErrNonMonotonic {
		t.Errorf("earlier timestamp should be rejected, got %v", err)
	}
}

func TestSchedulerSampleAtKeyframes(t *testing.T) {
	s := NewScheduler()
	s.Push(Keyframe{At: 100 * time.Millisecond, Channels: map[string]float64{"viseme_PP": 0.9}})
	s.Push(Keyframe{At: 200 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 0.8}})

	// Exactly on the first keyframe: its values.
	out := s.Sample(100 * time.Millisecond)
	if out["viseme_PP"] != 0.9 {
		t.Errorf("at first keyframe expected 0.9, got %f", out["viseme_PP"])
	}

	// Past the last keyframe: hold.
	out = s.Sample(300 * time.Millisecond)
	if out["viseme_aa"] != 0.8 {
		t.Errorf("past last keyframe expected hold 0.8, got %f", out["viseme_aa"])
	}
}

func TestSchedulerInterpolatesBetweenKeyframes(t *testing.T) {
	s := NewScheduler()
	s.Push(Keyframe{At: 100 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 0}})
	s.Push(Keyframe{At: 200 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 1}})

	out := s.Sample(150 * time.Millisecond)
	w := out["viseme_aa"]
	if w <= 0 || w >= 1 {
		t.Errorf("midpoint should be strictly between endpoints, got %f", w)
	}
}

func TestSchedulerLeadInRampsFromRest(t *testing.T) {
	s := NewScheduler()
	s.Push(Keyframe{At: 200 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 1}})

	// Well before the lead-in window: nothing.
	if out := s.Sample(50 * time.Millisecond); len(out) != 0 {
		t.Errorf("before lead-in expected empty sample, got %v", out)
	}

	// Inside the lead-in window: partially ramped.
	out := s.Sample(160 * time.Millisecond)
	w := out["viseme_aa"]
	if w <= 0 || w >= 1 {
		t.Errorf("lead-in sample should be mid-ramp, got %f", w)
	}
}

func TestSchedulerPhaseTracking(t *testing.T) {
	s := NewScheduler()
	s.Push(Keyframe{At: 100 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 0}})
	s.Push(Keyframe{At: 200 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 1}})
	s.Push(Keyframe{At: 300 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 1}})

	s.Sample(120 * time.Millisecond)
	s.Sample(180 * time.Millisecond)
	if got := s.Phase("viseme_aa"); got != PhaseRampIn {
		t.Errorf("rising channel should be ramp-in, got %s", got)
	}

	s.Sample(250 * time.Millisecond)
	s.Sample(260 * time.Millisecond)
	if got := s.Phase("viseme_aa"); got != PhaseHold {
		t.Errorf("stable channel should be hold, got %s", got)
	}
}

func TestSchedulerPredictions(t *testing.T) {
	s := NewScheduler()
	for i := 1; i <= 4; i++ {
		s.Push(Keyframe{At: time.Duration(i) * 100 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 0.5}})
	}

	preds := s.Predictions(400 * time.Millisecond)
	if len(preds) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(preds))
	}

	if preds[0].At != 500*time.Millisecond {
		t.Errorf("expected first prediction at 500ms, got %v", preds[0].At)
	}
	for i := 1; i < len(preds); i++ {
		if preds[i].At <= preds[i-1].At {
			t.Errorf("predictions should advance in time")
		}
		if preds[i].Confidence >= preds[i-1].Confidence {
			t.Errorf("confidence should decay: %f then %f", preds[i-1].Confidence, preds[i].Confidence)
		}
	}
	for _, p := range preds {
		if p.Confidence <= 0 || p.Confidence >= 1 {
			t.Errorf("confidence out of (0,1): %f", p.Confidence)
		}
	}
}

func TestSchedulerPredictionsEmptyWithoutRate(t *testing.T) {
	s := NewScheduler()
	if preds := s.Predictions(0); preds != nil {
		t.Errorf("no keyframes means no rate estimate, got %v", preds)
	}
	s.Push(Keyframe{At: 100 * time.Millisecond})
	if preds := s.Predictions(0); preds != nil {
		t.Errorf("a single keyframe gives no gap, got %v", preds)
	}
}

func TestSchedulerStopZeroesMouthChannels(t *testing.T) {
	s := NewScheduler()
	s.Push(Keyframe{At: 100 * time.Millisecond, Channels: map[string]float64{
		"viseme_aa":   0.8,
		"jawOpen":     0.4,
		"browInnerUp": 0.3,
	}})
	s.Push(Keyframe{At: 500 * time.Millisecond, Channels: map[string]float64{"viseme_O": 0.7}})
	s.Sample(120 * time.Millisecond)

	zero := s.Stop(150 * time.Millisecond)

	for _, name := range []string{"viseme_aa", "viseme_O", "jawOpen"} {
		if w, ok := zero.Channels[name]; !ok || w != 0 {
			t.Errorf("%s should be zeroed in the cancel keyframe, got %v", name, zero.Channels)
		}
	}
	if _, ok := zero.Channels["browInnerUp"]; ok {
		t.Errorf("non-mouth channel must not be cancelled")
	}

	// Lookahead state is cleared.
	if preds := s.Predictions(150 * time.Millisecond); preds != nil {
		t.Errorf("predictions should be cleared after stop, got %v", preds)
	}

	// Sampling after the stop holds zero.
	out := s.Sample(300 * time.Millisecond)
	for name, w := range out {
		if w != 0 {
			t.Errorf("%s should hold zero after stop, got %f", name, w)
		}
	}
}

func TestSchedulerResetStartsNewTimeline(t *testing.T) {
	s := NewScheduler()
	if err := s.Push(Keyframe{At: 500 * time.Millisecond, Channels: map[string]float64{"viseme_aa": 1}}); err != nil {
		t.Fatal(err)
	}

	s.Reset()
	if s.Pending() != 0 {
		t.Errorf("reset should clear buffered frames, got %d", s.Pending())
	}
	// A fresh utterance starts over at zero.
	if err := s.Push(Keyframe{At: 0, Channels: map[string]float64{"viseme_PP": 1}}); err != nil {
		t.Errorf("keyframe at 0 should be accepted after reset: %v", err)
	}
}

func TestIsMouthChannel(t *testing.T) {
	for _, name := range []string{"viseme_aa", "viseme_sil", "jawOpen", "mouthSmileLeft", "tongueOut"} {
		if !IsMouthChannel(name) {
			t.Errorf("%s should be a mouth channel", name)
		}
	}
	for _, name := range []string{"browInnerUp", "eyeBlinkLeft", "chestRise", "noseSneerLeft"} {
		if IsMouthChannel(name) {
			t.Errorf("%s should not be a mouth channel", name)
		}
	}
}

func TestPrewarmOpensJawBeforePredictedEvent(t *testing.T) {
	preds := []Prediction{{At: 140 * time.Millisecond, Confidence: 0.75}}

	// Halfway through the 80ms window at 0.75 confidence: 0.75*0.5*0.2.
	sample := Prewarm(map[string]float64{}, preds, 100*time.Millisecond)
	got := sample[ChannelJawOpen]
	if got < 0.0749 || got > 0.0751 {
		t.Errorf("expected ~0.075 anticipatory jaw, got %f", got)
	}

	// An event further out than the window must not move the jaw yet.
	early := Prewarm(map[string]float64{}, preds, 0)
	if early[ChannelJawOpen] != 0 {
		t.Errorf("no prewarm expected outside the window, got %f", early[ChannelJawOpen])
	}

	// A jaw the sample already opens wider is left alone.
	open := Prewarm(map[string]float64{ChannelJawOpen: 0.5}, preds, 100*time.Millisecond)
	if open[ChannelJawOpen] != 0.5 {
		t.Errorf("prewarm must never reduce the jaw, got %f", open[ChannelJawOpen])
	}
}

func TestPrewarmIgnoresPastPredictions(t *testing.T) {
	preds := []Prediction{{At: 50 * time.Millisecond, Confidence: 1}}
	sample := Prewarm(map[string]float64{}, preds, 60*time.Millisecond)
	if sample[ChannelJawOpen] != 0 {
		t.Errorf("a prediction already behind the playhead must not boost, got %f", sample[ChannelJawOpen])
	}
}

func TestIdleAnimatorRanges(t *testing.T) {
	ia := NewIdleAnimator()

	for i := 0; i < 600; i++ {
		t0 := float64(i) * 0.016
		out := ia.Sample(t0)
		for name, w := range out {
			if w < 0 || w > 1 {
				t.Errorf("t=%f %s out of range: %f", t0, name, w)
			}
		}
	}
}

func TestIdleAnimatorBlinks(t *testing.T) {
	ia := NewIdleAnimator()

	blinked := false
	for i := 0; i < 1500; i++ {
		out := ia.Sample(float64(i) * 0.008) // 12 seconds, above the max gap
		if out[ChannelBlinkLeft] > 0.5 {
			blinked = true
			if out[ChannelBlinkLeft] != out[ChannelBlinkRight] {
				t.Errorf("eyelids should blink together")
			}
		}
	}
	if !blinked {
		t.Error("expected at least one blink within 12 seconds")
	}
}

func TestIdleAnimatorDisabled(t *testing.T) {
	ia := NewIdleAnimator()
	ia.SetEnabled(false)
	if out := ia.Sample(1.0); len(out) != 0 {
		t.Errorf("disabled animator should emit nothing, got %v", out)
	}
}

func TestMergeIdleNeverOverridesSpeakingMouth(t *testing.T) {
	speech := map[string]float64{"viseme_aa": 0.6, "jawOpen": 0.5}
	idle := map[string]float64{"jawOpen": 0.2, "chestRise": 0.3, "viseme_aa": 0.1}

	out := MergeIdle(speech, idle)

	if out["jawOpen"] != 0.5 {
		t.Errorf("active mouth channel must keep its speech value, got %f", out["jawOpen"])
	}
	if out["viseme_aa"] != 0.6 {
		t.Errorf("active viseme must keep its speech value, got %f", out["viseme_aa"])
	}
	if out["chestRise"] != 0.3 {
		t.Errorf("idle-only channel should pass through, got %f", out["chestRise"])
	}
}

func TestMergeIdleAddsWhenMouthSilent(t *testing.T) {
	speech := map[string]float64{"browInnerUp": 0.2}
	idle := map[string]float64{"jawOpen": 0.04, "browInnerUp": 0.1}

	out := MergeIdle(speech, idle)

	if out["jawOpen"] != 0.04 {
		t.Errorf("idle jaw motion should apply while not speaking, got %f", out["jawOpen"])
	}
	if diff := out["browInnerUp"] - 0.3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("non-mouth channels add: expected 0.3, got %f", out["browInnerUp"])
	}
}
