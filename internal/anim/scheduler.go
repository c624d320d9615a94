package anim

import (
	"sync"
	"time"
)

// Phase is the interpolation state of a single channel.
type Phase int

const (
	PhaseRest Phase = iota
	PhaseRampIn
	PhaseHold
	PhaseRampOut
)

func (p Phase) String() string {
	switch p {
	case PhaseRampIn:
		return "ramp-in"
	case PhaseHold:
		return "hold"
	case PhaseRampOut:
		return "ramp-out"
	default:
		return "rest"
	}
}

// Prediction is an estimated future viseme event derived from the current
// speech rate. Confidence decays linearly with distance.
type Prediction struct {
	At         time.Duration
	Confidence float64
}

const (
	// leadIn is the virtual ramp window before the first keyframe, so
	// channels rise from rest instead of popping.
	leadIn = 80 * time.Millisecond

	// rateWindow is how many recent keyframe gaps feed the speech-rate
	// estimate.
	rateWindow = 6

	phaseEpsilon = 1e-3
)

// Scheduler consumes an ordered keyframe stream and produces continuous
// channel weights at arbitrary sample times. It is pull-based: the producer
// tick calls Sample with the current playback position.
type Scheduler struct {
	mu sync.Mutex

	frames []Keyframe
	lastAt time.Duration
	primed bool

	gaps []time.Duration

	lookahead int

	phases     map[string]Phase
	lastSample map[string]float64
}

// NewScheduler returns a scheduler with the default lookahead depth of 3.
func NewScheduler() *Scheduler {
	return &Scheduler{
		lookahead:  3,
		phases:     make(map[string]Phase),
		lastSample: make(map[string]float64),
	}
}

// SetLookahead adjusts how many future events Predictions estimates.
func (s *Scheduler) SetLookahead(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.lookahead = n
	}
}

// Push appends a keyframe. Timestamps must be strictly increasing; a stale
// keyframe is rejected, never reordered.
func (s *Scheduler) Push(kf Keyframe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.primed && kf.At <= s.lastAt {
		return ErrNonMonotonic
	}

	if s.primed {
		s.gaps = append(s.gaps, kf.At-s.lastAt)
		if len(s.gaps) > rateWindow {
			s.gaps = s.gaps[len(s.gaps)-rateWindow:]
		}
	}

	s.frames = append(s.frames, kf)
	s.lastAt = kf.At
	s.primed = true
	return nil
}

// Reset clears all buffered keyframes and rate state so a new utterance can
// start its timeline at zero. Phase tracking carries over so ramp detection
// stays continuous across utterances.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = nil
	s.gaps = nil
	s.lastAt = 0
	s.primed = false
}

// Pending returns the number of buffered keyframes.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Sample evaluates every active channel at the given playback position.
// Between keyframes each channel follows a four-point Catmull-Rom spline;
// before the first keyframe it ramps up from rest over the lead-in window;
// past the last keyframe it holds.
func (s *Scheduler) Sample(at time.Duration) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.sampleLocked(at)
	s.trackPhases(out)
	return out
}

func (s *Scheduler) sampleLocked(at time.Duration) map[string]float64 {
	if len(s.frames) == 0 {
		return map[string]float64{}
	}

	first := s.frames[0]
	if at < first.At {
		lead := first.At - leadIn
		if at < lead {
			return map[string]float64{}
		}
		t := float64(at-lead) / float64(leadIn)
		out := make(map[string]float64, len(first.Channels))
		for name, w := range first.Channels {
			out[name] = CatmullRom(0, 0, w, w, t)
		}
		return out
	}

	// Find the active interval.
	idx := len(s.frames) - 1
	for i := 0; i+1 < len(s.frames); i++ {
		if at >= s.frames[i].At && at < s.frames[i+1].At {
			idx = i
			break
		}
	}

	// Drop frames that can no longer influence interpolation; keep one
	// behind the current interval for the spline's p0.
	if idx > 1 {
		s.frames = s.frames[idx-1:]
		idx = 1
	}

	cur := s.frames[idx]
	if idx == len(s.frames)-1 {
		// Past the last keyframe: hold.
		out := make(map[string]float64, len(cur.Channels))
		for name, w := range cur.Channels {
			out[name] = clamp01(w)
		}
		return out
	}

	next := s.frames[idx+1]
	t := float64(at-cur.At) / float64(next.At-cur.At)

	union := make(map[string]struct{}, len(cur.Channels)+len(next.Channels))
	for name := range cur.Channels {
		union[name] = struct{}{}
	}
	for name := range next.Channels {
		union[name] = struct{}{}
	}

	out := make(map[string]float64, len(union))
	for name := range union {
		p1 := cur.Channels[name]
		p2 := next.Channels[name]

		p0 := p1
		if idx > 0 {
			if v, ok := s.frames[idx-1].Channels[name]; ok {
				p0 = v
			} else {
				p0 = 0
			}
		}

		// Next-next keyframe approximated by reusing next when absent.
		p3 := p2
		if idx+2 < len(s.frames) {
			if v, ok := s.frames[idx+2].Channels[name]; ok {
				p3 = v
			} else {
				p3 = 0
			}
		}

		out[name] = CatmullRom(p0, p1, p2, p3, t)
	}
	return out
}

func (s *Scheduler) trackPhases(sample map[string]float64) {
	for name, w := range sample {
		prev := s.lastSample[name]
		switch {
		case w < phaseEpsilon:
			s.phases[name] = PhaseRest
		case w > prev+phaseEpsilon:
			s.phases[name] = PhaseRampIn
		case w < prev-phaseEpsilon:
			s.phases[name] = PhaseRampOut
		default:
			s.phases[name] = PhaseHold
		}
		s.lastSample[name] = w
	}
	for name := range s.lastSample {
		if _, ok := sample[name]; !ok {
			s.phases[name] = PhaseRest
			s.lastSample[name] = 0
		}
	}
}

// Phase returns the interpolation phase of a channel as of the last Sample.
func (s *Scheduler) Phase(name string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases[name]
}

// Predictions estimates timestamps for the next lookahead viseme events from
// the current speech rate. Confidence decays linearly: with depth N the k-th
// prediction carries 1-k/(N+1).
func (s *Scheduler) Predictions(at time.Duration) []Prediction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.gaps) == 0 {
		return nil
	}

	var sum time.Duration
	for _, g := range s.gaps {
		sum += g
	}
	gap := sum / time.Duration(len(s.gaps))
	if gap <= 0 {
		return nil
	}

	base := s.lastAt
	if at > base {
		base = at
	}

	out := make([]Prediction, s.lookahead)
	for k := 1; k <= s.lookahead; k++ {
		out[k-1] = Prediction{
			At:         base + time.Duration(k)*gap,
			Confidence: 1 - float64(k)/float64(s.lookahead+1),
		}
	}
	return out
}

const (
	// prewarmWindow is how far ahead of a predicted viseme event the jaw
	// starts easing open.
	prewarmWindow = leadIn

	// prewarmMax caps the anticipatory jaw opening at full confidence.
	prewarmMax = 0.2
)

// Prewarm raises the jaw floor ahead of the next predicted viseme event so
// the ramp-in begins before the keyframe lands instead of popping. The boost
// grows as the event approaches, scaled by prediction confidence; a jaw the
// sample already opens wider is left alone. The map is modified in place and
// returned.
func Prewarm(sample map[string]float64, preds []Prediction, at time.Duration) map[string]float64 {
	for _, p := range preds {
		lead := p.At - at
		if lead <= 0 || lead > prewarmWindow {
			continue
		}
		w := p.Confidence * (1 - float64(lead)/float64(prewarmWindow)) * prewarmMax
		if w > sample[ChannelJawOpen] {
			sample[ChannelJawOpen] = w
		}
		break
	}
	return sample
}

// Stop cancels the utterance at the given position: pending keyframes and
// lookahead state are cleared, and a single zero keyframe for every
// mouth-region channel seen so far is queued so the consumer damps the mouth
// shut. Non-mouth channels are left alone.
func (s *Scheduler) Stop(at time.Duration) Keyframe {
	s.mu.Lock()
	defer s.mu.Unlock()

	zero := Keyframe{At: at, Channels: make(map[string]float64)}
	for _, kf := range s.frames {
		for name := range kf.Channels {
			if IsMouthChannel(name) {
				zero.Channels[name] = 0
			}
		}
	}
	for name := range s.lastSample {
		if IsMouthChannel(name) {
			zero.Channels[name] = 0
		}
	}

	s.frames = []Keyframe{zero}
	s.gaps = nil
	s.lastAt = at
	s.primed = true

	for name := range zero.Channels {
		s.phases[name] = PhaseRest
		s.lastSample[name] = 0
	}

	return zero
}
