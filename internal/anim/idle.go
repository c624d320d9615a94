package anim

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Idle channel names. Chest and shoulder motion are body channels carried in
// the same namespace as the facial blend shapes.
const (
	ChannelChestRise    = "chestRise"
	ChannelShoulderLift = "shoulderLift"
	ChannelNostrilLeft  = "noseSneerLeft"
	ChannelNostrilRight = "noseSneerRight"
	ChannelJawOpen      = "jawOpen"
	ChannelBlinkLeft    = "eyeBlinkLeft"
	ChannelBlinkRight   = "eyeBlinkRight"

	ChannelLookUpLeft    = "eyeLookUpLeft"
	ChannelLookUpRight   = "eyeLookUpRight"
	ChannelLookDownLeft  = "eyeLookDownLeft"
	ChannelLookDownRight = "eyeLookDownRight"
	ChannelLookInLeft    = "eyeLookInLeft"
	ChannelLookInRight   = "eyeLookInRight"
	ChannelLookOutLeft   = "eyeLookOutLeft"
	ChannelLookOutRight  = "eyeLookOutRight"
)

type blinkState int

const (
	blinkIdle blinkState = iota
	blinkActive
)

// IdleAnimator produces low-frequency breathing micro-motion and a
// probabilistic blink. Its output is merged additively with speech but never
// overrides an actively speaking mouth-region channel.
type IdleAnimator struct {
	mu sync.Mutex

	enabled   bool
	intensity float64

	breathRate     float64 // Hz
	breathAmp      float64
	shoulderAmp    float64
	nostrilAmp     float64
	jawAmp         float64
	breathPhaseOff float64

	blink         blinkState
	blinkStart    float64
	blinkDuration float64
	nextBlinkAt   float64
	minBlinkGap   time.Duration
	maxBlinkGap   time.Duration

	gazeX, gazeY             float64
	gazeTargetX, gazeTargetY float64
	nextSaccadeAt            float64
	lastSampleT              float64

	rng *rand.Rand
}

// NewIdleAnimator returns an idle generator with the default breathing and
// blink parameters.
func NewIdleAnimator() *IdleAnimator {
	ia := &IdleAnimator{
		enabled:     true,
		intensity:   1.0,
		breathRate:  0.22,
		breathAmp:   0.35,
		shoulderAmp: 0.12,
		nostrilAmp:  0.08,
		jawAmp:      0.04,
		minBlinkGap: 2 * time.Second,
		maxBlinkGap: 6 * time.Second,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	ia.breathPhaseOff = ia.rng.Float64() * 2 * math.Pi
	ia.nextBlinkAt = ia.randomGap()
	return ia
}

// SetEnabled toggles idle output. Disabled, Sample returns nothing.
func (ia *IdleAnimator) SetEnabled(enabled bool) {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.enabled = enabled
}

// SetIntensity scales all idle amplitudes, clamped to [0,1].
func (ia *IdleAnimator) SetIntensity(intensity float64) {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.intensity = clamp01(intensity)
}

// SetBlinkGap adjusts the inter-blink interval bounds.
func (ia *IdleAnimator) SetBlinkGap(min, max time.Duration) {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	if min > 0 && max > min {
		ia.minBlinkGap = min
		ia.maxBlinkGap = max
	}
}

func (ia *IdleAnimator) randomGap() float64 {
	span := ia.maxBlinkGap - ia.minBlinkGap
	return (ia.minBlinkGap + time.Duration(ia.rng.Float64()*float64(span))).Seconds()
}

func (ia *IdleAnimator) randomBlinkDuration() float64 {
	// 100-250 ms
	return 0.1 + ia.rng.Float64()*0.15
}

// Sample evaluates the idle signal at an absolute time in seconds since the
// animator's epoch. Breathing channels follow low-frequency sinusoids; the
// eyelids follow a sinusoidal profile over each blink.
func (ia *IdleAnimator) Sample(t float64) map[string]float64 {
	ia.mu.Lock()
	defer ia.mu.Unlock()

	if !ia.enabled || ia.intensity <= 0 {
		return map[string]float64{}
	}

	out := make(map[string]float64, 7)

	breath := (math.Sin(2*math.Pi*ia.breathRate*t+ia.breathPhaseOff) + 1) / 2
	out[ChannelChestRise] = clamp01(breath * ia.breathAmp * ia.intensity)
	out[ChannelShoulderLift] = clamp01(breath * ia.shoulderAmp * ia.intensity)

	// Nostrils flare slightly ahead of the chest.
	nostril := (math.Sin(2*math.Pi*ia.breathRate*t+ia.breathPhaseOff+0.6) + 1) / 2
	out[ChannelNostrilLeft] = clamp01(nostril * ia.nostrilAmp * ia.intensity)
	out[ChannelNostrilRight] = out[ChannelNostrilLeft]

	out[ChannelJawOpen] = clamp01(breath * ia.jawAmp * ia.intensity)

	blink := ia.blinkAmount(t)
	out[ChannelBlinkLeft] = blink
	out[ChannelBlinkRight] = blink

	ia.sampleGaze(t, out)

	return out
}

// sampleGaze drifts the eyes through small saccades: a new fixation target
// every 1-4s, moved toward quickly so the jump reads as a dart, not a sweep.
func (ia *IdleAnimator) sampleGaze(t float64, out map[string]float64) {
	dt := t - ia.lastSampleT
	if dt < 0 || dt > 1 {
		dt = 0
	}
	ia.lastSampleT = t

	if t >= ia.nextSaccadeAt {
		ia.gazeTargetX = (ia.rng.Float64()*2 - 1) * 0.3
		ia.gazeTargetY = (ia.rng.Float64()*2 - 1) * 0.2
		ia.nextSaccadeAt = t + 1 + ia.rng.Float64()*3
	}

	// ~95% of the distance in 100ms.
	k := 1 - math.Pow(0.05, dt/0.1)
	ia.gazeX += (ia.gazeTargetX - ia.gazeX) * k
	ia.gazeY += (ia.gazeTargetY - ia.gazeY) * k

	scale := ia.intensity
	if ia.gazeY > 0 {
		out[ChannelLookUpLeft] = clamp01(ia.gazeY * scale)
		out[ChannelLookUpRight] = out[ChannelLookUpLeft]
	} else {
		out[ChannelLookDownLeft] = clamp01(-ia.gazeY * scale)
		out[ChannelLookDownRight] = out[ChannelLookDownLeft]
	}
	if ia.gazeX > 0 {
		out[ChannelLookOutRight] = clamp01(ia.gazeX * scale)
		out[ChannelLookInLeft] = out[ChannelLookOutRight]
	} else {
		out[ChannelLookOutLeft] = clamp01(-ia.gazeX * scale)
		out[ChannelLookInRight] = out[ChannelLookOutLeft]
	}
}

func (ia *IdleAnimator) blinkAmount(t float64) float64 {
	switch ia.blink {
	case blinkIdle:
		if t >= ia.nextBlinkAt {
			ia.blink = blinkActive
			ia.blinkStart = t
			ia.blinkDuration = ia.randomBlinkDuration()
		}
		return 0

	case blinkActive:
		progress := (t - ia.blinkStart) / ia.blinkDuration
		if progress >= 1 {
			ia.blink = blinkIdle
			ia.nextBlinkAt = t + ia.randomGap()
			return 0
		}
		// Half sine: closed at the midpoint of the blink.
		return clamp01(math.Sin(progress * math.Pi))
	}
	return 0
}

// MergeIdle additively merges the idle signal into a speech sample. A
// mouth-region channel that speech is actively driving keeps its speech
// value; everything else sums and clamps.
func MergeIdle(speech, idle map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(speech)+len(idle))
	for name, w := range speech {
		out[name] = clamp01(w)
	}
	for name, w := range idle {
		if cur, ok := out[name]; ok && IsMouthChannel(name) && cur > 0 {
			continue
		}
		out[name] = clamp01(out[name] + w)
	}
	return out
}
