// Package anim turns a discrete keyframe stream into continuous channel
// weights via spline interpolation, and generates idle/breathing motion.
package anim

import (
	"errors"
	"strings"
	"time"
)

// Keyframe is a target channel-weight set at a point on the utterance
// timeline. Keyframes are produced in order and consumed in order.
type Keyframe struct {
	At       time.Duration
	Channels map[string]float64
}

// ErrNonMonotonic is returned when a pushed keyframe does not advance the
// timeline. Timestamps must be strictly increasing.
var ErrNonMonotonic = errors.New("anim: keyframe timestamp not strictly increasing")

// mouthChannels are the expression channels considered part of the mouth
// region in addition to every viseme_* channel. Idle motion never overrides
// these while speech is active, and cancellation zeroes them.
var mouthChannels = map[string]bool{
	"jawOpen":         true,
	"jawForward":      true,
	"mouthClose":      true,
	"mouthFunnel":     true,
	"mouthPucker":     true,
	"mouthSmileLeft":  true,
	"mouthSmileRight": true,
	"mouthFrownLeft":  true,
	"mouthFrownRight": true,
	"mouthPressLeft":  true,
	"mouthPressRight": true,
	"tongueOut":       true,
}

// IsMouthChannel reports whether a channel belongs to the mouth region.
func IsMouthChannel(name string) bool {
	return strings.HasPrefix(name, "viseme_") || mouthChannels[name]
}

// CatmullRom evaluates a four-point Catmull-Rom spline at t in [0,1] between
// p1 and p2, clamped to [0,1]. Callers missing a next-next keyframe pass p2
// again as p3.
func CatmullRom(p0, p1, p2, p3, t float64) float64 {
	if t <= 0 {
		return clamp01(p1)
	}
	if t >= 1 {
		return clamp01(p2)
	}

	t2 := t * t
	t3 := t2 * t

	v := 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)

	return clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
