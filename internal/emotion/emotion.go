// Package emotion scores text against a fixed keyword table and modulates
// viseme vectors and auxiliary expression channels accordingly.
package emotion

import (
	"strings"

	"github.com/normanking/avatarsync/internal/phoneme"
)

// Label identifies an emotion.
type Label string

const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Sad       Label = "sad"
	Excited   Label = "excited"
	Thinking  Label = "thinking"
	Surprised Label = "surprised"
	Confused  Label = "confused"
)

// labelOrder fixes the declaration order used for arg-max tie-breaking:
// the first label to reach the top score wins.
var labelOrder = []Label{Neutral, Happy, Sad, Excited, Thinking, Surprised, Confused}

// keywords is the fixed scoring table. Matching is substring-based on
// lowercased text, one point per occurrence.
var keywords = map[Label][]string{
	Happy:     {"happy", "glad", "great", "wonderful", "love", "nice", "good", "smile", "thanks", "thank you"},
	Sad:       {"sad", "sorry", "unfortunate", "bad", "miss", "lost", "cry", "regret"},
	Excited:   {"excited", "amazing", "awesome", "fantastic", "incredible", "wow", "can't wait", "yes!"},
	Thinking:  {"hmm", "think", "consider", "perhaps", "maybe", "wonder", "let me see"},
	Surprised: {"surprised", "what!", "really", "no way", "unexpected", "whoa", "oh!"},
	Confused:  {"confused", "unclear", "don't understand", "what do you mean", "puzzled", "huh"},
}

// State is a detected or overridden emotion with its intensity and the raw
// per-label score breakdown.
type State struct {
	Label     Label
	Intensity float64
	Scores    map[Label]float64
}

// Analyze scores the text against the keyword table and returns the dominant
// emotion. Ties resolve to the earlier-declared label. Text with no matches
// is neutral with a low resting intensity.
func Analyze(text string) State {
	lower := strings.ToLower(text)
	scores := make(map[Label]float64, len(labelOrder))

	for _, label := range labelOrder {
		var score float64
		for _, kw := range keywords[label] {
			score += float64(strings.Count(lower, kw))
		}
		scores[label] = score
	}

	best := Neutral
	bestScore := 0.0
	for _, label := range labelOrder {
		if scores[label] > bestScore {
			best = label
			bestScore = scores[label]
		}
	}

	intensity := 0.3
	if bestScore > 0 {
		intensity = clamp01(0.4 + 0.2*bestScore)
	}

	return State{Label: best, Intensity: intensity, Scores: scores}
}

// modifier holds the per-emotion multiplicative factors applied to viseme
// channels: overall energy, designated open channels, designated smile
// channels.
type modifier struct {
	Energy float64
	Open   float64
	Smile  float64
}

var modifiers = map[Label]modifier{
	Neutral:   {1.0, 1.0, 1.0},
	Happy:     {1.1, 1.05, 1.3},
	Sad:       {0.8, 0.9, 0.6},
	Excited:   {1.3, 1.2, 1.4},
	Thinking:  {0.9, 0.95, 1.0},
	Surprised: {1.2, 1.4, 1.0},
	Confused:  {0.95, 1.1, 0.9},
}

// openClasses widen when the emotion raises vocal energy.
var openClasses = map[phoneme.VisemeClass]bool{
	phoneme.VisemeAA: true,
	phoneme.VisemeO:  true,
	phoneme.VisemeU:  true,
}

// smileClasses spread toward a smile.
var smileClasses = map[phoneme.VisemeClass]bool{
	phoneme.VisemeE: true,
	phoneme.VisemeI: true,
}

// Modulate rescales a viseme vector for an emotion, blending the modified
// value back toward the original by intensity and clamping to [0,1]. The
// silence class is never modulated.
func Modulate(vec phoneme.Vector, label Label, intensity float64) phoneme.Vector {
	mod, ok := modifiers[label]
	if !ok {
		mod = modifiers[Neutral]
	}
	intensity = clamp01(intensity)

	out := make(phoneme.Vector, len(vec))
	for class, w := range vec {
		if class == phoneme.VisemeSil {
			out[class] = w
			continue
		}

		modified := w * mod.Energy
		if openClasses[class] {
			modified *= mod.Open
		}
		if smileClasses[class] {
			modified *= mod.Smile
		}

		out[class] = clamp01(w*(1-intensity) + modified*intensity)
	}
	return out
}

// expressionShapes lists the auxiliary non-viseme channels each emotion
// contributes, at full intensity. Grounded in the avatar's expression
// presets; scaled by intensity at emit time.
var expressionShapes = map[Label]map[string]float64{
	Neutral: {},
	Happy: {
		"mouthSmileLeft":   0.4,
		"mouthSmileRight":  0.4,
		"cheekSquintLeft":  0.25,
		"cheekSquintRight": 0.25,
	},
	Sad: {
		"browInnerUp":     0.4,
		"browDownLeft":    0.1,
		"browDownRight":   0.1,
		"mouthFrownLeft":  0.25,
		"mouthFrownRight": 0.25,
	},
	Excited: {
		"browOuterUpLeft":  0.3,
		"browOuterUpRight": 0.3,
		"eyeWideLeft":      0.35,
		"eyeWideRight":     0.35,
		"mouthSmileLeft":   0.45,
		"mouthSmileRight":  0.45,
	},
	Thinking: {
		"browInnerUp":    0.25,
		"eyeLookUpLeft":  0.3,
		"eyeLookUpRight": 0.3,
	},
	Surprised: {
		"browInnerUp":      0.4,
		"browOuterUpLeft":  0.3,
		"browOuterUpRight": 0.3,
		"eyeWideLeft":      0.4,
		"eyeWideRight":     0.4,
		"jawOpen":          0.2,
	},
	Confused: {
		"browDownLeft":    0.2,
		"browInnerUp":     0.3,
		"mouthPressLeft":  0.15,
		"mouthPressRight": 0.15,
	},
}

// BlendShapes emits the sparse auxiliary expression channels for an emotion,
// scaled by intensity. The names share the outgoing channel namespace with
// the viseme channels.
func BlendShapes(label Label, intensity float64) map[string]float64 {
	shapes, ok := expressionShapes[label]
	if !ok {
		return map[string]float64{}
	}
	intensity = clamp01(intensity)

	out := make(map[string]float64, len(shapes))
	for name, w := range shapes {
		scaled := clamp01(w * intensity)
		if scaled > 0 {
			out[name] = scaled
		}
	}
	return out
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
