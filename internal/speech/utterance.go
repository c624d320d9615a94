package speech

import (
	"time"

	"github.com/normanking/avatarsync/internal/anim"
	"github.com/normanking/avatarsync/internal/emotion"
	"github.com/normanking/avatarsync/internal/phoneme"
)

// Phoneme durations. Vowels carry the syllable; fricatives are audibly
// sustained; everything else is a short closure.
const (
	vowelDuration     = 100 * time.Millisecond
	fricativeDuration = 80 * time.Millisecond
	defaultDuration   = 60 * time.Millisecond
	silenceDuration   = 80 * time.Millisecond
)

var fricatives = map[string]bool{
	"f": true, "v": true, "s": true, "z": true,
	"th": true, "dh": true, "sh": true, "zh": true, "h": true,
}

func phonemeDuration(sym string) time.Duration {
	switch {
	case sym == "sil":
		return silenceDuration
	case phoneme.IsVowel(sym):
		return vowelDuration
	case fricatives[sym]:
		return fricativeDuration
	default:
		return defaultDuration
	}
}

// Utterance is the producer-ready form of one piece of speech: emotion-
// modulated keyframes on the shared channel namespace, plus total duration
// for the playback clock.
type Utterance struct {
	Text      string
	Emotion   emotion.State
	Keyframes []anim.Keyframe
	Duration  time.Duration
}

// Synthesize runs the full text pipeline: phonemes, visemes, co-articulation,
// emotional modulation, timing. The emotion's auxiliary expression shapes
// ride along on every keyframe so face and mouth move together.
func Synthesize(text string) Utterance {
	phonemes := phoneme.TextToPhonemes(text)
	vectors := phoneme.Coarticulate(phonemes, phoneme.ToVisemes(phonemes))

	state := emotion.Analyze(text)
	expr := emotion.BlendShapes(state.Label, state.Intensity)

	u := Utterance{Text: text, Emotion: state}
	at := time.Duration(0)
	for i, sym := range phonemes {
		vec := emotion.Modulate(vectors[i], state.Label, state.Intensity)

		channels := vec.Channels()
		for name, w := range expr {
			channels[name] = w
		}

		u.Keyframes = append(u.Keyframes, anim.Keyframe{At: at, Channels: channels})
		at += phonemeDuration(sym)
	}
	u.Duration = at

	return u
}
