// Package phoneme converts text to phoneme symbols and phoneme symbols to
// sparse 15-class viseme vectors. The text conversion is a rule-based
// approximation, not a real grapheme-to-phoneme system.
package phoneme

import (
	"strings"
)

// VisemeClass identifies one of the 15 Oculus-style viseme classes.
type VisemeClass int

const (
	VisemeSil VisemeClass = 0  // silence
	VisemePP  VisemeClass = 1  // p, b, m
	VisemeFF  VisemeClass = 2  // f, v
	VisemeTH  VisemeClass = 3  // th, dh
	VisemeDD  VisemeClass = 4  // t, d
	VisemeKK  VisemeClass = 5  // k, g, ng
	VisemeCH  VisemeClass = 6  // ch, jh, sh, zh
	VisemeSS  VisemeClass = 7  // s, z
	VisemeNN  VisemeClass = 8  // n, l
	VisemeRR  VisemeClass = 9  // r, er
	VisemeAA  VisemeClass = 10 // open vowels
	VisemeE   VisemeClass = 11 // spread mid vowels
	VisemeI   VisemeClass = 12 // spread close vowels
	VisemeO   VisemeClass = 13 // rounded mid vowels
	VisemeU   VisemeClass = 14 // rounded close vowels

	VisemeCount = 15
)

// channelNames maps viseme classes to their blend-shape channel names. These
// match the morph target naming used by the avatar meshes.
var channelNames = [VisemeCount]string{
	"viseme_sil",
	"viseme_PP",
	"viseme_FF",
	"viseme_TH",
	"viseme_DD",
	"viseme_kk",
	"viseme_CH",
	"viseme_SS",
	"viseme_nn",
	"viseme_RR",
	"viseme_aa",
	"viseme_E",
	"viseme_I",
	"viseme_O",
	"viseme_U",
}

// ChannelName returns the blend-shape channel name for a viseme class.
func ChannelName(c VisemeClass) string {
	if c < 0 || c >= VisemeCount {
		return channelNames[VisemeSil]
	}
	return channelNames[c]
}

// ChannelNames returns all 15 viseme channel names in class order.
func ChannelNames() []string {
	return channelNames[:]
}

// Vector is a sparse viseme vector: only active classes are present, and
// every intensity is in [0,1].
type Vector map[VisemeClass]float64

// Clone returns a copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, w := range v {
		out[k] = w
	}
	return out
}

// Channels converts the vector into named blend-shape channels.
func (v Vector) Channels() map[string]float64 {
	out := make(map[string]float64, len(v))
	for c, w := range v {
		out[ChannelName(c)] = clamp01(w)
	}
	return out
}

// visemeTable maps phoneme symbols to viseme vectors. Unknown symbols are
// handled by ToVisemes, which falls back to silence.
var visemeTable = map[string]Vector{
	"sil": {VisemeSil: 1.0},

	"p": {VisemePP: 1.0},
	"b": {VisemePP: 1.0},
	"m": {VisemePP: 1.0},

	"f": {VisemeFF: 1.0},
	"v": {VisemeFF: 1.0},

	"th": {VisemeTH: 1.0},
	"dh": {VisemeTH: 1.0},

	"t": {VisemeDD: 1.0},
	"d": {VisemeDD: 1.0},

	"k":  {VisemeKK: 1.0},
	"g":  {VisemeKK: 1.0},
	"ng": {VisemeKK: 1.0},

	"ch": {VisemeCH: 1.0},
	"jh": {VisemeCH: 1.0},
	"sh": {VisemeCH: 1.0},
	"zh": {VisemeCH: 1.0},

	"s": {VisemeSS: 1.0},
	"z": {VisemeSS: 1.0},

	"n": {VisemeNN: 1.0},
	"l": {VisemeNN: 1.0},

	"r":  {VisemeRR: 1.0},
	"er": {VisemeRR: 1.0},

	"aa": {VisemeAA: 1.0},
	"ah": {VisemeAA: 1.0},
	"ae": {VisemeAA: 0.9},
	"ao": {VisemeAA: 0.8, VisemeO: 0.3},
	"aw": {VisemeAA: 0.8, VisemeU: 0.3},
	"ay": {VisemeAA: 0.8, VisemeI: 0.3},
	"h":  {VisemeAA: 0.6},

	"eh": {VisemeE: 1.0},
	"ey": {VisemeE: 0.9, VisemeI: 0.3},

	"ih": {VisemeI: 1.0},
	"iy": {VisemeI: 1.0},
	"y":  {VisemeI: 0.8},

	"ow": {VisemeO: 1.0},
	"oy": {VisemeO: 0.8, VisemeI: 0.3},

	"uh": {VisemeU: 1.0},
	"uw": {VisemeU: 1.0},
	"w":  {VisemeU: 0.8},
}

// digraphs are two-letter sequences treated as a single phoneme during text
// conversion. Order matters: checked before single letters.
var digraphs = map[string]string{
	"th": "th",
	"ch": "ch",
	"sh": "sh",
	"ph": "f",
	"wh": "w",
	"ng": "ng",
	"ee": "iy",
	"oo": "uw",
	"ou": "aw",
	"ay": "ey",
	"ai": "ey",
	"oa": "ow",
}

// letters maps single letters to phoneme symbols.
var letters = map[byte]string{
	'a': "aa", 'e': "eh", 'i': "ih", 'o': "ow", 'u': "uh",
	'b': "b", 'c': "k", 'd': "d", 'f': "f", 'g': "g",
	'h': "h", 'j': "jh", 'k': "k", 'l': "l", 'm': "m",
	'n': "n", 'p': "p", 'q': "k", 'r': "r", 's': "s",
	't': "t", 'v': "v", 'w': "w", 'x': "k", 'y': "y",
	'z': "z",
}

// TextToPhonemes converts text to an ordered phoneme sequence using fixed
// pattern substitution. Word and sentence boundaries become silence.
func TextToPhonemes(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}

	out := make([]string, 0, len(text))
	emitSil := func() {
		// collapse runs of silence
		if len(out) == 0 || out[len(out)-1] != "sil" {
			out = append(out, "sil")
		}
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\n',
			ch == '.' || ch == ',' || ch == '!' || ch == '?' || ch == ';' || ch == ':':
			emitSil()
			continue
		case ch < 'a' || ch > 'z':
			continue
		}

		if i+1 < len(text) {
			if sym, ok := digraphs[text[i:i+2]]; ok {
				out = append(out, sym)
				i++
				continue
			}
		}

		if sym, ok := letters[ch]; ok {
			out = append(out, sym)
		}
	}

	return out
}

// ToVisemes maps phoneme symbols through the static viseme table. Unknown
// symbols fail soft to the silence class rather than erroring.
func ToVisemes(phonemes []string) []Vector {
	out := make([]Vector, len(phonemes))
	for i, sym := range phonemes {
		if vec, ok := visemeTable[sym]; ok {
			out[i] = vec.Clone()
		} else {
			out[i] = Vector{VisemeSil: 1.0}
		}
	}
	return out
}

// IsVowel reports whether a phoneme symbol is a vowel. Used by utterance
// timing to give vowels longer durations.
func IsVowel(sym string) bool {
	switch sym {
	case "aa", "ae", "ah", "ao", "aw", "ay", "eh", "er", "ey",
		"ih", "iy", "ow", "oy", "uh", "uw":
		return true
	}
	return false
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
