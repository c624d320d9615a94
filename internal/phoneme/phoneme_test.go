package phoneme

import (
	"testing"
)

func TestToVisemesKnownSymbols(t *testing.T) {
	vectors := ToVisemes([]string{"p", "aa"})

	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if w := vectors[0][VisemePP]; w != 1.0 {
		t.Errorf("expected p -> {PP:1.0}, got %f", w)
	}
	if len(vectors[0]) != 1 {
		t.Errorf("p vector should have exactly one channel, got %d", len(vectors[0]))
	}
	if w := vectors[1][VisemeAA]; w != 1.0 {
		t.Errorf("expected aa -> {aa:1.0}, got %f", w)
	}
}

func TestToVisemesUnknownFailsSoftToSilence(t *testing.T) {
	vectors := ToVisemes([]string{"xx", "glottal"})

	for i, v := range vectors {
		if w := v[VisemeSil]; w != 1.0 {
			t.Errorf("vector %d: unknown symbol should map to silence, got %v", i, v)
		}
	}
}

func TestVisemeTableWeightsInRange(t *testing.T) {
	for sym, vec := range visemeTable {
		for c, w := range vec {
			if w < 0 || w > 1 {
				t.Errorf("symbol %q class %d has out-of-range weight %f", sym, c, w)
			}
			if c < 0 || c >= VisemeCount {
				t.Errorf("symbol %q has invalid class %d", sym, c)
			}
		}
	}
}

func TestTextToPhonemes(t *testing.T) {
	phonemes := TextToPhonemes("mama")
	want := []string{"m", "aa", "m", "aa"}
	if len(phonemes) != len(want) {
		t.Fatalf("expected %v, got %v", want, phonemes)
	}
	for i := range want {
		if phonemes[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], phonemes[i])
		}
	}
}

func TestTextToPhonemesDigraphs(t *testing.T) {
	phonemes := TextToPhonemes("this")
	if len(phonemes) == 0 || phonemes[0] != "th" {
		t.Errorf("expected leading th digraph, got %v", phonemes)
	}

	phonemes = TextToPhonemes("moon")
	// m, uw (from oo), n
	if len(phonemes) != 3 || phonemes[1] != "uw" {
		t.Errorf("expected oo -> uw, got %v", phonemes)
	}
}

func TestTextToPhonemesBoundariesBecomeSilence(t *testing.T) {
	phonemes := TextToPhonemes("hi there")
	sawSil := false
	for _, p := range phonemes {
		if p == "sil" {
			sawSil = true
		}
	}
	if !sawSil {
		t.Errorf("word boundary should produce silence, got %v", phonemes)
	}

	phonemes = TextToPhonemes("a.  b")
	count := 0
	for _, p := range phonemes {
		if p == "sil" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("runs of boundaries should collapse to one silence, got %v", phonemes)
	}
}

func TestCoarticulateNoRuleLeavesVectorsUntouched(t *testing.T) {
	// No p_aa rule exists, so both vectors pass through unchanged.
	phonemes := []string{"p", "aa"}
	vectors := Coarticulate(phonemes, ToVisemes(phonemes))

	if w := vectors[0][VisemePP]; w != 1.0 {
		t.Errorf("p vector changed without a rule: %v", vectors[0])
	}
	if len(vectors[0]) != 1 {
		t.Errorf("p vector gained channels without a rule: %v", vectors[0])
	}
	if w := vectors[1][VisemeAA]; w != 1.0 {
		t.Errorf("aa vector changed without a rule: %v", vectors[1])
	}
}

func TestCoarticulateConvexBlend(t *testing.T) {
	// m_aa has a rule; the result must lie between the two source weights
	// on every channel.
	phonemes := []string{"m", "aa"}
	original := ToVisemes(phonemes)
	left := original[0].Clone()
	right := original[1].Clone()

	vectors := Coarticulate(phonemes, original)

	for _, c := range []VisemeClass{VisemePP, VisemeAA} {
		lo, hi := left[c], right[c]
		if lo > hi {
			lo, hi = hi, lo
		}
		got := vectors[0][c]
		if got < lo-1e-9 || got > hi+1e-9 {
			t.Errorf("class %d: blend %f outside [%f, %f]", c, got, lo, hi)
		}
	}

	// Right neighbor is never modified.
	if w := vectors[1][VisemeAA]; w != right[VisemeAA] {
		t.Errorf("right neighbor modified: %v", vectors[1])
	}
}

func TestCoarticulateWeightsStayInRange(t *testing.T) {
	phonemes := TextToPhonemes("the moon went down so soon")
	vectors := Coarticulate(phonemes, ToVisemes(phonemes))

	for i, v := range vectors {
		for c, w := range v {
			if w < 0 || w > 1 {
				t.Errorf("vector %d class %d out of range: %f", i, c, w)
			}
		}
	}
}

func TestChannelName(t *testing.T) {
	if ChannelName(VisemeAA) != "viseme_aa" {
		t.Errorf("unexpected channel name %q", ChannelName(VisemeAA))
	}
	if ChannelName(VisemeClass(99)) != "viseme_sil" {
		t.Errorf("out-of-range class should name silence")
	}
	if len(ChannelNames()) != VisemeCount {
		t.Errorf("expected %d channel names", VisemeCount)
	}
}
