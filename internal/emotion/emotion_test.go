package emotion

import (
	"testing"

	"github.com/normanking/avatarsync/internal/phoneme"
)

func TestAnalyzeDetectsDominantEmotion(t *testing.T) {
	state := Analyze("This is amazing, wow, absolutely incredible!")
	if state.Label != Excited {
		t.Errorf("expected excited, got %s", state.Label)
	}
	if state.Intensity <= 0.4 {
		t.Errorf("multiple keyword hits should raise intensity, got %f", state.Intensity)
	}
	if state.Scores[Excited] != 3 {
		t.Errorf("expected 3 excited hits, got %f", state.Scores[Excited])
	}
}

func TestAnalyzeNoMatchIsNeutral(t *testing.T) {
	state := Analyze("the quick brown fox")
	if state.Label != Neutral {
		t.Errorf("expected neutral, got %s", state.Label)
	}
	if state.Intensity != 0.3 {
		t.Errorf("expected resting intensity 0.3, got %f", state.Intensity)
	}
}

func TestAnalyzeTieBreaksByDeclarationOrder(t *testing.T) {
	// One happy keyword and one sad keyword: happy is declared first.
	state := Analyze("good but sad")
	if state.Scores[Happy] != state.Scores[Sad] {
		t.Fatalf("test needs a tie, got happy=%f sad=%f", state.Scores[Happy], state.Scores[Sad])
	}
	if state.Label != Happy {
		t.Errorf("tie should resolve to earlier-declared label, got %s", state.Label)
	}
}

func TestAnalyzeIntensityInRange(t *testing.T) {
	texts := []string{
		"", "wow wow wow wow wow wow wow wow",
		"happy sad confused amazing hmm really",
	}
	for _, text := range texts {
		state := Analyze(text)
		if state.Intensity < 0 || state.Intensity > 1 {
			t.Errorf("%q: intensity out of range: %f", text, state.Intensity)
		}
	}
}

func TestModulateExcitedRaisesSmileChannel(t *testing.T) {
	// Class 11 (E) is a smile channel: excited at full intensity must
	// produce a value strictly above the input, capped at 1.
	vec := phoneme.Vector{phoneme.VisemeE: 0.5}
	out := Modulate(vec, Excited, 1.0)

	got := out[phoneme.VisemeE]
	if got <= 0.5 {
		t.Errorf("expected value > 0.5, got %f", got)
	}
	if got > 1.0 {
		t.Errorf("expected value <= 1.0, got %f", got)
	}
}

func TestModulateZeroIntensityIsIdentity(t *testing.T) {
	vec := phoneme.Vector{phoneme.VisemeAA: 0.7, phoneme.VisemeE: 0.2}
	out := Modulate(vec, Excited, 0)

	for class, w := range vec {
		if out[class] != w {
			t.Errorf("class %d changed at zero intensity: %f != %f", class, out[class], w)
		}
	}
}

func TestModulateSilenceUntouched(t *testing.T) {
	vec := phoneme.Vector{phoneme.VisemeSil: 1.0}
	out := Modulate(vec, Excited, 1.0)
	if out[phoneme.VisemeSil] != 1.0 {
		t.Errorf("silence class must not be modulated, got %f", out[phoneme.VisemeSil])
	}
}

func TestModulateClampsToUnitRange(t *testing.T) {
	for label := range modifiers {
		vec := phoneme.Vector{
			phoneme.VisemeAA: 1.0,
			phoneme.VisemeE:  1.0,
			phoneme.VisemeU:  1.0,
		}
		out := Modulate(vec, label, 1.0)
		for class, w := range out {
			if w < 0 || w > 1 {
				t.Errorf("%s class %d out of range: %f", label, class, w)
			}
		}
	}
}

func TestBlendShapesScaledByIntensity(t *testing.T) {
	full := BlendShapes(Happy, 1.0)
	half := BlendShapes(Happy, 0.5)

	if len(full) == 0 {
		t.Fatal("happy should emit expression channels")
	}
	for name, w := range full {
		if w < 0 || w > 1 {
			t.Errorf("%s out of range: %f", name, w)
		}
		if half[name] >= w {
			t.Errorf("%s: half intensity %f should be below full %f", name, half[name], w)
		}
	}
}

func TestBlendShapesNeutralEmpty(t *testing.T) {
	if shapes := BlendShapes(Neutral, 1.0); len(shapes) != 0 {
		t.Errorf("neutral should emit no expression channels, got %v", shapes)
	}
	if shapes := BlendShapes(Label("bogus"), 1.0); len(shapes) != 0 {
		t.Errorf("unknown label should emit no channels, got %v", shapes)
	}
}

func TestBlendShapesZeroIntensityEmpty(t *testing.T) {
	if shapes := BlendShapes(Surprised, 0); len(shapes) != 0 {
		t.Errorf("zero intensity should emit nothing, got %v", shapes)
	}
}
