package renderer

import (
	"testing"
)

// Catalog enumeration must work without a GL context; only upload and draw
// touch the GPU.
func TestAvatarCatalog(t *testing.T) {
	av := &Avatar{meshes: []*Mesh{
		{MorphTargets: []MorphTarget{{Name: "jawOpen"}, {Name: "viseme_aa"}}},
		{MorphTargets: []MorphTarget{{Name: "browInnerUp"}}},
	}}
	for _, m := range av.meshes {
		m.weights = make([]float64, len(m.MorphTargets))
	}

	if av.MeshCount() != 2 {
		t.Fatalf("expected 2 meshes, got %d", av.MeshCount())
	}

	names := av.TargetNames(0)
	if len(names) != 2 || names[0] != "jawOpen" || names[1] != "viseme_aa" {
		t.Errorf("unexpected names %v", names)
	}
	if av.TargetNames(5) != nil {
		t.Error("out-of-range mesh should return nil")
	}
}

func TestSetMorphWeightBounds(t *testing.T) {
	m := &Mesh{MorphTargets: []MorphTarget{{Name: "jawOpen"}}}
	m.weights = make([]float64, 1)
	av := &Avatar{meshes: []*Mesh{m}}

	av.SetMorphWeight(0, 0, 0.5)
	if m.weights[0] != 0.5 || !m.dirty {
		t.Errorf("write should land and mark dirty, got %v dirty=%v", m.weights[0], m.dirty)
	}

	// Out-of-range writes are ignored, never panic.
	av.SetMorphWeight(3, 0, 1)
	av.SetMorphWeight(0, 9, 1)
	av.SetMorphWeight(-1, -1, 1)
}
