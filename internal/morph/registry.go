// Package morph owns the consumer side of the animation bridge: a registry
// mapping channel names to mesh blend-shape slots, a damped applier that
// turns batch targets into per-frame weight writes, and the consumer loop
// that signals fences and reports telemetry back to the producer.
package morph

import (
	"github.com/rs/zerolog"
)

// Catalog enumerates the avatar's meshes and their named blend shapes.
// The renderer implements it over loaded glTF data; tests implement it over
// plain slices.
type Catalog interface {
	MeshCount() int
	TargetNames(mesh int) []string
}

// Writer receives the resolved weight writes. The renderer applies them to
// vertex data and re-uploads.
type Writer interface {
	SetMorphWeight(mesh, target int, weight float64)
}

// Slot locates one blend shape: mesh index plus target index within it.
type Slot struct {
	Mesh   int
	Target int
}

// Registry maps channel names to blend-shape slots. Built exactly once per
// avatar load; read-only afterwards, so lookups need no locking.
type Registry struct {
	slots map[string][]Slot
}

// NewRegistry enumerates the catalog. The same name appearing on several
// meshes maps to all of them; a duplicate name within one mesh keeps the
// first occurrence.
func NewRegistry(cat Catalog, log zerolog.Logger) *Registry {
	r := &Registry{slots: make(map[string][]Slot)}

	total := 0
	for mesh := 0; mesh < cat.MeshCount(); mesh++ {
		seen := make(map[string]bool)
		for target, name := range cat.TargetNames(mesh) {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			r.slots[name] = append(r.slots[name], Slot{Mesh: mesh, Target: target})
			total++
		}
	}

	log.Info().
		Int("meshes", cat.MeshCount()).
		Int("channels", len(r.slots)).
		Int("slots", total).
		Msg("morph registry built")
	return r
}

// Lookup returns the slots bound to a channel name, or nil when the avatar
// has no such blend shape.
func (r *Registry) Lookup(name string) []Slot {
	return r.slots[name]
}

// Channels returns how many distinct channel names the registry resolved.
func (r *Registry) Channels() int {
	return len(r.slots)
}
