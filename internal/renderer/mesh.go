package renderer

import (
	"fmt"
	"math"
	"os"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
}

// MorphTarget is one named blend shape: per-vertex position deltas relative
// to the base mesh.
type MorphTarget struct {
	Name           string
	PositionDeltas []mgl32.Vec3
}

// Mesh is one GPU-resident primitive with its morph targets and current
// per-target weights.
type Mesh struct {
	VAO          uint32
	VBO          uint32
	EBO          uint32
	VertexCount  int32
	IndexCount   int32
	HasIndices   bool
	BaseVertices []Vertex
	MorphTargets []MorphTarget

	weights []float64
	deltas  []mgl32.Vec3
	dirty   bool
}

// Avatar is the consumer-owned set of meshes the morph registry enumerates
// and the applier writes into.
type Avatar struct {
	meshes []*Mesh
}

// LoadAvatarFromGLTF loads every mesh in the file, reading morph-target
// names from the mesh extras so channels can be matched by name.
func LoadAvatarFromGLTF(path string) (*Avatar, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	if len(doc.Meshes) == 0 {
		return nil, fmt.Errorf("no meshes in %s", path)
	}

	av := &Avatar{}
	for mi, gltfMesh := range doc.Meshes {
		if len(gltfMesh.Primitives) == 0 {
			continue
		}
		mesh, err := loadMesh(doc, gltfMesh)
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", mi, err)
		}
		av.meshes = append(av.meshes, mesh)
	}
	if len(av.meshes) == 0 {
		return nil, fmt.Errorf("no loadable primitives in %s", path)
	}

	return av, nil
}

func loadMesh(doc *gltf.Document, gltfMesh *gltf.Mesh) (*Mesh, error) {
	prim := gltfMesh.Primitives[0]

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("primitive has no positions")
	}
	positions, err := readAccessorVec3(doc, uint32(posIdx))
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	var normals []mgl32.Vec3
	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err = readAccessorVec3(doc, uint32(normIdx))
		if err != nil {
			normals = make([]mgl32.Vec3, len(positions))
		}
	} else {
		normals = make([]mgl32.Vec3, len(positions))
	}

	var texCoords []mgl32.Vec2
	if tcIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		texCoords, err = readAccessorVec2(doc, uint32(tcIdx))
		if err != nil {
			texCoords = make([]mgl32.Vec2, len(positions))
		}
	} else {
		texCoords = make([]mgl32.Vec2, len(positions))
	}

	mesh := &Mesh{}
	mesh.BaseVertices = make([]Vertex, len(positions))
	for i := range positions {
		mesh.BaseVertices[i] = Vertex{
			Position: positions[i],
			Normal:   normals[i],
			TexCoord: texCoords[i],
		}
	}

	for i, target := range prim.Targets {
		mt := MorphTarget{Name: fmt.Sprintf("target_%d", i)}
		if posIdx, ok := target[gltf.POSITION]; ok {
			mt.PositionDeltas, _ = readAccessorVec3(doc, uint32(posIdx))
		}
		mesh.MorphTargets = append(mesh.MorphTargets, mt)
	}

	// Target names live in the mesh extras, not the primitive.
	if extras, ok := gltfMesh.Extras.(map[string]interface{}); ok {
		if targetNames, ok := extras["targetNames"].([]interface{}); ok {
			for i, name := range targetNames {
				if i >= len(mesh.MorphTargets) {
					break
				}
				if strName, ok := name.(string); ok {
					mesh.MorphTargets[i].Name = strName
				}
			}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = readAccessorIndices(doc, uint32(*prim.Indices))
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
		mesh.HasIndices = true
		mesh.IndexCount = int32(len(indices))
	}

	mesh.VertexCount = int32(len(mesh.BaseVertices))
	mesh.weights = make([]float64, len(mesh.MorphTargets))
	mesh.deltas = make([]mgl32.Vec3, len(mesh.BaseVertices))

	mesh.uploadToGPU(indices)
	return mesh, nil
}

// MeshCount implements the morph catalog.
func (a *Avatar) MeshCount() int {
	return len(a.meshes)
}

// TargetNames implements the morph catalog.
func (a *Avatar) TargetNames(mesh int) []string {
	if mesh < 0 || mesh >= len(a.meshes) {
		return nil
	}
	names := make([]string, len(a.meshes[mesh].MorphTargets))
	for i, mt := range a.meshes[mesh].MorphTargets {
		names[i] = mt.Name
	}
	return names
}

// SetMorphWeight implements the morph writer. Out-of-range indexes are
// ignored; a missing channel never fails a batch.
func (a *Avatar) SetMorphWeight(mesh, target int, weight float64) {
	if mesh < 0 || mesh >= len(a.meshes) {
		return
	}
	m := a.meshes[mesh]
	if target < 0 || target >= len(m.weights) {
		return
	}
	m.weights[target] = weight
	m.dirty = true
}

// Flush recomputes deformed vertices for meshes whose weights changed and
// re-uploads their vertex buffers. Call once per frame after the applier
// tick.
func (a *Avatar) Flush() {
	for _, m := range a.meshes {
		if !m.dirty {
			continue
		}
		m.applyWeights()
		m.updateVertexBuffer()
		m.dirty = false
	}
}

// Draw renders every mesh.
func (a *Avatar) Draw() {
	for _, m := range a.meshes {
		m.Draw()
	}
}

// Delete frees GPU resources.
func (a *Avatar) Delete() {
	for _, m := range a.meshes {
		m.Delete()
	}
}

func (m *Mesh) uploadToGPU(indices []uint32) {
	gl.GenVertexArrays(1, &m.VAO)
	gl.GenBuffers(1, &m.VBO)

	gl.BindVertexArray(m.VAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.VBO)

	vertexData := m.vertexData(nil)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertexData)*4, gl.Ptr(vertexData), gl.DYNAMIC_DRAW)

	stride := int32(8 * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 6*4)
	gl.EnableVertexAttribArray(2)

	if m.HasIndices && len(indices) > 0 {
		gl.GenBuffers(1, &m.EBO)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.EBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)
}

// applyWeights accumulates weighted position deltas across all active
// targets.
func (m *Mesh) applyWeights() {
	for i := range m.deltas {
		m.deltas[i] = mgl32.Vec3{}
	}

	for ti, target := range m.MorphTargets {
		w := float32(m.weights[ti])
		if w < 0.001 {
			continue
		}
		for vi, delta := range target.PositionDeltas {
			if vi < len(m.deltas) {
				m.deltas[vi] = m.deltas[vi].Add(delta.Mul(w))
			}
		}
	}
}

// vertexData interleaves position/normal/texcoord, displacing positions by
// the given deltas when present.
func (m *Mesh) vertexData(deltas []mgl32.Vec3) []float32 {
	out := make([]float32, 0, len(m.BaseVertices)*8)
	for i, v := range m.BaseVertices {
		pos := v.Position
		if deltas != nil {
			pos = pos.Add(deltas[i])
		}
		out = append(out, pos[0], pos[1], pos[2])
		out = append(out, v.Normal[0], v.Normal[1], v.Normal[2])
		out = append(out, v.TexCoord[0], v.TexCoord[1])
	}
	return out
}

func (m *Mesh) updateVertexBuffer() {
	vertexData := m.vertexData(m.deltas)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.VBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertexData)*4, gl.Ptr(vertexData))
}

func (m *Mesh) Draw() {
	gl.BindVertexArray(m.VAO)
	if m.HasIndices {
		gl.DrawElements(gl.TRIANGLES, m.IndexCount, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, m.VertexCount)
	}
	gl.BindVertexArray(0)
}

func (m *Mesh) Delete() {
	gl.DeleteVertexArrays(1, &m.VAO)
	gl.DeleteBuffers(1, &m.VBO)
	if m.HasIndices {
		gl.DeleteBuffers(1, &m.EBO)
	}
}

func readAccessorVec3(doc *gltf.Document, accessorIdx uint32) ([]mgl32.Vec3, error) {
	accessor := doc.Accessors[accessorIdx]
	bufferView := doc.BufferViews[*accessor.BufferView]
	buffer := doc.Buffers[bufferView.Buffer]

	data, err := getBufferData(buffer)
	if err != nil {
		return nil, err
	}

	offset := int(bufferView.ByteOffset) + int(accessor.ByteOffset)
	count := int(accessor.Count)

	result := make([]mgl32.Vec3, count)
	stride := int(bufferView.ByteStride)
	if stride == 0 {
		stride = 12
	}

	for i := 0; i < count; i++ {
		idx := offset + i*stride
		floats := (*[3]float32)(unsafe.Pointer(&data[idx]))
		result[i] = mgl32.Vec3{floats[0], floats[1], floats[2]}
	}

	return result, nil
}

func readAccessorVec2(doc *gltf.Document, accessorIdx uint32) ([]mgl32.Vec2, error) {
	accessor := doc.Accessors[accessorIdx]
	bufferView := doc.BufferViews[*accessor.BufferView]
	buffer := doc.Buffers[bufferView.Buffer]

	data, err := getBufferData(buffer)
	if err != nil {
		return nil, err
	}

	offset := int(bufferView.ByteOffset) + int(accessor.ByteOffset)
	count := int(accessor.Count)

	result := make([]mgl32.Vec2, count)
	stride := int(bufferView.ByteStride)
	if stride == 0 {
		stride = 8
	}

	for i := 0; i < count; i++ {
		idx := offset + i*stride
		floats := (*[2]float32)(unsafe.Pointer(&data[idx]))
		result[i] = mgl32.Vec2{floats[0], floats[1]}
	}

	return result, nil
}

func readAccessorIndices(doc *gltf.Document, accessorIdx uint32) ([]uint32, error) {
	accessor := doc.Accessors[accessorIdx]
	bufferView := doc.BufferViews[*accessor.BufferView]
	buffer := doc.Buffers[bufferView.Buffer]

	data, err := getBufferData(buffer)
	if err != nil {
		return nil, err
	}

	offset := int(bufferView.ByteOffset) + int(accessor.ByteOffset)
	count := int(accessor.Count)

	result := make([]uint32, count)

	switch accessor.ComponentType {
	case gltf.ComponentUbyte:
		for i := 0; i < count; i++ {
			result[i] = uint32(data[offset+i])
		}
	case gltf.ComponentUshort:
		for i := 0; i < count; i++ {
			idx := offset + i*2
			result[i] = uint32(*(*uint16)(unsafe.Pointer(&data[idx])))
		}
	case gltf.ComponentUint:
		for i := 0; i < count; i++ {
			idx := offset + i*4
			result[i] = *(*uint32)(unsafe.Pointer(&data[idx]))
		}
	}

	return result, nil
}

func getBufferData(buffer *gltf.Buffer) ([]byte, error) {
	// Empty URI means the data is in the GLB binary chunk
	if buffer.URI == "" {
		if len(buffer.Data) > 0 {
			return buffer.Data, nil
		}
		return nil, fmt.Errorf("buffer has no URI and no embedded data")
	}

	if len(buffer.URI) > 5 && buffer.URI[:5] == "data:" {
		return nil, fmt.Errorf("data URI not supported")
	}

	data, err := os.ReadFile(buffer.URI)
	if err != nil {
		return nil, fmt.Errorf("read buffer file: %w", err)
	}

	return data, nil
}

// NewPlaceholderAvatar builds a sphere head with a jawOpen-style morph
// target, used when no glTF asset is configured.
func NewPlaceholderAvatar() *Avatar {
	mesh := newSphereMesh(32, 24)
	return &Avatar{meshes: []*Mesh{mesh}}
}

func newSphereMesh(segments, rings int) *Mesh {
	var vertices []Vertex
	var indices []uint32

	for y := 0; y <= rings; y++ {
		for x := 0; x <= segments; x++ {
			xSeg := float64(x) / float64(segments)
			ySeg := float64(y) / float64(rings)

			xPos := float32(math.Cos(2*math.Pi*xSeg) * math.Sin(math.Pi*ySeg))
			yPos := float32(math.Cos(math.Pi * ySeg))
			zPos := float32(math.Sin(2*math.Pi*xSeg) * math.Sin(math.Pi*ySeg))

			vertices = append(vertices, Vertex{
				Position: mgl32.Vec3{xPos * 0.15, yPos * 0.15, zPos * 0.15},
				Normal:   mgl32.Vec3{xPos, yPos, zPos},
				TexCoord: mgl32.Vec2{float32(xSeg), float32(ySeg)},
			})
		}
	}

	for y := 0; y < rings; y++ {
		for x := 0; x < segments; x++ {
			first := uint32(y*(segments+1) + x)
			second := first + uint32(segments+1)

			indices = append(indices, first, second, first+1)
			indices = append(indices, second, second+1, first+1)
		}
	}

	// A crude jaw: the lower third of the sphere drops when the target is
	// fully on, enough to see lip-sync without an asset.
	jaw := MorphTarget{Name: "jawOpen", PositionDeltas: make([]mgl32.Vec3, len(vertices))}
	for i, v := range vertices {
		if v.Position.Y() < -0.05 {
			jaw.PositionDeltas[i] = mgl32.Vec3{0, -0.05, 0}
		}
	}

	mesh := &Mesh{
		BaseVertices: vertices,
		MorphTargets: []MorphTarget{jaw},
		HasIndices:   true,
		VertexCount:  int32(len(vertices)),
		IndexCount:   int32(len(indices)),
	}
	mesh.weights = make([]float64, len(mesh.MorphTargets))
	mesh.deltas = make([]mgl32.Vec3, len(vertices))

	mesh.uploadToGPU(indices)

	return mesh
}
