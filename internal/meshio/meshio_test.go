package meshio

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/meshopt-go/pkg/meshopt"
)

// quadDocument builds a document with an unwelded quad (6 vertices) and a
// line primitive.
func quadDocument() *gltf.Document {
	doc := gltf.NewDocument()
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	normals := [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	uvs := [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 0}, {1, 1}, {0, 1}}

	tri := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION:   uint32(modeler.WritePosition(doc, positions)),
			gltf.NORMAL:     uint32(modeler.WriteNormal(doc, normals)),
			gltf.TEXCOORD_0: uint32(modeler.WriteTextureCoord(doc, uvs)),
		},
		Indices: gltf.Index(uint32(modeler.WriteIndices(doc, []uint32{0, 1, 2, 3, 4, 5}))),
	}
	lines := &gltf.Primitive{
		Mode:       gltf.PrimitiveLines,
		Attributes: map[string]uint32{gltf.POSITION: uint32(modeler.WritePosition(doc, positions[:2]))},
	}
	doc.Meshes = []*gltf.Mesh{{Name: "Quad", Primitives: []*gltf.Primitive{tri, lines}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	return doc
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.glb")
	if err := gltf.SaveBinary(quadDocument(), path); err != nil {
		t.Fatalf("failed to write test model: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Primitives) != 1 {
		t.Fatalf("len(Primitives) = %d, want 1", len(m.Primitives))
	}
	if m.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", m.Skipped)
	}

	p := m.Primitives[0]
	if p.Name != "Quad#0" {
		t.Errorf("Name = %q, want Quad#0", p.Name)
	}
	if p.Extra {
		t.Error("Extra = true for a primitive with only POSITION/NORMAL/TEXCOORD_0")
	}
	if len(p.Arrays.Positions) != 6 || len(p.Arrays.Normals) != 6 || len(p.Arrays.UVs) != 6 {
		t.Errorf("stream lengths = %d/%d/%d, want 6", len(p.Arrays.Positions), len(p.Arrays.Normals), len(p.Arrays.UVs))
	}
	if len(p.Arrays.Indices) != 6 {
		t.Errorf("len(Indices) = %d, want 6", len(p.Arrays.Indices))
	}

	vertices, triangles := m.Stats()
	if vertices != 6 || triangles != 2 {
		t.Errorf("Stats() = %d, %d, want 6, 2", vertices, triangles)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.glb")); err == nil {
		t.Error("expected error loading a missing file")
	}
}

func TestFromDocumentNoPosition(t *testing.T) {
	doc := gltf.NewDocument()
	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{Attributes: map[string]uint32{}}}}}

	if _, err := FromDocument(doc); !errors.Is(err, ErrNoPosition) {
		t.Errorf("FromDocument() error = %v, want %v", err, ErrNoPosition)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	m, err := FromDocument(quadDocument())
	if err != nil {
		t.Fatalf("FromDocument() error = %v", err)
	}
	p := m.Primitives[0]

	welded, unique, err := meshopt.WeldMeshArrays(p.Arrays, 0)
	if err != nil {
		t.Fatalf("WeldMeshArrays() error = %v", err)
	}
	if unique != 4 {
		t.Fatalf("unique = %d, want 4", unique)
	}
	p.Arrays = welded
	if err := m.Update(p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "welded.glb")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := reloaded.Primitives[0].Arrays
	if len(got.Positions) != 4 || len(got.Normals) != 4 || len(got.UVs) != 4 {
		t.Errorf("reloaded stream lengths = %d/%d/%d, want 4", len(got.Positions), len(got.Normals), len(got.UVs))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	for i := range want {
		if got.Indices[i] != want[i] {
			t.Fatalf("reloaded Indices = %v, want %v", got.Indices, want)
		}
	}
}

func TestUpdateMovedVertices(t *testing.T) {
	m, err := FromDocument(quadDocument())
	if err != nil {
		t.Fatalf("FromDocument() error = %v", err)
	}
	p := m.Primitives[0]
	posAccessor := p.prim.Attributes[gltf.POSITION]
	normalAccessor := p.prim.Attributes[gltf.NORMAL]

	// Same vertex count, one vertex moved in place, as optimal placement does.
	moved := [3]float32{0.5, 0.5, 0.25}
	p.Arrays.Positions[2] = moved
	p.Arrays.UVs[2] = [2]float32{0.5, 0.5}
	if err := m.Update(p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.prim.Attributes[gltf.POSITION] == posAccessor {
		t.Error("Update() kept the old POSITION accessor for moved vertices")
	}
	if p.prim.Attributes[gltf.NORMAL] != normalAccessor {
		t.Error("Update() rewrote an unchanged NORMAL stream")
	}

	path := filepath.Join(t.TempDir(), "moved.glb")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := reloaded.Primitives[0].Arrays
	if len(got.Positions) != 6 {
		t.Fatalf("reloaded %d positions, want 6", len(got.Positions))
	}
	if got.Positions[2] != moved {
		t.Errorf("reloaded position[2] = %v, want %v", got.Positions[2], moved)
	}
	if got.UVs[2] != [2]float32{0.5, 0.5} {
		t.Errorf("reloaded uv[2] = %v, want [0.5 0.5]", got.UVs[2])
	}
}

func TestUpdateDropsEmptiedStream(t *testing.T) {
	m, err := FromDocument(quadDocument())
	if err != nil {
		t.Fatalf("FromDocument() error = %v", err)
	}
	p := m.Primitives[0]
	p.Arrays.Normals = nil
	if err := m.Update(p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, ok := p.prim.Attributes[gltf.NORMAL]; ok {
		t.Error("Update() kept NORMAL after the stream was emptied")
	}
}

func TestUpdateExtraKeepsVertexCount(t *testing.T) {
	doc := quadDocument()
	tri := doc.Meshes[0].Primitives[0]
	tri.Attributes[gltf.COLOR_0] = uint32(modeler.WriteColor(doc, make([][4]uint8, 6)))

	m, err := FromDocument(doc)
	if err != nil {
		t.Fatalf("FromDocument() error = %v", err)
	}
	p := m.Primitives[0]
	if !p.Extra {
		t.Fatal("Extra = false for a primitive with COLOR_0")
	}

	p.Arrays.Positions = p.Arrays.Positions[:4]
	if err := m.Update(p); err == nil {
		t.Error("expected Update to refuse a vertex count change with extra attributes")
	}
}
