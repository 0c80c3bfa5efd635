// Package meshio loads and saves glTF 2.0 meshes as meshopt mesh arrays.
package meshio

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/meshopt-go/pkg/meshopt"
)

var (
	ErrNoPosition = errors.New("primitive has no POSITION attribute")
	ErrNotIndexed = errors.New("index count is not a multiple of 3")
)

// Primitive is one triangle primitive of a glTF mesh.
type Primitive struct {
	Mesh   int // index into Document.Meshes
	Index  int // index into Mesh.Primitives
	Name   string
	Arrays meshopt.MeshArrays
	// Extra is set when the primitive carries vertex attributes other than
	// POSITION, NORMAL and TEXCOORD_0. Such primitives must keep their
	// vertex count.
	Extra bool

	prim   *gltf.Primitive
	loaded meshopt.MeshArrays // streams as last read or written
}

// Model is a loaded glTF document and its triangle primitives.
type Model struct {
	Doc        *gltf.Document
	Primitives []*Primitive
	// Skipped counts primitives that are not triangle lists.
	Skipped int
}

// Load opens a .gltf or .glb file and reads every triangle primitive.
func Load(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return FromDocument(doc)
}

// FromDocument reads the triangle primitives of an in-memory document.
func FromDocument(doc *gltf.Document) (*Model, error) {
	m := &Model{Doc: doc}
	for mi, mesh := range doc.Meshes {
		for pi, prim := range mesh.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				m.Skipped++
				continue
			}
			name := fmt.Sprintf("%s#%d", mesh.Name, pi)
			if mesh.Name == "" {
				name = fmt.Sprintf("mesh%d#%d", mi, pi)
			}
			arrays, err := readPrimitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			m.Primitives = append(m.Primitives, &Primitive{
				Mesh:   mi,
				Index:  pi,
				Name:   name,
				Arrays: arrays,
				Extra:  hasExtraAttributes(prim),
				prim:   prim,
				loaded: cloneStreams(arrays),
			})
		}
	}
	return m, nil
}

func hasExtraAttributes(prim *gltf.Primitive) bool {
	for name := range prim.Attributes {
		switch name {
		case gltf.POSITION, gltf.NORMAL, gltf.TEXCOORD_0:
		default:
			return true
		}
	}
	return len(prim.Targets) > 0
}

func readPrimitive(doc *gltf.Document, prim *gltf.Primitive) (meshopt.MeshArrays, error) {
	var out meshopt.MeshArrays

	pos, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return out, ErrNoPosition
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[pos], nil)
	if err != nil {
		return out, fmt.Errorf("POSITION: %w", err)
	}
	out.Positions = positions

	if id, ok := prim.Attributes[gltf.NORMAL]; ok {
		if out.Normals, err = modeler.ReadNormal(doc, doc.Accessors[id], nil); err != nil {
			return out, fmt.Errorf("NORMAL: %w", err)
		}
	}
	if id, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if out.UVs, err = modeler.ReadTextureCoord(doc, doc.Accessors[id], nil); err != nil {
			return out, fmt.Errorf("TEXCOORD_0: %w", err)
		}
	}

	if prim.Indices != nil {
		if out.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return out, fmt.Errorf("indices: %w", err)
		}
	} else {
		out.Indices = make([]uint32, len(positions))
		for i := range out.Indices {
			out.Indices[i] = uint32(i)
		}
	}
	if len(out.Indices)%3 != 0 {
		return out, fmt.Errorf("%w: %d", ErrNotIndexed, len(out.Indices))
	}
	return out, nil
}

// cloneStreams deep-copies the vertex streams of a so later in-place edits of
// the primitive's arrays are detected.
func cloneStreams(a meshopt.MeshArrays) meshopt.MeshArrays {
	return meshopt.MeshArrays{
		Positions: slices.Clone(a.Positions),
		Normals:   slices.Clone(a.Normals),
		UVs:       slices.Clone(a.UVs),
	}
}

// Update writes p.Arrays back into the document. Each vertex stream is
// rewritten when its contents differ from what the document holds, so moved
// vertices are saved even when the vertex count is unchanged. The index
// buffer is always rewritten. A stream emptied in p.Arrays is removed.
func (m *Model) Update(p *Primitive) error {
	a := p.Arrays
	if p.Extra && len(a.Positions) != len(p.loaded.Positions) {
		return fmt.Errorf("%s: vertex count changed on a primitive with extra attributes", p.Name)
	}

	if !slices.Equal(a.Positions, p.loaded.Positions) {
		p.prim.Attributes[gltf.POSITION] = uint32(modeler.WritePosition(m.Doc, a.Positions))
	}
	switch {
	case len(a.Normals) == 0:
		delete(p.prim.Attributes, gltf.NORMAL)
	case !slices.Equal(a.Normals, p.loaded.Normals):
		p.prim.Attributes[gltf.NORMAL] = uint32(modeler.WriteNormal(m.Doc, a.Normals))
	}
	switch {
	case len(a.UVs) == 0:
		delete(p.prim.Attributes, gltf.TEXCOORD_0)
	case !slices.Equal(a.UVs, p.loaded.UVs):
		p.prim.Attributes[gltf.TEXCOORD_0] = uint32(modeler.WriteTextureCoord(m.Doc, a.UVs))
	}
	p.prim.Indices = gltf.Index(uint32(modeler.WriteIndices(m.Doc, a.Indices)))
	p.loaded = cloneStreams(a)
	return nil
}

// Save writes the document; a .glb extension selects the binary container.
func (m *Model) Save(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".glb") {
		return gltf.SaveBinary(m.Doc, path)
	}
	return gltf.Save(m.Doc, path)
}

// Stats sums vertices and triangles over every primitive.
func (m *Model) Stats() (vertices, triangles int) {
	for _, p := range m.Primitives {
		vertices += p.Arrays.VertexCount()
		triangles += p.Arrays.TriangleCount()
	}
	return vertices, triangles
}
