package rhi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
)

type VertexAttributeType uint8

const (
	VertexFloat1 VertexAttributeType = iota
	VertexFloat2
	VertexFloat3
	VertexFloat4
	VertexColor
	VertexUByte4
	VertexShort2
	VertexShort4
)

func (t VertexAttributeType) Size() int {
	switch t {
	case VertexFloat1, VertexColor, VertexUByte4, VertexShort2:
		return 4
	case VertexFloat2, VertexShort4:
		return 8
	case VertexFloat3:
		return 12
	case VertexFloat4:
		return 16
	}
	return 0
}

type VertexSemantic uint8

const (
	SemanticPosition VertexSemantic = iota
	SemanticBlendWeight
	SemanticBlendIndices
	SemanticNormal
	SemanticDiffuse
	SemanticSpecular
	SemanticTexcoord
	SemanticTangent
	SemanticBinormal
)

type VertexAttribute struct {
	Stream        int
	Offset        int
	Type          VertexAttributeType
	Semantic      VertexSemantic
	SemanticIndex int
}

func (a VertexAttribute) Size() int {
	return a.Type.Size()
}

// VertexDeclaration describes the layout of the vertex streams of a mesh.
type VertexDeclaration struct {
	core.RefCounted
	attributes []VertexAttribute
}

func NewVertexDeclaration() *VertexDeclaration {
	vd := &VertexDeclaration{}
	vd.Init(nil)
	return vd
}

// NewVertex3DDeclaration matches the memory layout of math.Vertex3D on
// stream 0.
func NewVertex3DDeclaration() *VertexDeclaration {
	vd := NewVertexDeclaration()
	vd.AddAttribute(0, 0, VertexFloat3, SemanticPosition, 0)
	vd.AddAttribute(0, 12, VertexFloat3, SemanticNormal, 0)
	vd.AddAttribute(0, 24, VertexFloat2, SemanticTexcoord, 0)
	vd.AddAttribute(0, 32, VertexFloat4, SemanticDiffuse, 0)
	vd.AddAttribute(0, 48, VertexFloat3, SemanticTangent, 0)
	return vd
}

func (vd *VertexDeclaration) AddAttribute(stream, offset int, t VertexAttributeType, semantic VertexSemantic, index int) VertexAttribute {
	a := VertexAttribute{Stream: stream, Offset: offset, Type: t, Semantic: semantic, SemanticIndex: index}
	vd.attributes = append(vd.attributes, a)
	return a
}

func (vd *VertexDeclaration) InsertAttribute(pos, stream, offset int, t VertexAttributeType, semantic VertexSemantic, index int) (VertexAttribute, error) {
	if pos < 0 || pos > len(vd.attributes) {
		return VertexAttribute{}, fmt.Errorf("insert attribute at %d: %w", pos, core.ErrOutOfBounds)
	}
	a := VertexAttribute{Stream: stream, Offset: offset, Type: t, Semantic: semantic, SemanticIndex: index}
	vd.attributes = append(vd.attributes, VertexAttribute{})
	copy(vd.attributes[pos+1:], vd.attributes[pos:])
	vd.attributes[pos] = a
	return a, nil
}

func (vd *VertexDeclaration) RemoveAttribute(pos int) error {
	if pos < 0 || pos >= len(vd.attributes) {
		return fmt.Errorf("remove attribute at %d: %w", pos, core.ErrOutOfBounds)
	}
	vd.attributes = append(vd.attributes[:pos], vd.attributes[pos+1:]...)
	return nil
}

func (vd *VertexDeclaration) RemoveAttributeBySemantic(semantic VertexSemantic, index int) bool {
	for i, a := range vd.attributes {
		if a.Semantic == semantic && a.SemanticIndex == index {
			vd.attributes = append(vd.attributes[:i], vd.attributes[i+1:]...)
			return true
		}
	}
	return false
}

func (vd *VertexDeclaration) FindAttribute(semantic VertexSemantic, index int) (VertexAttribute, bool) {
	for _, a := range vd.attributes {
		if a.Semantic == semantic && a.SemanticIndex == index {
			return a, true
		}
	}
	return VertexAttribute{}, false
}

func (vd *VertexDeclaration) Attributes() []VertexAttribute {
	return append([]VertexAttribute(nil), vd.attributes...)
}

// VertexSize is the stride of one vertex in the given stream.
func (vd *VertexDeclaration) VertexSize(stream int) int {
	size := 0
	for _, a := range vd.attributes {
		if a.Stream == stream {
			if end := a.Offset + a.Size(); end > size {
				size = end
			}
		}
	}
	return size
}

// Streams returns the distinct stream indices in ascending order.
func (vd *VertexDeclaration) Streams() []int {
	seen := map[int]bool{}
	var out []int
	for _, a := range vd.attributes {
		if !seen[a.Stream] {
			seen[a.Stream] = true
			out = append(out, a.Stream)
		}
	}
	sort.Ints(out)
	return out
}

// VertexData binds vertex buffers to the streams of a declaration.
type VertexData struct {
	Declaration *VertexDeclaration
	Start       int
	Count       int
	bindings    map[int]*VertexBuffer
}

func NewVertexData(decl *VertexDeclaration) *VertexData {
	return &VertexData{Declaration: decl, bindings: make(map[int]*VertexBuffer)}
}

func (vd *VertexData) Bind(stream int, vb *VertexBuffer) {
	if vb == nil {
		delete(vd.bindings, stream)
		return
	}
	vd.bindings[stream] = vb
}

func (vd *VertexData) Buffer(stream int) *VertexBuffer {
	return vd.bindings[stream]
}

func (vd *VertexData) Bindings() map[int]*VertexBuffer {
	return vd.bindings
}

// IndexData is a window into an index buffer.
type IndexData struct {
	Buffer *IndexBuffer
	Start  int
	Count  int
}

// EncodeVertices serialises vertices with the NewVertex3DDeclaration layout.
func EncodeVertices(vertices []math.Vertex3D) []byte {
	var buf bytes.Buffer
	buf.Grow(len(vertices) * 60)
	_ = binary.Write(&buf, binary.LittleEndian, vertices)
	return buf.Bytes()
}

// EncodeIndices serialises indices as 16 or 32 bit values.
func EncodeIndices(indices []uint32, t IndexType) []byte {
	out := make([]byte, len(indices)*t.Size())
	for i, idx := range indices {
		if t == Index16 {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(idx))
		} else {
			binary.LittleEndian.PutUint32(out[i*4:], idx)
		}
	}
	return out
}
