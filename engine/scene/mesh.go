package scene

import (
	"fmt"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

// SGMesh draws arbitrary geometry in the solid group.
type SGMesh struct {
	SGRenderable
}

func NewMesh(name string, geometry *Geometry, material *metadata.Material) *SGMesh {
	m := &SGMesh{}
	m.initRenderable(m, name, renderer.GroupSolid, nil)
	m.SetGeometry(geometry)
	m.SetMaterial(material)
	return m
}

// NewMeshFromData uploads data and builds a mesh node from it.
func NewMeshFromData(r *renderer.Renderer, data *metadata.MeshData, material *metadata.Material) (*SGMesh, error) {
	if data == nil {
		return nil, fmt.Errorf("mesh: %w", core.ErrNilArgument)
	}
	bounds := data.Bounds
	if bounds == (math.AABB{}) {
		positions := make([]math.Vec3, len(data.Vertices))
		for i, v := range data.Vertices {
			positions[i] = v.Position
		}
		bounds = math.NewAABBFromPoints(positions)
	}
	g, err := UploadGeometry(r, data.Vertices, data.Indices, bounds)
	if err != nil {
		return nil, fmt.Errorf("mesh %q: %w", data.Name, err)
	}
	defer g.Release()
	return NewMesh(data.Name, g, material), nil
}

func (m *SGMesh) Clone() (Node, error) {
	c := NewMesh(m.Name(), nil, nil)
	if err := c.cloneRenderable(&m.SGRenderable); err != nil {
		c.Release()
		return nil, err
	}
	if err := c.cloneChildren(&m.NodeBase); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

type BoxSettings struct {
	Width, Height, Depth float32
}

/**
 * @brief SGBox is a mesh whose geometry is a generated cube. Texture
 * coordinates tile once per face.
 */
type SGBox struct {
	SGMesh
	BoxSettings
}

func NewBox(r *renderer.Renderer, name string, width, height, depth float32, material *metadata.Material) (*SGBox, error) {
	vertices, indices, bounds := math.GenerateCube(width, height, depth, 1, 1)
	g, err := UploadGeometry(r, vertices, indices, bounds)
	if err != nil {
		return nil, fmt.Errorf("box %q: %w", name, err)
	}
	defer g.Release()
	b := newBox(name, BoxSettings{Width: width, Height: height, Depth: depth})
	b.SetGeometry(g)
	b.SetMaterial(material)
	return b, nil
}

func newBox(name string, settings BoxSettings) *SGBox {
	b := &SGBox{BoxSettings: settings}
	b.initRenderable(b, name, renderer.GroupSolid, nil)
	return b
}

func (b *SGBox) Clone() (Node, error) {
	c := newBox(b.Name(), b.BoxSettings)
	if err := c.cloneRenderable(&b.SGRenderable); err != nil {
		c.Release()
		return nil, err
	}
	if err := c.cloneChildren(&b.NodeBase); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}
