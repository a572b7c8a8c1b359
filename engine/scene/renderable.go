package scene

import (
	"fmt"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
	"github.com/spaghettifunk/tiny3d/engine/rhi"
)

/**
 * @brief Geometry is uploaded vertex and index data shared between a
 * renderable and its clones. Destroying it releases the hardware buffers.
 */
type Geometry struct {
	core.RefCounted

	Primitive rhi.PrimitiveType
	Vertices  *rhi.VertexData
	Indices   *rhi.IndexData
	Bounds    math.AABB
}

// NewGeometry takes ownership of vertices and indices.
func NewGeometry(primitive rhi.PrimitiveType, vertices *rhi.VertexData, indices *rhi.IndexData, bounds math.AABB) *Geometry {
	g := &Geometry{Primitive: primitive, Vertices: vertices, Indices: indices, Bounds: bounds}
	g.Init(func() {
		renderer.ReleaseVertexData(g.Vertices)
		if g.Indices != nil && g.Indices.Buffer != nil {
			g.Indices.Buffer.Release()
			g.Indices.Buffer = nil
		}
	})
	return g
}

// UploadGeometry creates vertex and index data for a triangle list.
func UploadGeometry(r *renderer.Renderer, vertices []math.Vertex3D, indices []uint32, bounds math.AABB) (*Geometry, error) {
	if r == nil {
		return nil, fmt.Errorf("upload geometry: %w", core.ErrNilArgument)
	}
	vd, err := r.CreateVertexData(vertices, rhi.UsageStaticWriteOnly)
	if err != nil {
		return nil, fmt.Errorf("upload geometry: %w", err)
	}
	var id *rhi.IndexData
	if len(indices) > 0 {
		if id, err = r.CreateIndexData(indices, rhi.UsageStaticWriteOnly); err != nil {
			renderer.ReleaseVertexData(vd)
			return nil, fmt.Errorf("upload geometry: %w", err)
		}
	}
	return NewGeometry(rhi.PrimitiveTriangleList, vd, id, bounds), nil
}

// Cullable is a node that decides by itself whether it reaches the queue.
type Cullable interface {
	FrustumCulling(frustum *math.Frustum, queue *renderer.RenderQueue) error
}

// RenderableSettings are the plain properties of a renderable.
type RenderableSettings struct {
	Group renderer.GroupID
	// Bounds in local space. Culling transforms them by the world matrix.
	LocalBounds math.AABB
}

/**
 * @brief SGRenderable is the base of every node that puts something in the
 * render queue. Material and geometry are shared with clones by reference.
 */
type SGRenderable struct {
	SGTransformNode
	RenderableSettings

	material *metadata.Material
	geometry *Geometry
}

func (r *SGRenderable) initRenderable(self Node, name string, group renderer.GroupID, destroy func()) {
	r.initTransform(self, name, func() {
		r.SetMaterial(nil)
		r.SetGeometry(nil)
		if destroy != nil {
			destroy()
		}
	})
	r.Group = group
}

func (r *SGRenderable) Material() *metadata.Material {
	return r.material
}

// SetMaterial retains m and releases the previous material.
func (r *SGRenderable) SetMaterial(m *metadata.Material) {
	if m != nil {
		m.Retain()
	}
	if r.material != nil {
		r.material.Release()
	}
	r.material = m
}

func (r *SGRenderable) Geometry() *Geometry {
	return r.geometry
}

// SetGeometry retains g, releases the previous geometry and adopts the
// bounds of g.
func (r *SGRenderable) SetGeometry(g *Geometry) {
	if g != nil {
		g.Retain()
		r.LocalBounds = g.Bounds
	}
	if r.geometry != nil {
		r.geometry.Release()
	}
	r.geometry = g
}

func (r *SGRenderable) PrimitiveType() rhi.PrimitiveType {
	if r.geometry == nil {
		return rhi.PrimitiveTriangleList
	}
	return r.geometry.Primitive
}

func (r *SGRenderable) VertexData() *rhi.VertexData {
	if r.geometry == nil {
		return nil
	}
	return r.geometry.Vertices
}

func (r *SGRenderable) IndexData() *rhi.IndexData {
	if r.geometry == nil {
		return nil
	}
	return r.geometry.Indices
}

// WorldBounds is the local box transformed into world space.
func (r *SGRenderable) WorldBounds() math.AABB {
	return r.LocalBounds.Transform(r.WorldTransform())
}

// FrustumCulling adds the node to its group when it is visible and its world
// bounds intersect the frustum.
func (r *SGRenderable) FrustumCulling(frustum *math.Frustum, queue *renderer.RenderQueue) error {
	if !r.Visible || r.geometry == nil {
		return nil
	}
	if !frustum.IntersectsAABB(r.WorldBounds()) {
		return nil
	}
	return r.addTo(queue)
}

func (r *SGRenderable) addTo(queue *renderer.RenderQueue) error {
	rd, ok := r.self.(renderer.Renderable)
	if !ok {
		return fmt.Errorf("%q is not renderable: %w", r.Name(), core.ErrInvariantViolation)
	}
	return queue.AddRenderable(r.Group, rd)
}

func (r *SGRenderable) cloneRenderable(src *SGRenderable) error {
	if err := r.cloneTransform(&src.SGTransformNode); err != nil {
		return err
	}
	r.SetMaterial(src.material)
	r.SetGeometry(src.geometry)
	return copySettings(&r.RenderableSettings, &src.RenderableSettings)
}
