package math

import "github.com/chewxy/math32"

// AABB is an axis aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min.Min(max), Max: max.Max(min)}
}

// NewAABBFromPoints returns the smallest box containing every point.
func NewAABBFromPoints(points []Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box.Min = box.Min.Min(p)
		box.Max = box.Max.Max(p)
	}
	return box
}

func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).MulScalar(0.5)
}

func (b AABB) Extents() Vec3 {
	return b.Max.Sub(b.Min).MulScalar(0.5)
}

func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b AABB) Merge(other AABB) AABB {
	return AABB{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Transform returns the box enclosing the eight transformed corners.
func (b AABB) Transform(m Mat4) AABB {
	corners := [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
	for i := range corners {
		corners[i] = corners[i].Transform(m)
	}
	return NewAABBFromPoints(corners[:])
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center Vec3
	Radius float32
}

// Plane satisfies Normal·p + Distance = 0. Points with a positive signed
// distance are on the inner side.
type Plane struct {
	Normal   Vec3
	Distance float32
}

func NewPlaneFromVec4(v Vec4) Plane {
	n := Vec3{v.X, v.Y, v.Z}
	l := n.Length()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.MulScalar(1 / l), Distance: v.W / l}
}

func (p Plane) SignedDistance(point Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}

type FrustumPlane int

const (
	FrustumPlaneLeft FrustumPlane = iota
	FrustumPlaneRight
	FrustumPlaneBottom
	FrustumPlaneTop
	FrustumPlaneNear
	FrustumPlaneFar
	FrustumPlaneCount
)

// Frustum is a convex view volume bounded by six inward facing planes.
type Frustum struct {
	Planes [FrustumPlaneCount]Plane
}

/**
 * @brief Extracts the six clip planes from a combined view-projection
 * matrix (row vector convention, clip space z in [-w, w]).
 */
func NewFrustumFromMatrix(viewProjection Mat4) Frustum {
	c0 := viewProjection.Column(0)
	c1 := viewProjection.Column(1)
	c2 := viewProjection.Column(2)
	c3 := viewProjection.Column(3)

	add := func(a, b Vec4) Vec4 { return Vec4{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.W + b.W} }
	sub := func(a, b Vec4) Vec4 { return Vec4{a.X - b.X, a.Y - b.Y, a.Z - b.Z, a.W - b.W} }

	f := Frustum{}
	f.Planes[FrustumPlaneLeft] = NewPlaneFromVec4(add(c3, c0))
	f.Planes[FrustumPlaneRight] = NewPlaneFromVec4(sub(c3, c0))
	f.Planes[FrustumPlaneBottom] = NewPlaneFromVec4(add(c3, c1))
	f.Planes[FrustumPlaneTop] = NewPlaneFromVec4(sub(c3, c1))
	f.Planes[FrustumPlaneNear] = NewPlaneFromVec4(add(c3, c2))
	f.Planes[FrustumPlaneFar] = NewPlaneFromVec4(sub(c3, c2))
	return f
}

func (f *Frustum) ContainsPoint(p Vec3) bool {
	for _, plane := range f.Planes {
		if plane.SignedDistance(p) < 0 {
			return false
		}
	}
	return true
}

func (f *Frustum) IntersectsSphere(s Sphere) bool {
	for _, plane := range f.Planes {
		if plane.SignedDistance(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}

// IntersectsAABB tests the box corner furthest along each plane normal.
// Boxes straddling a plane count as visible.
func (f *Frustum) IntersectsAABB(b AABB) bool {
	for _, plane := range f.Planes {
		p := b.Min
		if plane.Normal.X >= 0 {
			p.X = b.Max.X
		}
		if plane.Normal.Y >= 0 {
			p.Y = b.Max.Y
		}
		if plane.Normal.Z >= 0 {
			p.Z = b.Max.Z
		}
		if plane.SignedDistance(p) < 0 {
			return false
		}
	}
	return true
}

// BoundingSphere returns the sphere enclosing the box.
func (b AABB) BoundingSphere() Sphere {
	return Sphere{Center: b.Center(), Radius: math32.Sqrt(b.Extents().LengthSquared())}
}
