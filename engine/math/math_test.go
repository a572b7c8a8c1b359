package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-4

func TestMat4InverseRoundTrip(t *testing.T) {
	tr := NewTransform()
	tr.SetPositionRotationScale(
		NewVec3(1, 2, 3),
		NewQuatFromAxisAngle(NewVec3(0, 1, 0), DegToRad(30), true),
		NewVec3(2, 2, 2),
	)
	m := tr.GetLocal()
	assert.True(t, m.Mul(m.Inverse()).Compare(NewMat4Identity(), eps))
}

func TestSingularInverseIsIdentity(t *testing.T) {
	assert.Equal(t, NewMat4Identity(), Mat4{}.Inverse())
}

func TestTransformPoint(t *testing.T) {
	p := NewVec3(1, 0, 0).Transform(NewMat4Translation(NewVec3(0, 5, 0)))
	assert.True(t, p.Compare(NewVec3(1, 5, 0), eps))

	rot := NewQuatFromAxisAngle(NewVec3(0, 0, 1), DegToRad(90), true).ToMat4()
	p = NewVec3(1, 0, 0).Transform(rot)
	assert.True(t, p.Compare(NewVec3(0, 1, 0), eps), "got %v", p)
}

func TestMulAppliesLeftFirst(t *testing.T) {
	scale := NewMat4Scale(NewVec3(2, 2, 2))
	move := NewMat4Translation(NewVec3(1, 0, 0))
	p := NewVec3(1, 0, 0).Transform(scale.Mul(move))
	assert.True(t, p.Compare(NewVec3(3, 0, 0), eps))
}

func TestFrustumCulling(t *testing.T) {
	proj := NewMat4Perspective(DegToRad(60), 1, 0.1, 100)
	view := NewMat4Identity()
	f := NewFrustumFromMatrix(view.Mul(proj))

	inFront := AABB{Min: NewVec3(-0.5, -0.5, -5.5), Max: NewVec3(0.5, 0.5, -4.5)}
	behind := AABB{Min: NewVec3(-0.5, -0.5, 4.5), Max: NewVec3(0.5, 0.5, 5.5)}
	beyondFar := AABB{Min: NewVec3(-0.5, -0.5, -201), Max: NewVec3(0.5, 0.5, -200)}

	assert.True(t, f.IntersectsAABB(inFront))
	assert.False(t, f.IntersectsAABB(behind))
	assert.False(t, f.IntersectsAABB(beyondFar))
	assert.True(t, f.ContainsPoint(NewVec3(0, 0, -10)))
	assert.False(t, f.IntersectsSphere(Sphere{Center: NewVec3(0, 0, 10), Radius: 1}))
}

func TestLookAtMatchesInverseWorld(t *testing.T) {
	view := NewMat4LookAt(NewVec3(0, 0, 10), NewVec3Zero(), NewVec3Up())
	world := NewMat4Translation(NewVec3(0, 0, 10))
	assert.True(t, view.Compare(world.Inverse(), eps))
}

func TestAABBTransform(t *testing.T) {
	b := AABB{Min: NewVec3(-1, -1, -1), Max: NewVec3(1, 1, 1)}
	moved := b.Transform(NewMat4Translation(NewVec3(10, 0, 0)))
	assert.True(t, moved.Min.Compare(NewVec3(9, -1, -1), eps))
	assert.True(t, moved.Max.Compare(NewVec3(11, 1, 1), eps))
	assert.True(t, moved.Contains(NewVec3(10, 0, 0)))
}

func TestGenerateCube(t *testing.T) {
	verts, idx, box := GenerateCube(2, 2, 2, 1, 1)
	assert.Len(t, verts, 24)
	assert.Len(t, idx, 36)
	assert.Equal(t, NewVec3(-1, -1, -1), box.Min)
	assert.Equal(t, NewVec3(1, 1, 1), box.Max)
	for _, i := range idx {
		assert.Less(t, i, uint32(24))
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(9, 0, 5))
	assert.Equal(t, float32(0), Clamp(float32(-1), 0, 1))
}
