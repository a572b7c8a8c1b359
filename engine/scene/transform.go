package scene

import (
	"github.com/spaghettifunk/tiny3d/engine/math"
)

// TransformSettings hold the local placement of a node relative to its
// parent.
type TransformSettings struct {
	Transform math.Transform
}

// worldTransformer is any node that places its children in space.
type worldTransformer interface {
	WorldTransform() math.Mat4
}

// parentWorld returns the world matrix of the closest ancestor that has
// one, or identity.
func parentWorld(n Node) math.Mat4 {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if w, ok := p.(worldTransformer); ok {
			return w.WorldTransform()
		}
	}
	return math.NewMat4Identity()
}

/**
 * @brief A node with a local transform. Its world matrix is the local matrix
 * followed by the parent's world matrix, cached until the node is marked
 * dirty. Moving a node marks its whole subtree dirty.
 */
type SGTransformNode struct {
	NodeBase
	TransformSettings

	world math.Mat4
}

func NewTransformNode(name string) *SGTransformNode {
	t := &SGTransformNode{}
	t.initTransform(t, name, nil)
	return t
}

func (t *SGTransformNode) initTransform(self Node, name string, destroy func()) {
	t.initNode(self, name, destroy)
	t.Transform = math.NewTransform()
	t.world = math.NewMat4Identity()
}

func (t *SGTransformNode) moved() {
	t.SetDirty(true, true)
}

func (t *SGTransformNode) Position() math.Vec3       { return t.Transform.Position }
func (t *SGTransformNode) Rotation() math.Quaternion { return t.Transform.Rotation }
func (t *SGTransformNode) Scale() math.Vec3          { return t.Transform.Scale }

func (t *SGTransformNode) SetPosition(position math.Vec3) {
	t.Transform.SetPosition(position)
	t.moved()
}

func (t *SGTransformNode) Translate(translation math.Vec3) {
	t.Transform.Translate(translation)
	t.moved()
}

func (t *SGTransformNode) SetRotation(rotation math.Quaternion) {
	t.Transform.SetRotation(rotation)
	t.moved()
}

func (t *SGTransformNode) Rotate(rotation math.Quaternion) {
	t.Transform.Rotate(rotation)
	t.moved()
}

func (t *SGTransformNode) SetScale(scale math.Vec3) {
	t.Transform.SetScale(scale)
	t.moved()
}

func (t *SGTransformNode) LocalTransform() math.Mat4 {
	return t.Transform.GetLocal()
}

// WorldTransform recomputes the world matrix when dirty and marks the node
// clean.
func (t *SGTransformNode) WorldTransform() math.Mat4 {
	if t.dirty {
		t.world = t.Transform.GetLocal().Mul(parentWorld(t.self))
		t.dirty = false
	}
	return t.world
}

// WorldPosition is the translation part of the world matrix.
func (t *SGTransformNode) WorldPosition() math.Vec3 {
	return t.WorldTransform().Translation()
}

func (t *SGTransformNode) axis(row int) math.Vec3 {
	w := t.WorldTransform()
	return math.NewVec3(w.Data[row*4], w.Data[row*4+1], w.Data[row*4+2]).Normalized()
}

func (t *SGTransformNode) Right() math.Vec3 {
	return t.axis(0)
}

func (t *SGTransformNode) Up() math.Vec3 {
	return t.axis(1)
}

// Forward points down -Z of the node's world frame.
func (t *SGTransformNode) Forward() math.Vec3 {
	return t.axis(2).MulScalar(-1)
}

func (t *SGTransformNode) Backward() math.Vec3 {
	return t.axis(2)
}

func (t *SGTransformNode) Left() math.Vec3 {
	return t.axis(0).MulScalar(-1)
}

func (t *SGTransformNode) Down() math.Vec3 {
	return t.axis(1).MulScalar(-1)
}

func (t *SGTransformNode) MoveForward(amount float32) {
	t.Translate(t.Forward().MulScalar(amount))
}

func (t *SGTransformNode) MoveBackward(amount float32) {
	t.Translate(t.Backward().MulScalar(amount))
}

func (t *SGTransformNode) MoveLeft(amount float32) {
	t.Translate(t.Left().MulScalar(amount))
}

func (t *SGTransformNode) MoveRight(amount float32) {
	t.Translate(t.Right().MulScalar(amount))
}

func (t *SGTransformNode) MoveUp(amount float32) {
	t.Translate(t.Up().MulScalar(amount))
}

func (t *SGTransformNode) MoveDown(amount float32) {
	t.Translate(t.Down().MulScalar(amount))
}

// Yaw rotates around the world up axis.
func (t *SGTransformNode) Yaw(amount float32) {
	t.SetRotation(math.NewQuatFromAxisAngle(math.NewVec3Up(), amount, true).Mul(t.Transform.Rotation))
}

// Pitch rotates around the node's own right axis.
func (t *SGTransformNode) Pitch(amount float32) {
	t.Rotate(math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), amount, true))
}

func (t *SGTransformNode) cloneTransform(src *SGTransformNode) error {
	if err := t.cloneProperties(&src.NodeBase); err != nil {
		return err
	}
	if err := copySettings(&t.TransformSettings, &src.TransformSettings); err != nil {
		return err
	}
	t.Transform.IsDirty = true
	return nil
}

func (t *SGTransformNode) Clone() (Node, error) {
	c := NewTransformNode(t.Name())
	if err := c.cloneTransform(t); err != nil {
		c.Release()
		return nil, err
	}
	if err := c.cloneChildren(&t.NodeBase); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}
