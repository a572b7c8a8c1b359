package scene

import (
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
)

type ProjectionType uint8

const (
	ProjectionPerspective ProjectionType = iota
	ProjectionOrthographic
)

/** @brief The name of the default camera. */
const DefaultCameraName string = "default"

// CameraSettings describe the projection and the viewport a camera renders
// into.
type CameraSettings struct {
	Projection ProjectionType
	/** @brief Vertical field of view, in radians. */
	FovY float32
	/** @brief Width over height. Zero means: take it from the viewport. */
	AspectRatio float32
	Near        float32
	Far         float32
	/** @brief The view volume height of an orthographic camera. */
	OrthoHeight float32
	ClearColour math.Vec4
	ClearFlags  renderer.ClearFlags
	Viewport    renderer.Viewport
	/** @brief Cameras render in ascending order. */
	Order int
}

/**
 * @brief Represents a camera that can be used for
 * a variety of things, especially rendering. The view matrix is the inverse
 * of the camera's world matrix, so a camera is placed and moved like any
 * other transform node.
 */
type SGCamera struct {
	SGTransformNode
	CameraSettings

	projection      math.Mat4
	projectionDirty bool
	// set while the camera is attached to a parent
	bound bool
}

func NewCamera(name string) *SGCamera {
	c := &SGCamera{}
	c.initTransform(c, name, nil)
	c.CameraSettings = CameraSettings{
		Projection:  ProjectionPerspective,
		FovY:        math.DegToRad(45),
		Near:        0.1,
		Far:         1000,
		OrthoHeight: 10,
		ClearColour: math.NewVec4(0, 0, 0.2, 1),
		ClearFlags:  renderer.ClearAll,
		Viewport:    renderer.Viewport{Width: 1280, Height: 720, MaxDepth: 1},
	}
	c.projectionDirty = true
	return c
}

// OnAttachParent binds the camera to its viewport.
func (c *SGCamera) OnAttachParent(parent Node) {
	c.bound = true
	c.projectionDirty = true
}

func (c *SGCamera) OnDetachParent(parent Node) {
	c.bound = false
}

// IsBound reports whether the camera currently drives its viewport.
func (c *SGCamera) IsBound() bool {
	return c.bound
}

func (c *SGCamera) SetPerspective(fovY, aspect, near, far float32) {
	c.CameraSettings.Projection = ProjectionPerspective
	c.FovY, c.AspectRatio, c.Near, c.Far = fovY, aspect, near, far
	c.projectionDirty = true
}

func (c *SGCamera) SetOrthographic(height, near, far float32) {
	c.CameraSettings.Projection = ProjectionOrthographic
	c.OrthoHeight, c.Near, c.Far = height, near, far
	c.projectionDirty = true
}

func (c *SGCamera) SetViewport(vp renderer.Viewport) {
	c.Viewport = vp
	c.projectionDirty = true
}

func (c *SGCamera) aspect() float32 {
	if c.AspectRatio > 0 {
		return c.AspectRatio
	}
	return c.Viewport.AspectRatio()
}

func (c *SGCamera) ProjectionMatrix() math.Mat4 {
	if c.projectionDirty {
		if c.CameraSettings.Projection == ProjectionOrthographic {
			halfH := c.OrthoHeight * 0.5
			halfW := halfH * c.aspect()
			c.projection = math.NewMat4Orthographic(-halfW, halfW, -halfH, halfH, c.Near, c.Far)
		} else {
			c.projection = math.NewMat4Perspective(c.FovY, c.aspect(), c.Near, c.Far)
		}
		c.projectionDirty = false
	}
	return c.projection
}

func (c *SGCamera) ViewMatrix() math.Mat4 {
	return c.WorldTransform().Inverse()
}

// Frustum is the view volume in world space.
func (c *SGCamera) Frustum() math.Frustum {
	return math.NewFrustumFromMatrix(c.ViewMatrix().Mul(c.ProjectionMatrix()))
}

func (c *SGCamera) Clone() (Node, error) {
	n := NewCamera(c.Name())
	if err := n.cloneTransform(&c.SGTransformNode); err != nil {
		n.Release()
		return nil, err
	}
	if err := copySettings(&n.CameraSettings, &c.CameraSettings); err != nil {
		n.Release()
		return nil, err
	}
	if err := n.cloneChildren(&c.NodeBase); err != nil {
		n.Release()
		return nil, err
	}
	return n, nil
}
