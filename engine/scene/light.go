package scene

import (
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/renderer"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

/**
 * @brief SGLight places a dynamic light in the scene. Lights go to the light
 * group, which registers them with the renderer and draws nothing. Position
 * and direction come from the node's world transform.
 */
type SGLight struct {
	SGRenderable

	// Light holds the light properties. Position and direction are
	// overwritten from the world transform when the light is registered.
	Light metadata.LightData
}

func NewLight(name string, lightType metadata.LightType) *SGLight {
	l := &SGLight{}
	l.initRenderable(l, name, renderer.GroupLight, nil)
	l.Light = metadata.LightData{
		Type:        lightType,
		Colour:      math.NewVec4(1, 1, 1, 1),
		Range:       10,
		Attenuation: math.NewVec3(1, 0, 0),
		SpotInner:   math.DegToRad(20),
		SpotOuter:   math.DegToRad(30),
	}
	return l
}

// LightData returns the light with world space position and direction.
func (l *SGLight) LightData() metadata.LightData {
	d := l.Light
	d.Position = l.WorldPosition()
	d.Direction = l.Forward()
	return d
}

func (l *SGLight) FrustumCulling(frustum *math.Frustum, queue *renderer.RenderQueue) error {
	if !l.Visible {
		return nil
	}
	if l.Light.Type != metadata.LightTypeDirectional {
		s := math.Sphere{Center: l.WorldPosition(), Radius: l.Light.Range}
		if !frustum.IntersectsSphere(s) {
			return nil
		}
	}
	return l.addTo(queue)
}

func (l *SGLight) Clone() (Node, error) {
	c := NewLight(l.Name(), l.Light.Type)
	if err := c.cloneRenderable(&l.SGRenderable); err != nil {
		c.Release()
		return nil, err
	}
	if err := copySettings(&c.Light, &l.Light); err != nil {
		c.Release()
		return nil, err
	}
	if err := c.cloneChildren(&l.NodeBase); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}
