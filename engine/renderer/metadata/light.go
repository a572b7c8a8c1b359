package metadata

import "github.com/spaghettifunk/tiny3d/engine/math"

type LightType uint8

const (
	LightTypePoint LightType = iota
	LightTypeDirectional
	LightTypeSpot
)

// LightData is what the backend needs to shade with one dynamic light.
type LightData struct {
	Type      LightType
	Colour    math.Vec4
	Position  math.Vec3
	Direction math.Vec3
	Range     float32
	// constant, linear, quadratic
	Attenuation math.Vec3
	SpotInner   float32
	SpotOuter   float32
}
