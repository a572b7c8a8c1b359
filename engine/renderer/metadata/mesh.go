package metadata

import "github.com/spaghettifunk/tiny3d/engine/math"

// MeshData is CPU side geometry as loaded from disk, before upload.
type MeshData struct {
	Name         string
	Vertices     []math.Vertex3D
	Indices      []uint32
	MaterialName string
	Bounds       math.AABB
}
