package math

// GeometryGenerateNormals assigns flat face normals to every triangle of an
// indexed triangle list.
func GeometryGenerateNormals(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)
		normal := edge1.Cross(edge2).Normalized()

		// NOTE: This just generates a face normal. Smoothing out should be done in a separate pass if desired.
		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

// GeometryGenerateTangents derives per-triangle tangents from positions and
// texture coordinates. Degenerate UV mappings leave the tangent untouched.
func GeometryGenerateTangents(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)

		deltaU1 := vertices[i1].Texcoord.X - vertices[i0].Texcoord.X
		deltaV1 := vertices[i1].Texcoord.Y - vertices[i0].Texcoord.Y
		deltaU2 := vertices[i2].Texcoord.X - vertices[i0].Texcoord.X
		deltaV2 := vertices[i2].Texcoord.Y - vertices[i0].Texcoord.Y

		dividend := deltaU1*deltaV2 - deltaU2*deltaV1
		if dividend == 0 {
			continue
		}
		fc := 1.0 / dividend

		tangent := Vec3{
			fc * (deltaV2*edge1.X - deltaV1*edge2.X),
			fc * (deltaV2*edge1.Y - deltaV1*edge2.Y),
			fc * (deltaV2*edge1.Z - deltaV1*edge2.Z),
		}.Normalized()

		handedness := float32(1.0)
		if deltaV1*deltaU2-deltaV2*deltaU1 < 0.0 {
			handedness = -1.0
		}

		t := tangent.MulScalar(handedness)
		vertices[i0].Tangent = t
		vertices[i1].Tangent = t
		vertices[i2].Tangent = t
	}
}

type cubeFace struct {
	normal  Vec3
	corners [4][3]int // 0 = min, 1 = max per axis
}

var cubeFaces = [6]cubeFace{
	{Vec3{0, 0, 1}, [4][3]int{{0, 0, 1}, {1, 1, 1}, {0, 1, 1}, {1, 0, 1}}},  // front
	{Vec3{0, 0, -1}, [4][3]int{{1, 0, 0}, {0, 1, 0}, {1, 1, 0}, {0, 0, 0}}}, // back
	{Vec3{-1, 0, 0}, [4][3]int{{0, 0, 0}, {0, 1, 1}, {0, 1, 0}, {0, 0, 1}}}, // left
	{Vec3{1, 0, 0}, [4][3]int{{1, 0, 1}, {1, 1, 0}, {1, 1, 1}, {1, 0, 0}}},  // right
	{Vec3{0, -1, 0}, [4][3]int{{1, 0, 1}, {0, 0, 0}, {1, 0, 0}, {0, 0, 1}}}, // bottom
	{Vec3{0, 1, 0}, [4][3]int{{0, 1, 1}, {1, 1, 0}, {0, 1, 0}, {1, 1, 1}}},  // top
}

/**
 * @brief Generates a box centred on the origin: 4 vertices and 6 indices per
 * side. Zero dimensions or tiling default to one.
 */
func GenerateCube(width, height, depth, tileX, tileY float32) ([]Vertex3D, []uint32, AABB) {
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}
	if depth == 0 {
		depth = 1
	}
	if tileX == 0 {
		tileX = 1
	}
	if tileY == 0 {
		tileY = 1
	}

	half := Vec3{width * 0.5, height * 0.5, depth * 0.5}
	extent := [2]Vec3{half.MulScalar(-1), half}
	uvs := [4]Vec2{{0, 0}, {tileX, tileY}, {0, tileY}, {tileX, 0}}

	vertices := make([]Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for f, face := range cubeFaces {
		for c, corner := range face.corners {
			vertices = append(vertices, Vertex3D{
				Position: Vec3{extent[corner[0]].X, extent[corner[1]].Y, extent[corner[2]].Z},
				Normal:   face.normal,
				Texcoord: uvs[c],
				Colour:   Vec4{1, 1, 1, 1},
			})
		}
		base := uint32(f * 4)
		indices = append(indices, base+0, base+1, base+2, base+0, base+3, base+1)
	}

	GeometryGenerateTangents(vertices, indices)
	return vertices, indices, AABB{Min: extent[0], Max: extent[1]}
}
