package math

import "github.com/chewxy/math32"

func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

/**
 * @brief Returns the result of multiplying mt and other. With row vectors
 * the result applies mt first, then other.
 */
func (mt Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out.Data[row*4+col] = sum
		}
	}
	return out
}

// Column returns column i as a Vec4. Used to extract clip planes.
func (mt Mat4) Column(i int) Vec4 {
	return Vec4{mt.Data[i], mt.Data[4+i], mt.Data[8+i], mt.Data[12+i]}
}

func (mt Mat4) Translation() Vec3 {
	return Vec3{mt.Data[12], mt.Data[13], mt.Data[14]}
}

func (mt Mat4) Compare(other Mat4, tolerance float32) bool {
	for i := range mt.Data {
		if !NearlyEqual(mt.Data[i], other.Data[i], tolerance) {
			return false
		}
	}
	return true
}

/**
 * @brief Creates and returns an orthographic projection matrix. Typically used to
 * render flat or 2D scenes.
 */
func NewMat4Orthographic(left, right, bottom, top, nearClip, farClip float32) Mat4 {
	out := NewMat4Identity()

	lr := 1.0 / (left - right)
	bt := 1.0 / (bottom - top)
	nf := 1.0 / (nearClip - farClip)

	out.Data[0] = -2.0 * lr
	out.Data[5] = -2.0 * bt
	out.Data[10] = 2.0 * nf

	out.Data[12] = (left + right) * lr
	out.Data[13] = (top + bottom) * bt
	out.Data[14] = (farClip + nearClip) * nf
	return out
}

/**
 * @brief Creates and returns a right handed perspective matrix looking down -Z.
 */
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	halfTanFov := math32.Tan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * halfTanFov)
	out.Data[5] = 1.0 / halfTanFov
	out.Data[10] = -((farClip + nearClip) / (farClip - nearClip))
	out.Data[11] = -1.0
	out.Data[14] = -((2.0 * farClip * nearClip) / (farClip - nearClip))
	return out
}

func NewMat4Transposed(matrix Mat4) Mat4 {
	out := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out.Data[col*4+row] = matrix.Data[row*4+col]
		}
	}
	return out
}

/**
 * @brief Creates and returns an inverse of the provided matrix using
 * Gauss-Jordan elimination with partial pivoting. A singular matrix yields
 * the identity.
 */
func (mt Mat4) Inverse() Mat4 {
	var a [4][8]float32
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			a[r][c] = mt.Data[r*4+c]
		}
		a[r][4+r] = 1
	}

	for col := 0; col < 4; col++ {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if math32.Abs(a[r][col]) > math32.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math32.Abs(a[pivot][col]) < K_FLOAT_EPSILON {
			return NewMat4Identity()
		}
		a[col], a[pivot] = a[pivot], a[col]

		inv := 1 / a[col][col]
		for c := 0; c < 8; c++ {
			a[col][c] *= inv
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			f := a[r][col]
			if f == 0 {
				continue
			}
			for c := 0; c < 8; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	out := Mat4{}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out.Data[r*4+c] = a[r][4+c]
		}
	}
	return out
}

func NewMat4Translation(position Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[12] = position.X
	out.Data[13] = position.Y
	out.Data[14] = position.Z
	return out
}

func NewMat4Scale(scale Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = scale.X
	out.Data[5] = scale.Y
	out.Data[10] = scale.Z
	return out
}

/**
 * @brief Creates a view matrix at position looking at target.
 */
func NewMat4LookAt(position, target, up Vec3) Mat4 {
	zAxis := position.Sub(target).Normalized()
	xAxis := up.Cross(zAxis).Normalized()
	yAxis := zAxis.Cross(xAxis)

	out := NewMat4Identity()
	out.Data[0], out.Data[1], out.Data[2] = xAxis.X, yAxis.X, zAxis.X
	out.Data[4], out.Data[5], out.Data[6] = xAxis.Y, yAxis.Y, zAxis.Y
	out.Data[8], out.Data[9], out.Data[10] = xAxis.Z, yAxis.Z, zAxis.Z
	out.Data[12] = -xAxis.Dot(position)
	out.Data[13] = -yAxis.Dot(position)
	out.Data[14] = -zAxis.Dot(position)
	return out
}
