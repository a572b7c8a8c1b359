package math

/**
 * @brief Represents the local transform of an object: position, rotation
 * and scale plus the cached matrix built from them. Mutate through the
 * setters so the cache is invalidated.
 */
type Transform struct {
	/** @brief The position relative to the parent. */
	Position Vec3
	/** @brief The rotation relative to the parent. */
	Rotation Quaternion
	/** @brief The scale relative to the parent. */
	Scale Vec3
	/**
	 * @brief Indicates if the position, rotation or scale have changed,
	 * indicating that the local matrix needs to be recalculated.
	 */
	IsDirty bool
	/** @brief The local transformation matrix. */
	Local Mat4
}

func NewTransform() Transform {
	return Transform{
		Rotation: NewQuatIdentity(),
		Scale:    NewVec3One(),
		IsDirty:  true,
		Local:    NewMat4Identity(),
	}
}

func NewTransformFromPosition(position Vec3) Transform {
	t := NewTransform()
	t.Position = position
	return t
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
	t.IsDirty = true
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
	t.IsDirty = true
}

func (t *Transform) SetRotation(rotation Quaternion) {
	t.Rotation = rotation
	t.IsDirty = true
}

func (t *Transform) Rotate(rotation Quaternion) {
	t.Rotation = t.Rotation.Mul(rotation)
	t.IsDirty = true
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
	t.IsDirty = true
}

func (t *Transform) SetPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) {
	t.Position = position
	t.Rotation = rotation
	t.Scale = scale
	t.IsDirty = true
}

// GetLocal returns scale, then rotation, then translation as one matrix.
func (t *Transform) GetLocal() Mat4 {
	if t.IsDirty {
		s := NewMat4Scale(t.Scale)
		t.Local = s.Mul(t.Rotation.ToMat4()).Mul(NewMat4Translation(t.Position))
		t.IsDirty = false
	}
	return t.Local
}
