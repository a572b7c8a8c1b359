package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Text resource type. */
	ResourceTypeText ResourceType = iota
	/** @brief Binary resource type. */
	ResourceTypeBinary
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Material resource type. */
	ResourceTypeMaterial
	/** @brief Mesh resource type. */
	ResourceTypeMesh
	/** @brief Bitmap font resource type. */
	ResourceTypeBitmapFont
	/** @brief Custom resource type. Used by loaders outside the core engine. */
	ResourceTypeCustom
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeText:
		return "text"
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeMaterial:
		return "material"
	case ResourceTypeMesh:
		return "mesh"
	case ResourceTypeBitmapFont:
		return "bitmap_font"
	}
	return "custom"
}

/** @brief A magic number indicating the file as a tiny3d binary file. */
const ResourceMagic uint32 = 0x54334431

/** @brief The binary format version written by this engine. */
const ResourceVersion uint8 = 1

/**
 * @brief The header data for binary resource types.
 */
type ResourceHeader struct {
	/** @brief A magic number indicating the file as a tiny3d binary file. */
	MagicNumber uint32
	/** @brief The resource type. */
	ResourceType uint8
	/** @brief The format version this resource uses. */
	Version uint8
	/** @brief Reserved for future header data. */
	Reserved uint16
}
