package loaders

import "github.com/spaghettifunk/tiny3d/engine/renderer/metadata"

/**
 * @brief A resource loader turns one file into the in memory form of one
 * resource type. Loaders are stateless apart from their configuration and
 * may run concurrently on the job system.
 */
type Loader interface {
	ResourceType() metadata.ResourceType
	/** @brief File extensions handled, with the leading dot. */
	Extensions() []string
	Load(path string, params any) (any, error)
}

// TypeForExtension returns the resource type of the first loader that claims
// ext.
func TypeForExtension(ext string, loaders ...Loader) (metadata.ResourceType, bool) {
	for _, l := range loaders {
		for _, e := range l.Extensions() {
			if e == ext {
				return l.ResourceType(), true
			}
		}
	}
	return metadata.ResourceTypeCustom, false
}

// Builtin returns every loader shipped with the engine.
func Builtin(images *ImageLoader) []Loader {
	return []Loader{&TextLoader{}, &BinaryLoader{}, images, &MaterialLoader{}, &MeshLoader{}, &BitmapFontLoader{}}
}

// ExtensionTypes maps every extension claimed by loaders to its resource
// type. Earlier loaders win.
func ExtensionTypes(loaders ...Loader) map[string]metadata.ResourceType {
	types := make(map[string]metadata.ResourceType)
	for _, l := range loaders {
		for _, e := range l.Extensions() {
			if _, ok := types[e]; !ok {
				types[e] = l.ResourceType()
			}
		}
	}
	return types
}
