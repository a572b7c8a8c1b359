package loaders

import (
	"fmt"
	"os"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

type BinaryLoader struct{}

func (bl *BinaryLoader) ResourceType() metadata.ResourceType { return metadata.ResourceTypeBinary }
func (bl *BinaryLoader) Extensions() []string                { return []string{".bin"} }

// Load returns the file content as []byte.
func (bl *BinaryLoader) Load(path string, params any) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, core.ErrResourceNotFound, err)
	}
	return data, nil
}

type TextLoader struct{}

func (tl *TextLoader) ResourceType() metadata.ResourceType { return metadata.ResourceTypeText }
func (tl *TextLoader) Extensions() []string                { return []string{".txt"} }

// Load returns the file content as a string.
func (tl *TextLoader) Load(path string, params any) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, core.ErrResourceNotFound, err)
	}
	return string(data), nil
}
