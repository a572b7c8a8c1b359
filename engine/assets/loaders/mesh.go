package loaders

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/spaghettifunk/tiny3d/engine/math"
	"github.com/spaghettifunk/tiny3d/engine/platform"
	"github.com/spaghettifunk/tiny3d/engine/renderer/metadata"
)

/**
 * @brief MeshLoader reads the engine's binary mesh format:
 *
 *	ResourceHeader
 *	name, material name   uint16 length + bytes
 *	bounds                6 x float32
 *	vertex count, index count  uint32
 *	vertices              lz4 block of math.Vertex3D
 *	indices               lz4 block of uint32
 *
 * Everything is little endian.
 */
type MeshLoader struct{}

func (ml *MeshLoader) ResourceType() metadata.ResourceType { return metadata.ResourceTypeMesh }
func (ml *MeshLoader) Extensions() []string                { return []string{".mesh"} }

// Load returns a *metadata.MeshData.
func (ml *MeshLoader) Load(path string, params any) (any, error) {
	ds, err := platform.OpenFileDataStream(path, platform.FileModeRead)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrResourceNotFound, err)
	}
	defer ds.Close()
	mesh, err := ReadMesh(ds)
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", path, err)
	}
	return mesh, nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > 0xffff {
		return fmt.Errorf("string of %d bytes: %w", len(s), core.ErrOutOfBounds)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func WriteMesh(w io.Writer, mesh *metadata.MeshData) error {
	if mesh == nil {
		return fmt.Errorf("write mesh: %w", core.ErrNilArgument)
	}
	header := metadata.ResourceHeader{
		MagicNumber:  metadata.ResourceMagic,
		ResourceType: uint8(metadata.ResourceTypeMesh),
		Version:      metadata.ResourceVersion,
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	if err := writeString(w, mesh.Name); err != nil {
		return err
	}
	if err := writeString(w, mesh.MaterialName); err != nil {
		return err
	}
	counts := [2]uint32{uint32(len(mesh.Vertices)), uint32(len(mesh.Indices))}
	if err := binary.Write(w, binary.LittleEndian, &mesh.Bounds); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &counts); err != nil {
		return err
	}

	var vertices bytes.Buffer
	if err := binary.Write(&vertices, binary.LittleEndian, mesh.Vertices); err != nil {
		return err
	}
	if err := platform.WriteCompressedBlock(w, vertices.Bytes()); err != nil {
		return err
	}
	indices := make([]byte, 4*len(mesh.Indices))
	for i, idx := range mesh.Indices {
		binary.LittleEndian.PutUint32(indices[i*4:], idx)
	}
	return platform.WriteCompressedBlock(w, indices)
}

func ReadMesh(r io.Reader) (*metadata.MeshData, error) {
	var header metadata.ResourceHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("header: %w: %w", core.ErrInvalidContent, err)
	}
	if header.MagicNumber != metadata.ResourceMagic || header.ResourceType != uint8(metadata.ResourceTypeMesh) {
		return nil, fmt.Errorf("not a mesh file: %w", core.ErrInvalidFileType)
	}
	if header.Version != metadata.ResourceVersion {
		return nil, fmt.Errorf("mesh version %d: %w", header.Version, core.ErrInvalidVersion)
	}

	mesh := &metadata.MeshData{}
	var (
		err    error
		counts [2]uint32
	)
	if mesh.Name, err = readString(r); err != nil {
		return nil, fmt.Errorf("name: %w: %w", core.ErrInvalidContent, err)
	}
	if mesh.MaterialName, err = readString(r); err != nil {
		return nil, fmt.Errorf("material name: %w: %w", core.ErrInvalidContent, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &mesh.Bounds); err != nil {
		return nil, fmt.Errorf("bounds: %w: %w", core.ErrInvalidContent, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &counts); err != nil {
		return nil, fmt.Errorf("counts: %w: %w", core.ErrInvalidContent, err)
	}

	raw, err := platform.ReadCompressedBlock(r)
	if err != nil {
		return nil, err
	}
	mesh.Vertices = make([]math.Vertex3D, counts[0])
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, mesh.Vertices); err != nil {
		return nil, fmt.Errorf("vertices: %w: %w", core.ErrInvalidContent, err)
	}

	raw, err = platform.ReadCompressedBlock(r)
	if err != nil {
		return nil, err
	}
	if len(raw) != int(counts[1])*4 {
		return nil, fmt.Errorf("index block of %d bytes: %w", len(raw), core.ErrInvalidContent)
	}
	mesh.Indices = make([]uint32, counts[1])
	for i := range mesh.Indices {
		mesh.Indices[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return mesh, nil
}
