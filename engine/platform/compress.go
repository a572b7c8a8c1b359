package platform

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/spaghettifunk/tiny3d/engine/core"
)

/**
 * @brief Compressed blocks are framed as two little endian uint32 values,
 * the raw size and the packed size, followed by the packed bytes. A packed
 * size of zero means the payload did not compress and is stored raw.
 */
const blockHeaderSize = 8

// maxBlockSize bounds what ReadCompressedBlock allocates for one block.
const maxBlockSize = 1 << 30

func WriteCompressedBlock(w io.Writer, data []byte) error {
	packed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, packed, nil)
	if err != nil {
		return fmt.Errorf("compress block: %w", err)
	}

	var header [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(data)))
	payload := data
	if n > 0 && n < len(data) {
		binary.LittleEndian.PutUint32(header[4:8], uint32(n))
		payload = packed[:n]
	}
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write block header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write block: %w", err)
	}
	return nil
}

func ReadCompressedBlock(r io.Reader) ([]byte, error) {
	var header [blockHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read block header: %w", err)
	}
	rawSize := binary.LittleEndian.Uint32(header[0:4])
	packedSize := binary.LittleEndian.Uint32(header[4:8])
	if rawSize > maxBlockSize || packedSize > maxBlockSize {
		return nil, fmt.Errorf("block of %d bytes: %w", rawSize, core.ErrInvalidContent)
	}

	if packedSize == 0 {
		raw := make([]byte, rawSize)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("read block: %w", err)
		}
		return raw, nil
	}

	packed := make([]byte, packedSize)
	if _, err := io.ReadFull(r, packed); err != nil {
		return nil, fmt.Errorf("read block: %w", err)
	}
	raw := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(packed, raw)
	if err != nil {
		return nil, fmt.Errorf("uncompress block: %w: %w", core.ErrInvalidContent, err)
	}
	if n != int(rawSize) {
		return nil, fmt.Errorf("block expanded to %d bytes, want %d: %w", n, rawSize, core.ErrInvalidContent)
	}
	return raw, nil
}
