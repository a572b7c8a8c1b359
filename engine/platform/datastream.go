package platform

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spaghettifunk/tiny3d/engine/core"
)

/**
 * @brief DataStream is a seekable byte stream over a file or a memory
 * block. Loaders and codecs read resources through it so the same code
 * serves files on disk and data already in memory.
 */
type DataStream interface {
	io.ReadWriteSeeker
	io.Closer

	/** @brief Current position from the start of the stream. */
	Tell() int64
	/** @brief Whether the position is at or past the end. */
	EOF() bool
	Size() int64
}

type FileMode uint8

const (
	FileModeRead FileMode = iota
	/** @brief Creates or truncates the file. */
	FileModeWrite
	FileModeReadWrite
	FileModeAppend
)

func (m FileMode) flags() int {
	switch m {
	case FileModeWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case FileModeReadWrite:
		return os.O_RDWR | os.O_CREATE
	case FileModeAppend:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	return os.O_RDONLY
}

type FileDataStream struct {
	file *os.File
	pos  int64
}

func OpenFileDataStream(path string, mode FileMode) (*FileDataStream, error) {
	f, err := os.OpenFile(path, mode.flags(), 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	ds := &FileDataStream{file: f}
	if mode == FileModeAppend {
		if ds.pos, err = f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, err
		}
	}
	return ds, nil
}

func (ds *FileDataStream) Read(p []byte) (int, error) {
	n, err := ds.file.Read(p)
	ds.pos += int64(n)
	return n, err
}

func (ds *FileDataStream) Write(p []byte) (int, error) {
	n, err := ds.file.Write(p)
	ds.pos += int64(n)
	return n, err
}

func (ds *FileDataStream) Seek(offset int64, whence int) (int64, error) {
	pos, err := ds.file.Seek(offset, whence)
	if err != nil {
		return ds.pos, err
	}
	ds.pos = pos
	return pos, nil
}

func (ds *FileDataStream) Tell() int64 {
	return ds.pos
}

func (ds *FileDataStream) Size() int64 {
	info, err := ds.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (ds *FileDataStream) EOF() bool {
	return ds.pos >= ds.Size()
}

func (ds *FileDataStream) Close() error {
	return ds.file.Close()
}

/**
 * @brief MemoryDataStream reads and writes a byte slice. A writable stream
 * grows when written past its end, a read only one rejects writes.
 */
type MemoryDataStream struct {
	data     []byte
	pos      int64
	writable bool
	closed   bool
}

func NewMemoryDataStream(data []byte, writable bool) *MemoryDataStream {
	return &MemoryDataStream{data: data, writable: writable}
}

var errStreamClosed = errors.New("data stream is closed")

func (ds *MemoryDataStream) Read(p []byte) (int, error) {
	if ds.closed {
		return 0, errStreamClosed
	}
	if ds.pos >= int64(len(ds.data)) {
		return 0, io.EOF
	}
	n := copy(p, ds.data[ds.pos:])
	ds.pos += int64(n)
	return n, nil
}

func (ds *MemoryDataStream) Write(p []byte) (int, error) {
	if ds.closed {
		return 0, errStreamClosed
	}
	if !ds.writable {
		return 0, fmt.Errorf("write to a read only stream: %w", core.ErrWriteFailed)
	}
	end := ds.pos + int64(len(p))
	if end > int64(len(ds.data)) {
		ds.data = append(ds.data, make([]byte, end-int64(len(ds.data)))...)
	}
	copy(ds.data[ds.pos:end], p)
	ds.pos = end
	return len(p), nil
}

func (ds *MemoryDataStream) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = ds.pos + offset
	case io.SeekEnd:
		pos = int64(len(ds.data)) + offset
	default:
		return ds.pos, fmt.Errorf("seek whence %d: %w", whence, core.ErrOutOfBounds)
	}
	if pos < 0 {
		return ds.pos, fmt.Errorf("seek to %d: %w", pos, core.ErrOutOfBounds)
	}
	ds.pos = pos
	return pos, nil
}

func (ds *MemoryDataStream) Tell() int64 { return ds.pos }
func (ds *MemoryDataStream) Size() int64 { return int64(len(ds.data)) }
func (ds *MemoryDataStream) EOF() bool   { return ds.pos >= int64(len(ds.data)) }

// Bytes returns the whole underlying buffer.
func (ds *MemoryDataStream) Bytes() []byte {
	return ds.data
}

func (ds *MemoryDataStream) Close() error {
	ds.closed = true
	return nil
}

// ReadAll reads from the current position to the end of ds.
func ReadAll(ds DataStream) ([]byte, error) {
	return io.ReadAll(ds)
}
