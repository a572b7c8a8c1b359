package platform

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/tiny3d/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDataStream(t *testing.T) {
	ds := NewMemoryDataStream(nil, true)
	n, err := ds.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), ds.Tell())
	assert.True(t, ds.EOF())

	_, err = ds.Seek(1, io.SeekStart)
	require.NoError(t, err)
	_, err = ds.Write([]byte("EL"))
	require.NoError(t, err)
	assert.Equal(t, "hELlo", string(ds.Bytes()))

	_, err = ds.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	rest, err := ReadAll(ds)
	require.NoError(t, err)
	assert.Equal(t, "lo", string(rest))

	_, err = ds.Seek(-10, io.SeekCurrent)
	assert.ErrorIs(t, err, core.ErrOutOfBounds)

	ro := NewMemoryDataStream([]byte("abc"), false)
	_, err = ro.Write([]byte("x"))
	assert.ErrorIs(t, err, core.ErrWriteFailed)
	require.NoError(t, ro.Close())
	_, err = ro.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestFileDataStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.bin")

	w, err := OpenFileDataStream(path, FileModeWrite)
	require.NoError(t, err)
	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	a, err := OpenFileDataStream(path, FileModeAppend)
	require.NoError(t, err)
	assert.Equal(t, int64(10), a.Tell())
	_, err = a.Write([]byte("ab"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	r, err := OpenFileDataStream(path, FileModeRead)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(12), r.Size())
	_, err = r.Seek(8, io.SeekStart)
	require.NoError(t, err)
	rest, err := ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "89ab", string(rest))
	assert.True(t, r.EOF())

	_, err = OpenFileDataStream(filepath.Join(t.TempDir(), "missing"), FileModeRead)
	assert.Error(t, err)
}

func TestCompressedBlockRoundTrip(t *testing.T) {
	cases := map[string][]byte{
		"repetitive": bytes.Repeat([]byte("tiny3d "), 512),
		"tiny":       []byte("x"),
		"empty":      {},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCompressedBlock(&buf, data))
			out, err := ReadCompressedBlock(&buf)
			require.NoError(t, err)
			assert.Equal(t, data, out)
			assert.Zero(t, buf.Len())
		})
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCompressedBlock(&buf, bytes.Repeat([]byte{7}, 4096)))
	assert.Less(t, buf.Len(), 4096)
}

func TestCompressedBlockRejectsCorruptData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCompressedBlock(&buf, bytes.Repeat([]byte("abcd"), 256)))
	data := buf.Bytes()
	// claim a larger raw size than the payload expands to
	data[0]++
	_, err := ReadCompressedBlock(bytes.NewReader(data))
	assert.ErrorIs(t, err, core.ErrInvalidContent)

	_, err = ReadCompressedBlock(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}
