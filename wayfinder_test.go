package rawzip

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateCompressedDataAndEntryReader(t *testing.T) {
	data := writeSimpleArchive(t)
	a, err := OpenSlice(data)
	require.NoError(t, err)

	var target CentralDirectoryRecord
	for rec, err := range a.Entries() {
		require.NoError(t, err)
		if string(rec.FileName) == "dir/b.txt" {
			target = rec
		}
	}
	require.NotEmpty(t, target.FileName)

	w := target.Wayfinder()
	rng, err := LocateCompressedData(SliceReaderAt(data), w)
	require.NoError(t, err)
	assert.EqualValues(t, w.CompressedSize, rng.Length)
	assert.Equal(t, rng.Offset+int64(rng.Length), rng.End())

	er := NewEntryReader(SliceReaderAt(data), rng)
	body, err := io.ReadAll(er)
	require.NoError(t, err)
	assert.Equal(t, "world, a bit longer this time", string(body))

	// Reading past the range returns io.EOF, not a short read forever.
	_, err = er.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseLocalFileHeader(t *testing.T) {
	data := writeSimpleArchive(t)
	h, err := ParseLocalFileHeader(SliceReaderAt(data), 0)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", string(h.FileName))
	assert.True(t, h.HasDataDescriptor())
	// sizes are deferred to the data descriptor for entries with the
	// data-descriptor flag set.
	assert.Zero(t, h.CompressedSize)
	assert.Zero(t, h.UncompressedSize)
}

func TestLocateCompressedDataRejectsBadSignature(t *testing.T) {
	data := writeSimpleArchive(t)
	corrupted := append([]byte{}, data...)
	corrupted[0] = 0 // clobber the local file header signature

	_, err := LocateCompressedData(SliceReaderAt(corrupted), Wayfinder{LocalHeaderOffset: 0})
	assert.Error(t, err)
	var zerr *Error
	assert.ErrorAs(t, err, &zerr)
	assert.Equal(t, KindInvalidSignature, zerr.Kind)
}
