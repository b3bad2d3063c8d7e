package rawzip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderCentralDirectoryMatchesSliceIterator(t *testing.T) {
	data := writeSimpleArchive(t)

	eocd, err := LocateEOCD(SliceReaderAt(data), int64(len(data)))
	require.NoError(t, err)

	sliceCD := NewSliceCentralDirectory(data[eocd.CentralDirectoryOffset:eocd.CentralDirectoryEnd], eocd.BaseOffset)
	var fromSlice []string
	for rec, err := range sliceCD.All() {
		require.NoError(t, err)
		fromSlice = append(fromSlice, string(rec.FileName))
	}

	buf := make([]byte, RecommendedBufferSize)
	readerCD, err := NewReaderCentralDirectory(SliceReaderAt(data), eocd, buf)
	require.NoError(t, err)

	var fromReader []string
	for rec, err := range readerCD.All() {
		require.NoError(t, err)
		fromReader = append(fromReader, string(rec.FileName))
	}

	assert.Equal(t, fromSlice, fromReader)
	assert.Equal(t, []string{"a.txt", "dir/b.txt", "dir/empty/"}, fromSlice)
}

func TestNewReaderCentralDirectoryRejectsSmallBuffer(t *testing.T) {
	data := writeSimpleArchive(t)
	eocd, err := LocateEOCD(SliceReaderAt(data), int64(len(data)))
	require.NoError(t, err)

	_, err = NewReaderCentralDirectory(SliceReaderAt(data), eocd, make([]byte, 16))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestApplyZip64ExtraWidensSentinelledFields(t *testing.T) {
	r := CentralDirectoryRecord{
		CompressedSize:    sentinel32,
		UncompressedSize:  sentinel32,
		LocalHeaderOffset: sentinel32,
		DiskNumberStart:   sentinel16,
	}

	extra := make([]byte, 4+28)
	fw := fieldWriter(extra)
	fw.u16(extraZip64)
	fw.u16(28)
	fw.u64(0x1_0000_0001) // uncompressed
	fw.u64(0x1_0000_0002) // compressed
	fw.u64(0x1_0000_0003) // local header offset
	fw.u32(7)             // disk number start
	r.ExtraField = extra

	applyZip64ExtraFromFixed(&r)

	assert.EqualValues(t, 0x1_0000_0001, r.UncompressedSize)
	assert.EqualValues(t, 0x1_0000_0002, r.CompressedSize)
	assert.EqualValues(t, 0x1_0000_0003, r.LocalHeaderOffset)
	assert.EqualValues(t, 7, r.DiskNumberStart)
}

func TestCentralDirectoryRecordFlagAccessors(t *testing.T) {
	r := CentralDirectoryRecord{Flags: 0x8 | 0x800}
	assert.True(t, r.HasDataDescriptor())
	assert.True(t, r.IsUTF8())

	r2 := CentralDirectoryRecord{Flags: 0}
	assert.False(t, r2.HasDataDescriptor())
	assert.False(t, r2.IsUTF8())
}
