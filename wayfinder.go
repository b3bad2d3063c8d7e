package rawzip

import (
	"io"
)

// Wayfinder is the minimal, self-contained keyset needed to locate and
// verify one entry's compressed bytes without holding on to the full
// borrowed CentralDirectoryRecord it came from.
// It is a plain value: safe to store, copy, and look up later, long after
// the central directory iterator that produced it has moved on.
type Wayfinder struct {
	UncompressedSize  uint64
	CompressedSize    uint64
	LocalHeaderOffset uint64
	CRC32             uint32
	HasDataDescriptor bool
}

// CompressedDataRange is the byte range within the archive stream that
// holds one entry's compressed data, resolved by reading past its local
// file header; in a well-formed archive, ranges for distinct entries never overlap.
type CompressedDataRange struct {
	// Offset is the absolute position of the first byte of compressed
	// data.
	Offset int64
	// Length is the number of compressed bytes, taken from the wayfinder
	// (the local header's own size fields are untrusted and never
	// substituted in).
	Length uint64
}

// End returns Offset+Length, the first byte past the compressed range.
func (c CompressedDataRange) End() int64 { return c.Offset + int64(c.Length) }

// LocateCompressedData parses the 30-byte local file header at
// w.LocalHeaderOffset and returns the range of the entry's compressed
// bytes immediately following it. The length comes only from the
// wayfinder's own CompressedSize; the local header's name/extra lengths
// are used to skip past it but never to size an allocation.
func LocateCompressedData(r ReadAt, w Wayfinder) (CompressedDataRange, error) {
	fixed := make([]byte, localFileHeaderLen)
	if err := readExactAt(r, fixed, int64(w.LocalHeaderOffset)); err != nil {
		return CompressedDataRange{}, err
	}

	fr := fieldReader(fixed)
	if sig := fr.u32(); sig != sigLocalFileHeader {
		return CompressedDataRange{}, errInvalidSignature(sigLocalFileHeader, sig)
	}
	fr.skip(2) // version needed
	fr.skip(2) // flags
	fr.skip(2) // compression method
	fr.skip(2) // mod time
	fr.skip(2) // mod date
	fr.skip(4) // crc-32
	fr.skip(4) // compressed size
	fr.skip(4) // uncompressed size
	nameLen := fr.u16()
	extraLen := fr.u16()

	dataStart := int64(w.LocalHeaderOffset) + localFileHeaderLen + int64(nameLen) + int64(extraLen)
	return CompressedDataRange{Offset: dataStart, Length: w.CompressedSize}, nil
}

// LocalFileHeader is a parsed local file header, returned by ParseLocalFileHeader
// for callers that need more than just the compressed data range (e.g. a
// streaming reader validating the local copy of metadata against the
// central directory's).
type LocalFileHeader struct {
	VersionNeeded uint16
	Flags         uint16
	CompressionID uint16
	DOSModTime    uint16
	DOSModDate    uint16
	CRC32         uint32

	// CompressedSize and UncompressedSize are returned as stored. When flag
	// bit 3 (data descriptor follows) is set, APPNOTE permits writers to
	// zero these in the local header and defer them to the trailing data
	// descriptor; this package's Writer does so.
	CompressedSize   uint32
	UncompressedSize uint32

	FileName   RawPath
	ExtraField []byte

	// DataOffset is the absolute offset of the first byte of compressed
	// data, immediately following this header's variable-length fields.
	DataOffset int64
}

// HasDataDescriptor reports whether flag bit 3 is set.
func (h *LocalFileHeader) HasDataDescriptor() bool { return h.Flags&0x8 != 0 }

// ParseLocalFileHeader reads and parses the full local file header
// (fixed portion plus name and extra field) at offset within r.
func ParseLocalFileHeader(r ReadAt, offset int64) (LocalFileHeader, error) {
	fixed := make([]byte, localFileHeaderLen)
	if err := readExactAt(r, fixed, offset); err != nil {
		return LocalFileHeader{}, err
	}

	fr := fieldReader(fixed)
	if sig := fr.u32(); sig != sigLocalFileHeader {
		return LocalFileHeader{}, errInvalidSignature(sigLocalFileHeader, sig)
	}

	h := LocalFileHeader{
		VersionNeeded:    fr.u16(),
		Flags:            fr.u16(),
		CompressionID:    fr.u16(),
		DOSModTime:       fr.u16(),
		DOSModDate:       fr.u16(),
		CRC32:            fr.u32(),
		CompressedSize:   fr.u32(),
		UncompressedSize: fr.u32(),
	}
	nameLen := fr.u16()
	extraLen := fr.u16()

	varBuf := make([]byte, int(nameLen)+int(extraLen))
	if err := readExactAt(r, varBuf, offset+localFileHeaderLen); err != nil {
		return LocalFileHeader{}, err
	}
	h.FileName = RawPath(varBuf[:nameLen])
	h.ExtraField = varBuf[nameLen:]
	h.DataOffset = offset + localFileHeaderLen + int64(nameLen) + int64(extraLen)

	return h, nil
}

// EntryReader is a bounded io.Reader over one entry's raw compressed
// bytes, reading through an underlying ReadAt without ever reading past
// the entry's known CompressedSize. It
// yields compressed bytes exactly as stored; decompression is always the
// caller's responsibility; rawzip never decompresses.
type EntryReader struct {
	r        ReadAt
	rng      CompressedDataRange
	pos, end int64
}

// NewEntryReader returns an EntryReader over the given CompressedDataRange.
func NewEntryReader(r ReadAt, rng CompressedDataRange) *EntryReader {
	return &EntryReader{r: r, rng: rng, pos: rng.Offset, end: rng.End()}
}

// Range returns the CompressedDataRange this reader was constructed with,
// letting a caller that wraps it in a decompressor (and so can no longer
// reach it for the range directly) still locate the entry's trailing data
// descriptor via VerifyingReader.
func (e *EntryReader) Range() CompressedDataRange { return e.rng }

// ReadAt returns the underlying ReadAt this reader bounds, for the same
// reason as Range.
func (e *EntryReader) ReadAt() ReadAt { return e.r }

// Read implements io.Reader. It returns io.EOF once the range is
// exhausted rather than relying on the underlying ReadAt to signal it,
// since ReadAt's own (0, nil) EOF contract is about the stream's end, not
// this entry's boundary.
func (e *EntryReader) Read(p []byte) (int, error) {
	if e.pos >= e.end {
		return 0, io.EOF
	}
	if remaining := e.end - e.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := readAtMostAt(e.r, p, e.pos)
	e.pos += int64(n)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}
