package rawzip

import (
	"encoding/binary"
	"io"
)

// VerifyingReader wraps an io.Reader (typically a decompressor fed from an
// EntryReader) and checks the CRC-32 and uncompressed size of the bytes
// that pass through it, failing on the first read past EOF that doesn't
// match. It never decompresses anything itself — verification happens on
// whatever bytes the caller chooses to run through it, which only makes
// sense as the decompressed stream.
//
// When the entry has a trailing data descriptor, the CRC recorded there is
// used instead of the central directory's, since some writers only ever
// write a real CRC to the descriptor and leave the central directory's
// field zeroed; the expected CRC is read from ra at the end of the
// entry's compressed data range. An expected CRC of zero is treated as
// "unchecked" rather than a guaranteed mismatch.
type VerifyingReader struct {
	r   io.Reader
	ra  ReadAt
	crc *CRC32

	descriptorOffset int64
	hasDescriptor    bool

	size     uint64
	wantCRC  uint32
	wantSize uint64

	done bool
}

// NewVerifyingReader wraps r, verifying its output against w once r is
// fully drained. ra and rng locate the entry's compressed data within the
// archive so the trailing data descriptor, if any, can be read; ra may be
// nil if w.HasDataDescriptor is false.
func NewVerifyingReader(r io.Reader, ra ReadAt, rng CompressedDataRange, w Wayfinder) *VerifyingReader {
	return &VerifyingReader{
		r:                r,
		ra:               ra,
		crc:              NewCRC32(),
		descriptorOffset: rng.End(),
		hasDescriptor:    w.HasDataDescriptor,
		wantCRC:          w.CRC32,
		wantSize:         w.UncompressedSize,
	}
}

// Read implements io.Reader, feeding every byte returned by the wrapped
// reader through the running CRC-32 and size accumulators. On the read
// that returns io.EOF, it performs the verification and, on mismatch,
// returns an *Error instead of io.EOF.
func (v *VerifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		v.crc.Update(p[:n])
		v.size += uint64(n)
	}
	if err == io.EOF {
		if verr := v.verify(); verr != nil {
			return n, verr
		}
	}
	return n, err
}

// verify checks the accumulated size, and CRC-32 unless the expected CRC
// is zero, against the expected values. Idempotent: once it has run once,
// later calls (e.g. a second Read after io.EOF) don't re-fail.
func (v *VerifyingReader) verify() error {
	if v.done {
		return nil
	}
	v.done = true
	if v.size != v.wantSize {
		return errInvalidSize(v.wantSize, v.size)
	}

	wantCRC := v.wantCRC
	if v.hasDescriptor {
		crc, err := readDataDescriptorCRC(v.ra, v.descriptorOffset)
		if err != nil {
			return err
		}
		wantCRC = crc
	}
	if wantCRC == 0 {
		return nil
	}
	if sum := v.crc.Sum32(); sum != wantCRC {
		return errInvalidChecksum(wantCRC, sum)
	}
	return nil
}

// readDataDescriptorCRC reads the CRC-32 field out of the 8 bytes
// following an entry's compressed data at offset. The leading signature
// (0x08074b50) is optional per APPNOTE; when absent the CRC is the first
// 4 bytes instead of the second 4. The descriptor's size fields that
// follow the CRC (4 or 8 bytes each depending on ZIP64) aren't needed
// here, so only the first 8 bytes are read.
func readDataDescriptorCRC(r ReadAt, offset int64) (uint32, error) {
	buf := make([]byte, 8)
	if err := readExactAt(r, buf, offset); err != nil {
		return 0, err
	}
	if first := binary.LittleEndian.Uint32(buf[0:4]); first == sigDataDescriptor {
		return binary.LittleEndian.Uint32(buf[4:8]), nil
	}
	return binary.LittleEndian.Uint32(buf[0:4]), nil
}

// Verify forces verification of whatever has been read so far without
// requiring the wrapped reader to have reached io.EOF naturally; useful
// after an explicit io.ReadAll-style drain where the EOF was consumed by
// the drain helper rather than observed directly.
func (v *VerifyingReader) Verify() error {
	return v.verify()
}
