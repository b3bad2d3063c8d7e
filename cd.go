package rawzip

import (
	"encoding/binary"
	"iter"
)

// CentralDirectoryRecord is a borrowed view of one entry's 46-byte central
// directory header, widened to 64-bit sizes/offset via the optional ZIP64
// extra field. Its borrowed slices (FileName, ExtraField,
// FileComment) are only valid until the iterator that produced it is
// advanced again (slice-backed iterators are the exception: their records
// live as long as the backing slice).
type CentralDirectoryRecord struct {
	VersionMadeBy   uint16
	VersionNeeded   uint16
	Flags           uint16
	CompressionID   uint16
	DOSModTime      uint16
	DOSModDate      uint16
	CRC32           uint32

	CompressedSize    uint64
	UncompressedSize  uint64
	LocalHeaderOffset uint64
	DiskNumberStart   uint32

	InternalAttrs uint16
	ExternalAttrs uint32

	FileName    RawPath
	ExtraField  []byte
	FileComment []byte
}

// Creator returns the upper byte of VersionMadeBy, the creator system used
// by EntryMode.
func (r *CentralDirectoryRecord) Creator() Creator {
	return Creator(r.VersionMadeBy >> 8)
}

// HasDataDescriptor reports whether flag bit 3 is set.
func (r *CentralDirectoryRecord) HasDataDescriptor() bool {
	return r.Flags&0x8 != 0
}

// IsUTF8 reports whether flag bit 11 (EFS) is set.
func (r *CentralDirectoryRecord) IsUTF8() bool {
	return r.Flags&0x800 != 0
}

// ModTime resolves this record's modification time from extra-field
// timestamps (NTFS, Extended, obsolete Unix) falling back to the DOS
// date/time pair.
func (r *CentralDirectoryRecord) ModTime() DateTime {
	return resolveModTime(r.ExtraField, r.DOSModDate, r.DOSModTime)
}

// Mode translates ExternalAttrs into a Unix-style mode.
func (r *CentralDirectoryRecord) Mode() uint32 {
	return EntryMode(r.Creator(), r.ExternalAttrs, string(r.FileName))
}

// Wayfinder extracts the minimal {sizes, offset, crc} keyset needed to
// locate and verify this entry independently of the borrowed record
// independently of any lending iterator's lifetime.
func (r *CentralDirectoryRecord) Wayfinder() Wayfinder {
	return Wayfinder{
		UncompressedSize:  r.UncompressedSize,
		CompressedSize:    r.CompressedSize,
		LocalHeaderOffset: r.LocalHeaderOffset,
		CRC32:             r.CRC32,
		HasDataDescriptor: r.HasDataDescriptor(),
	}
}

// parseFixedCDHeader parses the 46-byte fixed portion of a central
// directory record from buf (which must be at least centralDirRecordLen
// long) and fills in everything but the variable-length borrowed slices.
func parseFixedCDHeader(buf []byte) (CentralDirectoryRecord, int, int, int, error) {
	fr := fieldReader(buf[:centralDirRecordLen])
	if sig := fr.u32(); sig != sigCentralDirectory {
		return CentralDirectoryRecord{}, 0, 0, 0, errInvalidSignature(sigCentralDirectory, sig)
	}

	r := CentralDirectoryRecord{
		VersionMadeBy: fr.u16(),
		VersionNeeded: fr.u16(),
		Flags:         fr.u16(),
		CompressionID: fr.u16(),
		DOSModTime:    fr.u16(),
		DOSModDate:    fr.u16(),
		CRC32:         fr.u32(),
	}
	compressedSize32 := fr.u32()
	uncompressedSize32 := fr.u32()
	nameLen := int(fr.u16())
	extraLen := int(fr.u16())
	commentLen := int(fr.u16())
	diskStart16 := fr.u16()
	r.InternalAttrs = fr.u16()
	r.ExternalAttrs = fr.u32()
	localHeaderOffset32 := fr.u32()

	r.CompressedSize = uint64(compressedSize32)
	r.UncompressedSize = uint64(uncompressedSize32)
	r.LocalHeaderOffset = uint64(localHeaderOffset32)
	r.DiskNumberStart = uint32(diskStart16)

	return r, nameLen, extraLen, commentLen, nil
}

// applyZip64Extra resolves any of the four widenable fields that were
// sentinelled (0xFFFF/0xFFFFFFFF) in the fixed header against the ZIP64
// extra field (id 0x0001), reading the values present in the documented
// order: uncompressed, compressed, local header offset, disk_number_start.
func applyZip64Extra(r *CentralDirectoryRecord, compressedSize32, uncompressedSize32, localHeaderOffset32 uint32, diskStart16 uint16) {
	needsUncompressed := uncompressedSize32 == sentinel32
	needsCompressed := compressedSize32 == sentinel32
	needsOffset := localHeaderOffset32 == sentinel32
	needsDisk := diskStart16 == sentinel16

	if !needsUncompressed && !needsCompressed && !needsOffset && !needsDisk {
		return
	}

	extra := r.ExtraField
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		if size > len(extra)-4 {
			return
		}
		data := extra[4 : 4+size]
		if id == extraZip64 {
			fr := fieldReader(data)
			if needsUncompressed && len(fr) >= 8 {
				r.UncompressedSize = fr.u64()
			}
			if needsCompressed && len(fr) >= 8 {
				r.CompressedSize = fr.u64()
			}
			if needsOffset && len(fr) >= 8 {
				r.LocalHeaderOffset = fr.u64()
			}
			if needsDisk && len(fr) >= 4 {
				r.DiskNumberStart = fr.u32()
			}
			return
		}
		extra = extra[4+size:]
	}
}

// SliceCentralDirectory is the zero-copy iterator variant: entryData is
// the central directory bytes held entirely in memory (e.g. a memory-
// mapped or fully-buffered archive), and every returned record borrows
// directly from it with no intermediate copy.
type SliceCentralDirectory struct {
	data       []byte
	baseOffset int64
}

// NewSliceCentralDirectory wraps the central directory bytes starting at
// the CD's offset within data, alongside baseOffset (EndOfCentralDirectory.BaseOffset)
// to translate local header offsets into absolute positions.
func NewSliceCentralDirectory(data []byte, baseOffset int64) *SliceCentralDirectory {
	return &SliceCentralDirectory{data: data, baseOffset: baseOffset}
}

// All returns a lending iterator over the remaining records. The iterator
// ends (yields nothing further) as soon as a non-central-directory
// signature is seen, which is how the slice iterator recognizes the end of
// the CD without being told its size up front.
func (s *SliceCentralDirectory) All() iter.Seq2[CentralDirectoryRecord, error] {
	return func(yield func(CentralDirectoryRecord, error) bool) {
		for {
			if len(s.data) < 4 {
				return
			}
			if binary.LittleEndian.Uint32(s.data[:4]) != sigCentralDirectory {
				return
			}
			if len(s.data) < centralDirRecordLen {
				yield(CentralDirectoryRecord{}, errEOF())
				return
			}

			r, nameLen, extraLen, commentLen, err := parseFixedCDHeader(s.data)
			if err != nil {
				yield(CentralDirectoryRecord{}, err)
				return
			}

			varLen := nameLen + extraLen + commentLen
			if len(s.data) < centralDirRecordLen+varLen {
				yield(CentralDirectoryRecord{}, errEOF())
				return
			}

			rest := s.data[centralDirRecordLen:]
			r.FileName = RawPath(rest[:nameLen])
			r.ExtraField = rest[nameLen : nameLen+extraLen]
			r.FileComment = rest[nameLen+extraLen : nameLen+extraLen+commentLen]
			applyZip64ExtraFromFixed(&r)
			r.LocalHeaderOffset += uint64(s.baseOffset)

			s.data = s.data[centralDirRecordLen+varLen:]

			if !yield(r, nil) {
				return
			}
		}
	}
}

// applyZip64ExtraFromFixed re-derives which fields were sentinelled
// directly from the already-populated record (so callers of
// parseFixedCDHeader that don't thread the raw 32-bit values through
// still get ZIP64 resolution).
func applyZip64ExtraFromFixed(r *CentralDirectoryRecord) {
	applyZip64Extra(
		r,
		uint32(r.CompressedSize),
		uint32(r.UncompressedSize),
		uint32(r.LocalHeaderOffset),
		uint16(r.DiskNumberStart),
	)
}

// RecommendedBufferSize is the minimum buffer size recommended for
// ReaderCentralDirectory: APPNOTE §4.4.10 notes the combined length of a
// CD record "SHOULD NOT generally exceed 65,535 bytes".
const RecommendedBufferSize = 64 * 1024

// ReaderCentralDirectory is the buffer-owned iterator variant for when the
// whole central directory cannot or should not be held in memory at once:
// the caller supplies a reusable buffer of at least RecommendedBufferSize,
// and each record is parsed by reading through ReadAt as needed.
type ReaderCentralDirectory struct {
	r          ReadAt
	buf        []byte
	pos, end   int // window into buf: buf[pos:end] holds unconsumed bytes
	fileOffset int64
	baseOffset int64
	cdEnd      int64
}

// NewReaderCentralDirectory begins iterating the central directory
// described by eocd, reading through r into buf. buf must be at least
// RecommendedBufferSize long, or ErrBufferTooSmall is returned.
func NewReaderCentralDirectory(r ReadAt, eocd *EndOfCentralDirectory, buf []byte) (*ReaderCentralDirectory, error) {
	if len(buf) < RecommendedBufferSize {
		return nil, errBufferTooSmall("central directory reader buffer must be at least RecommendedBufferSize")
	}
	return &ReaderCentralDirectory{
		r:          r,
		buf:        buf,
		fileOffset: eocd.CentralDirectoryOffset,
		baseOffset: eocd.BaseOffset,
		cdEnd:      eocd.CentralDirectoryEnd,
	}, nil
}

func (c *ReaderCentralDirectory) window() []byte { return c.buf[c.pos:c.end] }

// ensure shifts any unconsumed bytes to the front of buf and tops the
// window up with more CD bytes (never reading past cdEnd) until at least
// need bytes are available or the CD is exhausted.
func (c *ReaderCentralDirectory) ensure(need int) error {
	for len(c.window()) < need {
		remainder := copy(c.buf, c.window())
		c.pos, c.end = 0, remainder

		avail := c.cdEnd - c.fileOffset
		if avail <= 0 {
			return nil // no more CD bytes; caller decides whether that's EOF or end-of-iteration.
		}
		room := int64(len(c.buf) - c.end)
		if room > avail {
			room = avail
		}
		if room <= 0 {
			return nil
		}

		n, err := readAtMostAt(c.r, c.buf[c.end:c.end+int(room)], c.fileOffset)
		c.end += n
		c.fileOffset += int64(n)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// All returns a lending iterator over the remaining records; each yielded
// record borrows from the shared buffer and is invalidated by the next
// call to the iteration function.
func (c *ReaderCentralDirectory) All() iter.Seq2[CentralDirectoryRecord, error] {
	return func(yield func(CentralDirectoryRecord, error) bool) {
		for {
			if err := c.ensure(centralDirRecordLen); err != nil {
				yield(CentralDirectoryRecord{}, err)
				return
			}
			if len(c.window()) < 4 {
				return
			}
			if binary.LittleEndian.Uint32(c.window()[:4]) != sigCentralDirectory {
				return
			}
			if len(c.window()) < centralDirRecordLen {
				yield(CentralDirectoryRecord{}, errEOF())
				return
			}

			r, nameLen, extraLen, commentLen, err := parseFixedCDHeader(c.window())
			if err != nil {
				yield(CentralDirectoryRecord{}, err)
				return
			}

			varLen := nameLen + extraLen + commentLen
			if err = c.ensure(centralDirRecordLen + varLen); err != nil {
				yield(CentralDirectoryRecord{}, err)
				return
			}
			if len(c.window()) < centralDirRecordLen+varLen {
				yield(CentralDirectoryRecord{}, errEOF())
				return
			}

			rest := c.window()[centralDirRecordLen:]
			r.FileName = RawPath(rest[:nameLen])
			r.ExtraField = rest[nameLen : nameLen+extraLen]
			r.FileComment = rest[nameLen+extraLen : nameLen+extraLen+commentLen]
			applyZip64ExtraFromFixed(&r)
			r.LocalHeaderOffset += uint64(c.baseOffset)

			c.pos += centralDirRecordLen + varLen

			if !yield(r, nil) {
				return
			}
		}
	}
}
