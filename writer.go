package rawzip

import (
	"io"
	"time"
)

const (
	zipVersion20 = 20
	zipVersion45 = 45

	extraZip64Len     = 2 + 2 + 8 + 8 + 8 // header id, size, three uint64
	dataDescriptorLen = 4 + 4 + 4 + 4     // signature, crc, compressed, uncompressed (32-bit)
	dataDescriptor64  = 4 + 4 + 8 + 8     // signature, crc, compressed, uncompressed (64-bit)
)

// EntryHeader describes one archive entry as the caller wants it written;
// the writer fills in everything derived from it (flags, extra fields,
// sizes) rather than trusting caller-supplied derived fields.
type EntryHeader struct {
	// Name is the entry's path, already normalized. The writer does not
	// call Normalize itself — callers that want normalization applied
	// call it before constructing EntryHeader.
	Name string

	// Comment is the per-entry central directory comment.
	Comment string

	// Modified is the entry's modification time; the writer always
	// encodes it as both a DOS date/time pair and an Extended Timestamp
	// extra field, so only a UTC-normalized time.Time is
	// accepted.
	Modified time.Time

	// Mode is the Unix permission/type bits, packed into the external
	// file attributes the way CreatorUnix entries are read back
	// (unixPermissionsToExternalAttrs).
	Mode uint32

	// CompressionID is the APPNOTE compression method identifier (0 for
	// Store, 8 for Deflate, etc.); the writer never compresses, it only
	// records which method the caller already applied.
	CompressionID uint16
}

// isDir reports whether this entry is a directory, by name convention.
func (h *EntryHeader) isDir() bool {
	return len(h.Name) > 0 && h.Name[len(h.Name)-1] == '/'
}

// pendingEntry tracks one in-flight or completed entry's writer-assigned
// bookkeeping: the local header offset, the running CRC/size accumulators
// while its compressed bytes are being streamed, and the final values
// once Close has been called on its EntryWriter.
type pendingEntry struct {
	header EntryHeader
	offset uint64

	crc              *CRC32
	compressedSize   uint64
	uncompressedSize uint64

	externalAttrs uint32
	flags         uint16
	closed        bool
}

// Writer streams a ZIP archive to an underlying io.Writer, one entry at a
// time, emitting local headers with data descriptors, promoting to ZIP64
// automatically once a size or count threshold is crossed, and assembling
// the central directory and EOCD on Close. It never
// compresses: CreateEntry returns an io.Writer that the caller feeds
// already-compressed bytes into.
type Writer struct {
	w      *countingWriter
	dir    []*pendingEntry
	closed bool

	current *pendingEntry
}

// NewWriter returns a Writer that writes to w starting at the current
// position (the caller is responsible for w being empty, or for the
// resulting archive being embedded as a suffix of a larger stream — the
// writer does not support a BaseOffset of its own: the archive it produces
	// begins wherever w's current position is).
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: &countingWriter{w: w}}
}

// countingWriter tracks the number of bytes written so far, letting the
// writer compute absolute offsets without the caller providing a seekable
// stream.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

// CreateEntry begins a new entry: it writes the local file header
// immediately (with zeroed size/crc fields and, for files, flag bit 3 set,
// since the true values aren't known until the caller finishes writing;
// directory entries carry no data descriptor) and returns
// an io.WriteCloser. The caller writes the entry's already-compressed
// bytes to it and calls Close when done, which finalizes the entry's CRC
// and size and appends its data descriptor.
//
// Only one entry may be open at a time; CreateEntry panics if the
// previous entry's writer was not closed first, mirroring archive/zip's
// contract.
func (z *Writer) CreateEntry(h EntryHeader) (io.WriteCloser, error) {
	if z.current != nil && !z.current.closed {
		panic("rawzip: previous entry not closed")
	}

	if len(h.Name) > 0xffff {
		return nil, errInvalidInput("name too long (%d bytes, max 65535)", len(h.Name))
	}
	if len(h.Comment) > 0xffff {
		return nil, errInvalidInput("comment too long (%d bytes, max 65535)", len(h.Comment))
	}
	if h.Modified.Location() != time.UTC {
		return nil, errInvalidInput("modification time must be in UTC")
	}

	p := &pendingEntry{
		header: h,
		offset: uint64(z.w.count),
		crc:    NewCRC32(),
	}

	if h.isDir() {
		p.flags = 0 // directories are zero-length Store entries, no descriptor needed
		p.header.CompressionID = 0
	} else {
		p.flags = 0x8
	}

	valid1, require1 := detectUTF8(h.Name)
	valid2, require2 := detectUTF8(h.Comment)
	if (require1 || require2) && valid1 && valid2 {
		p.flags |= 0x800
	}

	p.externalAttrs = unixPermissionsToExternalAttrs(h.Mode, h.isDir())

	if err := writeLocalHeader(z.w, p); err != nil {
		return nil, err
	}

	z.current = p
	z.dir = append(z.dir, p)
	return &entryWriter{z: z, p: p}, nil
}

// detectUTF8 reports whether s is valid UTF-8, and whether it requires
// the UTF-8 flag to round-trip through readers assuming CP-437, grounded
// in zipserve's writer.go.
func detectUTF8(s string) (valid, require bool) {
	return utf8DetectionValid(s), requiresUTF8EFS(s) && utf8DetectionValid(s)
}

func utf8DetectionValid(s string) bool {
	return firstInvalidUTF8(s) == -1
}

// writeLocalHeader writes the 30-byte fixed local header plus name and
// extra fields for p, with size/crc fields zeroed (they follow in the
// data descriptor once the entry is closed).
func writeLocalHeader(w io.Writer, p *pendingEntry) error {
	extra := encodeExtendedTimeExtra(p.header.Modified)

	buf := make([]byte, localFileHeaderLen)
	fw := fieldWriter(buf)
	fw.u32(sigLocalFileHeader)
	fw.u16(zipVersion20)
	fw.u16(p.flags)
	fw.u16(p.header.CompressionID)
	date, dtime := timeToDOSDateTime(p.header.Modified)
	fw.u16(dtime)
	fw.u16(date)
	fw.u32(0) // crc32, deferred to data descriptor
	fw.u32(0) // compressed size, deferred
	fw.u32(0) // uncompressed size, deferred
	fw.u16(uint16(len(p.header.Name)))
	fw.u16(uint16(len(extra)))

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := io.WriteString(w, p.header.Name); err != nil {
		return err
	}
	_, err := w.Write(extra)
	return err
}

// entryWriter is the io.WriteCloser handed back from CreateEntry.
type entryWriter struct {
	z *Writer
	p *pendingEntry
}

func (e *entryWriter) Write(b []byte) (int, error) {
	n, err := e.z.w.Write(b)
	e.p.crc.Update(b[:n])
	e.p.compressedSize += uint64(n)
	e.p.uncompressedSize += uint64(n) // overwritten by SetUncompressedSize when compression isn't Store
	return n, err
}

// SetUncompressedSize overrides the uncompressed size recorded for this
// entry, needed whenever CompressionID isn't Store: entryWriter only
// observes the compressed byte stream, so it cannot infer the
// uncompressed length on its own. Call this any time before Close.
func (e *entryWriter) SetUncompressedSize(n uint64) {
	e.p.uncompressedSize = n
}

// Close finalizes the entry: it writes the trailing data descriptor
// (skipped for directories, which carry no data) using whichever of the
// 32-bit or 64-bit descriptor forms the entry's final sizes require.
func (e *entryWriter) Close() error {
	e.p.closed = true
	if e.p.header.isDir() {
		return nil
	}

	zip64 := e.p.compressedSize >= sentinel32 || e.p.uncompressedSize >= sentinel32

	var buf []byte
	if zip64 {
		buf = make([]byte, dataDescriptor64)
	} else {
		buf = make([]byte, dataDescriptorLen)
	}
	fw := fieldWriter(buf)
	fw.u32(sigDataDescriptor)
	fw.u32(e.p.crc.Sum32())
	if zip64 {
		fw.u64(e.p.compressedSize)
		fw.u64(e.p.uncompressedSize)
	} else {
		fw.u32(uint32(e.p.compressedSize))
		fw.u32(uint32(e.p.uncompressedSize))
	}
	_, err := e.z.w.Write(buf)
	return err
}

// Close finalizes the archive: it writes the central directory, promoting
// individual records and/or the EOCD itself to ZIP64 as needed, then the
// EOCD.
func (z *Writer) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true

	start := z.w.count
	for _, p := range z.dir {
		if err := writeCentralDirectoryRecord(z.w, p); err != nil {
			return err
		}
	}
	cdSize := uint64(z.w.count - start)
	cdOffset := uint64(start)
	count := uint64(len(z.dir))

	needsZip64 := count >= sentinel16 || cdSize >= sentinel32 || cdOffset >= sentinel32
	if needsZip64 {
		zip64Offset := uint64(z.w.count)
		if err := writeZip64EOCD(z.w, count, cdSize, cdOffset); err != nil {
			return err
		}
		if err := writeZip64EOCDLocator(z.w, zip64Offset); err != nil {
			return err
		}
		count = sentinel16
		cdSize = sentinel32
		cdOffset = sentinel32
	}

	return writeEOCD(z.w, count, cdSize, cdOffset)
}

// writeCentralDirectoryRecord writes p's 46-byte fixed header plus name,
// extra (including a ZIP64 sub-field if any size/offset needs widening),
// and comment.
func writeCentralDirectoryRecord(w io.Writer, p *pendingEntry) error {
	extra := encodeExtendedTimeExtra(p.header.Modified)

	needsZip64 := p.compressedSize >= sentinel32 || p.uncompressedSize >= sentinel32 || p.offset >= sentinel32

	compressedField := uint32(p.compressedSize)
	uncompressedField := uint32(p.uncompressedSize)
	offsetField := uint32(p.offset)
	versionNeeded := uint16(zipVersion20)

	if needsZip64 {
		compressedField = sentinel32
		uncompressedField = sentinel32
		offsetField = sentinel32
		versionNeeded = zipVersion45

		z64 := make([]byte, extraZip64Len)
		zfw := fieldWriter(z64)
		zfw.u16(extraZip64)
		zfw.u16(24)
		zfw.u64(p.uncompressedSize)
		zfw.u64(p.compressedSize)
		zfw.u64(p.offset)
		extra = append(extra, z64...)
	}

	buf := make([]byte, centralDirRecordLen)
	fw := fieldWriter(buf)
	fw.u32(sigCentralDirectory)
	fw.u16(uint16(CreatorUnix)<<8 | zipVersion20)
	fw.u16(versionNeeded)
	fw.u16(p.flags)
	fw.u16(p.header.CompressionID)
	date, dtime := timeToDOSDateTime(p.header.Modified)
	fw.u16(dtime)
	fw.u16(date)
	fw.u32(p.crc.Sum32())
	fw.u32(compressedField)
	fw.u32(uncompressedField)
	fw.u16(uint16(len(p.header.Name)))
	fw.u16(uint16(len(extra)))
	fw.u16(uint16(len(p.header.Comment)))
	fw.u16(0) // disk number start
	fw.u16(0) // internal attrs
	fw.u32(p.externalAttrs)
	fw.u32(offsetField)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := io.WriteString(w, p.header.Name); err != nil {
		return err
	}
	if _, err := w.Write(extra); err != nil {
		return err
	}
	_, err := io.WriteString(w, p.header.Comment)
	return err
}

func writeZip64EOCD(w io.Writer, count, cdSize, cdOffset uint64) error {
	buf := make([]byte, zip64EOCDFixedLen)
	fw := fieldWriter(buf)
	fw.u32(sigZip64EOCD)
	fw.u64(zip64EOCDFixedLen - 12)
	fw.u16(zipVersion45)
	fw.u16(zipVersion45)
	fw.u32(0) // number of this disk
	fw.u32(0) // disk with start of CD
	fw.u64(count)
	fw.u64(count)
	fw.u64(cdSize)
	fw.u64(cdOffset)
	_, err := w.Write(buf)
	return err
}

func writeZip64EOCDLocator(w io.Writer, zip64EOCDOffset uint64) error {
	buf := make([]byte, zip64EOCDLocatorLen)
	fw := fieldWriter(buf)
	fw.u32(sigZip64EOCDLocator)
	fw.u32(0)
	fw.u64(zip64EOCDOffset)
	fw.u32(1)
	_, err := w.Write(buf)
	return err
}

func writeEOCD(w io.Writer, count, cdSize, cdOffset uint64) error {
	buf := make([]byte, eocdFixedLen)
	fw := fieldWriter(buf)
	fw.u32(sigEOCD)
	fw.u16(0) // number of this disk
	fw.u16(0) // disk with start of CD
	fw.u16(uint16(count))
	fw.u16(uint16(count))
	fw.u32(uint32(cdSize))
	fw.u32(uint32(cdOffset))
	fw.u16(0) // comment length
	_, err := w.Write(buf)
	return err
}
