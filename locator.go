package rawzip

import (
	"bytes"
	"encoding/binary"

	"github.com/valyala/bytebufferpool"
)

// Signatures for the fixed structures rawzip reads and writes.
const (
	sigLocalFileHeader  = 0x04034b50
	sigCentralDirectory = 0x02014b50
	sigEOCD             = 0x06054b50
	sigZip64EOCD        = 0x06064b50
	sigZip64EOCDLocator = 0x07064b50
	sigDataDescriptor   = 0x08074b50
)

const (
	eocdFixedLen        = 22
	zip64EOCDFixedLen   = 56
	zip64EOCDLocatorLen = 20
	centralDirRecordLen = 46
	localFileHeaderLen  = 30

	sentinel16 = 0xffff
	sentinel32 = 0xffffffff
)

// DefaultMaxSearchSpace is the default bound on how far back from
// end_offset the EOCD locator will scan.
const DefaultMaxSearchSpace = 1 * 1024 * 1024

// locatorScanWindow is the size of the backward-scan read buffer. It has
// no bearing on correctness (see the carry logic in findSignatureBackward);
// it only sets how many bytes each ReadAt of the scan asks for. The EOCD
// record and its comment are read afterwards into buffers of their own.
const locatorScanWindow = 64 * 1024

// EndOfCentralDirectory is the resolved location of an archive's metadata
// within an archive stream.
type EndOfCentralDirectory struct {
	// StreamPos is the absolute offset at which the EOCD begins, or, in
	// the ZIP64 case, at which the ZIP64 EOCD begins.
	StreamPos int64

	// BaseOffset is the start of the ZIP payload within the enclosing
	// stream; nonzero when a prefix precedes the archive. Always 0 for
	// ZIP64 archives.
	BaseOffset int64

	// CentralDirectoryOffset is the absolute start of the central
	// directory.
	CentralDirectoryOffset int64

	// CentralDirectoryEnd equals StreamPos.
	CentralDirectoryEnd int64

	// Entries is the total number of central directory records.
	Entries uint64

	// Comment is the archive comment, if requested via Options.KeepComment.
	Comment []byte

	// IsZip64 reports whether a ZIP64 EOCD locator/record was present.
	IsZip64 bool

	diskNumber    uint16
	cdDiskStart   uint16
	cdCountOnDisk uint64
}

// LocatorOptions customises LocateEOCD.
type LocatorOptions struct {
	// MaxSearchSpace bounds how many bytes before endOffset the locator
	// will scan looking for the EOCD signature. Zero means
	// DefaultMaxSearchSpace.
	MaxSearchSpace int64

	// KeepComment controls whether the EOCD's comment bytes are read into
	// EndOfCentralDirectory.Comment. Discarded by default.
	KeepComment bool
}

// LocateEOCD finds and parses the EOCD pair: it backward-
// scans r for the last occurrence of the EOCD signature within the last
// MaxSearchSpace bytes of [0, endOffset), then, if the fixed EOCD's
// sentinels indicate ZIP64, resolves the ZIP64 locator and ZIP64 EOCD
// record that precede it.
func LocateEOCD(r ReadAt, endOffset int64, optFns ...func(*LocatorOptions)) (*EndOfCentralDirectory, error) {
	opts := &LocatorOptions{MaxSearchSpace: DefaultMaxSearchSpace}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.MaxSearchSpace <= 0 {
		opts.MaxSearchSpace = DefaultMaxSearchSpace
	}

	pos, err := findSignatureBackward(r, endOffset, opts.MaxSearchSpace, sigEOCD)
	if err != nil {
		return nil, err
	}

	// Once a signature match is found, a short read past it is a genuine
	// EOF (the input is truncated), not "no EOCD found".
	fixed := make([]byte, eocdFixedLen)
	if err = readExactAt(r, fixed, pos); err != nil {
		return nil, err
	}

	fr := fieldReader(fixed)
	if sig := fr.u32(); sig != sigEOCD {
		return nil, errInvalidSignature(sigEOCD, sig)
	}
	diskNumber := fr.u16()
	cdDiskStart := fr.u16()
	cdCountOnDisk := fr.u16()
	cdCount := fr.u16()
	cdSize := fr.u32()
	cdOffset := fr.u32()
	commentLen := fr.u16()

	eocd := &EndOfCentralDirectory{
		StreamPos:              pos,
		CentralDirectoryEnd:    pos,
		CentralDirectoryOffset: int64(cdOffset),
		Entries:                uint64(cdCount),
		diskNumber:             diskNumber,
		cdDiskStart:            cdDiskStart,
		cdCountOnDisk:          uint64(cdCountOnDisk),
	}

	if opts.KeepComment && commentLen > 0 {
		comment := make([]byte, commentLen)
		if err = readExactAt(r, comment, pos+eocdFixedLen); err != nil {
			return nil, errMissingEOCD()
		}
		eocd.Comment = comment
	}

	if cdCount == sentinel16 || cdOffset == sentinel32 {
		if err = resolveZip64(r, pos, eocd); err != nil {
			return nil, err
		}
		eocd.IsZip64 = true
		eocd.BaseOffset = 0
		return eocd, nil
	}

	eocd.BaseOffset = saturatingBaseOffset(pos, int64(cdSize), int64(cdOffset))
	eocd.CentralDirectoryOffset += eocd.BaseOffset
	return eocd, nil
}

// saturatingBaseOffset computes max(0, streamPos - cdSize - cdOffset), the
// heuristic for locating a prefix that precedes the
// ZIP payload within an enclosing stream (self-extracting archives etc.),
// matching the archive/zip standard library's own heuristic.
func saturatingBaseOffset(streamPos, cdSize, cdOffset int64) int64 {
	base := streamPos - cdSize - cdOffset
	if base < 0 {
		return 0
	}
	return base
}

// resolveZip64 parses the 20-byte ZIP64 EOCD locator immediately preceding
// the fixed EOCD at eocdPos, then the 56-byte ZIP64 EOCD record it points
// to, overwriting eocd's offset/count/StreamPos fields with the wider
// values.
func resolveZip64(r ReadAt, eocdPos int64, eocd *EndOfCentralDirectory) error {
	locPos := eocdPos - zip64EOCDLocatorLen
	if locPos < 0 {
		return errMissingZip64EOCD()
	}

	locBuf := make([]byte, zip64EOCDLocatorLen)
	if err := readExactAt(r, locBuf, locPos); err != nil {
		return errMissingZip64EOCD()
	}
	lr := fieldReader(locBuf)
	if sig := lr.u32(); sig != sigZip64EOCDLocator {
		return errMissingZip64EOCD()
	}
	_ = lr.u32() // disk number holding the ZIP64 EOCD
	zip64EOCDOffset := int64(lr.u64())
	_ = lr.u32() // total number of disks

	recBuf := make([]byte, zip64EOCDFixedLen)
	if err := readExactAt(r, recBuf, zip64EOCDOffset); err != nil {
		return errMissingZip64EOCD()
	}
	rr := fieldReader(recBuf)
	if sig := rr.u32(); sig != sigZip64EOCD {
		return errMissingZip64EOCD()
	}
	_ = rr.u64() // size of this record, minus 12
	_ = rr.u16() // version made by
	_ = rr.u16() // version needed
	_ = rr.u32() // number of this disk
	cdDiskStart := rr.u32()
	cdCountOnDisk := rr.u64()
	cdCount := rr.u64()
	_ = rr.u64() // size of CD
	cdOffset := rr.u64()

	eocd.StreamPos = zip64EOCDOffset
	eocd.CentralDirectoryEnd = zip64EOCDOffset
	eocd.CentralDirectoryOffset = int64(cdOffset)
	eocd.Entries = cdCount
	eocd.cdDiskStart = uint16(cdDiskStart)
	eocd.cdCountOnDisk = cdCountOnDisk
	return nil
}

// findSignatureBackward implements the bounded backward scan with
// boundary carry: it returns the absolute
// offset of the last occurrence of sig within
// [max(0, endOffset-maxSearchSpace), endOffset).
func findSignatureBackward(r ReadAt, endOffset, maxSearchSpace int64, sig uint32) (int64, error) {
	if endOffset < 4 {
		return 0, errMissingEOCD()
	}

	floor := endOffset - maxSearchSpace
	if floor < 0 {
		floor = 0
	}

	sigBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(sigBytes, sig)

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	bb.B = append(bb.B[:0], make([]byte, locatorScanWindow)...)
	window := bb.B

	var carry []byte
	cur := endOffset

	for cur > floor {
		readLen := int(cur - floor)
		if readLen > len(window)-len(carry) {
			readLen = len(window) - len(carry)
		}
		start := cur - int64(readLen)

		if err := readExactAt(r, window[:readLen], start); err != nil {
			return 0, errMissingEOCD()
		}
		copy(window[readLen:readLen+len(carry)], carry)
		buf := window[:readLen+len(carry)]

		if i := bytes.LastIndex(buf, sigBytes); i != -1 {
			return start + int64(i), nil
		}

		carryLen := len(buf)
		if carryLen > 3 {
			carryLen = 3
		}
		if carry == nil {
			carry = make([]byte, 0, 3)
		}
		carry = append(carry[:0], buf[:carryLen]...)
		cur = start
	}

	return 0, errMissingEOCD()
}
