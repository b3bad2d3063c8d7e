package rawzip

import (
	"iter"
	"os"
)

// Options customises how an archive is opened, mirroring LocatorOptions
// at the archive level.
type Options struct {
	MaxSearchSpace int64
	KeepComment    bool
}

func (o *Options) toLocatorOptions() func(*LocatorOptions) {
	return func(lo *LocatorOptions) {
		lo.MaxSearchSpace = o.MaxSearchSpace
		lo.KeepComment = o.KeepComment
	}
}

// Archive is a fully in-memory archive: its central directory is read
// from a byte slice and every record it yields borrows directly from that
// slice with no copying.
type Archive struct {
	data []byte
	EOCD *EndOfCentralDirectory
}

// OpenSlice locates the EOCD within data and returns an Archive ready to
// iterate its central directory.
func OpenSlice(data []byte, optFns ...func(*Options)) (*Archive, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	eocd, err := LocateEOCD(SliceReaderAt(data), int64(len(data)), opts.toLocatorOptions())
	if err != nil {
		return nil, err
	}
	return &Archive{data: data, EOCD: eocd}, nil
}

// Entries returns a lending iterator over every central directory record.
func (a *Archive) Entries() iter.Seq2[CentralDirectoryRecord, error] {
	cdStart := a.EOCD.CentralDirectoryOffset
	cdEnd := a.EOCD.CentralDirectoryEnd
	if cdStart < 0 || cdEnd > int64(len(a.data)) || cdStart > cdEnd {
		return func(yield func(CentralDirectoryRecord, error) bool) {
			yield(CentralDirectoryRecord{}, errInvalidInput("central directory range out of bounds"))
		}
	}
	sub := NewSliceCentralDirectory(a.data[cdStart:cdEnd], a.EOCD.BaseOffset)
	return sub.All()
}

// OpenEntry returns a bounded reader over w's compressed bytes within this
// archive's backing slice.
func (a *Archive) OpenEntry(w Wayfinder) (*EntryReader, error) {
	rng, err := LocateCompressedData(SliceReaderAt(a.data), w)
	if err != nil {
		return nil, err
	}
	return NewEntryReader(SliceReaderAt(a.data), rng), nil
}

// ReaderArchive is an archive accessed through a ReadAt, for when the
// whole file cannot or should not be buffered in memory; its central
// directory is iterated through a caller-owned reusable buffer.
type ReaderArchive struct {
	r    ReadAt
	EOCD *EndOfCentralDirectory
}

// OpenReaderAt locates the EOCD by reading through r, whose content ends
// at size.
func OpenReaderAt(r ReadAt, size int64, optFns ...func(*Options)) (*ReaderArchive, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	eocd, err := LocateEOCD(r, size, opts.toLocatorOptions())
	if err != nil {
		return nil, err
	}
	return &ReaderArchive{r: r, EOCD: eocd}, nil
}

// OpenFile is a convenience wrapper opening path, determining its size via
// Stat, and returning a ReaderArchive together with the *os.File so the
// caller can Close it when done.
func OpenFile(path string, optFns ...func(*Options)) (*ReaderArchive, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errIO("open", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errIO("stat", err)
	}
	a, err := OpenReaderAt(NewFileReaderAt(f), fi.Size(), optFns...)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return a, f, nil
}

// Entries returns a lending iterator over the central directory, reading
// through buf (see ReaderCentralDirectory and RecommendedBufferSize).
func (a *ReaderArchive) Entries(buf []byte) iter.Seq2[CentralDirectoryRecord, error] {
	cd, err := NewReaderCentralDirectory(a.r, a.EOCD, buf)
	if err != nil {
		return func(yield func(CentralDirectoryRecord, error) bool) {
			yield(CentralDirectoryRecord{}, err)
		}
	}
	return cd.All()
}

// OpenEntry returns a bounded reader over w's compressed bytes, reading
// through the archive's underlying ReadAt.
func (a *ReaderArchive) OpenEntry(w Wayfinder) (*EntryReader, error) {
	rng, err := LocateCompressedData(a.r, w)
	if err != nil {
		return nil, err
	}
	return NewEntryReader(a.r, rng), nil
}
