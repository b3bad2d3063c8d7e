// Package rawzip provides a sans-I/O reader and writer for the PKZIP file
// format, including ZIP64. It parses and emits archive metadata — local
// file headers, central directory records, the end-of-central-directory
// record, extra fields, timestamps, and mode bits — and streams each
// entry's raw compressed bytes, but never compresses or decompresses
// anything itself: callers supply their own flate/zstd/whatever codec and
// feed it the bytes rawzip locates for them.
//
// Every read goes through the ReadAt capability, a positioned-read
// primitive that works the same whether the backing store is an in-memory
// byte slice, an *os.File, or any other io.ReadSeeker. Central directory
// iteration is exposed as a Go 1.23 lending iterator (iter.Seq2): a
// slice-backed variant that borrows zero-copy from memory, and a
// reader-backed variant that reuses a single caller-supplied buffer.
//
// rawzip does not attempt to repair malformed archives, does not support
// multi-disk archives or encryption, and never sizes an allocation off of
// an untrusted 32- or 64-bit size field. The only allocations sized from
// archive metadata are bounded by 16-bit length fields: the archive comment
// (when requested) and a local header's name and extra field
// (ParseLocalFileHeader).
package rawzip
