package rawzip

import "encoding/binary"

// fieldReader reads little-endian fixed-width fields off the front of a
// byte slice, advancing past each one. It panics if asked to read past the
// end of the slice; callers must have already checked the slice is long
// enough (every call site here does, via the fixed record sizes).
type fieldReader []byte

func (r *fieldReader) u8() uint8 {
	v := (*r)[0]
	*r = (*r)[1:]
	return v
}

func (r *fieldReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(*r)
	*r = (*r)[2:]
	return v
}

func (r *fieldReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(*r)
	*r = (*r)[4:]
	return v
}

func (r *fieldReader) u64() uint64 {
	v := binary.LittleEndian.Uint64(*r)
	*r = (*r)[8:]
	return v
}

func (r *fieldReader) skip(n int) {
	*r = (*r)[n:]
}

func (r *fieldReader) bytes(n int) []byte {
	v := (*r)[:n]
	*r = (*r)[n:]
	return v
}

// fieldWriter is the write-side counterpart, used by the writer to lay out
// fixed structures into a caller-owned buffer without extra allocation.
type fieldWriter []byte

func (w *fieldWriter) u8(v uint8) {
	(*w)[0] = v
	*w = (*w)[1:]
}

func (w *fieldWriter) u16(v uint16) {
	binary.LittleEndian.PutUint16(*w, v)
	*w = (*w)[2:]
}

func (w *fieldWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(*w, v)
	*w = (*w)[4:]
}

func (w *fieldWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(*w, v)
	*w = (*w)[8:]
}

func (w *fieldWriter) bytes(v []byte) {
	n := copy(*w, v)
	*w = (*w)[n:]
}
