//go:build !windows

package rawzip

import "golang.org/x/sys/unix"

// osReadAt issues a single native positioned read, the POSIX pread(2)
// rawzip's ReadAt contract is modeled after: no shared
// file-position state, safe to call concurrently from multiple goroutines
// against the same *os.File.
func (f *FileReaderAt) osReadAt(p []byte, off int64) (int, error) {
	return unix.Pread(int(f.f.Fd()), p, off)
}
