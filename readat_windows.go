//go:build windows

package rawzip

import "io"

// osReadAt guards the shared *os.File with FileReaderAt.mu so a seek+read
// pair behaves as an atomic positioned read: Windows exposes no portable
// pread equivalent through os.File, so rawzip falls back to the documented
// mutex-guarded seek+read rawzip's ReadAt contract falls back to. The file's original position
// is restored afterward so callers sharing the *os.File outside rawzip
// are not surprised by it moving.
func (f *FileReaderAt) osReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	saved, err := f.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	defer f.f.Seek(saved, io.SeekStart)

	if _, err = f.f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return f.f.Read(p)
}
