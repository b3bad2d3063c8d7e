package rawzip

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSimpleArchive writes a small Store-only archive (file, file, empty
// directory) and returns its bytes, useful as a fixture for the locator,
// central directory, and archive tests below.
func writeSimpleArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)

	mtime := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	entries := []struct {
		name string
		body string
	}{
		{"a.txt", "hello"},
		{"dir/b.txt", "world, a bit longer this time"},
	}

	for _, e := range entries {
		ew, err := w.CreateEntry(EntryHeader{
			Name:     e.name,
			Modified: mtime,
			Mode:     0o644,
		})
		require.NoError(t, err)
		_, err = io.WriteString(ew, e.body)
		require.NoError(t, err)
		require.NoError(t, ew.Close())
	}

	dw, err := w.CreateEntry(EntryHeader{Name: "dir/empty/", Modified: mtime, Mode: 0o755})
	require.NoError(t, err)
	require.NoError(t, dw.Close())

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterRoundTripViaArchive(t *testing.T) {
	data := writeSimpleArchive(t)

	a, err := OpenSlice(data)
	require.NoError(t, err)
	assert.False(t, a.EOCD.IsZip64)
	assert.EqualValues(t, 3, a.EOCD.Entries)

	got := map[string]string{}
	for rec, err := range a.Entries() {
		require.NoError(t, err)

		name, nerr := Normalize(rec.FileName)
		require.NoError(t, nerr)

		if name.IsDir() {
			got[name.String()] = ""
			continue
		}

		er, oerr := a.OpenEntry(rec.Wayfinder())
		require.NoError(t, oerr)

		vr := NewVerifyingReader(er, er.ReadAt(), er.Range(), rec.Wayfinder())
		body, rerr := io.ReadAll(vr)
		require.NoError(t, rerr)
		got[name.String()] = string(body)
	}

	assert.Equal(t, map[string]string{
		"a.txt":      "hello",
		"dir/b.txt":  "world, a bit longer this time",
		"dir/empty/": "",
	}, got)
}

func TestWriterEntryModTimeRoundTrips(t *testing.T) {
	data := writeSimpleArchive(t)
	a, err := OpenSlice(data)
	require.NoError(t, err)

	for rec, err := range a.Entries() {
		require.NoError(t, err)
		dt := rec.ModTime()
		assert.Equal(t, UTC, dt.Zone)
		assert.Equal(t, 2024, dt.Time.Year())
		assert.Equal(t, time.May, dt.Time.Month())
	}
}

func TestVerifyingReaderDetectsCorruption(t *testing.T) {
	data := writeSimpleArchive(t)
	a, err := OpenSlice(data)
	require.NoError(t, err)

	var target CentralDirectoryRecord
	for rec, err := range a.Entries() {
		require.NoError(t, err)
		if string(rec.FileName) == "a.txt" {
			target = rec
			break
		}
	}
	require.NotEmpty(t, target.FileName)

	rng, err := LocateCompressedData(SliceReaderAt(data), target.Wayfinder())
	require.NoError(t, err)

	corrupted := append([]byte{}, data...)
	corrupted[rng.Offset] ^= 0xff

	corruptedReaderAt := SliceReaderAt(corrupted)
	er := NewEntryReader(corruptedReaderAt, rng)
	vr := NewVerifyingReader(er, corruptedReaderAt, rng, target.Wayfinder())
	_, err = io.ReadAll(vr)
	assert.Error(t, err)
	var zerr *Error
	assert.ErrorAs(t, err, &zerr)
	assert.Equal(t, KindInvalidChecksum, zerr.Kind)
}

func TestWriterPromotesToZip64WhenCountExceedsThreshold(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	const n = 70000 // exceeds the 16-bit entry count sentinel
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ew, err := w.CreateEntry(EntryHeader{Name: "f", Modified: mtime})
		require.NoError(t, err)
		require.NoError(t, ew.Close())
	}
	require.NoError(t, w.Close())

	a, err := OpenSlice(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, a.EOCD.IsZip64)
	assert.EqualValues(t, n, a.EOCD.Entries)
}

func TestCreateEntryRejectsNameTooLong(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	name := strings.Repeat("a", 65536)
	_, err := w.CreateEntry(EntryHeader{Name: name, Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.Error(t, err)
	var zerr *Error
	assert.ErrorAs(t, err, &zerr)
	assert.Equal(t, KindInvalidInput, zerr.Kind)
}

func TestCreateEntryRejectsCommentTooLong(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	_, err := w.CreateEntry(EntryHeader{
		Name:     "a.txt",
		Comment:  strings.Repeat("c", 65536),
		Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
	var zerr *Error
	assert.ErrorAs(t, err, &zerr)
	assert.Equal(t, KindInvalidInput, zerr.Kind)
}

func TestCreateEntryAcceptsMaximumLengthName(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	name := strings.Repeat("a", 65535)
	ew, err := w.CreateEntry(EntryHeader{Name: name, Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.NoError(t, ew.Close())
	require.NoError(t, w.Close())

	a, err := OpenSlice(buf.Bytes())
	require.NoError(t, err)
	for rec, err := range a.Entries() {
		require.NoError(t, err)
		assert.Equal(t, name, string(rec.FileName))
	}
}
