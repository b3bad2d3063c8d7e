package rawzip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDOSDateTimeRoundTrip(t *testing.T) {
	in := time.Date(2023, time.June, 15, 13, 45, 30, 0, time.UTC)
	date, dtime := timeToDOSDateTime(in)
	out := dosDateTimeToTime(date, dtime)

	assert.Equal(t, 2023, out.Year())
	assert.Equal(t, time.June, out.Month())
	assert.Equal(t, 15, out.Day())
	assert.Equal(t, 13, out.Hour())
	assert.Equal(t, 45, out.Minute())
	assert.Equal(t, 30, out.Second()) // even second survives the 2-second quantization
}

func TestDOSDateTimeZeroIsEpoch(t *testing.T) {
	out := dosDateTimeToTime(0, 0)
	assert.Equal(t, 1980, out.Year())
	assert.Equal(t, time.January, out.Month())
	assert.Equal(t, 1, out.Day())
}

func TestDOSDateTimeSaturatesYearRange(t *testing.T) {
	early := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	date, dtime := timeToDOSDateTime(early)
	out := dosDateTimeToTime(date, dtime)
	assert.Equal(t, 1980, out.Year())

	late := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
	date, dtime = timeToDOSDateTime(late)
	out = dosDateTimeToTime(date, dtime)
	assert.Equal(t, 2107, out.Year())
}

func TestResolveModTimeFallsBackToDOS(t *testing.T) {
	date, dtime := timeToDOSDateTime(time.Date(2020, 3, 4, 5, 6, 8, 0, time.UTC))
	dt := resolveModTime(nil, date, dtime)
	assert.Equal(t, Local, dt.Zone)
	assert.Equal(t, 2020, dt.Time.Year())
}

func TestResolveModTimeExtendedTimestampWins(t *testing.T) {
	want := time.Date(2021, 7, 4, 12, 0, 0, 0, time.UTC)
	extra := encodeExtendedTimeExtra(want)

	date, dtime := timeToDOSDateTime(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	dt := resolveModTime(extra, date, dtime)

	assert.Equal(t, UTC, dt.Zone)
	assert.True(t, want.Equal(dt.Time))
}

func TestResolveModTimeLastExtraWins(t *testing.T) {
	first := encodeExtendedTimeExtra(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	second := encodeExtendedTimeExtra(time.Date(2010, 6, 6, 6, 6, 6, 0, time.UTC))

	extra := append(append([]byte{}, first...), second...)
	dt := resolveModTime(extra, 0, 0)

	assert.Equal(t, 2010, dt.Time.Year())
}

func TestNTFSModTime(t *testing.T) {
	// A single tag-0x0001 sub-block holding the Unix epoch in NTFS ticks,
	// which must parse back to Unix time 0.
	body := make([]byte, 4+4+2+2+8)
	w := fieldWriter(body)
	w.u32(0) // reserved
	w.u16(ntfsTag1)
	w.u16(8)
	w.u64(ntfsEpochOffset * 1e7) // exactly the Unix epoch in NTFS ticks
	got, ok := parseNTFSModTime(body)
	assert.True(t, ok)
	assert.Equal(t, int64(0), got.Unix())
}
