package rawzip

import (
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32KnownVector(t *testing.T) {
	c := NewCRC32()
	c.Update([]byte("123456789"))
	assert.Equal(t, uint32(0xcbf43926), c.Sum32())
}

func TestCRC32MatchesStdlibIEEE(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, size := range []int{0, 1, 15, 16, 17, 31, 32, 33, 1000, 4097} {
		buf := make([]byte, size)
		r.Read(buf)

		c := NewCRC32()
		c.Update(buf)

		assert.Equal(t, crc32.ChecksumIEEE(buf), c.Sum32(), "size=%d", size)
	}
}

func TestCRC32IncrementalMatchesSinglePass(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	buf := make([]byte, 5000)
	r.Read(buf)

	whole := NewCRC32()
	whole.Update(buf)

	chunked := NewCRC32()
	for i := 0; i < len(buf); {
		n := 37
		if i+n > len(buf) {
			n = len(buf) - i
		}
		chunked.Update(buf[i : i+n])
		i += n
	}

	assert.Equal(t, whole.Sum32(), chunked.Sum32())
}

func TestCRC32Reset(t *testing.T) {
	c := NewCRC32()
	c.Update([]byte("garbage"))
	c.Reset()
	c.Update([]byte("123456789"))
	assert.Equal(t, uint32(0xcbf43926), c.Sum32())
}

func TestCRC32WriteImplementsIOWriter(t *testing.T) {
	c := NewCRC32()
	n, err := c.Write([]byte("123456789"))
	assert.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, uint32(0xcbf43926), c.Sum32())
}
