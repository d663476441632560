package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	assert.Equal(t, 1024, sizeClass(1))
	assert.Equal(t, 1024, sizeClass(1024))
	assert.Equal(t, 2048, sizeClass(1025))
	assert.Equal(t, 4096, sizeClass(3100))
}

func TestGetPutRoundTrip(t *testing.T) {
	buf := Get(500)
	assert.Len(t, buf, 500)
	assert.GreaterOrEqual(t, cap(buf), 1024)

	buf[0] = 42
	Put(buf)

	again := Get(500)
	assert.Len(t, again, 500)
	Put(again)
}

func TestGetLargerThanClass(t *testing.T) {
	buf := Get(10_000)
	assert.Len(t, buf, 10_000)
	Put(buf)
}

func TestPutForeignSlice(t *testing.T) {
	// Slices that never came from Get must not panic.
	Put(make([]float32, 77))
	Put(nil)
}
