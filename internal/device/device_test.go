package device

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCapacity = 64 << 10

// tmpfs, where t.TempDir often lives, rejects O_DIRECT, so the tests
// run buffered.
func openTemp(t *testing.T, size int) (*Device, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))

	d, err := Open(path, Options{Capacity: testCapacity})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d, path
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing"), Options{Capacity: testCapacity})
	assert.True(t, errors.Is(err, ErrDeviceOpen), "got %v", err)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
	var oe *OpenError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "open", oe.Op)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Open(empty, Options{Capacity: testCapacity})
	assert.True(t, errors.Is(err, ErrDeviceEmpty), "got %v", err)

	_, err = Open(empty, Options{Capacity: MaxTransfer + 1})
	assert.True(t, errors.Is(err, ErrAllocation), "got %v", err)
}

func TestOpenPreparesBuffers(t *testing.T) {
	d, path := openTemp(t, 1<<20)

	assert.Equal(t, path, d.Path())
	assert.Equal(t, int64(1<<20), d.Size())
	assert.Equal(t, testCapacity, d.Capacity())
	assert.False(t, d.Direct())
	assert.True(t, d.readBuf.Aligned())
	for p := Pattern(0); p < numPatterns; p++ {
		b := d.writeBufs[p]
		assert.True(t, b.Aligned(), "%v", p)
		assert.Equal(t, bytes.Repeat([]byte{p.Fill()}, testCapacity), b.Slice(testCapacity), "%v", p)
	}
}

func TestTimedWriteThenRead(t *testing.T) {
	d, path := openTemp(t, 1<<20)

	elapsed, err := d.TimedWrite(8192, 4096, PatternFixed)
	require.NoError(t, err)
	assert.Positive(t, int64(elapsed))

	elapsed, err = d.TimedRead(8192, 4096)
	require.NoError(t, err)
	assert.Positive(t, int64(elapsed))
	assert.Equal(t, bytes.Repeat([]byte{0x5a}, 4096), d.readBuf.Slice(4096))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 8192), data[:8192])
	assert.Equal(t, bytes.Repeat([]byte{0x5a}, 4096), data[8192:12288])
}

func TestPositionWrapsModuloSize(t *testing.T) {
	d, path := openTemp(t, 1<<20)

	_, err := d.TimedWrite(d.Size(), 4096, PatternOne)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 4096), data[:4096])
	assert.Equal(t, make([]byte, 4096), data[4096:8192])
}

func TestTransferWrapsAtEnd(t *testing.T) {
	d, path := openTemp(t, 8192)

	_, err := d.TimedWrite(6144, 4096, PatternOne)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 8192, "write must not extend the file")
	ones := bytes.Repeat([]byte{0xff}, 2048)
	assert.Equal(t, ones, data[:2048])
	assert.Equal(t, make([]byte, 4096), data[2048:6144])
	assert.Equal(t, ones, data[6144:])

	_, err = d.TimedRead(6144, 4096)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 4096), d.readBuf.Slice(4096))
}

func TestTransferSizeLimit(t *testing.T) {
	d, _ := openTemp(t, 1<<20)

	_, err := d.TimedRead(0, testCapacity)
	assert.NoError(t, err)
	_, err = d.TimedWrite(0, testCapacity, PatternZero)
	assert.NoError(t, err)

	_, err = d.TimedRead(0, testCapacity+1)
	assert.True(t, errors.Is(err, ErrAllocation), "got %v", err)
	_, err = d.TimedWrite(0, testCapacity+1, PatternZero)
	assert.True(t, errors.Is(err, ErrAllocation), "got %v", err)
}

func TestInvalidPattern(t *testing.T) {
	d, _ := openTemp(t, 1<<20)
	_, err := d.TimedWrite(0, 512, Pattern(7))
	assert.Error(t, err)
}

func TestIOErrorAfterClose(t *testing.T) {
	d, _ := openTemp(t, 1<<20)
	require.NoError(t, d.Close())

	_, err := d.TimedRead(0, 4096)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))

	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, 4096, ioErr.Want)
	assert.Zero(t, ioErr.Done)
}

func TestDiscardRegularFile(t *testing.T) {
	d, path := openTemp(t, 1<<20)

	_, err := d.TimedWrite(0, testCapacity, PatternOne)
	require.NoError(t, err)

	if err := d.Discard(); err != nil {
		require.True(t, errors.Is(err, ErrDiscard))
		t.Skipf("hole punching unsupported here: %v", err)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 1<<20)
	assert.Equal(t, make([]byte, testCapacity), data[:testCapacity])
}

func TestPatternString(t *testing.T) {
	assert.Equal(t, "zero", PatternZero.String())
	assert.Equal(t, "one", PatternOne.String())
	assert.Equal(t, "fixed", PatternFixed.String())
	assert.Equal(t, "invalid", Pattern(9).String())
}

func TestCapacityFor(t *testing.T) {
	assert.Equal(t, 4096, CapacityFor(0))
	assert.Equal(t, 4096, CapacityFor(1))
	assert.Equal(t, 4096, CapacityFor(4096))
	assert.Equal(t, 8192, CapacityFor(4097))
	assert.Equal(t, MaxTransfer, CapacityFor(MaxTransfer+1))
}

func TestBufferAligned(t *testing.T) {
	for _, n := range []int{512, 4096, 3 * 4096} {
		b := NewBuffer(n)
		assert.Equal(t, n, b.Cap())
		assert.True(t, b.Aligned(), "capacity %d", n)
	}
	assert.False(t, (&Buffer{}).Aligned())
}
