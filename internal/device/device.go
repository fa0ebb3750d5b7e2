// Package device performs timed, positioned I/O against a block device or
// regular file, optionally bypassing the page cache.
package device

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ncw/directio"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MaxTransfer is the largest single operation and the default buffer
// capacity.
const MaxTransfer = 64 << 20

var (
	ErrDeviceOpen  = errors.New("cannot open device")
	ErrDeviceEmpty = errors.New("device/file is zero bytes big")
	ErrAllocation  = errors.New("buffer allocation")
	ErrIO          = errors.New("timed I/O failed")
	ErrDiscard     = errors.New("discard failed")
)

// IOError describes a timed transfer that could not complete.
type IOError struct {
	Op     string
	Offset int64
	Done   int
	Want   int
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s at offset %d: %d of %d bytes: %v", e.Op, e.Offset, e.Done, e.Want, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// OpenError is a failure to open or size the device. The underlying
// cause stays reachable, so fs.ErrNotExist and fs.ErrPermission match.
type OpenError struct {
	Path string
	Op   string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: %v", ErrDeviceOpen, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

func (e *OpenError) Is(target error) bool { return target == ErrDeviceOpen }

type Options struct {
	// BypassCache opens with O_DIRECT|O_SYNC.
	BypassCache bool
	// Capacity of every buffer; 0 means MaxTransfer.
	Capacity int
}

// CapacityFor is the smallest buffer capacity that holds a transfer of
// size bytes: size rounded up to whole aligned blocks.
func CapacityFor(size int64) int {
	if size <= 0 {
		return directio.BlockSize
	}
	n := (size + directio.BlockSize - 1) / directio.BlockSize * directio.BlockSize
	if n > MaxTransfer {
		return MaxTransfer
	}
	return int(n)
}

// Device owns the open file and the four transfer buffers.
type Device struct {
	path   string
	f      *os.File
	fd     int
	size   int64
	direct bool

	readBuf   *Buffer
	writeBufs [numPatterns]*Buffer
}

// Open opens path read/write and allocates the transfer buffers.
func Open(path string, opts Options) (*Device, error) {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = MaxTransfer
	}
	if capacity < 0 || capacity > MaxTransfer {
		return nil, errors.Wrapf(ErrAllocation, "capacity %d outside (0, %d]", capacity, MaxTransfer)
	}

	var (
		f   *os.File
		err error
	)
	if opts.BypassCache {
		f, err = directio.OpenFile(path, os.O_RDWR|unix.O_SYNC, 0)
	} else {
		f, err = os.OpenFile(path, os.O_RDWR, 0)
	}
	if err != nil {
		return nil, &OpenError{Path: path, Op: "open", Err: err}
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, &OpenError{Path: path, Op: "seek", Err: err}
	}
	if size == 0 {
		f.Close()
		return nil, errors.Wrap(ErrDeviceEmpty, path)
	}

	d := &Device{
		path:    path,
		f:       f,
		fd:      int(f.Fd()),
		size:    size,
		direct:  opts.BypassCache,
		readBuf: NewBuffer(capacity),
	}
	for p := Pattern(0); p < numPatterns; p++ {
		b := NewBuffer(capacity)
		b.fill(p.Fill())
		d.writeBufs[p] = b
	}
	return d, nil
}

func (d *Device) Path() string { return d.path }

// Size is the addressable extent in bytes, fixed at open.
func (d *Device) Size() int64 { return d.size }

// Capacity is the largest size a single timed operation accepts.
func (d *Device) Capacity() int { return d.readBuf.Cap() }

// Direct reports whether the page cache is bypassed.
func (d *Device) Direct() bool { return d.direct }

func (d *Device) Close() error {
	return d.f.Close()
}

// TimedRead reads size bytes starting at pos modulo the device size and
// returns the elapsed wall-clock time.
func (d *Device) TimedRead(pos int64, size int) (time.Duration, error) {
	if err := d.checkSize(size); err != nil {
		return 0, err
	}
	return d.transfer("read", d.readBuf.Slice(size), pos, false)
}

// TimedWrite writes size bytes of pattern starting at pos modulo the
// device size and returns the elapsed wall-clock time.
func (d *Device) TimedWrite(pos int64, size int, pattern Pattern) (time.Duration, error) {
	if err := d.checkSize(size); err != nil {
		return 0, err
	}
	if !pattern.valid() {
		return 0, errors.Errorf("invalid write pattern %d", int(pattern))
	}
	return d.transfer("write", d.writeBufs[pattern].Slice(size), pos, true)
}

func (d *Device) checkSize(size int) error {
	if size < 0 || size > d.Capacity() {
		return errors.Wrapf(ErrAllocation, "transfer of %d bytes exceeds %d byte buffer", size, d.Capacity())
	}
	return nil
}

// transfer issues positioned calls until buf is consumed. A transfer that
// reaches the end of the device continues at offset 0.
func (d *Device) transfer(op string, buf []byte, pos int64, write bool) (time.Duration, error) {
	off := wrap(pos, d.size)
	done := 0

	start := time.Now()
	for done < len(buf) {
		at := (off + int64(done)) % d.size
		chunk := buf[done:]
		if left := d.size - at; int64(len(chunk)) > left {
			chunk = chunk[:left]
		}

		var (
			n   int
			err error
		)
		if write {
			n, err = unix.Pwrite(d.fd, chunk, at)
		} else {
			n, err = unix.Pread(d.fd, chunk, at)
		}
		if n > 0 {
			done += n
		}
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			continue
		}
		if err == nil && n == 0 {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return 0, &IOError{Op: op, Offset: off, Done: done, Want: len(buf), Err: err}
		}
	}
	elapsed := time.Since(start)

	// zero is never a valid timing
	if elapsed <= 0 {
		elapsed = 1
	}
	return elapsed, nil
}

func wrap(pos, size int64) int64 {
	r := pos % size
	if r < 0 {
		r += size
	}
	return r
}
