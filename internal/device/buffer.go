package device

import (
	"unsafe"

	"github.com/ncw/directio"
)

// Pattern selects one of the pre-filled write buffers. Varying the data
// keeps controllers from short-cutting trivially compressible writes.
type Pattern int

const (
	PatternZero Pattern = iota
	PatternOne
	PatternFixed

	numPatterns
)

var patternFill = [numPatterns]byte{
	PatternZero:  0x00,
	PatternOne:   0xff,
	PatternFixed: 0x5a,
}

func (p Pattern) String() string {
	switch p {
	case PatternZero:
		return "zero"
	case PatternOne:
		return "one"
	case PatternFixed:
		return "fixed"
	}
	return "invalid"
}

// Fill returns the byte every position of the pattern buffer holds.
func (p Pattern) Fill() byte { return patternFill[p] }

func (p Pattern) valid() bool { return p >= 0 && p < numPatterns }

// Buffer is a page-aligned byte buffer of fixed capacity, suitable for
// O_DIRECT transfers.
type Buffer struct {
	b []byte
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: directio.AlignedBlock(capacity)}
}

func (b *Buffer) Cap() int { return len(b.b) }

// Slice returns the first n bytes. n must not exceed Cap.
func (b *Buffer) Slice(n int) []byte { return b.b[:n] }

// Aligned reports whether the buffer starts on a directio.AlignSize
// boundary.
func (b *Buffer) Aligned() bool {
	if len(b.b) == 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&b.b[0]))&(directio.AlignSize-1) == 0
}

func (b *Buffer) fill(v byte) {
	if v == 0 || len(b.b) == 0 {
		return
	}
	b.b[0] = v
	for n := 1; n < len(b.b); n *= 2 {
		copy(b.b[n:], b.b[:n])
	}
}
