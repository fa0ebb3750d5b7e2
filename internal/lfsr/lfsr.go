// Package lfsr generates full-period pseudo-random block indices with a
// Galois linear-feedback shift register.
//
// Within one period of 2^order values every non-zero index is produced
// exactly once, so random-access runs cover the device without the hot
// spots a general RNG would create through collisions.
package lfsr

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"
)

const (
	// Seed is the initial register value, masked to the register width.
	Seed = 0xace1

	MinOrder = 8
	MaxOrder = 32
)

var ErrUnsupportedOrder = errors.New("unsupported LFSR order")

// Primitive feedback polynomials, listed by exponent. The leading
// exponent is always the order itself.
var taps = map[uint][]uint{
	8:  {8, 6, 5, 4},
	9:  {9, 5},
	10: {10, 7},
	11: {11, 9},
	12: {12, 11, 10, 4},
	13: {13, 12, 11, 8},
	14: {14, 13, 12, 2},
	15: {15, 14},
	16: {16, 14, 13, 11},
	17: {17, 14},
	18: {18, 11},
	19: {19, 18, 17, 14},
	20: {20, 17},
	21: {21, 19},
	22: {22, 21},
	23: {23, 18},
	24: {24, 23, 22, 17},
	25: {25, 22},
	26: {26, 6, 2, 1},
	27: {27, 5, 2, 1},
	28: {28, 25},
	29: {29, 27},
	30: {30, 6, 4, 1},
	31: {31, 28},
	32: {32, 22, 2, 1},
}

// masks maps order -> Galois toggle mask, built once from taps.
var masks = func() map[uint]uint32 {
	m := make(map[uint]uint32, len(taps))
	for order, exps := range taps {
		var mask uint32
		for _, e := range exps {
			mask |= 1 << (e - 1)
		}
		m[order] = mask
	}
	return m
}()

// OrderOf returns floor(log2(blocks)), or 0 when blocks < 2.
func OrderOf(blocks uint64) uint {
	if blocks < 2 {
		return 0
	}
	return uint(bits.Len64(blocks) - 1)
}

// Supported reports whether a feedback polynomial exists for order.
func Supported(order uint) bool {
	_, ok := masks[order]
	return ok
}

// Step advances v by one Galois shift. It panics when v does not fit in
// order bits or when order has no polynomial; either one is a caller bug.
func Step(v uint32, order uint) uint32 {
	mask, ok := masks[order]
	if !ok {
		panic(fmt.Sprintf("lfsr: internal error (unsupported order %d)", order))
	}
	if order < 32 && v >= 1<<order {
		panic(fmt.Sprintf("lfsr: internal error (state %#x exceeds %d bits)", v, order))
	}
	return galois(v, mask)
}

func galois(v, mask uint32) uint32 {
	lsb := v & 1
	v >>= 1
	if lsb != 0 {
		v ^= mask
	}
	return v
}

// Sequencer emits one block index per Next call.
type Sequencer struct {
	order   uint
	mask    uint32
	seed    uint32
	state   uint32
	started bool
}

// New sizes the register for blocks addressable slots.
func New(blocks uint64) (*Sequencer, error) {
	return NewOrder(OrderOf(blocks))
}

func NewOrder(order uint) (*Sequencer, error) {
	if !Supported(order) {
		return nil, errors.Wrapf(ErrUnsupportedOrder, "order %d not in [%d, %d]", order, MinOrder, MaxOrder)
	}
	seed := uint32(Seed & (uint64(1)<<order - 1))
	return &Sequencer{
		order: order,
		mask:  masks[order],
		seed:  seed,
		state: seed,
	}, nil
}

func (s *Sequencer) Order() uint { return s.order }

// Period is the number of Next calls before the output repeats,
// counting the zero marker.
func (s *Sequencer) Period() uint64 { return uint64(1) << s.order }

// Next returns the next index. The first 2^order-1 calls return every
// value of [1, 2^order-1] once; the following call returns 0 to mark the
// wrap, after which the sequence starts over from the seed.
func (s *Sequencer) Next() uint32 {
	if s.state == s.seed && s.started {
		s.started = false
		return 0
	}
	s.started = true
	out := s.state
	s.state = galois(s.state, s.mask)
	return out
}
