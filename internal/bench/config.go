package bench

import (
	"strings"

	"github.com/pkg/errors"

	"superalign/internal/device"
	"superalign/internal/lfsr"
)

var (
	ErrConfig   = errors.New("invalid benchmark configuration")
	ErrNoBlocks = errors.New("device too small for one operation")
)

// Config is the parsed command line.
type Config struct {
	Size   int64  // bytes per operation
	Offset int64  // first byte addressed
	Align  int64  // 0 for unaligned
	Count  uint64 // operations per repeat; 0 means one per block
	Repeat uint64 // 0 means 1

	Verbose  int
	Erase    bool
	Random   bool
	Read     bool
	NoDirect bool

	Pattern PatternPolicy
	Sketch  string
}

func (c Config) Label() string {
	if c.Read {
		return "read"
	}
	return "write"
}

// PatternPolicy picks the write buffer for each operation.
type PatternPolicy int

const (
	PatternFixed PatternPolicy = iota
	PatternZero
	PatternOne
	PatternCycle
)

func ParsePatternPolicy(s string) (PatternPolicy, error) {
	switch strings.ToLower(s) {
	case "", "fixed":
		return PatternFixed, nil
	case "zero":
		return PatternZero, nil
	case "one":
		return PatternOne, nil
	case "cycle":
		return PatternCycle, nil
	}
	return 0, errors.Wrapf(ErrConfig, "unknown write pattern %q", s)
}

func (p PatternPolicy) String() string {
	switch p {
	case PatternFixed:
		return "fixed"
	case PatternZero:
		return "zero"
	case PatternOne:
		return "one"
	case PatternCycle:
		return "cycle"
	}
	return "invalid"
}

// pick returns the buffer for the op-th write of the run.
func (p PatternPolicy) pick(op uint64) device.Pattern {
	switch p {
	case PatternZero:
		return device.PatternZero
	case PatternOne:
		return device.PatternOne
	case PatternCycle:
		return device.Pattern(op % 3)
	}
	return device.PatternFixed
}

// Geometry is how the configured accesses map onto a device.
type Geometry struct {
	DeviceSize  int64
	Offset      int64
	Size        int64
	Align       int64
	AlignedSize int64
	Blocks      uint64
	Order       uint
}

// NewGeometry lays out cfg over a device of deviceSize bytes. With an
// alignment the slot size is rounded up to it, and bumped by one more
// step when size is already a multiple so that sequential accesses are
// never back to back.
func NewGeometry(deviceSize int64, cfg Config) (Geometry, error) {
	if cfg.Size <= 0 {
		return Geometry{}, errors.Wrapf(ErrConfig, "size %d", cfg.Size)
	}
	if cfg.Offset < 0 || cfg.Align < 0 {
		return Geometry{}, errors.Wrapf(ErrConfig, "offset %d, align %d", cfg.Offset, cfg.Align)
	}

	aligned := cfg.Size
	if cfg.Align > 0 {
		aligned = (cfg.Size + cfg.Align - 1) / cfg.Align * cfg.Align
		if aligned == cfg.Size {
			aligned += cfg.Align
		}
	}

	g := Geometry{
		DeviceSize:  deviceSize,
		Offset:      cfg.Offset,
		Size:        cfg.Size,
		Align:       cfg.Align,
		AlignedSize: aligned,
	}
	if cfg.Offset < deviceSize {
		g.Blocks = uint64((deviceSize - cfg.Offset) / aligned)
	}
	if g.Blocks == 0 {
		return g, errors.Wrapf(ErrNoBlocks, "%d byte device, offset %d, slot %d", deviceSize, cfg.Offset, aligned)
	}
	g.Order = lfsr.OrderOf(g.Blocks)
	return g, nil
}

// Position is the byte address of slot index.
func (g Geometry) Position(index uint64) int64 {
	return g.Offset + int64(index)*g.AlignedSize
}
