// Package format converts sizes and latencies between human-readable
// strings and raw numbers.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const SectorSize = 512

var ErrBadSize = errors.New("invalid size")

var sizeSuffix = map[byte]int64{
	'B': 1,
	'S': SectorSize,
	'K': 1 << 10,
	'M': 1 << 20,
	'G': 1 << 30,
	'T': 1 << 40,
}

// ParseSize parses "4096", "4K", "8s" and friends. Suffixes are binary
// multiples; S is a 512-byte sector.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Wrap(ErrBadSize, "empty")
	}
	mult := int64(1)
	if m, ok := sizeSuffix[upper(s[len(s)-1])]; ok {
		mult = m
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrBadSize, "%q", s)
	}
	if n > math.MaxInt64/mult {
		return 0, errors.Wrapf(ErrBadSize, "%q overflows", s)
	}
	return n * mult, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Nanos formats a latency in nanoseconds, scaled to ns/µs/ms/s.
func Nanos(ns float64) string {
	switch {
	case math.IsNaN(ns):
		return "-"
	case math.IsInf(ns, 0):
		return "inf"
	case ns < 1000:
		return fmt.Sprintf("%.0fns", ns)
	case ns < 1_000_000:
		return fmt.Sprintf("%.3gµs", ns/1000)
	case ns < 1_000_000_000:
		return fmt.Sprintf("%.3gms", ns/1_000_000)
	}
	return fmt.Sprintf("%.4gs", ns/1_000_000_000)
}

// Bytes formats a byte count with binary units.
func Bytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%dB", n)
	}
	return scaled(float64(n)) + "B"
}

// Rate formats a throughput in bytes per second.
func Rate(bps float64) string {
	switch {
	case math.IsNaN(bps):
		return "-"
	case math.IsInf(bps, 0):
		return "inf"
	case bps < 1024:
		return fmt.Sprintf("%.3gB/s", bps)
	}
	return scaled(bps) + "B/s"
}

func scaled(v float64) string {
	const units = "KMGTPE"
	i := -1
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.4g%ci", v, units[i])
}

// Count formats sample counts
func Count(n uint64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}
