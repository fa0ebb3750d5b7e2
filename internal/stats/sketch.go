package stats

import (
	"math"
	"strings"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/DataDog/sketches-go/ddsketch/mapping"
	"github.com/DataDog/sketches-go/ddsketch/store"
	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/pkg/errors"
)

const (
	// HDR histogram range: 1ns to 60s, 3 significant figures
	histMin    = 1
	histMax    = 60_000_000_000
	histSigFig = 3

	// DDSketch relative accuracy: 1% means true value within ±1% of reported
	DefaultAlpha = 0.01
)

// Quantiles reported alongside the Welford moments.
var Quantiles = []float64{0.50, 0.90, 0.99, 0.999}

var ErrUnknownSketch = errors.New("unknown quantile sketch")

// Sketch estimates latency quantiles (in ns) without keeping every sample.
type Sketch interface {
	Name() string
	Record(ns float64)
	// Quantile returns the estimate for q in [0, 1]; false when empty.
	Quantile(q float64) (float64, bool)
}

// ParseSketch maps a flag value to a sketch. "none" yields a nil Sketch.
func ParseSketch(name string) (Sketch, error) {
	switch strings.ToLower(name) {
	case "", "hdr":
		return NewHDRSketch(), nil
	case "ddsketch", "dd":
		return NewDDSketch(DefaultAlpha)
	case "none":
		return nil, nil
	}
	return nil, errors.Wrapf(ErrUnknownSketch, "%q", name)
}

type hdrSketch struct {
	h *hdrhistogram.Histogram
}

func NewHDRSketch() Sketch {
	return &hdrSketch{h: hdrhistogram.New(histMin, histMax, histSigFig)}
}

func (s *hdrSketch) Name() string { return "hdr" }

func (s *hdrSketch) Record(ns float64) {
	v := int64(math.Round(ns))
	if v < histMin {
		v = histMin
	}
	if v > histMax {
		v = histMax
	}
	s.h.RecordValue(v)
}

func (s *hdrSketch) Quantile(q float64) (float64, bool) {
	if s.h.TotalCount() == 0 {
		return 0, false
	}
	return float64(s.h.ValueAtQuantile(q * 100)), true
}

type ddSketch struct {
	s     *ddsketch.DDSketch
	alpha float64
}

// NewDDSketch creates a DDSketch with given relative accuracy.
func NewDDSketch(alpha float64) (Sketch, error) {
	m, err := mapping.NewLogarithmicMapping(alpha)
	if err != nil {
		return nil, errors.Wrap(err, "ddsketch mapping")
	}
	return &ddSketch{
		s:     ddsketch.NewDDSketch(m, store.NewDenseStore(), store.NewDenseStore()),
		alpha: alpha,
	}, nil
}

func (s *ddSketch) Name() string { return "ddsketch" }

func (s *ddSketch) Record(ns float64) {
	// Add only fails for values outside the mapping's range; those
	// samples still count toward the Welford moments.
	_ = s.s.Add(ns)
}

func (s *ddSketch) Quantile(q float64) (float64, bool) {
	if s.s.GetCount() == 0 {
		return 0, false
	}
	v, err := s.s.GetValueAtQuantile(q)
	if err != nil {
		return 0, false
	}
	return v, true
}
