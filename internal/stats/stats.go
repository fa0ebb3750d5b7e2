// Package stats folds a stream of latency samples into running statistics
// in a single pass.
//
// Mean and variance use Welford's update so that millions of samples
// spanning microseconds to seconds do not lose precision the way a naive
// sum of squares would.
package stats

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

var ErrNegativeLatency = errors.New("negative latency")

// Repeat is the rollup of one completed block of opsPerRepeat samples.
type Repeat struct {
	Index   uint64  // 1-based
	Ops     uint64
	Total   float64 // ns
	Average float64 // ns
}

// Percentile is one quantile estimate from the sketch.
type Percentile struct {
	Q     float64
	Value float64 // ns
}

// Summary is the final report. Latencies are in nanoseconds,
// throughputs in bytes per second.
type Summary struct {
	Label        string
	TransferSize int64

	Count    uint64
	Min      float64
	Max      float64
	Mean     float64
	Variance float64 // NaN when Count < 2
	StdDev   float64 // NaN when Count < 2

	Repeats         uint64
	AvgOfRepeatAvgs float64 // NaN when no repeat completed

	MinThroughput float64 // from Max latency
	MaxThroughput float64 // from Min latency
	AvgThroughput float64 // from Mean latency

	Sketch      string
	Percentiles []Percentile
}

type Option func(*Accumulator)

// WithSketch attaches a quantile sketch; nil disables percentiles.
func WithSketch(s Sketch) Option {
	return func(a *Accumulator) { a.sketch = s }
}

// WithRepeatHook is called each time a repeat completes.
func WithRepeatHook(fn func(Repeat)) Option {
	return func(a *Accumulator) { a.onRepeat = fn }
}

type Accumulator struct {
	opsPerRepeat uint64
	transferSize int64
	label        string

	count uint64
	min   float64
	max   float64
	mean  float64
	m2    float64

	repeatTime   float64
	repeats      uint64
	repeatAvgSum float64

	sketch   Sketch
	onRepeat func(Repeat)
}

// New creates an accumulator. opsPerRepeat of 0 disables repeat rollups.
func New(opsPerRepeat uint64, transferSize int64, label string, opts ...Option) *Accumulator {
	a := &Accumulator{
		opsPerRepeat: opsPerRepeat,
		transferSize: transferSize,
		label:        label,
		min:          math.Inf(1),
		max:          math.Inf(-1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Accumulator) Count() uint64 { return a.count }

// Record folds one sample in.
func (a *Accumulator) Record(latency time.Duration) error {
	if latency < 0 {
		return errors.Wrapf(ErrNegativeLatency, "%d ns", int64(latency))
	}
	x := float64(latency.Nanoseconds())

	a.count++
	if a.count == 1 {
		a.mean = x
		a.m2 = 0
	} else {
		delta := x - a.mean
		a.mean += delta / float64(a.count)
		a.m2 += delta * (x - a.mean)
	}
	if x < a.min {
		a.min = x
	}
	if x > a.max {
		a.max = x
	}
	if a.sketch != nil {
		a.sketch.Record(x)
	}

	a.repeatTime += x
	if a.opsPerRepeat > 0 && a.count%a.opsPerRepeat == 0 {
		a.repeats++
		r := Repeat{
			Index:   a.repeats,
			Ops:     a.opsPerRepeat,
			Total:   a.repeatTime,
			Average: a.repeatTime / float64(a.opsPerRepeat),
		}
		a.repeatAvgSum += r.Average
		a.repeatTime = 0
		if a.onRepeat != nil {
			a.onRepeat(r)
		}
	}
	return nil
}

// Report summarizes everything recorded so far. It does not reset state.
func (a *Accumulator) Report() Summary {
	s := Summary{
		Label:           a.label,
		TransferSize:    a.transferSize,
		Count:           a.count,
		Variance:        math.NaN(),
		StdDev:          math.NaN(),
		Repeats:         a.repeats,
		AvgOfRepeatAvgs: math.NaN(),
	}
	if a.count == 0 {
		return s
	}
	s.Min, s.Max, s.Mean = a.min, a.max, a.mean
	if a.count > 1 {
		s.Variance = a.m2 / float64(a.count-1)
		s.StdDev = math.Sqrt(s.Variance)
	}
	if a.repeats > 0 {
		s.AvgOfRepeatAvgs = a.repeatAvgSum / float64(a.repeats)
	}
	s.MinThroughput = Throughput(a.transferSize, s.Max)
	s.MaxThroughput = Throughput(a.transferSize, s.Min)
	s.AvgThroughput = Throughput(a.transferSize, s.Mean)

	if a.sketch != nil {
		s.Sketch = a.sketch.Name()
		for _, q := range Quantiles {
			if v, ok := a.sketch.Quantile(q); ok {
				s.Percentiles = append(s.Percentiles, Percentile{Q: q, Value: v})
			}
		}
	}
	return s
}

// Throughput converts a per-operation latency (ns) to bytes per second.
// A zero latency maps to +Inf.
func Throughput(bytes int64, ns float64) float64 {
	if ns <= 0 {
		return math.Inf(1)
	}
	return float64(bytes) / (ns / float64(time.Second))
}
