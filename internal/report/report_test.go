package report

import (
	"bytes"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"superalign/internal/stats"
)

func sampleSetup() Setup {
	return Setup{
		Path:        "/dev/sdz",
		DeviceSize:  1 << 20,
		Size:        4096,
		AlignedSize: 4096,
		Count:       256,
		Repeat:      1,
		Blocks:      256,
		Order:       8,
		Random:      true,
		Pattern:     "fixed",
	}
}

func TestQuietPrintsOnlySummary(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, 0)
	p.Setup(sampleSetup())
	p.RepeatStart(1)
	p.Op(1, 1, 0, 1000)
	p.Repeat("write", stats.Repeat{Index: 1, Ops: 1, Total: 1000, Average: 1000})
	assert.Empty(t, buf.String())

	p.Summary(stats.Summary{Label: "write", Count: 1, TransferSize: 4096, Min: 1000, Max: 1000, Mean: 1000,
		Variance: math.NaN(), StdDev: math.NaN()})
	assert.Contains(t, buf.String(), "Global stats:")
	assert.NotContains(t, buf.String(), "\033[")
}

func TestVerboseLevels(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, 1)
	p.Setup(sampleSetup())
	p.RepeatStart(1)
	p.Op(1, 256, 4096, 1500)
	p.Repeat("write", stats.Repeat{Index: 1, Ops: 256, Total: 256000, Average: 1000})

	out := buf.String()
	assert.Contains(t, out, "/dev/sdz")
	assert.Contains(t, out, "count: 256, blocks: 256, order = 8")
	assert.Contains(t, out, "device size = 1048576 (1MiB)")
	assert.Contains(t, out, "buffered I/O")
	assert.Contains(t, out, "write pattern: fixed")
	assert.Contains(t, out, "LFSR-random accesses")
	assert.Contains(t, out, "Repeat 1:")
	assert.Contains(t, out, "repeat 1 total write time = 256µs")
	assert.Contains(t, out, "repeat 1 avg write time = 1µs")
	assert.NotContains(t, out, "(1/256)")

	buf.Reset()
	p.Verbose = 2
	p.Op(1, 256, 4096, 1500)
	assert.Equal(t, "\t(1/256) @4096 -> 1.5µs\n", buf.String())
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, 0)
	p.Summary(stats.Summary{
		Label:           "read",
		TransferSize:    4096,
		Count:           2000,
		Min:             500,
		Max:             2_000_000,
		Mean:            10_000,
		Variance:        4e6,
		StdDev:          2000,
		Repeats:         2,
		AvgOfRepeatAvgs: 10_000,
		MinThroughput:   2048,
		MaxThroughput:   8 << 20,
		AvgThroughput:   400 << 10,
		Sketch:          "hdr",
		Percentiles: []stats.Percentile{
			{Q: 0.5, Value: 9000},
			{Q: 0.999, Value: 1_500_000},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Average of repeat averages: 10µs")
	assert.Contains(t, out, "Global stats: (2.0K samples of 4KiB)")
	assert.Contains(t, out, "Min read time: 500ns")
	assert.Contains(t, out, "Max read time: 2ms")
	assert.Contains(t, out, "Mean read time: 10µs")
	assert.Contains(t, out, "Variance: 4E+06 ns^2")
	assert.Contains(t, out, "StdDev: 2000 ns (2µs)")
	assert.Contains(t, out, "Percentiles (hdr): p50=9µs p99.9=1.5ms")
	assert.Contains(t, out, "Min read throughput: 2KiB/s")
	assert.Contains(t, out, "Max read throughput: 8MiB/s")
	assert.Contains(t, out, "Avg read throughput: 400KiB/s")
}

func TestSummarySingleRepeatAverage(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, 0).Summary(stats.Summary{Label: "write", Count: 4, TransferSize: 4096, Min: 1000, Max: 3000,
		Mean: 2000, Variance: 1e6, StdDev: 1000, Repeats: 1, AvgOfRepeatAvgs: 2000})
	assert.Contains(t, buf.String(), "Average of repeat averages: 2µs")

	buf.Reset()
	New(&buf, 0).Summary(stats.Summary{Label: "write", Count: 2, TransferSize: 4096, Min: 1000, Max: 3000,
		Mean: 2000, Variance: 2e6, StdDev: 1414, AvgOfRepeatAvgs: math.NaN()})
	assert.NotContains(t, buf.String(), "Average of repeat averages")
}

func TestSummaryNoOps(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, 0).Summary(stats.Summary{Label: "write"})
	assert.Equal(t, "no operations completed\n", buf.String())
}

func TestErrorAndCancelled(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, 0)
	p.Error("write error", errors.New("input/output error"))
	p.Cancelled(10, 100)
	assert.Equal(t, "write error: input/output error\ninterrupted after 10 of 100 operations\n", buf.String())
}
