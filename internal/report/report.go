// Package report renders benchmark progress and the final summary as
// text.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"superalign/internal/format"
	"superalign/internal/stats"
)

const (
	colorRed    = "\033[0;31m"
	colorYellow = "\033[1;33m"
	colorGreen  = "\033[0;32m"
	colorCyan   = "\033[0;36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorReset  = "\033[0m"
)

// Setup describes a run before the first operation.
type Setup struct {
	Path        string
	DeviceSize  int64
	Size        int64
	AlignedSize int64
	Offset      int64
	Align       int64
	Count       uint64
	Repeat      uint64
	Blocks      uint64
	Order       uint
	Random      bool
	Direct      bool
	Erase       bool
	Pattern     string
}

// Printer writes reports to w. Verbose mirrors the -v count.
type Printer struct {
	w       io.Writer
	Verbose int
	color   bool
}

// New creates a printer; colors are used only when w is a terminal.
func New(w io.Writer, verbose int) *Printer {
	p := &Printer{w: w, Verbose: verbose}
	if f, ok := w.(*os.File); ok {
		p.color = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *Printer) paint(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + colorReset
}

// Setup prints the run geometry at verbosity >= 1.
func (p *Printer) Setup(s Setup) {
	if p.Verbose < 1 {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", p.paint(colorBold+colorCyan, s.Path))
	fmt.Fprintf(&sb, "size: %d (%s)\n", s.Size, format.Bytes(s.Size))
	fmt.Fprintf(&sb, "count: %d, blocks: %d, order = %d\n", s.Count, s.Blocks, s.Order)
	fmt.Fprintf(&sb, "repeats: %d\n", s.Repeat)
	fmt.Fprintf(&sb, "offset: %d\n", s.Offset)
	fmt.Fprintf(&sb, "align-on: %d\n", s.Align)
	fmt.Fprintf(&sb, "possibly aligned size: %d\n", s.AlignedSize)
	fmt.Fprintf(&sb, "device size = %d (%s)\n", s.DeviceSize, format.Bytes(s.DeviceSize))
	if !s.Direct {
		sb.WriteString(p.paint(colorYellow, "buffered I/O (page cache not bypassed)") + "\n")
	}
	if s.Erase {
		sb.WriteString("discard before each repeat\n")
	}
	if s.Pattern != "" {
		fmt.Fprintf(&sb, "write pattern: %s\n", s.Pattern)
	}
	if s.Random {
		sb.WriteString("LFSR-random accesses\n")
	}
	io.WriteString(p.w, sb.String())
}

// RepeatStart marks the beginning of a repeat at verbosity >= 1.
func (p *Printer) RepeatStart(index uint64) {
	if p.Verbose < 1 {
		return
	}
	fmt.Fprintf(p.w, "Repeat %d:\n", index)
}

// Op prints one operation's latency at verbosity >= 2.
func (p *Printer) Op(i, count uint64, pos int64, ns float64) {
	if p.Verbose < 2 {
		return
	}
	fmt.Fprintf(p.w, "\t(%d/%d) @%d -> %s\n", i, count, pos, format.Nanos(ns))
}

// Repeat prints the per-repeat totals at verbosity >= 1.
func (p *Printer) Repeat(label string, r stats.Repeat) {
	if p.Verbose < 1 {
		return
	}
	fmt.Fprintf(p.w, "\trepeat %d total %s time = %s\n", r.Index, label, format.Nanos(r.Total))
	fmt.Fprintf(p.w, "\trepeat %d avg %s time = %s\n", r.Index, label, format.Nanos(r.Average))
}

// Error reports a condition that cut the run short or was skipped.
func (p *Printer) Error(msg string, err error) {
	fmt.Fprintf(p.w, "%s\n", p.paint(colorRed, fmt.Sprintf("%s: %v", msg, err)))
}

// Cancelled notes an interrupted run.
func (p *Printer) Cancelled(done, planned uint64) {
	fmt.Fprintf(p.w, "%s\n", p.paint(colorYellow, fmt.Sprintf("interrupted after %d of %d operations", done, planned)))
}

// Summary prints the global statistics. It always prints, whatever the
// verbosity.
func (p *Printer) Summary(s stats.Summary) {
	var sb strings.Builder
	if s.Repeats > 0 {
		fmt.Fprintf(&sb, "Average of repeat averages: %s\n", format.Nanos(s.AvgOfRepeatAvgs))
	}
	if s.Count == 0 {
		sb.WriteString(p.paint(colorDim, "no operations completed") + "\n")
		io.WriteString(p.w, sb.String())
		return
	}

	fmt.Fprintf(&sb, "%s (%s samples of %s)\n", p.paint(colorBold, "Global stats:"), format.Count(s.Count), format.Bytes(s.TransferSize))
	fmt.Fprintf(&sb, "\tMin %s time: %s\n", s.Label, format.Nanos(s.Min))
	fmt.Fprintf(&sb, "\tMax %s time: %s\n", s.Label, format.Nanos(s.Max))
	fmt.Fprintf(&sb, "\tMean %s time: %s\n", s.Label, p.paint(colorGreen, format.Nanos(s.Mean)))
	fmt.Fprintf(&sb, "\tVariance: %G ns^2\n", s.Variance)
	fmt.Fprintf(&sb, "\tStdDev: %G ns (%s)\n", s.StdDev, format.Nanos(s.StdDev))
	if len(s.Percentiles) > 0 {
		parts := make([]string, 0, len(s.Percentiles))
		for _, pc := range s.Percentiles {
			parts = append(parts, fmt.Sprintf("p%.4g=%s", pc.Q*100, format.Nanos(pc.Value)))
		}
		fmt.Fprintf(&sb, "\tPercentiles (%s): %s\n", s.Sketch, strings.Join(parts, " "))
	}
	fmt.Fprintf(&sb, "\tMin %s throughput: %s\n", s.Label, format.Rate(s.MinThroughput))
	fmt.Fprintf(&sb, "\tMax %s throughput: %s\n", s.Label, format.Rate(s.MaxThroughput))
	fmt.Fprintf(&sb, "\tAvg %s throughput: %s\n", s.Label, format.Rate(s.AvgThroughput))
	io.WriteString(p.w, sb.String())
}
