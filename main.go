// superalign measures per-operation latency of a raw block device.
//
// Usage: superalign -s size [-o offset] [-a align] [-c count] [-r repeats]
//
//	[-v]... [-e] [-R] [-d] [-f] [-p zero|one|fixed|cycle] [-q hdr|ddsketch|none]
//	[-n] device
//
// Sizes accept B, S (512-byte sector), K, M, G and T suffixes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/chzyer/logex"
	"github.com/pkg/errors"

	"superalign/internal/bench"
	"superalign/internal/device"
	"superalign/internal/format"
	"superalign/internal/report"
	"superalign/internal/sched"
	"superalign/internal/stats"
)

const usage = `Usage: superalign -s size [OPTIONS] device

Times single reads or writes of size bytes against device, sequentially
or in LFSR order, and prints latency and throughput statistics.

Options:
`

// sizeFlag is a byte count with an optional unit suffix.
type sizeFlag struct {
	n   int64
	set bool
}

func (s *sizeFlag) String() string { return strconv.FormatInt(s.n, 10) }

func (s *sizeFlag) Set(v string) error {
	n, err := format.ParseSize(v)
	if err != nil {
		return err
	}
	s.n, s.set = n, true
	return nil
}

// countFlag counts repeated boolean flags, as in -v -v.
type countFlag int

func (c *countFlag) String() string   { return strconv.Itoa(int(*c)) }
func (c *countFlag) IsBoolFlag() bool { return true }

func (c *countFlag) Set(v string) error {
	on, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	if on {
		*c++
	}
	return nil
}

type options struct {
	cfg    bench.Config
	path   string
	noPrio bool
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("superalign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var (
		size, offset, align sizeFlag
		verbose             countFlag
		pattern, sketch     string
		o                   options
	)
	fs.Var(&size, "s", "bytes per operation (required)")
	fs.Var(&offset, "o", "byte offset of the first block")
	fs.Var(&align, "a", "align each block on this boundary")
	fs.Uint64Var(&o.cfg.Count, "c", 0, "operations per repeat (default: one per block)")
	fs.Uint64Var(&o.cfg.Repeat, "r", 1, "number of repeats")
	fs.Var(&verbose, "v", "verbose; twice prints every operation")
	fs.BoolVar(&o.cfg.Erase, "e", false, "discard the device before each repeat")
	fs.BoolVar(&o.cfg.Random, "R", false, "LFSR-random block order")
	fs.BoolVar(&o.cfg.Read, "d", false, "read instead of write")
	fs.BoolVar(&o.cfg.NoDirect, "f", false, "go through the page cache")
	fs.StringVar(&pattern, "p", "fixed", "write pattern: zero, one, fixed or cycle")
	fs.StringVar(&sketch, "q", "hdr", "percentile sketch: hdr, ddsketch or none")
	fs.BoolVar(&o.noPrio, "n", false, "do not request real-time priority")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.Wrap(bench.ErrConfig, "exactly one device expected")
	}
	if !size.set || size.n <= 0 {
		fs.Usage()
		return nil, errors.Wrap(bench.ErrConfig, "-s is required and must be positive")
	}
	if size.n > device.MaxTransfer {
		return nil, errors.Wrapf(bench.ErrConfig, "size %d exceeds %d", size.n, device.MaxTransfer)
	}

	p, err := bench.ParsePatternPolicy(pattern)
	if err != nil {
		return nil, err
	}
	if _, err := stats.ParseSketch(sketch); err != nil {
		return nil, errors.Wrapf(bench.ErrConfig, "%v", err)
	}

	o.path = fs.Arg(0)
	o.cfg.Size = size.n
	o.cfg.Offset = offset.n
	o.cfg.Align = align.n
	o.cfg.Verbose = int(verbose)
	o.cfg.Pattern = p
	o.cfg.Sketch = sketch
	return &o, nil
}

func main() {
	o, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "superalign: %v\n", err)
		}
		os.Exit(2)
	}

	if !o.noPrio {
		if err := sched.SetRealtime(sched.DefaultPriority); err != nil {
			logex.Errorf("real-time priority: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	open := bench.DeviceOpener(o.path, device.Options{
		BypassCache: !o.cfg.NoDirect,
		Capacity:    device.CapacityFor(o.cfg.Size),
	})
	res, err := bench.New(o.cfg, open, report.New(os.Stdout, o.cfg.Verbose)).Run(ctx)
	if err != nil {
		if res == nil {
			logex.Fatal(err)
		}
		logex.Error(err)
		stop()
		os.Exit(1)
	}
}
