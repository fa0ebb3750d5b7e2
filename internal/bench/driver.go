// Package bench drives a benchmark run: it walks positions through a
// timed device and folds the latencies into running statistics.
package bench

import (
	"context"
	"time"

	"github.com/chzyer/logex"
	"github.com/pkg/errors"

	"superalign/internal/device"
	"superalign/internal/lfsr"
	"superalign/internal/report"
	"superalign/internal/stats"
)

// Device is the part of *device.Device the driver needs.
type Device interface {
	Path() string
	Size() int64
	Capacity() int
	Direct() bool
	TimedRead(pos int64, size int) (time.Duration, error)
	TimedWrite(pos int64, size int, p device.Pattern) (time.Duration, error)
	Discard() error
	Close() error
}

type OpenFunc func() (Device, error)

// DeviceOpener opens path as a real timed device.
func DeviceOpener(path string, opts device.Options) OpenFunc {
	return func() (Device, error) {
		d, err := device.Open(path, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

type State int

const (
	StateIdle State = iota
	StateOpening
	StateErasing
	StateRunning
	StateReporting
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateErasing:
		return "erasing"
	case StateRunning:
		return "running"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is what a run measured, including partial runs.
type Result struct {
	Geometry      Geometry
	Summary       stats.Summary
	Ops           uint64
	Planned       uint64
	Cancelled     bool
	DiscardErrors int
}

type Driver struct {
	cfg  Config
	open OpenFunc
	out  *report.Printer

	state   State
	history []State
}

func New(cfg Config, open OpenFunc, out *report.Printer) *Driver {
	return &Driver{cfg: cfg, open: open, out: out}
}

func (d *Driver) State() State { return d.state }

func (d *Driver) setState(s State) {
	if d.state == s {
		return
	}
	d.state = s
	d.history = append(d.history, s)
}

// Run executes the benchmark until every operation is done, ctx is
// cancelled or an operation fails. Setup failures return a nil Result.
// Once the device is open the summary is always printed, and an I/O
// failure is returned together with the partial Result. Cancellation is
// checked before every repeat and every operation; a cancelled run moves
// to StateCancelled, which is final, and still prints its partial summary.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	cfg := d.cfg

	d.setState(StateOpening)
	dev, err := d.open()
	if err != nil {
		d.setState(StateDone)
		return nil, err
	}
	defer dev.Close()

	env, err := d.prepare(dev)
	if err != nil {
		d.setState(StateDone)
		return nil, err
	}
	res := &Result{Geometry: env.geom, Planned: env.count * env.repeat}

	var runErr error
run:
	for r := uint64(1); r <= env.repeat; r++ {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		if cfg.Erase {
			d.setState(StateErasing)
			if err := d.erase(dev); err != nil {
				res.DiscardErrors++
			}
		}

		d.setState(StateRunning)
		d.out.RepeatStart(r)
		for i := uint64(0); i < env.count; i++ {
			if ctx.Err() != nil {
				res.Cancelled = true
				break run
			}

			idx := i
			if env.seq != nil {
				idx = uint64(env.seq.Next())
			}
			pos := env.geom.Position(idx)

			var elapsed time.Duration
			if cfg.Read {
				elapsed, err = dev.TimedRead(pos, int(cfg.Size))
			} else {
				elapsed, err = dev.TimedWrite(pos, int(cfg.Size), cfg.Pattern.pick(res.Ops))
			}
			if err != nil {
				runErr = errors.Wrapf(err, "%s %d/%d of repeat %d", cfg.Label(), i+1, env.count, r)
				d.out.Error(cfg.Label()+" error", err)
				break run
			}

			d.out.Op(i+1, env.count, pos, float64(elapsed))
			if err := env.acc.Record(elapsed); err != nil {
				runErr = err
				break run
			}
			res.Ops++
		}
	}

	if res.Cancelled {
		d.setState(StateCancelled)
	} else {
		d.setState(StateReporting)
	}
	res.Summary = env.acc.Report()
	if res.Cancelled {
		d.out.Cancelled(res.Ops, res.Planned)
	}
	d.out.Summary(res.Summary)

	if !res.Cancelled {
		d.setState(StateDone)
	}
	return res, runErr
}

type runEnv struct {
	geom   Geometry
	count  uint64
	repeat uint64
	seq    *lfsr.Sequencer
	acc    *stats.Accumulator
}

func (d *Driver) prepare(dev Device) (*runEnv, error) {
	cfg := d.cfg
	if cfg.Size > int64(dev.Capacity()) {
		return nil, errors.Wrapf(device.ErrAllocation, "size %d exceeds %d byte buffer", cfg.Size, dev.Capacity())
	}
	geom, err := NewGeometry(dev.Size(), cfg)
	if err != nil {
		return nil, err
	}

	env := &runEnv{geom: geom, count: cfg.Count, repeat: cfg.Repeat}
	if env.count == 0 {
		env.count = geom.Blocks
	}
	if env.repeat == 0 {
		env.repeat = 1
	}
	if cfg.Random {
		if env.seq, err = lfsr.New(geom.Blocks); err != nil {
			return nil, err
		}
	}

	sketch, err := stats.ParseSketch(cfg.Sketch)
	if err != nil {
		return nil, err
	}
	label := cfg.Label()
	env.acc = stats.New(env.count, cfg.Size, label,
		stats.WithSketch(sketch),
		stats.WithRepeatHook(func(r stats.Repeat) { d.out.Repeat(label, r) }),
	)

	setup := report.Setup{
		Path:        dev.Path(),
		DeviceSize:  geom.DeviceSize,
		Size:        geom.Size,
		AlignedSize: geom.AlignedSize,
		Offset:      geom.Offset,
		Align:       geom.Align,
		Count:       env.count,
		Repeat:      env.repeat,
		Blocks:      geom.Blocks,
		Order:       geom.Order,
		Random:      cfg.Random,
		Direct:      dev.Direct(),
		Erase:       cfg.Erase,
	}
	if !cfg.Read {
		setup.Pattern = cfg.Pattern.String()
	}
	d.out.Setup(setup)
	return env, nil
}

// erase discards the whole device; a failure is logged and the run goes
// on.
func (d *Driver) erase(dev Device) error {
	if d.cfg.Verbose > 0 {
		logex.Info("start erase")
	}
	err := dev.Discard()
	if err != nil {
		logex.Errorf("discard: %v", err)
	}
	if d.cfg.Verbose > 0 {
		logex.Info("finish erase")
	}
	return err
}
