//go:build linux

// Package sched raises the scheduling class of the benchmark process to
// reduce timer jitter.
package sched

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DefaultPriority is the SCHED_FIFO level the launcher asks for.
const DefaultPriority = 10

// SetRealtime switches the calling process to SCHED_FIFO at priority.
// It usually needs CAP_SYS_NICE; callers treat failure as a warning.
func SetRealtime(priority int) error {
	attr := &unix.SchedAttr{
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		return errors.Wrapf(err, "sched_setattr SCHED_FIFO/%d", priority)
	}
	return nil
}
