//go:build !linux

// Package sched raises the scheduling class of the benchmark process to
// reduce timer jitter.
package sched

import (
	"runtime"

	"github.com/pkg/errors"
)

const DefaultPriority = 10

func SetRealtime(priority int) error {
	return errors.Errorf("real-time priority not supported on %s", runtime.GOOS)
}
