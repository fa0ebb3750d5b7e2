//go:build !linux

package device

import (
	"runtime"

	"github.com/pkg/errors"
)

func (d *Device) Discard() error {
	return errors.Wrapf(ErrDiscard, "not supported on %s", runtime.GOOS)
}
