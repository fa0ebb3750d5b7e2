//go:build linux

package device

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// BLKDISCARD, _IO(0x12, 119)
const blkDiscard = 0x1277

// Discard asks the storage to drop the whole addressable range. Block
// devices get BLKDISCARD; regular files have the range hole-punched.
func (d *Device) Discard() error {
	var st unix.Stat_t
	if err := unix.Fstat(d.fd, &st); err != nil {
		return errors.Wrapf(ErrDiscard, "fstat %s: %v", d.path, err)
	}

	var err error
	if st.Mode&unix.S_IFMT == unix.S_IFBLK {
		rng := [2]uint64{0, uint64(d.size)}
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), blkDiscard, uintptr(unsafe.Pointer(&rng[0])))
		if errno != 0 {
			err = errno
		}
	} else {
		err = unix.Fallocate(d.fd, unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, 0, d.size)
	}
	if err != nil {
		return errors.Wrapf(ErrDiscard, "%s: %v", d.path, err)
	}
	return nil
}
