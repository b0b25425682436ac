package pd

import (
	"errors"
	"io"
	"os"
	"syscall"

	pkgerr "github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/sbejawada/mpool-kmod/pkg/omf"
)

// Device io failures which the caller can test against.
var (
	// ErrOutOfBounds is used when an io range runs past the device end.
	ErrOutOfBounds = errors.New("io range runs past the device end")
	// ErrClosed is used when the device is already closed.
	ErrClosed = errors.New("device is closed")
)

// SectorSize is the logical sector size of pool devices.
const SectorSize = 512

// Dev is a single pool device backed by a regular file
// or a raw block device.
type Dev struct {
	file      *os.File
	path      string
	mclass    omf.MediaClass
	size      uint64
	optIOSize uint32
	fua       bool
}

// Open opens the device at the given path for pool io.
// With fua set, every write reaches stable media before returning
// and the pool skips explicit flushes.
func Open(path string, mclass omf.MediaClass, optIOSize uint32, fua bool) (*Dev, error) {
	flag := os.O_RDWR
	if fua {
		flag |= syscall.O_DSYNC
	}

	f, err := os.OpenFile(path, flag, 0600)
	if err != nil {
		return nil, pkgerr.Wrap(err, "failed to open device")
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, pkgerr.Wrap(err, "failed to probe device size")
	}

	return &Dev{
		file:      f,
		path:      path,
		mclass:    mclass,
		size:      uint64(size),
		optIOSize: optIOSize,
		fua:       fua,
	}, nil
}

// Format creates or truncates a device file with the given size.
// Raw block devices keep their native size and pass size zero.
func Format(path string, size uint64) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return pkgerr.Wrap(err, "failed to create device file")
	}
	defer f.Close()

	if size == 0 {
		return nil
	}

	if err := f.Truncate(int64(size)); err != nil {
		return pkgerr.Wrap(err, "failed to size device file")
	}
	return nil
}

// Path returns the device path.
func (d *Dev) Path() string {
	return d.path
}

// Mclass returns the media class of the device.
func (d *Dev) Mclass() omf.MediaClass {
	return d.mclass
}

// Size returns the device size in bytes.
func (d *Dev) Size() uint64 {
	return d.size
}

// OptIOSize returns the optimal io size of the device in bytes.
func (d *Dev) OptIOSize() uint32 {
	return d.optIOSize
}

// FUA reports whether writes go through to stable media.
func (d *Dev) FUA() bool {
	return d.fua
}

// ReadAt fills the given buffers from the device starting at off.
func (d *Dev) ReadAt(bufs [][]byte, off uint64) error {
	if d.file == nil {
		return ErrClosed
	}
	if off+iovLen(bufs) > d.size {
		return ErrOutOfBounds
	}

	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		if _, err := d.file.ReadAt(buf, int64(off)); err != nil {
			return pkgerr.Wrap(err, "failed to read device")
		}
		off += uint64(len(buf))
	}
	return nil
}

// WriteAt writes the given buffers to the device starting at off.
func (d *Dev) WriteAt(bufs [][]byte, off uint64) error {
	if d.file == nil {
		return ErrClosed
	}
	if off+iovLen(bufs) > d.size {
		return ErrOutOfBounds
	}

	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		if _, err := d.file.WriteAt(buf, int64(off)); err != nil {
			return pkgerr.Wrap(err, "failed to write device")
		}
		off += uint64(len(buf))
	}
	return nil
}

// Flush forces buffered writes to stable media.
func (d *Dev) Flush() error {
	if d.file == nil {
		return ErrClosed
	}
	if err := d.file.Sync(); err != nil {
		return pkgerr.Wrap(err, "failed to flush device")
	}
	return nil
}

// Discard punches a hole over the given range so the backing store
// can reclaim the space. Not every filesystem supports it.
func (d *Dev) Discard(off, length uint64) error {
	if d.file == nil {
		return ErrClosed
	}
	if off+length > d.size {
		return ErrOutOfBounds
	}
	if length == 0 {
		return nil
	}

	err := unix.Fallocate(int(d.file.Fd()),
		unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE,
		int64(off), int64(length))
	if err != nil {
		return pkgerr.Wrap(err, "failed to discard device range")
	}
	return nil
}

// Close closes the device. Further io fails with ErrClosed.
func (d *Dev) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	if err != nil {
		return pkgerr.Wrap(err, "failed to close device")
	}
	return nil
}

func iovLen(bufs [][]byte) uint64 {
	var n uint64
	for _, buf := range bufs {
		n += uint64(len(buf))
	}
	return n
}
