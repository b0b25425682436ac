package mpool

import (
	pkgerr "github.com/pkg/errors"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
)

type ioOp int

const (
	opRead ioOp = iota
	opWrite
)

// rwArgCheck validates one io request against the object geometry.
// Pure: no io, no locks. readAhead widens only the written-length
// bound of reads; every other bound is strict.
func rwArgCheck(op ioOp, capacity, wlen uint64, optIO uint32, off, length, readAhead uint64) error {
	if length > capacity {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "io length exceeds capacity")
	}

	switch op {
	case opRead:
		if off%PageSize != 0 {
			return pkgerr.Wrap(merr.ErrInvalidArgument, "read offset not page aligned")
		}
		if off >= capacity {
			return pkgerr.Wrap(merr.ErrInvalidArgument, "read offset past capacity")
		}
		if off+length > capacity {
			return pkgerr.Wrap(merr.ErrInvalidArgument, "read range past capacity")
		}
		if off+length > wlen && off+length-wlen > readAhead {
			return pkgerr.Wrap(merr.ErrInvalidArgument, "read range past written length")
		}

	case opWrite:
		if off != wlen {
			return pkgerr.Wrap(merr.ErrInvalidArgument, "write offset must equal written length")
		}
		if optIO == 0 || off%uint64(optIO) != 0 {
			return pkgerr.Wrap(merr.ErrInvalidArgument, "write offset not aligned to optimal io size")
		}
		if off+length > capacity {
			return pkgerr.Wrap(merr.ErrInvalidArgument, "write past capacity")
		}
	}

	return nil
}
