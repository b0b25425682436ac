package mpool

import (
	"errors"
	"testing"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
)

func TestRWArgCheck(t *testing.T) {
	const (
		capacity = 64 << 10
		optIO    = 4096
	)

	testCases := []struct {
		name      string
		op        ioOp
		wlen      uint64
		off       uint64
		length    uint64
		readAhead uint64
		ok        bool
	}{
		{"write at zero", opWrite, 0, 0, 4096, 0, true},
		{"write appends", opWrite, 8192, 8192, 4096, 0, true},
		{"write fills capacity", opWrite, 0, 0, capacity, 0, true},
		{"write behind length", opWrite, 8192, 4096, 4096, 0, false},
		{"write ahead of length", opWrite, 4096, 8192, 4096, 0, false},
		{"write misaligned offset", opWrite, 2048, 2048, 2048, 0, false},
		{"write past capacity", opWrite, capacity - 4096, capacity - 4096, 8192, 0, false},

		{"read inside written", opRead, 16384, 4096, 8192, 0, true},
		{"read everything", opRead, capacity, 0, capacity, 0, true},
		{"read misaligned offset", opRead, 16384, 100, 4096, 0, false},
		{"read offset at capacity", opRead, capacity, capacity, 4096, 0, false},
		{"read range past capacity", opRead, capacity, 60 << 10, 8192, 0, false},
		{"read past written length", opRead, 8192, 4096, 8192, 0, false},
		{"read probe inside tolerance", opRead, 8192, 4096, 8192, 4096, true},
		{"read probe at tolerance edge", opRead, 8192, 8192, 4096, 4096, true},
		{"read probe past tolerance", opRead, 8192, 8192, 8192, 4096, false},
		{"read huge length", opRead, capacity, 0, 1 << 40, 1 << 40, false},
	}

	for _, c := range testCases {
		err := rwArgCheck(c.op, capacity, c.wlen, optIO, c.off, c.length, c.readAhead)
		if c.ok && err != nil {
			t.Errorf("%s: got %v, expected success", c.name, err)
		}
		if !c.ok {
			if err == nil {
				t.Errorf("%s: expected invalid-argument, got success", c.name)
			} else if !errors.Is(err, merr.ErrInvalidArgument) {
				t.Errorf("%s: got %v, expected %v", c.name, err, merr.ErrInvalidArgument)
			}
		}
	}
}
