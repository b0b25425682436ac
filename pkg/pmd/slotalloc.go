package pmd

import (
	pkgerr "github.com/pkg/errors"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
)

// slotAlloc hands out fixed-size data slots on one device. Slots
// below usable are the normal region; the tail up to total is kept
// as spares and only used on request. Guarded by the store mutex.
type slotAlloc struct {
	total  uint32
	usable uint32

	used      map[uint32]bool
	hint      uint32
	spareHint uint32
}

func newSlotAlloc(total, usable uint32) *slotAlloc {
	return &slotAlloc{
		total:     total,
		usable:    usable,
		used:      make(map[uint32]bool),
		spareHint: usable,
	}
}

// alloc picks a free slot from the normal region, or from the
// spare tail when spare is set.
func (a *slotAlloc) alloc(spare bool) (uint32, bool) {
	lo, hi, hint := uint32(0), a.usable, &a.hint
	if spare {
		lo, hi, hint = a.usable, a.total, &a.spareHint
	}
	if hi <= lo {
		return 0, false
	}

	n := hi - lo
	for i := uint32(0); i < n; i++ {
		s := lo + (*hint-lo+i)%n
		if !a.used[s] {
			a.used[s] = true
			*hint = lo + (s-lo+1)%n
			return s, true
		}
	}
	return 0, false
}

func (a *slotAlloc) free(s uint32) {
	delete(a.used, s)
}

// reserve marks a slot used during object table replay.
func (a *slotAlloc) reserve(s uint32) error {
	if s >= a.total {
		return pkgerr.Wrapf(merr.ErrInvariant, "slot %d outside device", s)
	}
	if a.used[s] {
		return pkgerr.Wrapf(merr.ErrInvariant, "slot %d recorded twice", s)
	}
	a.used[s] = true
	return nil
}

func (a *slotAlloc) usedCount() uint32 {
	return uint32(len(a.used))
}
