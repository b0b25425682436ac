package pmd

import (
	"sync"
	"sync/atomic"

	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/pd"
)

const (
	stateUncommitted uint32 = iota
	stateCommitted
)

const (
	flagAborting uint32 = 1 << iota
	flagDeleting
)

// Layout is the in-core descriptor of a single mblock. Handles
// returned by the store point at a Layout; the store keeps exactly
// one Layout per live objid.
//
// The embedded lock orders object io against state changes. State
// and write length can also be read without the lock for cheap
// precondition checks, but only the locked reads are authoritative.
type Layout struct {
	sync.RWMutex

	objid     omf.ObjID
	mclass    omf.MediaClass
	slot      uint32
	zoneStart uint32
	zoneCnt   uint32
	capacity  uint64

	dev *pd.Dev
	off uint64

	wlen  uint64
	state uint32
	flags uint32

	// refs counts the object table reference plus every handle
	// which is checked out. Guarded by the store mutex.
	refs int
}

// Objid returns the object id.
func (l *Layout) Objid() omf.ObjID {
	return l.objid
}

// Mclass returns the media class holding the mblock data.
func (l *Layout) Mclass() omf.MediaClass {
	return l.mclass
}

// Capacity returns the fixed capacity in bytes.
func (l *Layout) Capacity() uint64 {
	return l.capacity
}

// ZoneStart returns the first zone of the mblock on its device.
func (l *Layout) ZoneStart() uint32 {
	return l.zoneStart
}

// ZoneCnt returns the number of zones the mblock occupies.
func (l *Layout) ZoneCnt() uint32 {
	return l.zoneCnt
}

// Dev returns the device holding the mblock data.
func (l *Layout) Dev() *pd.Dev {
	return l.dev
}

// DevOffset returns the byte offset of the mblock data on Dev.
func (l *Layout) DevOffset() uint64 {
	return l.off
}

// WriteLen returns the written length in bytes. Without the lock
// held the value may be stale.
func (l *Layout) WriteLen() uint64 {
	return atomic.LoadUint64(&l.wlen)
}

// SetWriteLen records a new written length. The caller must hold
// the write lock.
func (l *Layout) SetWriteLen(n uint64) {
	atomic.StoreUint64(&l.wlen, n)
}

// Committed reports whether the mblock is committed. Without the
// lock held the value may be stale.
func (l *Layout) Committed() bool {
	return atomic.LoadUint32(&l.state) == stateCommitted
}

func (l *Layout) setCommitted() {
	atomic.StoreUint32(&l.state, stateCommitted)
}

func (l *Layout) setUncommitted() {
	atomic.StoreUint32(&l.state, stateUncommitted)
}

func (l *Layout) dying() bool {
	return atomic.LoadUint32(&l.flags)&(flagAborting|flagDeleting) != 0
}

func (l *Layout) setFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&l.flags)
		if atomic.CompareAndSwapUint32(&l.flags, old, old|f) {
			return
		}
	}
}

func (l *Layout) clearFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&l.flags)
		if atomic.CompareAndSwapUint32(&l.flags, old, old&^f) {
			return
		}
	}
}

func (l *Layout) rec() omf.ObjRec {
	state := omf.RecUncommitted
	if l.Committed() {
		state = omf.RecCommitted
	}

	return omf.ObjRec{
		Objid:     l.objid,
		State:     state,
		Mclass:    l.mclass,
		Slot:      l.slot,
		ZoneStart: l.zoneStart,
		ZoneCnt:   l.zoneCnt,
		Capacity:  l.capacity,
		WriteLen:  l.WriteLen(),
	}
}
