package mpool

import (
	pkgerr "github.com/pkg/errors"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/pmd"
)

// Mblock is an opaque handle to one object record. Handles come only
// from alloc, realloc and find_get. Put releases a handle; abort and
// delete consume it. A consumed or released handle no longer resolves.
type Mblock struct {
	layout *pmd.Layout
}

// ObjID returns the id of the object the handle names, or zero for
// a dead handle.
func (h *Mblock) ObjID() omf.ObjID {
	if h == nil || h.layout == nil {
		return 0
	}
	return h.layout.Objid()
}

// Props is the point-in-time metadata snapshot of one mblock.
type Props struct {
	Objid     omf.ObjID
	Capacity  uint32
	WriteLen  uint32
	OptIOSize uint32
	Mclass    omf.MediaClass
	Committed bool
}

// PropsEx additionally carries the zone footprint.
type PropsEx struct {
	Props
	ZoneCnt uint32
}

// resolve turns a handle into its object record, or fails. Every
// handle operation passes through here first; failures also raise a
// rate-limited diagnostic because a bad handle is a caller bug.
func (m *Mpool) resolve(h *Mblock) (*pmd.Layout, error) {
	if m == nil || m.store == nil {
		return nil, pkgerr.Wrap(merr.ErrInvalidArgument, "pool not activated")
	}
	if h == nil || h.layout == nil {
		m.diag("handle.nil", "operation on a nil mblock handle")
		return nil, pkgerr.Wrap(merr.ErrInvalidArgument, "nil mblock handle")
	}

	l := h.layout
	if !l.Objid().IsMblock() {
		m.diag("handle.kind", "handle carries non-mblock id 0x%x", uint64(l.Objid()))
		return nil, pkgerr.Wrapf(merr.ErrInvalidArgument, "object 0x%x is not an mblock", uint64(l.Objid()))
	}

	if err := m.store.Resolve(l); err != nil {
		m.diag("handle.stale", "stale mblock handle 0x%x", uint64(l.Objid()))
		return nil, err
	}
	return l, nil
}

// MblockAlloc carves a fresh mblock out of the given media class.
// The new mblock is uncommitted with nothing written. The returned
// properties are a consistent snapshot taken under the read lock.
func (m *Mpool) MblockAlloc(mclass omf.MediaClass, spare bool) (*Mblock, Props, error) {
	if m == nil || m.store == nil {
		return nil, Props{}, pkgerr.Wrap(merr.ErrInvalidArgument, "pool not activated")
	}
	if !mclass.Valid() {
		return nil, Props{}, pkgerr.Wrapf(merr.ErrInvalidArgument, "media class %d", uint8(mclass))
	}

	l, err := m.store.Alloc(mclass, spare)
	if err != nil {
		return nil, Props{}, err
	}

	return &Mblock{layout: l}, m.snapshot(l), nil
}

// MblockRealloc recovers a previously started, never committed
// mblock by id so an interrupted write sequence can resume at its
// recorded write length. Not-found here is an expected outcome
// while probing, not a fault.
func (m *Mpool) MblockRealloc(objid omf.ObjID, mclass omf.MediaClass, spare bool) (*Mblock, Props, error) {
	if m == nil || m.store == nil {
		return nil, Props{}, pkgerr.Wrap(merr.ErrInvalidArgument, "pool not activated")
	}
	if !objid.IsMblock() {
		m.diag("realloc.kind", "realloc of non-mblock id 0x%x", uint64(objid))
		return nil, Props{}, pkgerr.Wrapf(merr.ErrInvalidArgument, "object 0x%x is not an mblock", uint64(objid))
	}
	_ = spare // placement is fixed at first allocation

	l, err := m.store.Realloc(objid, mclass)
	if err != nil {
		return nil, Props{}, err
	}

	return &Mblock{layout: l}, m.snapshot(l), nil
}

// MblockFindGet resolves an existing mblock by id and takes a
// reference on it. The selector narrows to committed or uncommitted
// objects; pass pmd.Any for either.
func (m *Mpool) MblockFindGet(objid omf.ObjID, sel pmd.Selector) (*Mblock, Props, error) {
	if m == nil || m.store == nil {
		return nil, Props{}, pkgerr.Wrap(merr.ErrInvalidArgument, "pool not activated")
	}
	if !objid.IsMblock() {
		m.diag("find.kind", "find_get of non-mblock id 0x%x", uint64(objid))
		return nil, Props{}, pkgerr.Wrapf(merr.ErrInvalidArgument, "object 0x%x is not an mblock", uint64(objid))
	}

	l, err := m.store.FindGet(objid, sel)
	if err != nil {
		if pkgerr.Is(err, merr.ErrNotFound) {
			m.diag("find.miss", "mblock 0x%x not found", uint64(objid))
		}
		return nil, Props{}, err
	}

	return &Mblock{layout: l}, m.snapshot(l), nil
}

// MblockPut releases the caller's reference. The handle is dead
// afterwards.
func (m *Mpool) MblockPut(h *Mblock) error {
	l, err := m.resolve(h)
	if err != nil {
		return err
	}

	if err := m.store.Put(l); err != nil {
		return err
	}
	h.layout = nil
	return nil
}

// MblockCommit makes the written data durable and the mblock
// permanently read-only. When the drives are not write-through the
// device is flushed first, under the same exclusive section, so the
// commit record never precedes the data it covers.
func (m *Mpool) MblockCommit(h *Mblock) error {
	l, err := m.resolve(h)
	if err != nil {
		return err
	}

	l.Lock()
	defer l.Unlock()

	if l.Committed() {
		return pkgerr.Wrapf(merr.ErrAlreadyCommitted, "mblock 0x%x", uint64(l.Objid()))
	}

	if !l.Dev().FUA() {
		if err := l.Dev().Flush(); err != nil {
			return pkgerr.Wrapf(merr.ErrDevice, "failed to flush before commit: %v", err)
		}
	}

	return m.store.Commit(l)
}

// MblockAbort discards an uncommitted mblock and everything written
// to it. The handle is consumed on success: the object is gone, so
// later operations through it fail with not-found.
func (m *Mpool) MblockAbort(h *Mblock) error {
	l, err := m.resolve(h)
	if err != nil {
		return err
	}

	return m.store.Abort(l)
}

// MblockDelete reclaims an mblock in either state. Lookups by its
// id, and any operation through the consumed handle, fail with
// not-found afterwards.
func (m *Mpool) MblockDelete(h *Mblock) error {
	l, err := m.resolve(h)
	if err != nil {
		return err
	}

	return m.store.Delete(l)
}

// MblockWrite appends the buffers to an uncommitted mblock at its
// current write length. Appends to one mblock are fully serialized;
// when two writers race, exactly one advances the write length and
// the loser fails validation.
func (m *Mpool) MblockWrite(h *Mblock, bufs [][]byte) error {
	l, err := m.resolve(h)
	if err != nil {
		return err
	}

	total := iovTotal(bufs)
	if total == 0 {
		return nil
	}

	off := l.WriteLen()
	if err := rwArgCheck(opWrite, l.Capacity(), off, l.Dev().OptIOSize(), off, total, 0); err != nil {
		return err
	}

	l.Lock()
	defer l.Unlock()

	if l.Committed() {
		return pkgerr.Wrapf(merr.ErrAlreadyCommitted, "mblock 0x%x", uint64(l.Objid()))
	}
	// The offset was sampled before the lock; a racing append may
	// have moved it.
	if l.WriteLen() != off {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "write offset must equal written length")
	}

	if err := l.Dev().WriteAt(bufs, l.DevOffset()+off); err != nil {
		return pkgerr.Wrapf(merr.ErrDevice, "mblock 0x%x write: %v", uint64(l.Objid()), err)
	}

	l.SetWriteLen(off + total)
	if err := m.store.PersistWriteLen(l); err != nil {
		// The append itself succeeded; losing this update only
		// rewinds where a post-crash realloc resumes.
		logger.WithField("pool", m.name).
			Warnf("write length update for 0x%x failed: %v", uint64(l.Objid()), err)
	}

	return nil
}

// MblockRead fills the buffers from a committed mblock starting at
// off and returns how many bytes were read. A probe reaching past
// the written length by at most the pool's read-ahead tolerance is
// clamped instead of rejected.
func (m *Mpool) MblockRead(h *Mblock, bufs [][]byte, off uint64) (int, error) {
	l, err := m.resolve(h)
	if err != nil {
		return 0, err
	}

	length := iovTotal(bufs)
	if length == 0 {
		return 0, nil
	}

	wlen := l.WriteLen()
	if err := rwArgCheck(opRead, l.Capacity(), wlen, l.Dev().OptIOSize(), off, length, m.readAhead); err != nil {
		return 0, err
	}

	l.RLock()
	defer l.RUnlock()

	if !l.Committed() {
		return 0, pkgerr.Wrapf(merr.ErrNotReady, "mblock 0x%x", uint64(l.Objid()))
	}

	// Committed, so the write length is final.
	wlen = l.WriteLen()
	if off >= wlen {
		return 0, nil
	}
	n := length
	if off+n > wlen {
		n = wlen - off
	}

	if err := l.Dev().ReadAt(trimIov(bufs, n), l.DevOffset()+off); err != nil {
		return 0, pkgerr.Wrapf(merr.ErrDevice, "mblock 0x%x read: %v", uint64(l.Objid()), err)
	}
	return int(n), nil
}

// MblockProps returns the metadata snapshot of an mblock.
func (m *Mpool) MblockProps(h *Mblock) (Props, error) {
	l, err := m.resolve(h)
	if err != nil {
		return Props{}, err
	}
	return m.snapshot(l), nil
}

// MblockPropsEx returns the extended snapshot including the zone
// footprint.
func (m *Mpool) MblockPropsEx(h *Mblock) (PropsEx, error) {
	l, err := m.resolve(h)
	if err != nil {
		return PropsEx{}, err
	}

	l.RLock()
	defer l.RUnlock()

	return PropsEx{
		Props:   m.propsLocked(l),
		ZoneCnt: l.ZoneCnt(),
	}, nil
}

// snapshot copies the properties out under the read lock.
func (m *Mpool) snapshot(l *pmd.Layout) Props {
	l.RLock()
	defer l.RUnlock()

	return m.propsLocked(l)
}

func (m *Mpool) propsLocked(l *pmd.Layout) Props {
	return Props{
		Objid:     l.Objid(),
		Capacity:  uint32(l.Capacity()),
		WriteLen:  uint32(l.WriteLen()),
		OptIOSize: l.Dev().OptIOSize(),
		Mclass:    l.Mclass(),
		Committed: l.Committed(),
	}
}

func iovTotal(bufs [][]byte) uint64 {
	var n uint64
	for _, b := range bufs {
		n += uint64(len(b))
	}
	return n
}

// trimIov cuts the buffer list down to n bytes for a clamped read.
func trimIov(bufs [][]byte, n uint64) [][]byte {
	var out [][]byte
	for _, b := range bufs {
		if n == 0 {
			break
		}
		if uint64(len(b)) > n {
			b = b[:n]
		}
		out = append(out, b)
		n -= uint64(len(b))
	}
	return out
}
