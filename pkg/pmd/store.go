package pmd

import (
	"bytes"
	"path/filepath"
	"sync"

	"github.com/jmhodges/levigo"
	pkgerr "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/pd"
	"github.com/sbejawada/mpool-kmod/pkg/util/mlog"
)

var logger *logrus.Entry

// Selector narrows which objects FindGet resolves.
type Selector int

const (
	// Any matches both committed and uncommitted objects.
	Any Selector = iota
	// OnlyUncommitted matches objects still being written.
	OnlyUncommitted
	// OnlyCommitted matches committed objects.
	OnlyCommitted
)

const objTableDir = "objects"

// Store owns the object metadata of one pool: the in-core layout
// tables, the per-class slot allocators and the durable object
// table. All layout handles come from the store and go back to it.
type Store struct {
	mu sync.Mutex

	uncommitted map[omf.ObjID]*Layout
	committed   map[omf.ObjID]*Layout

	media map[omf.MediaClass]*mediaDev

	db      *levigo.DB
	ro      *levigo.ReadOptions
	woSync  *levigo.WriteOptions
	woAsync *levigo.WriteOptions

	// uniq is the next uniquifier to issue. Guarded by mu; the
	// durable high-water mark is written in the same batch as
	// every allocation so ids are never reused across restarts.
	uniq uint64

	mblockCap uint64
	zoneSize  uint32
}

type mediaDev struct {
	dev   *pd.Dev
	slots *slotAlloc
}

// Open loads the object table under dir and rebuilds the in-core
// state of every recorded object on the given devices. Records in
// the uncommitted state come back with their last recorded write
// length so interrupted write sequences can resume.
func Open(dir string, devs []*pd.Dev, mblockCap uint64, zoneSize uint32, sparePct uint8) (*Store, error) {
	logger = mlog.GetPackageLogger("pkg/pmd")
	ctxLogger := mlog.GetFunctionLogger(logger, "Open")

	if mblockCap == 0 || zoneSize == 0 || mblockCap%uint64(zoneSize) != 0 {
		return nil, pkgerr.Wrap(merr.ErrInvalidArgument, "mblock capacity must be a multiple of the zone size")
	}
	if omf.DevSigSize%zoneSize != 0 {
		return nil, pkgerr.Wrap(merr.ErrInvalidArgument, "zone size must divide the device signature block")
	}
	if sparePct >= 100 {
		return nil, pkgerr.Wrap(merr.ErrInvalidArgument, "spare percentage out of range")
	}
	if len(devs) == 0 {
		return nil, pkgerr.Wrap(merr.ErrInvalidArgument, "pool needs at least one device")
	}

	s := &Store{
		uncommitted: make(map[omf.ObjID]*Layout),
		committed:   make(map[omf.ObjID]*Layout),
		media:       make(map[omf.MediaClass]*mediaDev),
		uniq:        1,
		mblockCap:   mblockCap,
		zoneSize:    zoneSize,
	}

	for _, dev := range devs {
		if _, ok := s.media[dev.Mclass()]; ok {
			return nil, pkgerr.Wrapf(merr.ErrInvalidArgument, "duplicate device for media class %v", dev.Mclass())
		}
		if dev.Size() <= omf.DevSigSize {
			return nil, pkgerr.Wrapf(merr.ErrInvalidArgument, "device %s too small", dev.Path())
		}

		total := (dev.Size() - omf.DevSigSize) / mblockCap
		spare := total * uint64(sparePct) / 100
		usable := total - spare
		if usable == 0 {
			return nil, pkgerr.Wrapf(merr.ErrInvalidArgument, "device %s holds no usable slots", dev.Path())
		}

		s.media[dev.Mclass()] = &mediaDev{
			dev:   dev,
			slots: newSlotAlloc(uint32(total), uint32(usable)),
		}
	}

	opts := levigo.NewOptions()
	opts.SetCreateIfMissing(true)
	opts.SetCache(levigo.NewLRUCache(8 << 20))
	defer opts.Close()

	db, err := levigo.Open(filepath.Join(dir, objTableDir), opts)
	if err != nil {
		return nil, pkgerr.Wrap(err, "failed to open object table")
	}

	s.db = db
	s.ro = levigo.NewReadOptions()
	s.woSync = levigo.NewWriteOptions()
	s.woSync.SetSync(true)
	s.woAsync = levigo.NewWriteOptions()

	if err := s.load(); err != nil {
		s.Close()
		return nil, err
	}

	ctxLogger.WithFields(logrus.Fields{
		"uncommitted": len(s.uncommitted),
		"committed":   len(s.committed),
	}).Info("object table loaded")

	return s, nil
}

// load rebuilds the in-core tables from the object table.
func (s *Store) load() error {
	it := s.db.NewIterator(s.ro)
	defer it.Close()

	prefix := []byte("o:")
	for it.Seek(prefix); it.Valid(); it.Next() {
		if !bytes.HasPrefix(it.Key(), prefix) {
			break
		}

		rec, err := omf.UnmarshalObjRec(it.Value())
		if err != nil {
			return pkgerr.Wrap(err, "failed to decode object record")
		}

		l, err := s.layoutFromRec(rec)
		if err != nil {
			return err
		}

		if rec.State == omf.RecCommitted {
			s.committed[l.objid] = l
		} else {
			s.uncommitted[l.objid] = l
		}

		// Heal the high-water mark if a crash left it behind.
		if u := l.objid.Uniquifier(); u >= s.uniq {
			s.uniq = u + 1
		}
	}
	if err := it.GetError(); err != nil {
		return pkgerr.Wrap(err, "failed to scan object table")
	}

	raw, err := s.db.Get(s.ro, omf.UniqKey())
	if err != nil {
		return pkgerr.Wrap(err, "failed to read uniquifier mark")
	}
	if raw != nil {
		uniq, err := omf.DecodeUniq(raw)
		if err != nil {
			return err
		}
		if uniq > s.uniq {
			s.uniq = uniq
		}
	}

	return nil
}

func (s *Store) layoutFromRec(rec *omf.ObjRec) (*Layout, error) {
	md, ok := s.media[rec.Mclass]
	if !ok {
		return nil, pkgerr.Wrapf(merr.ErrInvariant, "object 0x%x records media class %v with no device", uint64(rec.Objid), rec.Mclass)
	}
	if rec.Capacity != s.mblockCap {
		return nil, pkgerr.Wrapf(merr.ErrInvariant, "object 0x%x records capacity %d, pool uses %d", uint64(rec.Objid), rec.Capacity, s.mblockCap)
	}
	if err := md.slots.reserve(rec.Slot); err != nil {
		return nil, pkgerr.Wrapf(err, "object 0x%x", uint64(rec.Objid))
	}

	l := &Layout{
		objid:     rec.Objid,
		mclass:    rec.Mclass,
		slot:      rec.Slot,
		zoneStart: rec.ZoneStart,
		zoneCnt:   rec.ZoneCnt,
		capacity:  rec.Capacity,
		dev:       md.dev,
		off:       s.slotOffset(rec.Slot),
		wlen:      rec.WriteLen,
		refs:      1,
	}
	if rec.State == omf.RecCommitted {
		l.setCommitted()
	}

	return l, nil
}

func (s *Store) slotOffset(slot uint32) uint64 {
	return omf.DevSigSize + uint64(slot)*s.mblockCap
}

// Close releases the object table. Layout handles become invalid.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	if s.ro != nil {
		s.ro.Close()
		s.ro = nil
	}
	if s.woSync != nil {
		s.woSync.Close()
		s.woSync = nil
	}
	if s.woAsync != nil {
		s.woAsync.Close()
		s.woAsync = nil
	}
}

// Alloc reserves a slot in the given media class and persists an
// uncommitted record for the new object. The returned layout holds
// one caller reference on top of the table reference.
func (s *Store) Alloc(mclass omf.MediaClass, spare bool) (*Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	md, ok := s.media[mclass]
	if !ok {
		return nil, pkgerr.Wrapf(merr.ErrNotFound, "no device in media class %v", mclass)
	}

	slot, ok := md.slots.alloc(spare)
	if !ok {
		return nil, pkgerr.Wrapf(merr.ErrNoSpace, "media class %v", mclass)
	}

	objid := omf.MakeObjID(omf.ObjMblock, s.uniq)
	l := &Layout{
		objid:     objid,
		mclass:    mclass,
		slot:      slot,
		zoneStart: uint32(s.slotOffset(slot) / uint64(s.zoneSize)),
		zoneCnt:   uint32(s.mblockCap / uint64(s.zoneSize)),
		capacity:  s.mblockCap,
		dev:       md.dev,
		off:       s.slotOffset(slot),
		refs:      2,
	}

	rec := l.rec()
	wb := levigo.NewWriteBatch()
	defer wb.Close()
	wb.Put(omf.ObjKey(objid), rec.Marshal())
	wb.Put(omf.UniqKey(), omf.EncodeUniq(s.uniq+1))

	if err := s.db.Write(s.woSync, wb); err != nil {
		md.slots.free(slot)
		return nil, pkgerr.Wrapf(merr.ErrDevice, "failed to persist object record: %v", err)
	}

	s.uniq++
	s.uncommitted[objid] = l
	return l, nil
}

// Realloc resumes an interrupted write sequence on an existing
// uncommitted object, preserving its recorded write length. The
// caller must be the only holder.
func (s *Store) Realloc(objid omf.ObjID, mclass omf.MediaClass) (*Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.committed[objid]; ok {
		return nil, pkgerr.Wrapf(merr.ErrAlreadyCommitted, "object 0x%x", uint64(objid))
	}

	l, ok := s.uncommitted[objid]
	if !ok {
		return nil, pkgerr.Wrapf(merr.ErrNotFound, "object 0x%x", uint64(objid))
	}
	if mclass != l.mclass {
		return nil, pkgerr.Wrapf(merr.ErrInvalidArgument, "object 0x%x lives in media class %v", uint64(objid), l.mclass)
	}
	if l.refs != 1 {
		return nil, pkgerr.Wrapf(merr.ErrBusy, "object 0x%x has live handles", uint64(objid))
	}

	l.refs++
	return l, nil
}

// FindGet resolves an object by id and takes a reference on it. An
// object whose teardown has already begun is busy, not found.
func (s *Store) FindGet(objid omf.ObjID, sel Selector) (*Layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var l *Layout
	switch sel {
	case OnlyUncommitted:
		l = s.uncommitted[objid]
	case OnlyCommitted:
		l = s.committed[objid]
	default:
		if l = s.uncommitted[objid]; l == nil {
			l = s.committed[objid]
		}
	}
	if l == nil {
		return nil, pkgerr.Wrapf(merr.ErrNotFound, "object 0x%x", uint64(objid))
	}
	if l.dying() {
		return nil, pkgerr.Wrapf(merr.ErrBusy, "object 0x%x is being torn down", uint64(objid))
	}

	l.refs++
	return l, nil
}

// Resolve checks that a handle still names a live object. It is the
// gate every operation on a handle passes first. Liveness is table
// ownership, not the reference count; a live object reached through
// a handle its accounting says was already released is a caller bug
// and only logged.
func (s *Store) Resolve(l *Layout) error {
	if l == nil {
		return merr.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.uncommitted[l.objid]
	if cur == nil {
		cur = s.committed[l.objid]
	}
	if cur != l {
		return pkgerr.Wrapf(merr.ErrNotFound, "object 0x%x", uint64(l.objid))
	}
	if l.objid == 0 || l.refs < 2 {
		logger.Warnf("object 0x%x resolved with %d references", uint64(l.objid), l.refs)
	}
	return nil
}

// Put releases one caller reference.
func (s *Store) Put(l *Layout) error {
	if l == nil {
		return merr.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l.refs < 2 {
		return pkgerr.Wrapf(merr.ErrNotFound, "object 0x%x has no handle out", uint64(l.objid))
	}

	l.refs--
	return nil
}

// PersistWriteLen writes the current record of an uncommitted
// object behind the data path. The caller must hold the layout
// write lock. Losing the tail of these updates on a crash only
// rewinds where a resumed write sequence restarts.
func (s *Store) PersistWriteLen(l *Layout) error {
	rec := l.rec()
	if err := s.db.Put(s.woAsync, omf.ObjKey(l.objid), rec.Marshal()); err != nil {
		return pkgerr.Wrapf(merr.ErrDevice, "failed to persist write length: %v", err)
	}
	return nil
}

// Commit makes an object durable and immutable, exactly once. The
// caller must hold the layout write lock; the device flush ordered
// before the commit record happens under the same critical section.
func (s *Store) Commit(l *Layout) error {
	if l.dying() {
		return pkgerr.Wrapf(merr.ErrBusy, "object 0x%x is being torn down", uint64(l.objid))
	}
	if l.Committed() {
		return pkgerr.Wrapf(merr.ErrAlreadyCommitted, "object 0x%x", uint64(l.objid))
	}

	l.setCommitted()
	rec := l.rec()
	if err := s.db.Put(s.woSync, omf.ObjKey(l.objid), rec.Marshal()); err != nil {
		l.setUncommitted()
		return pkgerr.Wrapf(merr.ErrDevice, "failed to persist commit record: %v", err)
	}

	s.mu.Lock()
	delete(s.uncommitted, l.objid)
	s.committed[l.objid] = l
	s.mu.Unlock()

	return nil
}

// Abort tears down an uncommitted object. The caller must hold the
// only handle; both its reference and the table reference drop, so
// the handle is dead afterwards.
func (s *Store) Abort(l *Layout) error {
	return s.remove(l, flagAborting, true)
}

// Delete removes an object in any state. Like Abort it consumes
// the caller's handle.
func (s *Store) Delete(l *Layout) error {
	return s.remove(l, flagDeleting, false)
}

func (s *Store) remove(l *Layout, flag uint32, uncommittedOnly bool) error {
	s.mu.Lock()
	cur := s.uncommitted[l.objid]
	if cur == nil {
		cur = s.committed[l.objid]
	}
	if cur != l {
		s.mu.Unlock()
		return pkgerr.Wrapf(merr.ErrNotFound, "object 0x%x", uint64(l.objid))
	}
	if uncommittedOnly && l.Committed() {
		s.mu.Unlock()
		return pkgerr.Wrapf(merr.ErrAlreadyCommitted, "object 0x%x", uint64(l.objid))
	}
	if l.refs != 2 {
		s.mu.Unlock()
		return pkgerr.Wrapf(merr.ErrBusy, "object 0x%x has %d references", uint64(l.objid), l.refs)
	}
	l.setFlag(flag)
	s.mu.Unlock()

	// Wait out in-flight io before dropping the record.
	l.Lock()
	defer l.Unlock()

	// A racing commit may have won while we waited for the lock.
	if uncommittedOnly && l.Committed() {
		l.clearFlag(flag)
		return pkgerr.Wrapf(merr.ErrAlreadyCommitted, "object 0x%x", uint64(l.objid))
	}

	// Teardown may only proceed while ours is the sole handle out.
	// Lookups refuse objects with the teardown flag up, so once the
	// count is confirmed here it cannot move again.
	s.mu.Lock()
	if l.refs != 2 {
		s.mu.Unlock()
		l.clearFlag(flag)
		return pkgerr.Wrapf(merr.ErrBusy, "object 0x%x has %d references", uint64(l.objid), l.refs)
	}
	s.mu.Unlock()

	if err := s.db.Delete(s.woSync, omf.ObjKey(l.objid)); err != nil {
		l.clearFlag(flag)
		return pkgerr.Wrapf(merr.ErrDevice, "failed to drop object record: %v", err)
	}

	if err := l.dev.Discard(l.off, l.capacity); err != nil {
		// Space reclaim is best effort; the slot is reused anyway.
		logger.WithField("objid", l.objid.String()).
			Debugf("discard failed: %v", err)
	}

	s.mu.Lock()
	delete(s.uncommitted, l.objid)
	delete(s.committed, l.objid)
	l.refs = 0
	s.media[l.mclass].slots.free(l.slot)
	s.mu.Unlock()

	return nil
}

// Usage describes slot accounting of one media class.
type Usage struct {
	Mclass      omf.MediaClass
	UsedSlots   uint32
	UsableSlots uint32
	SpareSlots  uint32
	MblockCap   uint64
}

// Usage reports slot accounting for every configured media class.
func (s *Store) Usage() []Usage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Usage
	for mclass, md := range s.media {
		out = append(out, Usage{
			Mclass:      mclass,
			UsedSlots:   md.slots.usedCount(),
			UsableSlots: md.slots.usable,
			SpareSlots:  md.slots.total - md.slots.usable,
			MblockCap:   s.mblockCap,
		})
	}
	return out
}

// Counts returns the number of uncommitted and committed objects.
func (s *Store) Counts() (uncommitted, committed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.uncommitted), len(s.committed)
}
