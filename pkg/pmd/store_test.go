package pmd

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/pd"
)

const (
	testMblockCap = 8192
	testZoneSize  = 4096
)

func newTestDevs(t *testing.T, dir string) []*pd.Dev {
	t.Helper()

	var devs []*pd.Dev
	for _, d := range []struct {
		name   string
		mclass omf.MediaClass
	}{
		{"capacity", omf.MCCapacity},
		{"staging", omf.MCStaging},
	} {
		path := filepath.Join(dir, d.name)
		if err := pd.Format(path, 1<<20); err != nil {
			t.Fatal(err)
		}
		dev, err := pd.Open(path, d.mclass, testZoneSize, false)
		if err != nil {
			t.Fatal(err)
		}
		devs = append(devs, dev)
	}
	return devs
}

func commitLocked(s *Store, l *Layout) error {
	l.Lock()
	defer l.Unlock()

	return s.Commit(l)
}

func newTestStore(t *testing.T, dir string, devs []*pd.Dev) *Store {
	t.Helper()

	s, err := Open(dir, devs, testMblockCap, testZoneSize, 25)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStoreAllocLifecycle(t *testing.T) {
	dir := "testStoreAllocLifecycle"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	devs := newTestDevs(t, dir)
	defer devs[0].Close()
	defer devs[1].Close()

	s := newTestStore(t, dir, devs)
	defer s.Close()

	l, err := s.Alloc(omf.MCCapacity, false)
	if err != nil {
		t.Fatal(err)
	}
	if !l.Objid().IsMblock() {
		t.Errorf("alloc returned objid %v without the mblock tag", l.Objid())
	}
	if l.refs != 2 {
		t.Errorf("fresh layout refs: got %d, expected 2", l.refs)
	}
	if l.Capacity() != testMblockCap {
		t.Errorf("capacity: got %d, expected %d", l.Capacity(), testMblockCap)
	}
	if l.Committed() {
		t.Error("fresh mblock is committed")
	}
	if l.DevOffset() < omf.DevSigSize {
		t.Errorf("data offset %d overlaps the signature block", l.DevOffset())
	}

	// The same object comes back as the same layout.
	got, err := s.FindGet(l.Objid(), Any)
	if err != nil {
		t.Fatal(err)
	}
	if got != l {
		t.Error("find_get returned a different layout")
	}
	if l.refs != 3 {
		t.Errorf("refs after find_get: got %d, expected 3", l.refs)
	}
	if err := s.Put(got); err != nil {
		t.Fatal(err)
	}

	if err := commitLocked(s, l); err != nil {
		t.Fatal(err)
	}
	if !l.Committed() {
		t.Error("commit did not mark the mblock committed")
	}
	if err := commitLocked(s, l); !errors.Is(err, merr.ErrAlreadyCommitted) {
		t.Errorf("second commit: got %v, expected %v", err, merr.ErrAlreadyCommitted)
	}

	if _, err := s.FindGet(l.Objid(), OnlyUncommitted); !errors.Is(err, merr.ErrNotFound) {
		t.Errorf("uncommitted find_get on committed object: got %v", err)
	}
	if _, err := s.FindGet(l.Objid(), OnlyCommitted); err != nil {
		t.Errorf("committed find_get: got %v", err)
	}
	if err := s.Put(l); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(l); err != nil {
		t.Fatal(err)
	}

	// All handles returned; only the table reference remains.
	if l.refs != 1 {
		t.Errorf("refs after puts: got %d, expected 1", l.refs)
	}
	// The object is still live, so a stale handle resolves; the
	// reference mismatch is only logged.
	if err := s.Resolve(l); err != nil {
		t.Errorf("resolve with only the table reference: got %v, expected success", err)
	}
	if err := s.Put(l); !errors.Is(err, merr.ErrNotFound) {
		t.Errorf("put without a handle out: got %v, expected %v", err, merr.ErrNotFound)
	}
}

func TestStoreAllocMediaClass(t *testing.T) {
	dir := "testStoreAllocMediaClass"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	devs := newTestDevs(t, dir)
	defer devs[0].Close()
	defer devs[1].Close()

	s := newTestStore(t, dir, devs)
	defer s.Close()

	st, err := s.Alloc(omf.MCStaging, false)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mclass() != omf.MCStaging {
		t.Errorf("media class: got %v, expected %v", st.Mclass(), omf.MCStaging)
	}
	if st.Dev() != devs[1] {
		t.Error("staging mblock landed on the wrong device")
	}

	if _, err := s.Alloc(omf.MCInvalid, false); !errors.Is(err, merr.ErrNotFound) {
		t.Errorf("alloc in unconfigured class: got %v, expected %v", err, merr.ErrNotFound)
	}
}

func TestStoreReallocResumes(t *testing.T) {
	dir := "testStoreReallocResumes"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	devs := newTestDevs(t, dir)
	defer devs[0].Close()
	defer devs[1].Close()

	s := newTestStore(t, dir, devs)
	defer s.Close()

	l, err := s.Alloc(omf.MCCapacity, false)
	if err != nil {
		t.Fatal(err)
	}
	objid := l.Objid()

	l.Lock()
	l.SetWriteLen(4096)
	if err := s.PersistWriteLen(l); err != nil {
		t.Fatal(err)
	}
	l.Unlock()

	// Still held: realloc must refuse.
	if _, err := s.Realloc(objid, omf.MCCapacity); !errors.Is(err, merr.ErrBusy) {
		t.Errorf("realloc with a live handle: got %v, expected %v", err, merr.ErrBusy)
	}
	if err := s.Put(l); err != nil {
		t.Fatal(err)
	}

	got, err := s.Realloc(objid, omf.MCCapacity)
	if err != nil {
		t.Fatal(err)
	}
	if got != l {
		t.Error("realloc returned a different layout")
	}
	if got.WriteLen() != 4096 {
		t.Errorf("write length after realloc: got %d, expected 4096", got.WriteLen())
	}

	if _, err := s.Realloc(objid, omf.MCStaging); !errors.Is(err, merr.ErrInvalidArgument) {
		t.Errorf("realloc with wrong media class: got %v, expected %v", err, merr.ErrInvalidArgument)
	}

	if err := commitLocked(s, got); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(got); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Realloc(objid, omf.MCCapacity); !errors.Is(err, merr.ErrAlreadyCommitted) {
		t.Errorf("realloc of committed object: got %v, expected %v", err, merr.ErrAlreadyCommitted)
	}

	if _, err := s.Realloc(omf.MakeObjID(omf.ObjMblock, 9999), omf.MCCapacity); !errors.Is(err, merr.ErrNotFound) {
		t.Errorf("realloc of unknown object: got %v, expected %v", err, merr.ErrNotFound)
	}
}

func TestStoreReopen(t *testing.T) {
	dir := "testStoreReopen"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	devs := newTestDevs(t, dir)
	defer devs[0].Close()
	defer devs[1].Close()

	s := newTestStore(t, dir, devs)

	committed, err := s.Alloc(omf.MCCapacity, false)
	if err != nil {
		t.Fatal(err)
	}
	committed.Lock()
	committed.SetWriteLen(8192)
	if err := s.Commit(committed); err != nil {
		committed.Unlock()
		t.Fatal(err)
	}
	committed.Unlock()
	if err := s.Put(committed); err != nil {
		t.Fatal(err)
	}

	partial, err := s.Alloc(omf.MCCapacity, false)
	if err != nil {
		t.Fatal(err)
	}
	partial.Lock()
	partial.SetWriteLen(4096)
	if err := s.PersistWriteLen(partial); err != nil {
		t.Fatal(err)
	}
	partial.Unlock()
	if err := s.Put(partial); err != nil {
		t.Fatal(err)
	}

	committedID, partialID := committed.Objid(), partial.Objid()
	s.Close()

	s = newTestStore(t, dir, devs)
	defer s.Close()

	nu, nc := s.Counts()
	if nu != 1 || nc != 1 {
		t.Fatalf("counts after reopen: got %d/%d, expected 1/1", nu, nc)
	}

	l, err := s.FindGet(committedID, OnlyCommitted)
	if err != nil {
		t.Fatal(err)
	}
	if l.WriteLen() != 8192 {
		t.Errorf("committed write length after reopen: got %d, expected 8192", l.WriteLen())
	}
	if err := s.Put(l); err != nil {
		t.Fatal(err)
	}

	l, err = s.Realloc(partialID, omf.MCCapacity)
	if err != nil {
		t.Fatal(err)
	}
	if l.WriteLen() != 4096 {
		t.Errorf("recovered write length: got %d, expected 4096", l.WriteLen())
	}
	if err := s.Put(l); err != nil {
		t.Fatal(err)
	}

	// Ids are never reused across restarts.
	fresh, err := s.Alloc(omf.MCCapacity, false)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Objid().Uniquifier() <= partialID.Uniquifier() {
		t.Errorf("uniquifier went backwards: %d after %d",
			fresh.Objid().Uniquifier(), partialID.Uniquifier())
	}
}

func TestStoreAbortDelete(t *testing.T) {
	dir := "testStoreAbortDelete"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	devs := newTestDevs(t, dir)
	defer devs[0].Close()
	defer devs[1].Close()

	s := newTestStore(t, dir, devs)
	defer s.Close()

	l, err := s.Alloc(omf.MCCapacity, false)
	if err != nil {
		t.Fatal(err)
	}
	objid := l.Objid()

	// A second holder blocks teardown.
	if _, err := s.FindGet(objid, Any); err != nil {
		t.Fatal(err)
	}
	if err := s.Abort(l); !errors.Is(err, merr.ErrBusy) {
		t.Errorf("abort with two holders: got %v, expected %v", err, merr.ErrBusy)
	}
	if err := s.Put(l); err != nil {
		t.Fatal(err)
	}

	if err := s.Abort(l); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindGet(objid, Any); !errors.Is(err, merr.ErrNotFound) {
		t.Errorf("find_get after abort: got %v, expected %v", err, merr.ErrNotFound)
	}
	if err := s.Resolve(l); !errors.Is(err, merr.ErrNotFound) {
		t.Errorf("resolve of dead handle: got %v, expected %v", err, merr.ErrNotFound)
	}

	// Abort refuses committed objects; delete takes them.
	l, err = s.Alloc(omf.MCCapacity, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := commitLocked(s, l); err != nil {
		t.Fatal(err)
	}
	if err := s.Abort(l); !errors.Is(err, merr.ErrAlreadyCommitted) {
		t.Errorf("abort of committed object: got %v, expected %v", err, merr.ErrAlreadyCommitted)
	}
	if err := s.Delete(l); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindGet(l.Objid(), Any); !errors.Is(err, merr.ErrNotFound) {
		t.Errorf("find_get after delete: got %v, expected %v", err, merr.ErrNotFound)
	}
}

func TestStoreDeleteFindGetRace(t *testing.T) {
	dir := "testStoreDeleteFindGetRace"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	devs := newTestDevs(t, dir)
	defer devs[0].Close()
	defer devs[1].Close()

	s := newTestStore(t, dir, devs)
	defer s.Close()

	// Teardown and lookup of the same object must never both win:
	// either the lookup gets its reference in first and the teardown
	// sees a second holder, or the teardown flag is already up and
	// the lookup backs off.
	for i := 0; i < 64; i++ {
		l, err := s.Alloc(omf.MCCapacity, false)
		if err != nil {
			t.Fatal(err)
		}
		objid := l.Objid()

		var (
			wg      sync.WaitGroup
			delErr  error
			findErr error
			found   *Layout
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			delErr = s.Delete(l)
		}()
		go func() {
			defer wg.Done()
			<-start
			found, findErr = s.FindGet(objid, Any)
		}()
		close(start)
		wg.Wait()

		if delErr == nil && findErr == nil {
			t.Fatal("delete and find_get both won on the same object")
		}

		if delErr != nil {
			// The lookup won; its reference made a second holder.
			if !errors.Is(delErr, merr.ErrBusy) {
				t.Fatalf("lost delete: got %v, expected %v", delErr, merr.ErrBusy)
			}
			if findErr != nil {
				t.Fatalf("find_get lost too: %v", findErr)
			}
			if err := s.Resolve(found); err != nil {
				t.Fatalf("resolve of handle that won the race: %v", err)
			}
			if err := s.Put(found); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(l); err != nil {
				t.Fatalf("delete after the lookup released: %v", err)
			}
			continue
		}

		// The teardown won; the object is gone for good.
		if !errors.Is(findErr, merr.ErrBusy) && !errors.Is(findErr, merr.ErrNotFound) {
			t.Fatalf("lost find_get: got %v, expected busy or not found", findErr)
		}
		if _, err := s.FindGet(objid, Any); !errors.Is(err, merr.ErrNotFound) {
			t.Errorf("find_get after delete: got %v, expected %v", err, merr.ErrNotFound)
		}
	}
}

func TestStoreNoSpace(t *testing.T) {
	dir := "testStoreNoSpace"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "tiny")
	// Room for the signature block plus four slots.
	if err := pd.Format(path, omf.DevSigSize+4*testMblockCap); err != nil {
		t.Fatal(err)
	}
	dev, err := pd.Open(path, omf.MCCapacity, testZoneSize, false)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	s, err := Open(dir, []*pd.Dev{dev}, testMblockCap, testZoneSize, 25)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// 25% spare leaves three normal slots.
	var last *Layout
	for i := 0; i < 3; i++ {
		if last, err = s.Alloc(omf.MCCapacity, false); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Alloc(omf.MCCapacity, false); !errors.Is(err, merr.ErrNoSpace) {
		t.Errorf("alloc past capacity: got %v, expected %v", err, merr.ErrNoSpace)
	}

	// The spare tail still has the fourth slot.
	sp, err := s.Alloc(omf.MCCapacity, true)
	if err != nil {
		t.Fatal(err)
	}
	if sp.slot < 3 {
		t.Errorf("spare alloc used normal slot %d", sp.slot)
	}
	if _, err := s.Alloc(omf.MCCapacity, true); !errors.Is(err, merr.ErrNoSpace) {
		t.Errorf("spare alloc past capacity: got %v, expected %v", err, merr.ErrNoSpace)
	}

	// Freed slots go back into circulation.
	if err := s.Abort(last); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Alloc(omf.MCCapacity, false); err != nil {
		t.Errorf("alloc after abort: got %v, expected success", err)
	}
}
