package mblock

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	pkgerr "github.com/pkg/errors"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/mpool"
	"github.com/sbejawada/mpool-kmod/pkg/mprpc"
	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
)

func newTestHandlers(t *testing.T, dir string) (Handlers, *mpool.Mpool) {
	t.Helper()

	err := mpool.Create(mpool.CreateParams{
		Name: "rpcpool",
		Dir:  dir,
		Drives: []omf.DriveSpec{
			{Path: filepath.Join(dir, "capacity.img"), Mclass: "capacity", Size: 4 << 20},
		},
		MblockCap: 64 << 10,
		ZoneSize:  4096,
		OptIOSize: 4096,
		SparePct:  2,
	})
	if err != nil {
		t.Fatal(err)
	}

	pool, err := mpool.Activate(dir, mpool.ActivateOpts{ReadAhead: mpool.DefaultReadAhead})
	if err != nil {
		t.Fatal(err)
	}
	return NewHandlers(&config.Mpd{}, pool), pool
}

func TestHandlersRoundTrip(t *testing.T) {
	dir := "testHandlersRoundTrip"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	h, pool := newTestHandlers(t, dir)
	defer pool.Deactivate()

	allocRes := &mprpc.MPBAllocResponse{}
	if err := h.Alloc(&mprpc.MPBAllocRequest{Mclass: "capacity"}, allocRes); err != nil {
		t.Fatal(err)
	}
	objid := allocRes.Props.ObjID
	if objid == 0 || allocRes.Props.Committed {
		t.Fatalf("alloc props: id=0x%x committed=%v", objid, allocRes.Props.Committed)
	}

	chunk1 := bytes.Repeat([]byte{0xaa}, 4096)
	chunk2 := bytes.Repeat([]byte{0xbb}, 4096)

	writeRes := &mprpc.MPBWriteResponse{}
	if err := h.Write(&mprpc.MPBWriteRequest{ObjID: objid, Data: chunk1}, writeRes); err != nil {
		t.Fatal(err)
	}
	if writeRes.WriteLen != 4096 {
		t.Errorf("write length after first append: got %d", writeRes.WriteLen)
	}
	if err := h.Write(&mprpc.MPBWriteRequest{ObjID: objid, Data: chunk2}, writeRes); err != nil {
		t.Fatal(err)
	}
	if writeRes.WriteLen != 8192 {
		t.Errorf("write length after second append: got %d", writeRes.WriteLen)
	}

	// Not readable yet.
	readRes := &mprpc.MPBReadResponse{}
	err := h.Read(&mprpc.MPBReadRequest{ObjID: objid, Offset: 0, Length: 4096}, readRes)
	if !pkgerr.Is(err, merr.ErrNotReady) {
		t.Errorf("read before commit: got %v, expected %v", err, merr.ErrNotReady)
	}

	if err := h.Commit(&mprpc.MPBCommitRequest{ObjID: objid}, &mprpc.MPBCommitResponse{}); err != nil {
		t.Fatal(err)
	}

	if err := h.Read(&mprpc.MPBReadRequest{ObjID: objid, Offset: 0, Length: 8192}, readRes); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(readRes.Data, append(chunk1, chunk2...)) {
		t.Error("read data differs from written data")
	}

	// A probe past the written length comes back short.
	if err := h.Read(&mprpc.MPBReadRequest{ObjID: objid, Offset: 4096, Length: 8192}, readRes); err != nil {
		t.Fatal(err)
	}
	if len(readRes.Data) != 4096 {
		t.Errorf("clamped read: got %d bytes, expected 4096", len(readRes.Data))
	}

	propsRes := &mprpc.MPBPropsResponse{}
	if err := h.Props(&mprpc.MPBPropsRequest{ObjID: objid}, propsRes); err != nil {
		t.Fatal(err)
	}
	if !propsRes.Props.Committed || propsRes.Props.WriteLen != 8192 {
		t.Errorf("props: committed=%v wlen=%d", propsRes.Props.Committed, propsRes.Props.WriteLen)
	}
	if propsRes.Props.Mclass != "capacity" {
		t.Errorf("props media class: got %q", propsRes.Props.Mclass)
	}

	// Appending after commit is refused.
	err = h.Write(&mprpc.MPBWriteRequest{ObjID: objid, Data: chunk1}, writeRes)
	if !pkgerr.Is(err, merr.ErrAlreadyCommitted) {
		t.Errorf("write after commit: got %v, expected %v", err, merr.ErrAlreadyCommitted)
	}

	if err := h.Delete(&mprpc.MPBDeleteRequest{ObjID: objid}, &mprpc.MPBDeleteResponse{}); err != nil {
		t.Fatal(err)
	}
	err = h.Props(&mprpc.MPBPropsRequest{ObjID: objid}, propsRes)
	if !pkgerr.Is(err, merr.ErrNotFound) {
		t.Errorf("props after delete: got %v, expected %v", err, merr.ErrNotFound)
	}
}

func TestHandlersReallocResumes(t *testing.T) {
	dir := "testHandlersRealloc"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	h, pool := newTestHandlers(t, dir)
	defer pool.Deactivate()

	allocRes := &mprpc.MPBAllocResponse{}
	if err := h.Alloc(&mprpc.MPBAllocRequest{Mclass: "capacity"}, allocRes); err != nil {
		t.Fatal(err)
	}
	objid := allocRes.Props.ObjID

	data := bytes.Repeat([]byte{0xcc}, 4096)
	if err := h.Write(&mprpc.MPBWriteRequest{ObjID: objid, Data: data}, &mprpc.MPBWriteResponse{}); err != nil {
		t.Fatal(err)
	}

	reallocRes := &mprpc.MPBReallocResponse{}
	if err := h.Realloc(&mprpc.MPBReallocRequest{ObjID: objid, Mclass: "capacity"}, reallocRes); err != nil {
		t.Fatal(err)
	}
	if reallocRes.Props.WriteLen != 4096 {
		t.Errorf("recovered write length: got %d, expected 4096", reallocRes.Props.WriteLen)
	}
}

func TestHandlersAbortThenCommit(t *testing.T) {
	dir := "testHandlersAbort"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	h, pool := newTestHandlers(t, dir)
	defer pool.Deactivate()

	allocRes := &mprpc.MPBAllocResponse{}
	if err := h.Alloc(&mprpc.MPBAllocRequest{Mclass: "capacity"}, allocRes); err != nil {
		t.Fatal(err)
	}
	objid := allocRes.Props.ObjID

	if err := h.Abort(&mprpc.MPBAbortRequest{ObjID: objid}, &mprpc.MPBAbortResponse{}); err != nil {
		t.Fatal(err)
	}

	// Never succeeds silently.
	err := h.Commit(&mprpc.MPBCommitRequest{ObjID: objid}, &mprpc.MPBCommitResponse{})
	if !pkgerr.Is(err, merr.ErrNotFound) {
		t.Errorf("commit after abort: got %v, expected %v", err, merr.ErrNotFound)
	}
}

func TestHandlersErrors(t *testing.T) {
	dir := "testHandlersErrors"
	os.Mkdir(dir, 0775)
	defer os.RemoveAll(dir)

	h, pool := newTestHandlers(t, dir)
	defer pool.Deactivate()

	err := h.Alloc(&mprpc.MPBAllocRequest{Mclass: "tape"}, &mprpc.MPBAllocResponse{})
	if !pkgerr.Is(err, merr.ErrInvalidArgument) {
		t.Errorf("alloc on unknown media class: got %v", err)
	}

	// Staging class is not configured on this pool.
	err = h.Alloc(&mprpc.MPBAllocRequest{Mclass: "staging"}, &mprpc.MPBAllocResponse{})
	if !pkgerr.Is(err, merr.ErrNotFound) {
		t.Errorf("alloc on unconfigured media class: got %v", err)
	}

	unknown := uint64(omf.MakeObjID(omf.ObjMblock, 999999))
	err = h.Write(&mprpc.MPBWriteRequest{ObjID: unknown, Data: []byte{1}}, &mprpc.MPBWriteResponse{})
	if !pkgerr.Is(err, merr.ErrNotFound) {
		t.Errorf("write to unknown id: got %v", err)
	}

	allocRes := &mprpc.MPBAllocResponse{}
	if err := h.Alloc(&mprpc.MPBAllocRequest{Mclass: "capacity"}, allocRes); err != nil {
		t.Fatal(err)
	}
	err = h.Read(&mprpc.MPBReadRequest{
		ObjID:  allocRes.Props.ObjID,
		Length: uint64(allocRes.Props.Capacity) + 1,
	}, &mprpc.MPBReadResponse{})
	if !pkgerr.Is(err, merr.ErrInvalidArgument) {
		t.Errorf("read longer than capacity: got %v", err)
	}
}
