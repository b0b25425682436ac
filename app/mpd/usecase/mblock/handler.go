package mblock

import (
	"time"

	pkgerr "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/mpool"
	"github.com/sbejawada/mpool-kmod/pkg/mprpc"
	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/pmd"
	"github.com/sbejawada/mpool-kmod/pkg/stats"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/sbejawada/mpool-kmod/pkg/util/mlog"
)

var logger *logrus.Entry

// Handlers is the interface that provides mblock rpc handlers.
type Handlers interface {
	Alloc(req *mprpc.MPBAllocRequest, res *mprpc.MPBAllocResponse) error
	Realloc(req *mprpc.MPBReallocRequest, res *mprpc.MPBReallocResponse) error
	Write(req *mprpc.MPBWriteRequest, res *mprpc.MPBWriteResponse) error
	Read(req *mprpc.MPBReadRequest, res *mprpc.MPBReadResponse) error
	Commit(req *mprpc.MPBCommitRequest, res *mprpc.MPBCommitResponse) error
	Abort(req *mprpc.MPBAbortRequest, res *mprpc.MPBAbortResponse) error
	Delete(req *mprpc.MPBDeleteRequest, res *mprpc.MPBDeleteResponse) error
	Props(req *mprpc.MPBPropsRequest, res *mprpc.MPBPropsResponse) error
}

// Remote callers cannot hold pool handles, so every rpc resolves the
// object id for the duration of one call: find_get, operate, put.
type handlers struct {
	cfg  *config.Mpd
	pool *mpool.Mpool
}

// NewHandlers creates mblock handlers with necessary dependencies.
func NewHandlers(cfg *config.Mpd, pool *mpool.Mpool) Handlers {
	logger = mlog.GetPackageLogger("app/mpd/usecase/mblock")

	return &handlers{
		cfg:  cfg,
		pool: pool,
	}
}

// Alloc reserves a fresh mblock and hands its id back as the wire
// handle. The daemon keeps no per-client state.
func (h *handlers) Alloc(req *mprpc.MPBAllocRequest, res *mprpc.MPBAllocResponse) (err error) {
	begin := time.Now()
	defer func() { stats.RecordOp("alloc", err, time.Since(begin)) }()

	mclass, err := omf.ParseMediaClass(req.Mclass)
	if err != nil {
		return pkgerr.Wrap(merr.ErrInvalidArgument, err.Error())
	}

	hmb, props, err := h.pool.MblockAlloc(mclass, req.Spare)
	if err != nil {
		return err
	}
	res.Props = mprpc.NewMPBProps(props)

	return h.pool.MblockPut(hmb)
}

// Realloc reopens an interrupted write sequence by id.
func (h *handlers) Realloc(req *mprpc.MPBReallocRequest, res *mprpc.MPBReallocResponse) (err error) {
	begin := time.Now()
	defer func() { stats.RecordOp("realloc", err, time.Since(begin)) }()

	mclass, err := omf.ParseMediaClass(req.Mclass)
	if err != nil {
		return pkgerr.Wrap(merr.ErrInvalidArgument, err.Error())
	}

	hmb, props, err := h.pool.MblockRealloc(omf.ObjID(req.ObjID), mclass, false)
	if err != nil {
		return err
	}
	res.Props = mprpc.NewMPBProps(props)

	return h.pool.MblockPut(hmb)
}

// Write appends at the current written length.
func (h *handlers) Write(req *mprpc.MPBWriteRequest, res *mprpc.MPBWriteResponse) (err error) {
	begin := time.Now()
	defer func() { stats.RecordOp("write", err, time.Since(begin)) }()

	hmb, _, err := h.pool.MblockFindGet(omf.ObjID(req.ObjID), pmd.Any)
	if err != nil {
		return err
	}
	defer h.pool.MblockPut(hmb)

	if err := h.pool.MblockWrite(hmb, [][]byte{req.Data}); err != nil {
		return err
	}
	stats.RecordIO("write", len(req.Data))

	props, err := h.pool.MblockProps(hmb)
	if err != nil {
		return err
	}
	res.WriteLen = props.WriteLen
	return nil
}

// Read returns the requested range, shortened at the written length.
func (h *handlers) Read(req *mprpc.MPBReadRequest, res *mprpc.MPBReadResponse) (err error) {
	begin := time.Now()
	defer func() { stats.RecordOp("read", err, time.Since(begin)) }()

	hmb, props, err := h.pool.MblockFindGet(omf.ObjID(req.ObjID), pmd.Any)
	if err != nil {
		return err
	}
	defer h.pool.MblockPut(hmb)

	// Reject before allocating a buffer the validator would refuse
	// anyway.
	if req.Length > uint64(props.Capacity) {
		return pkgerr.Wrap(merr.ErrInvalidArgument, "read length exceeds mblock capacity")
	}

	buf := make([]byte, req.Length)
	n, err := h.pool.MblockRead(hmb, [][]byte{buf}, req.Offset)
	if err != nil {
		return err
	}
	stats.RecordIO("read", n)

	res.Data = buf[:n]
	return nil
}

// Commit seals the mblock; it is readable afterwards.
func (h *handlers) Commit(req *mprpc.MPBCommitRequest, res *mprpc.MPBCommitResponse) (err error) {
	begin := time.Now()
	defer func() { stats.RecordOp("commit", err, time.Since(begin)) }()

	hmb, _, err := h.pool.MblockFindGet(omf.ObjID(req.ObjID), pmd.Any)
	if err != nil {
		return err
	}
	defer h.pool.MblockPut(hmb)

	return h.pool.MblockCommit(hmb)
}

// Abort discards an uncommitted mblock. A successful abort consumes
// the resolved handle.
func (h *handlers) Abort(req *mprpc.MPBAbortRequest, res *mprpc.MPBAbortResponse) (err error) {
	begin := time.Now()
	defer func() { stats.RecordOp("abort", err, time.Since(begin)) }()

	hmb, _, err := h.pool.MblockFindGet(omf.ObjID(req.ObjID), pmd.Any)
	if err != nil {
		return err
	}

	if err := h.pool.MblockAbort(hmb); err != nil {
		if perr := h.pool.MblockPut(hmb); perr != nil {
			mlog.GetMethodLogger(logger, "handlers.Abort").Error(perr)
		}
		return err
	}
	return nil
}

// Delete removes an mblock in either state. A successful delete
// consumes the resolved handle.
func (h *handlers) Delete(req *mprpc.MPBDeleteRequest, res *mprpc.MPBDeleteResponse) (err error) {
	begin := time.Now()
	defer func() { stats.RecordOp("delete", err, time.Since(begin)) }()

	hmb, _, err := h.pool.MblockFindGet(omf.ObjID(req.ObjID), pmd.Any)
	if err != nil {
		return err
	}

	if err := h.pool.MblockDelete(hmb); err != nil {
		if perr := h.pool.MblockPut(hmb); perr != nil {
			mlog.GetMethodLogger(logger, "handlers.Delete").Error(perr)
		}
		return err
	}
	return nil
}

// Props fetches a property snapshot by id.
func (h *handlers) Props(req *mprpc.MPBPropsRequest, res *mprpc.MPBPropsResponse) (err error) {
	begin := time.Now()
	defer func() { stats.RecordOp("props", err, time.Since(begin)) }()

	hmb, props, err := h.pool.MblockFindGet(omf.ObjID(req.ObjID), pmd.Any)
	if err != nil {
		return err
	}
	res.Props = mprpc.NewMPBProps(props)

	return h.pool.MblockPut(hmb)
}
