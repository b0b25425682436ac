package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	pkgerr "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
	"github.com/sbejawada/mpool-kmod/pkg/mpool"
	"github.com/sbejawada/mpool-kmod/pkg/mprpc"
	"github.com/sbejawada/mpool-kmod/pkg/omf"
	"github.com/sbejawada/mpool-kmod/pkg/pmd"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/sbejawada/mpool-kmod/pkg/util/mlog"
)

var logger *logrus.Entry

// Handlers is the interface that provides admin rpc and http handlers.
type Handlers interface {
	PoolInfo(req *mprpc.MPAPoolInfoRequest, res *mprpc.MPAPoolInfoResponse) error
	PoolUsage(req *mprpc.MPAPoolUsageRequest, res *mprpc.MPAPoolUsageResponse) error

	PoolInfoHandler(w http.ResponseWriter, r *http.Request)
	PoolUsageHandler(w http.ResponseWriter, r *http.Request)
	MblockPropsHandler(w http.ResponseWriter, r *http.Request)
}

type handlers struct {
	cfg  *config.Mpd
	pool *mpool.Mpool
}

// NewHandlers creates admin handlers with necessary dependencies.
func NewHandlers(cfg *config.Mpd, pool *mpool.Mpool) Handlers {
	logger = mlog.GetPackageLogger("app/mpd/usecase/admin")

	return &handlers{
		cfg:  cfg,
		pool: pool,
	}
}

// PoolInfo reports the pool identity, geometry and object counts.
func (h *handlers) PoolInfo(req *mprpc.MPAPoolInfoRequest, res *mprpc.MPAPoolInfoResponse) error {
	sb := h.pool.Superblock()
	nu, nc := h.pool.Counts()

	res.Name = h.pool.Name()
	res.UUID = h.pool.UUID()
	res.MblockCap = sb.MblockCap
	res.ZoneSize = sb.ZoneSize
	res.OptIOSize = sb.OptIOSize
	res.SparePct = sb.SparePct
	res.Uncommitted = nu
	res.Committed = nc
	return nil
}

// PoolUsage reports slot accounting per media class.
func (h *handlers) PoolUsage(req *mprpc.MPAPoolUsageRequest, res *mprpc.MPAPoolUsageResponse) error {
	for _, u := range h.pool.Usage() {
		res.Classes = append(res.Classes, mprpc.MPAClassUsage{
			Mclass:      u.Mclass.String(),
			UsedSlots:   u.UsedSlots,
			UsableSlots: u.UsableSlots,
			SpareSlots:  u.SpareSlots,
			MblockCap:   u.MblockCap,
		})
	}
	return nil
}

// PoolInfoHandler serves the pool info as json.
func (h *handlers) PoolInfoHandler(w http.ResponseWriter, r *http.Request) {
	res := &mprpc.MPAPoolInfoResponse{}
	if err := h.PoolInfo(nil, res); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

// PoolUsageHandler serves the per-class usage as json.
func (h *handlers) PoolUsageHandler(w http.ResponseWriter, r *http.Request) {
	res := &mprpc.MPAPoolUsageResponse{}
	if err := h.PoolUsage(nil, res); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

// MblockPropsHandler serves one mblock property snapshot as json.
// The objid path variable takes decimal or 0x-prefixed hex.
func (h *handlers) MblockPropsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := strconv.ParseUint(vars["objid"], 0, 64)
	if err != nil {
		writeError(w, pkgerr.Wrap(merr.ErrInvalidArgument, "malformed object id"))
		return
	}

	hmb, props, err := h.pool.MblockFindGet(omf.ObjID(id), pmd.Any)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.pool.MblockPut(hmb); err != nil {
		mlog.GetMethodLogger(logger, "handlers.MblockPropsHandler").Error(err)
	}

	writeJSON(w, mprpc.NewMPBProps(props))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		mlog.GetFunctionLogger(logger, "writeJSON").Error(err)
	}
}

// writeError maps the storage error taxonomy onto http status codes.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case pkgerr.Is(err, merr.ErrInvalidArgument):
		status = http.StatusBadRequest
	case pkgerr.Is(err, merr.ErrNotFound):
		status = http.StatusNotFound
	case pkgerr.Is(err, merr.ErrAlreadyCommitted),
		pkgerr.Is(err, merr.ErrNotReady),
		pkgerr.Is(err, merr.ErrBusy),
		pkgerr.Is(err, merr.ErrExists):
		status = http.StatusConflict
	case pkgerr.Is(err, merr.ErrNoSpace):
		status = http.StatusInsufficientStorage
	default:
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}
