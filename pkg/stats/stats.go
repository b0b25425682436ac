// Package stats exports the daemon metrics. Collectors register
// lazily on first use so importing the package stays side-effect
// free.
package stats

import (
	"sync"
	"time"

	pkgerr "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sbejawada/mpool-kmod/pkg/merr"
)

var (
	registerOnce sync.Once

	mblockOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpd",
			Subsystem: "mblock",
			Name:      "ops_total",
			Help:      "Total mblock operations by outcome.",
		},
		[]string{"op", "result"},
	)
	mblockOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mpd",
			Subsystem: "mblock",
			Name:      "op_duration_seconds",
			Help:      "Mblock operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	mblockBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mpd",
			Subsystem: "mblock",
			Name:      "io_bytes_total",
			Help:      "Bytes moved by mblock reads and writes.",
		},
		[]string{"op"},
	)
)

// Register installs the package collectors. Safe to call from every
// record helper; only the first call does work.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(mblockOps, mblockOpDuration, mblockBytes)
	})
}

// RecordOp counts one mblock operation and its latency.
func RecordOp(op string, err error, duration time.Duration) {
	Register()
	mblockOps.WithLabelValues(op, resultLabel(err)).Inc()
	mblockOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordIO adds moved bytes for a read or write.
func RecordIO(op string, n int) {
	Register()
	mblockBytes.WithLabelValues(op).Add(float64(n))
}

// RegisterPool exposes live object counts for one pool as gauges
// sampled at scrape time. The returned function removes them again;
// deactivation must call it.
func RegisterPool(pool string, counts func() (uncommitted, committed int)) func() {
	Register()

	uncommitted := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   "mpd",
			Subsystem:   "pool",
			Name:        "uncommitted_mblocks",
			Help:        "Mblocks allocated but not yet committed.",
			ConstLabels: prometheus.Labels{"pool": pool},
		},
		func() float64 {
			n, _ := counts()
			return float64(n)
		},
	)
	committed := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   "mpd",
			Subsystem:   "pool",
			Name:        "committed_mblocks",
			Help:        "Mblocks committed and readable.",
			ConstLabels: prometheus.Labels{"pool": pool},
		},
		func() float64 {
			_, n := counts()
			return float64(n)
		},
	)

	prometheus.MustRegister(uncommitted, committed)
	return func() {
		prometheus.Unregister(uncommitted)
		prometheus.Unregister(committed)
	}
}

// resultLabel folds an operation error onto the closed error
// taxonomy so label cardinality stays bounded.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case pkgerr.Is(err, merr.ErrInvalidArgument):
		return "invalid_argument"
	case pkgerr.Is(err, merr.ErrNotFound):
		return "not_found"
	case pkgerr.Is(err, merr.ErrAlreadyCommitted):
		return "already_committed"
	case pkgerr.Is(err, merr.ErrNotReady):
		return "not_ready"
	case pkgerr.Is(err, merr.ErrBusy):
		return "busy"
	case pkgerr.Is(err, merr.ErrNoSpace):
		return "no_space"
	case pkgerr.Is(err, merr.ErrDevice):
		return "device_error"
	case pkgerr.Is(err, merr.ErrExists):
		return "exists"
	default:
		return "internal"
	}
}
