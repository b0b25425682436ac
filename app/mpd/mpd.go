package mpd

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sbejawada/mpool-kmod/app/mpd/delivery"
	"github.com/sbejawada/mpool-kmod/app/mpd/usecase/admin"
	"github.com/sbejawada/mpool-kmod/app/mpd/usecase/mblock"
	"github.com/sbejawada/mpool-kmod/pkg/mpool"
	"github.com/sbejawada/mpool-kmod/pkg/stats"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/sbejawada/mpool-kmod/pkg/util/mlog"
	"github.com/sbejawada/mpool-kmod/pkg/util/uuid"
)

var logger *logrus.Entry

// Bootstrap build up the media pool daemon.
func Bootstrap(cfg config.Mpd) error {
	// Setup logger.
	if err := mlog.Init(cfg.LogLocation); err != nil {
		return errors.Wrap(err, "init log failed")
	}
	logger = mlog.GetPackageLogger("app/mpd")

	ctxLogger := mlog.GetFunctionLogger(logger, "Bootstrap")
	ctxLogger.Info("start bootstrap mpd ...")

	// Generates daemon ID.
	cfg.ID = uuid.Gen()

	// Bring up the pool.
	opts := mpool.ActivateOpts{
		ReadAhead: mpool.DefaultReadAhead,
		FUA:       cfg.Pool.FUA == "true",
	}
	if cfg.Pool.ReadAhead != "" {
		ra, err := strconv.ParseUint(cfg.Pool.ReadAhead, 10, 64)
		if err != nil {
			return errors.Wrap(err, "parse read ahead failed")
		}
		opts.ReadAhead = ra
	}

	pool, err := mpool.Activate(cfg.Pool.Dir, opts)
	if err != nil {
		return errors.Wrap(err, "activate pool failed")
	}
	unregister := stats.RegisterPool(pool.Name(), pool.Counts)

	// Setup each usecase handlers.
	adminHandlers := admin.NewHandlers(&cfg, pool)
	mblockHandlers := mblock.NewHandlers(&cfg, pool)

	// Setup delivery service.
	delivery, err := delivery.SetupDeliveryService(&cfg, adminHandlers, mblockHandlers)
	if err != nil {
		unregister()
		pool.Deactivate()
		return errors.Wrap(err, "failed to setup delivery")
	}

	ctxLogger.Info("bootstrap mpd succeeded")

	// Make channel for Ctrl-C or other terminate signal is received.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt, os.Kill)

	for {
		select {
		case <-sigc:
			ctxLogger.Info("received stop signal from OS")
			delivery.Stop()
			unregister()
			return pool.Deactivate()
		}
	}
}
