package delivery

import (
	"log"
	"net"
	"net/http"
	"net/rpc"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sbejawada/mpool-kmod/app/mpd/usecase/admin"
	"github.com/sbejawada/mpool-kmod/app/mpd/usecase/mblock"
	"github.com/sbejawada/mpool-kmod/pkg/mpmux"
	"github.com/sbejawada/mpool-kmod/pkg/mprpc"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/sbejawada/mpool-kmod/pkg/util/mlog"
)

var logger *logrus.Entry

type Service struct {
	mux *mpmux.Mux

	rpcL  *mpmux.Layer
	httpL *mpmux.Layer

	httpHandler http.Handler
	httpSrv     *http.Server

	rpcSrv *rpc.Server
}

// SetupDeliveryService creates a delivery service with necessary dependencies.
func SetupDeliveryService(cfg *config.Mpd, ah admin.Handlers, bh mblock.Handlers) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("invalid nil arguments")
	}
	logger = mlog.GetPackageLogger("app/mpd/delivery")

	s := &Service{}

	// Resolve daemon address.
	addr := cfg.ServerAddr + ":" + cfg.ServerPort
	rAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "resolve mpd address failed")
	}

	// Create transport layers.
	s.rpcL = mpmux.NewLayer(rpcTypeBytes(), rAddr, false)
	s.httpL = mpmux.NewLayer(httpTypeBytes(), rAddr, true)

	// Create a mux and register layers.
	s.mux = mpmux.NewMux(addr, &cfg.Security)
	s.mux.RegisterLayer(s.rpcL)
	s.mux.RegisterLayer(s.httpL)

	// Create a http handler.
	s.httpHandler = makeHandler(ah)

	// Create http server.
	s.httpSrv = &http.Server{
		Handler:        s.httpHandler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
		ErrorLog:       log.New(logger.Writer(), "http server", log.Lshortfile),
	}

	// Create rpc server.
	s.rpcSrv = rpc.NewServer()
	if err := s.rpcSrv.RegisterName(mprpc.MpdAdminPrefix, ah); err != nil {
		return nil, err
	}
	if err := s.rpcSrv.RegisterName(mprpc.MpdMblockPrefix, bh); err != nil {
		return nil, err
	}

	s.run()

	return s, nil
}

// run starts the mpd delivery service.
func (s *Service) run() {
	ctxLogger := mlog.GetMethodLogger(logger, "Service.run")
	ctxLogger.Info("start mpd delivery service ...")

	go s.mux.ListenAndServeTLS()
	go s.serveRPC()
	go s.httpSrv.Serve(s.httpL)
}

// Stop cleans up the services and shut down the server.
func (s *Service) Stop() error {
	ctxLogger := mlog.GetMethodLogger(logger, "Service.Stop")
	ctxLogger.Info("stop mpd delivery service ...")

	// mux closes the listener and all the registered layers.
	if err := s.mux.Close(); err != nil {
		return errors.Wrap(err, "close mpd mux failed")
	}

	// Close the http server.
	return s.httpSrv.Close()
}

func (s *Service) serveRPC() {
	ctxLogger := mlog.GetMethodLogger(logger, "Service.serveRPC")

	for {
		conn, err := s.rpcL.Accept()
		if err != nil {
			ctxLogger.Error(errors.Wrap(err, "accept connection from rpc layer failed"))
			return
		}
		go s.rpcSrv.ServeConn(conn)
	}
}
