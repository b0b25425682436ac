package mpmux

import (
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sbejawada/mpool-kmod/pkg/security"
	"github.com/sbejawada/mpool-kmod/pkg/util/config"
	"github.com/sbejawada/mpool-kmod/pkg/util/mlog"
)

var logger *logrus.Entry

// Mux accepts tls connections on one port and routes each of them to
// a registered layer by the first byte on the wire. The daemon runs
// its rpc and http planes through it on a single address.
type Mux struct {
	addr    string
	ln      net.Listener
	layers  []*Layer
	secuCfg *config.Security
}

// NewMux creates a Mux object.
func NewMux(addr string, secuCfg *config.Security) *Mux {
	logger = mlog.GetPackageLogger("pkg/mpmux")

	return &Mux{
		addr:    addr,
		layers:  make([]*Layer, 0),
		secuCfg: secuCfg,
	}
}

// Address returns the listening address.
func (m *Mux) Address() net.Addr {
	return m.ln.Addr()
}

// RegisterLayer registers a layer to the Mux.
func (m *Mux) RegisterLayer(l *Layer) {
	m.layers = append(m.layers, l)
}

// Close closes the listener.
func (m *Mux) Close() error {
	// Close real net.Listener first.
	// This will not accept more connections.
	if err := m.ln.Close(); err != nil {
		return err
	}

	// Close all registered layers.
	for _, l := range m.layers {
		if err := l.Close(); err != nil {
			return err
		}
	}

	return nil
}

// ListenAndServeTLS opens a tls socket and routes all incoming tcp connections.
func (m *Mux) ListenAndServeTLS() error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return errors.Wrap(err, "mpmux ListenAndServeTLS failed")
	}

	cert, err := tls.LoadX509KeyPair(
		m.secuCfg.CertsDir+"/"+m.secuCfg.ServerCrt,
		m.secuCfg.CertsDir+"/"+m.secuCfg.ServerKey,
	)
	if err != nil {
		return errors.Wrap(err, "mpmux ListenAndServeTLS failed")
	}

	// Load tls configuration and add certificate.
	tlsConfig := security.DefaultTLSConfig()
	tlsConfig.Certificates = append(tlsConfig.Certificates, cert)

	tlsListener := tls.NewListener(tcpKeepAliveListener{ln.(*net.TCPListener)}, tlsConfig)
	go m.serve(tlsListener)
	return nil
}

func (m *Mux) serve(ln net.Listener) error {
	if m.ln != nil {
		m.ln.Close()
	}
	m.ln = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}

		go m.handleConn(conn)
	}
}

func (m *Mux) handleConn(conn net.Conn) {
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != nil {
		if err != io.EOF {
			logger.Errorf("failed to read the first byte: %v", err)
		}
		return
	}

	for _, l := range m.layers {
		if l.match(buf[0]) {
			l.handleConn(conn, buf[0])
			return
		}
	}

	// No matching layers.
	logger.Errorf("mpmux: no matching layers %+v\n", buf[0])
	conn.Close()
}

// tcpKeepAliveListener sets TCP keep-alive timeouts on accepted connections.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (c net.Conn, err error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}
