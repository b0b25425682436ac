package mpmux

import (
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
)

const closed uint32 = 1

// Layer is one plane of the mux. It satisfies net.Listener so an rpc
// or http server can sit directly on top of it.
type Layer struct {
	typeBytes        []byte
	preserveTypeByte bool

	addr    net.Addr
	connCh  chan net.Conn
	closed  uint32
	closeCh chan struct{}
}

// NewLayer makes a transport layer claiming the given first bytes.
// With preserveTypeByte set the consumed byte is re-injected, which
// http parsers need since the byte is part of the request line.
func NewLayer(typeBytes []byte, advertise net.Addr, preserveTypeByte bool) *Layer {
	return &Layer{
		typeBytes:        typeBytes,
		preserveTypeByte: preserveTypeByte,
		addr:             advertise,
		connCh:           make(chan net.Conn),
		closeCh:          make(chan struct{}),
	}
}

func (l *Layer) match(b byte) bool {
	for _, typeByte := range l.typeBytes {
		if typeByte == b {
			return true
		}
	}
	return false
}

// Addr returns the address of the transport layer.
func (l *Layer) Addr() net.Addr {
	return l.addr
}

// Accept waits and accepts the connection.
func (l *Layer) Accept() (net.Conn, error) {
	select {
	case conn := <-l.connCh:
		return conn, nil
	case <-l.closeCh:
		return nil, errors.New("transport layer closed")
	}
}

// Close closes the transport layer.
func (l *Layer) Close() error {
	old := atomic.SwapUint32(&l.closed, closed)
	if old != closed {
		close(l.closeCh)
	}

	return nil
}

func (l *Layer) handleConn(conn net.Conn, typeByte byte) {
	if l.preserveTypeByte {
		l.connCh <- newSignConn(conn, typeByte)
	} else {
		l.connCh <- conn
	}
}
