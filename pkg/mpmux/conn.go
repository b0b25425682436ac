package mpmux

import (
	"net"
	"sync"
	"time"
)

// signConn hands the consumed type byte back to the first reader.
type signConn struct {
	conn     net.Conn
	once     sync.Once
	signByte byte
}

func newSignConn(conn net.Conn, signByte byte) *signConn {
	return &signConn{
		conn:     conn,
		signByte: signByte,
	}
}

func (sc *signConn) Read(b []byte) (n int, err error) {
	sc.once.Do(func() {
		if len(b) < 1 {
			return
		}

		b[0] = sc.signByte
		b = b[1:]
		n++
	})
	read, err := sc.conn.Read(b)
	return read + n, err
}

func (sc *signConn) Write(b []byte) (n int, err error) {
	return sc.conn.Write(b)
}

func (sc *signConn) Close() error {
	return sc.conn.Close()
}

func (sc *signConn) LocalAddr() net.Addr {
	return sc.conn.LocalAddr()
}

func (sc *signConn) RemoteAddr() net.Addr {
	return sc.conn.RemoteAddr()
}

func (sc *signConn) SetDeadline(t time.Time) error {
	return sc.conn.SetDeadline(t)
}

func (sc *signConn) SetReadDeadline(t time.Time) error {
	return sc.conn.SetReadDeadline(t)
}

func (sc *signConn) SetWriteDeadline(t time.Time) error {
	return sc.conn.SetWriteDeadline(t)
}
