package mpmux

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestLayerMatch(t *testing.T) {
	l := NewLayer([]byte{0x02, 0x44}, nil, false)

	if !l.match(0x02) || !l.match(0x44) {
		t.Error("layer does not claim its own type bytes")
	}
	if l.match(0x03) {
		t.Error("layer claims a foreign type byte")
	}
}

func TestLayerDispatch(t *testing.T) {
	l := NewLayer([]byte{0x02}, nil, false)

	client, server := net.Pipe()
	defer client.Close()

	go l.handleConn(server, 0x02)

	conn, err := l.Accept()
	if err != nil {
		t.Fatal(err)
	}

	go client.Write([]byte("payload"))

	buf := make([]byte, 7)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "payload" {
		t.Errorf("got %q, expected %q", buf, "payload")
	}
}

func TestLayerPreservesTypeByte(t *testing.T) {
	l := NewLayer([]byte{'G'}, nil, true)

	client, server := net.Pipe()
	defer client.Close()

	go l.handleConn(server, 'G')

	conn, err := l.Accept()
	if err != nil {
		t.Fatal(err)
	}

	// The mux consumed 'G' to route the connection; the reader must
	// still see the full request line.
	go client.Write([]byte("ET / HTTP/1.1\r\n"))

	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "GET " {
		t.Errorf("got %q, expected %q", buf, "GET ")
	}
}

func TestLayerClose(t *testing.T) {
	l := NewLayer([]byte{0x02}, nil, false)

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		done <- err
	}()

	l.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("accept on a closed layer returned no error")
		}
	case <-time.After(time.Second):
		t.Fatal("accept did not observe the close")
	}

	// Closing twice is fine.
	l.Close()
}
