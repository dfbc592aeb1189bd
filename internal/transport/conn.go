package transport

import (
	"io"
	"net"
	"sync"
	"time"
)

// Conn is one established byte stream to the server.
type Conn interface {
	io.ReadWriteCloser
	Mode() Mode
	RemoteAddr() string
}

// streamConn wraps a TCP or TLS connection.
type streamConn struct {
	net.Conn
	mode         Mode
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newStreamConn(c net.Conn, mode Mode, writeTimeout time.Duration) *streamConn {
	return &streamConn{Conn: c, mode: mode, writeTimeout: writeTimeout}
}

func (c *streamConn) Mode() Mode { return c.mode }

func (c *streamConn) RemoteAddr() string {
	return c.Conn.RemoteAddr().String()
}

func (c *streamConn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}
