package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn presents a WebSocket as a byte stream. Frames may span or share
// binary messages; writes are serialized because gorilla allows one writer.
type wsConn struct {
	ws           *websocket.Conn
	mode         Mode
	writeTimeout time.Duration

	r       io.Reader
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// WrapWebSocket adapts an established WebSocket (client or server side).
func WrapWebSocket(ws *websocket.Conn, writeTimeout time.Duration) Conn {
	return &wsConn{ws: ws, mode: ModeWebSocket, writeTimeout: writeTimeout}
}

func (c *wsConn) Mode() Mode { return c.mode }

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			mt, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
				continue
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if errors.Is(err, io.EOF) {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
