package live

import (
	"bytes"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn exposes a WebSocket as the byte stream a STOMP session expects.
// Reads flow across message boundaries. Writes are buffered until a whole
// frame (NUL terminated) or a heart-beat is complete, then sent as one text
// message, which is what SockJS-style brokers require.
type wsConn struct {
	conn   *websocket.Conn
	reader io.Reader

	wmu     sync.Mutex
	pending bytes.Buffer
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.pending.Write(p)
	if !frameComplete(c.pending.Bytes()) {
		return len(p), nil
	}
	err := c.conn.WriteMessage(websocket.TextMessage, c.pending.Bytes())
	c.pending.Reset()
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func frameComplete(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if b[len(b)-1] == 0 {
		return true
	}
	// Heart-beats are bare end-of-lines
	return len(bytes.Trim(b, "\r\n")) == 0
}
