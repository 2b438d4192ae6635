package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport timeouts.
const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

// Conn is one established connection. ReadMessage blocks until a frame
// arrives; any read error means the connection is no longer usable.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer establishes connections for the Client. WSDialer is the
// gorilla-backed default; tests may substitute their own.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials WebSocket connections. The zero value is usable.
type WSDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshake}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &wsConn{conn: conn, writeTimeout: writeTimeout}, nil
}

// wsConn wraps a gorilla connection. Writes are serialized; gorilla allows
// one concurrent reader and one concurrent writer only.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends the closing handshake and tears the connection down. Safe to
// call more than once and concurrently with a blocked read.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
