package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// ErrSlowConsumer is returned by Send when a client's outbound buffer
// is full. The registry reacts by dropping the connection: a peer that
// can't keep up with chat traffic is indistinguishable from a dead one.
var ErrSlowConsumer = errors.New("ws: send buffer full")

var errClosed = errors.New("ws: client closed")

// Client wraps one websocket connection with a buffered outbound
// queue. Broadcast delivery goes through Send (non-blocking); the
// write pump is the only goroutine that touches the underlying
// connection for writes, which is what gorilla/websocket requires.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues a payload for delivery. Never blocks: a full buffer or a
// closed client reports an error instead of stalling the broadcaster.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close tears the client down. Safe to call from any goroutine and
// more than once; the write pump exits on the done signal and closes
// the underlying connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// WritePump drains the send queue onto the wire and keeps the
// connection alive with pings. Runs in its own goroutine per client;
// returns when the client is closed or the peer stops accepting
// writes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadMessage reads the next inbound frame, refreshing the read
// deadline. Used by the serve loops; any error means the connection is
// done.
func (c *Client) ReadMessage() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}

// prepareRead sets the read-side limits and pong handling. Called once
// before the receive loop starts.
func (c *Client) prepareRead() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}
