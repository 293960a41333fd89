// Package ws wraps gorilla WebSocket connections behind the sink capability
// used by the registry, the router, and the presence notifier.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Options configures the per-connection transport behavior.
type Options struct {
	SendBuffer     int           // outbound channel capacity
	WriteTimeout   time.Duration // per-frame write deadline
	ReadTimeout    time.Duration // read deadline, refreshed on pong
	PingInterval   time.Duration // heartbeat interval
	MaxMessageSize int64         // inbound frame size limit
}

// Connection binds one identity to one live WebSocket transport. All writes
// go through a single writer goroutine fed by a buffered channel; TrySend
// never blocks and drops the payload when the buffer is full or the
// connection is closing.
type Connection struct {
	conn      *websocket.Conn
	identity  string
	sendCh    chan []byte
	opts      Options
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded WebSocket connection and starts its writer
// goroutine.
func NewConnection(conn *websocket.Conn, identity string, opts Options) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:     conn,
		identity: identity,
		sendCh:   make(chan []byte, opts.SendBuffer),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}

	conn.SetReadLimit(opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	})

	go c.writeLoop()
	return c
}

// Identity returns the identity bound to this connection.
func (c *Connection) Identity() string {
	return c.identity
}

// TrySend queues a payload for delivery. It reports false, without blocking,
// when the connection is closing or the outbound buffer is full; the payload
// is dropped in both cases.
func (c *Connection) TrySend(payload []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	select {
	case c.sendCh <- payload:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"identity": c.identity,
		}).Warn("Outbound buffer full, dropping frame")
		return false
	}
}

// ReadMessage blocks for the next text frame from the client.
func (c *Connection) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
		// Binary and control frames are not part of the protocol; skip.
	}
}

// Close tears down the transport. Safe to call from multiple goroutines;
// only the first call has any effect.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// writeLoop is the single writer for the underlying connection. It also owns
// the heartbeat ticker so pings serialize with data frames.
func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.closeFromWriter(err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.closeFromWriter(err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.closeFromWriter(err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) closeFromWriter(err error) {
	logrus.WithFields(logrus.Fields{
		"identity": c.identity,
		"error":    err,
	}).Debug("Write failed, closing connection")
	_ = c.Close()
}
