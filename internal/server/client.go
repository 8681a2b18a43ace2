package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/husky/internal/logging"
	"github.com/muurk/husky/internal/protocol"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer.
	maxMessageSize = 8192

	// Outbound frames buffered per client before it is considered stuck.
	sendBuffer = 256
)

// Client is one relay WebSocket connection
type Client struct {
	ID      string
	hub     *Hub
	conn    *websocket.Conn
	remote  string
	send    chan string
	limiter *rate.Limiter

	// name is the logged in user, guarded by hub.mu
	name string

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an upgraded connection. A zero limit disables rate limiting.
func NewClient(hub *Hub, conn *websocket.Conn, limit float64, burst int) *Client {
	c := &Client{
		ID:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan string, sendBuffer),
		done:   make(chan struct{}),
	}
	if limit > 0 {
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
	return c
}

// Enqueue queues a frame for the write pump. A client whose buffer is full
// is disconnected.
func (c *Client) Enqueue(frame string) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		logging.Warn("Send buffer full, dropping client",
			zap.String("client_id", c.ID),
			zap.String("remote_addr", c.remote),
		)
		c.Close()
	}
}

// Close asks the write pump to send a close frame and drop the socket,
// which in turn ends the read pump. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) deliver(out []delivery) {
	for _, d := range out {
		d.to.Enqueue(d.frame)
	}
}

// ReadPump reads frames from the connection and applies them to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.deliver(c.hub.Unregister(c))
		c.Close()
		logging.LogConnection(c.remote, "connection_closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("WebSocket read error",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
			}
			return
		}

		frame := string(message)
		logging.LogFrame(c.remote, logging.DirectionIn, frame)

		if c.limiter != nil && !c.limiter.Allow() {
			logging.Warn("Rate limit exceeded", zap.String("client_id", c.ID))
			c.Enqueue(protocol.Encode(protocol.FlagFault, ""))
			continue
		}

		out, closeConn := c.hub.Handle(c, frame)
		c.deliver(out)
		if closeConn {
			return
		}
	}
}

// WritePump writes queued frames and keepalive pings to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				logging.Warn("Failed to write frame",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
				return
			}
			logging.LogFrame(c.remote, logging.DirectionOut, frame)

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
