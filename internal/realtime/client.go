package realtime

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"auconnect/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 << 10
	sendBufferSize = 64
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

// Client is one authenticated WebSocket connection. All writes go through
// the send queue and are performed by writePump, the only writer of conn.
type Client struct {
	id      string
	userID  string
	conn    *websocket.Conn
	manager *Manager

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(m *Manager, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		manager: m,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// ID returns the unique connection id.
func (c *Client) ID() string { return c.id }

// enqueue never blocks: a slow or closed connection loses the frame.
func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

func (c *Client) emit(event string, data interface{}) error {
	payload, err := json.Marshal(model.OutboundEvent{Event: event, Data: data})
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Client) emitError(message string) {
	if err := c.emit(model.EventError, model.ErrorPayload{Message: message}); err != nil {
		log.Printf("[WebSocket] ❌ Failed to report error to %s: %v", c.userID, err)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump reads frames until the transport closes. Handling errors are
// reported to the client as error events and never end the connection.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Read error for %s: %v", c.userID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var event model.InboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.emitError("invalid event payload")
			continue
		}
		c.manager.handleEvent(c, event)
	}
}

// writePump drains the send queue and keeps the transport alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[WebSocket] Write error for %s: %v", c.userID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
