package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/idkrafsan/BetTracker/models"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffer size for outbound messages
	sendBufferSize = 16
)

// Message types exchanged with dashboard clients
const (
	MessageTypeDashboard = "dashboard"
	MessageTypeSubscribe = "subscribe"
	MessageTypeHeartbeat = "heartbeat"
	MessageTypeError     = "error"
)

// ServerMessage is pushed to clients
type ServerMessage struct {
	Type      string            `json:"type"`
	Dashboard *models.Dashboard `json:"dashboard,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ClientMessage is read from clients. A subscribe message switches the
// dashboard period the client receives.
type ClientMessage struct {
	Type   string `json:"type"`
	Period string `json:"period,omitempty"`
}

// Client is one websocket connection. Its period is owned by the hub loop.
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan ServerMessage
	done   chan struct{}
	hub    *Hub
	period models.Period
}

func newClient(id string, conn *websocket.Conn, hub *Hub, period models.Period) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan ServerMessage, sendBufferSize),
		done:   make(chan struct{}),
		hub:    hub,
		period: period,
	}
}

// readPump reads client messages until the connection fails, then unregisters
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("clientID", c.ID).Debug("Dashboard client closed unexpectedly")
			}
			return
		}

		switch msg.Type {
		case MessageTypeSubscribe:
			period, err := models.ParsePeriod(msg.Period)
			if err != nil {
				c.trySend(ServerMessage{Type: MessageTypeError, Error: err.Error(), Timestamp: time.Now()})
				continue
			}
			c.hub.changePeriod(c, period)
		case MessageTypeHeartbeat:
			c.trySend(ServerMessage{Type: MessageTypeHeartbeat, Timestamp: time.Now()})
		default:
			c.trySend(ServerMessage{Type: MessageTypeError, Error: "unknown message type: " + msg.Type, Timestamp: time.Now()})
		}
	}
}

// writePump writes queued messages and pings until the hub drops the client
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				log.WithError(err).WithField("clientID", c.ID).Debug("Dashboard client write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues a message without blocking; false means the buffer is full
func (c *Client) trySend(msg ServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
