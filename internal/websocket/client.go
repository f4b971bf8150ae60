package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only listen on this
	// channel; inbound frames are control traffic at most.
	maxMessageSize = 512
)

// Client pairs a live subscription with its underlying connection and runs
// the per-connection receive/send tasks. Network I/O happens only here, never
// inside the hub's locks.
type Client struct {
	Sub  *Subscription
	Conn *websocket.Conn
	Log  *zap.Logger
}

// ReadPump drains the connection until it closes, then releases the
// subscription. Inbound payloads are ignored: messages are submitted over
// REST, the live channel is push-only.
func (c *Client) ReadPump() {
	defer func() {
		c.Sub.Close()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Log.Debug("websocket read error",
					zap.String("user_id", c.Sub.UserID.String()), zap.Error(err))
			}
			return
		}
	}
}

// WritePump forwards fan-out deliveries to the connection, one frame per
// message, and keeps the connection alive with pings. It exits when the hub
// drops the subscription or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Sub.Close()
		c.Conn.Close()
	}()
	for {
		select {
		case payload := <-c.Sub.Deliveries():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.Log.Debug("websocket write error",
					zap.String("user_id", c.Sub.UserID.String()), zap.Error(err))
				return
			}
		case <-c.Sub.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
