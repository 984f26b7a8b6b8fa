// realtime/client.go
package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one authenticated websocket connection. Its topic set is guarded
// by the hub's lock; the read and write pumps each own one side of the
// connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	UserID   string
	TenantID string

	topics  map[string]struct{}
	limiter *rate.Limiter

	maxMessageSize int64
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, tenantID string, sendBuffer int, maxMessageSize int64, messagesPerSecond float64, burst int) *Client {
	return &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		UserID:         userID,
		TenantID:       tenantID,
		topics:         make(map[string]struct{}),
		limiter:        rate.NewLimiter(rate.Limit(messagesPerSecond), burst),
		maxMessageSize: maxMessageSize,
	}
}

// ReadPump consumes subscribe/unsubscribe messages until the connection
// drops, then clears all subscription state.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Realtime read error", zap.String("userID", c.UserID), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			logger.Warn("Realtime client exceeding message rate, ignoring message",
				zap.String("userID", c.UserID))
			continue
		}

		var msg model.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil || len(msg.Topics) == 0 {
			logger.Debug("Ignoring malformed realtime message", zap.String("userID", c.UserID))
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.hub.Subscribe(c, msg.Topics...)
		case "unsubscribe":
			c.hub.Unsubscribe(c, msg.Topics...)
		default:
			logger.Debug("Ignoring unknown realtime message type",
				zap.String("userID", c.UserID),
				zap.String("type", msg.Type))
		}
	}
}

// WritePump drains the send buffer and keeps the connection alive with
// periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
