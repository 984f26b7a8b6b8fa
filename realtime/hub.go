// realtime/hub.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
	"github.com/GPT-Gradient/xynergy-core-sub001/model"
)

// envelope is the cross-instance wire form on the pub/sub channel. Origin
// lets the publishing instance skip its own message when it loops back,
// since it already delivered to its local subscribers at publish time.
type envelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// Hub tracks the locally-attached connections of one gateway instance and
// relays published events across instances through the shared pub/sub
// channel. Room names are "{tenantId}:{topic}".
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	rdb        *redis.Client
	channel    string
	instanceID string
}

func NewHub(rdb *redis.Client, channel string) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]struct{}),
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.NewString(),
	}
}

// Run relays remote events until ctx is cancelled. go-redis resubscribes
// transparently after connection loss.
func (h *Hub) Run(ctx context.Context) {
	sub := h.rdb.Subscribe(ctx, h.channel)
	defer sub.Close()

	logger.Info("Realtime bridge subscribed",
		zap.String("channel", h.channel),
		zap.String("instanceID", h.instanceID))

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.relay([]byte(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}

// Publish broadcasts an event to the tenant's topic room: locally-attached
// subscribers get it immediately, and the envelope is republished so every
// other instance relays it to its own subscribers.
func (h *Hub) Publish(ctx context.Context, tenantID, topic, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	payload, err := json.Marshal(model.ServerMessage{
		Event:     event,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	room := roomName(tenantID, topic)
	h.deliver(room, payload)

	env, err := json.Marshal(envelope{Origin: h.instanceID, Room: room, Payload: payload})
	if err != nil {
		return err
	}
	if err := h.rdb.Publish(ctx, h.channel, env).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Register adds a connection; subscription state starts empty.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger.Debug("Realtime client connected",
		zap.String("userID", c.UserID),
		zap.String("tenantID", c.TenantID))
}

// Unregister clears all room membership and closes the send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for topic := range c.topics {
		h.leaveRoom(c, roomName(c.TenantID, topic))
	}
	h.mu.Unlock()
	close(c.send)
	logger.Debug("Realtime client disconnected",
		zap.String("userID", c.UserID),
		zap.String("tenantID", c.TenantID))
}

// Subscribe adds the client to its tenant's rooms for the given topics.
func (h *Hub) Subscribe(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	for _, topic := range topics {
		c.topics[topic] = struct{}{}
		room := roomName(c.TenantID, topic)
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*Client]struct{})
		}
		h.rooms[room][c] = struct{}{}
	}
}

// Unsubscribe removes the client from its tenant's rooms for the topics.
func (h *Hub) Unsubscribe(c *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		delete(c.topics, topic)
		h.leaveRoom(c, roomName(c.TenantID, topic))
	}
}

// ConnectionCount reports locally-attached connections for health output.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) relay(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warn("Dropping malformed realtime envelope", zap.Error(err))
		return
	}
	if env.Origin == h.instanceID {
		return // already delivered locally at publish time
	}
	h.deliver(env.Room, env.Payload)
}

func (h *Hub) deliver(room string, payload []byte) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// A full send buffer means the client stopped draining; drop it rather
	// than block delivery to the rest of the room
	for _, c := range slow {
		logger.Warn("Dropping slow realtime client",
			zap.String("userID", c.UserID),
			zap.String("room", room))
		h.Unregister(c)
	}
}

// leaveRoom must be called with the lock held.
func (h *Hub) leaveRoom(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func roomName(tenantID, topic string) string {
	return tenantID + ":" + topic
}
