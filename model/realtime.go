// model/realtime.go
package model

import (
	"encoding/json"
	"time"
)

// ClientMessage is what a connected client sends over the websocket.
type ClientMessage struct {
	Type   string   `json:"type" binding:"required,oneof=subscribe unsubscribe"`
	Topics []string `json:"topics" binding:"required,min=1"`
}

// ServerMessage is what the gateway pushes to subscribed clients.
type ServerMessage struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
