package ws

import (
	"encoding/json"
	"time"
)

// Message is the envelope pushed to websocket subscribers.
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}

// Message types emitted by the monitor.
const (
	MessageTypeSnapshot   = "snapshot"
	MessageTypeAlert      = "alert"
	MessageTypeCycleError = "cycle_error"
	MessageTypeHeartbeat  = "heartbeat"
	MessageTypeLog        = "log"
)

// NewMessage builds a timestamped message.
func NewMessage(typ string, data map[string]interface{}) Message {
	return Message{Type: typ, Data: data, Timestamp: time.Now().UTC()}
}

// Marshal marshals the message to JSON bytes.
func (m *Message) Marshal() ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return json.Marshal(m)
}
