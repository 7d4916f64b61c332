package gateway

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/bosswatch/go/internal/worldboss"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
)

// MessageType is the "type" field of every frame pushed to clients.
type MessageType string

const (
	MessageTypeSnapshot       MessageType = "Snapshot"
	MessageTypeSessionExpired MessageType = "SessionExpired"
	MessageTypePollingStopped MessageType = "PollingStopped"
	MessageTypePollingResumed MessageType = "PollingResumed"
)

// Message is the envelope written to WebSocket clients.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func newMessage(typ MessageType, at time.Time, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: typ, Timestamp: at.UTC(), Data: data})
}

func snapshotMessage(snap worldboss.Snapshot) ([]byte, error) {
	return newMessage(MessageTypeSnapshot, snap.Now, snap)
}

// forwardedKinds are the transitions clients care about beyond snapshots.
var forwardedKinds = map[events.Kind]MessageType{
	events.KindSessionExpired: MessageTypeSessionExpired,
	events.KindPollingStopped: MessageTypePollingStopped,
	events.KindPollingResumed: MessageTypePollingResumed,
}
