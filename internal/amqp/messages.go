package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change operations.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// ChangeMessage announces that a user's ledger changed. Consumers refetch
// rather than trusting a payload, so redelivery is harmless.
type ChangeMessage struct {
	UserID     string    `json:"userId"`
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChangeMessage stamps a change with the current time.
func NewChangeMessage(userID, collection, op, id string) *ChangeMessage {
	return &ChangeMessage{
		UserID:     userID,
		Collection: collection,
		Op:         op,
		ID:         id,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and requires a user id.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("change message without userId")
	}
	return &msg, nil
}
