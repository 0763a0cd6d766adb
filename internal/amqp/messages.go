package amqp

import (
	"encoding/json"
	"time"

	"fincache/internal/repository"
)

// ChangeMessage announces a mutation that reached the remote. It carries no
// payload; receivers refresh the affected domain from the remote themselves.
type ChangeMessage struct {
	Resource  string    `json:"resource"`
	Op        string    `json:"op"`
	ID        int64     `json:"id,omitempty"`
	UserID    int64     `json:"userId"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage stamps c with the publishing process's origin
func NewChangeMessage(c repository.Change, origin string) *ChangeMessage {
	return &ChangeMessage{
		Resource:  c.Domain,
		Op:        c.Op,
		ID:        c.ID,
		UserID:    c.UserID,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// Change converts the message back to the engine's change record
func (m *ChangeMessage) Change() repository.Change {
	return repository.Change{Domain: m.Resource, Op: m.Op, ID: m.ID, UserID: m.UserID}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
