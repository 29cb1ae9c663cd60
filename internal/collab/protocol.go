package collab

import (
	"encoding/json"
	"fmt"

	"github.com/inkdrift/inkdrift/internal/crdt"
)

// Message is the envelope of every frame exchanged with the relay.
type Message struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeWelcome = "welcome"
	TypeError   = "error"

	// Document sync. A peer announces its state vector with sync.step1 and
	// receives what it lacks as sync.step2. Later edits flow as sync.update.
	TypeSyncStep1  = "sync.step1"
	TypeSyncStep2  = "sync.step2"
	TypeSyncUpdate = "sync.update"

	TypeAwarenessUpdate = "awareness.update"
)

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	RoomID   string `json:"roomId"`
	PeerName string `json:"peerName,omitempty"`
}

type SyncStep1Payload struct {
	StateVector crdt.StateVector `json:"stateVector"`
}

// UpdatePayload carries an encoded CRDT or awareness update.
type UpdatePayload struct {
	Update json.RawMessage `json:"update"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage marshals payload into a message of the given type.
func NewMessage(typ string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Message{Type: typ, Payload: raw}, nil
}

// UpdateMessage wraps an encoded update, which is already JSON.
func UpdateMessage(typ string, update []byte) *Message {
	raw, _ := json.Marshal(UpdatePayload{Update: update})
	return &Message{Type: typ, Payload: raw}
}

func errorMessage(format string, args ...any) *Message {
	raw, _ := json.Marshal(ErrorPayload{Message: fmt.Sprintf(format, args...)})
	return &Message{Type: TypeError, Payload: raw}
}
