package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Subprotocol is negotiated on every relay connection.
const Subprotocol = "unileap.relay.v1"

// Version is embedded into every envelope.
const Version = 1

// Envelope types.
const (
	TypeHello          = "hello"
	TypeHelloAck       = "hello_ack"
	TypeStorageChanged = "storage_changed"
	TypeError          = "error"
)

var allowedTypes = map[string]struct{}{
	TypeHello:          {},
	TypeHelloAck:       {},
	TypeStorageChanged: {},
	TypeError:          {},
}

// Envelope is the wire wrapper.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Validate checks the envelope header, not the payload.
func (e Envelope) Validate() error {
	if e.V != Version {
		return fmt.Errorf("invalid protocol version: got=%d want=%d", e.V, Version)
	}
	if e.Type == "" {
		return errors.New("missing type")
	}
	if _, ok := allowedTypes[e.Type]; !ok {
		return fmt.Errorf("unsupported type: %s", e.Type)
	}
	if e.ID == "" {
		return errors.New("missing id")
	}
	if e.TS.IsZero() {
		return errors.New("missing ts")
	}
	if e.Payload == nil {
		return errors.New("missing payload")
	}
	return nil
}

// HelloPayload joins the connection to a profile.
type HelloPayload struct {
	ProfileID string `json:"profile_id"`
	Origin    string `json:"origin"`
}

type HelloAckPayload struct {
	SessionID string `json:"session_id"`
}

// StorageChangedPayload names a changed key. An empty Key means the whole
// store was cleared.
type StorageChangedPayload struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope marshals payload into a fresh envelope.
func NewEnvelope(typ string, payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	id, err := NewEnvelopeID(now)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{V: Version, Type: typ, ID: id, TS: now, Payload: raw}, nil
}
