// Package realtime pushes domain events to connected websocket clients,
// grouped by channel, optionally fanned out across instances through redis.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the frame every client receives
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sentAt"`
}

// NewEnvelope encodes payload into an envelope for channel
func NewEnvelope(channel, event string, payload any, now time.Time) (*Envelope, error) {
	env := &Envelope{Event: event, Channel: channel, SentAt: now.UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Encode returns the wire form of the envelope
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a wire frame
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Channel == "" || env.Event == "" {
		return nil, fmt.Errorf("decode envelope: missing channel or event")
	}
	return &env, nil
}
