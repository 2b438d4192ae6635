// Package stream implements the real-time event client for the Dual Asset
// Bot dashboard: a single persistent WebSocket connection carrying several
// logically distinct event streams, fanned out to in-process subscribers,
// with automatic reconnection, keepalive, and outbound queuing while
// disconnected.
package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the logical stream an envelope belongs to.
type EventType string

// Event kinds carried over the connection. health_check frames are
// consumed by the connection layer and never reach subscribers.
const (
	EventPriceUpdate      EventType = "price_update"
	EventMarketData       EventType = "market_data"
	EventTradeExecution   EventType = "trade_execution"
	EventTaskStatus       EventType = "task_status"
	EventSystemAlert      EventType = "system_alert"
	EventPortfolioUpdate  EventType = "portfolio_update"
	EventAIRecommendation EventType = "ai_recommendation"
	EventHealthCheck      EventType = "health_check"
)

// IsValid returns true if the kind is one the protocol defines. Envelopes
// with unknown kinds still decode; they just match no subscribers.
func (t EventType) IsValid() bool {
	switch t {
	case EventPriceUpdate, EventMarketData, EventTradeExecution, EventTaskStatus,
		EventSystemAlert, EventPortfolioUpdate, EventAIRecommendation, EventHealthCheck:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (t EventType) String() string {
	return string(t)
}

// Envelope is the wire frame for every message in either direction. Data
// stays raw until a typed adapter interprets it. Timestamp is advisory,
// carried as an RFC3339 string and never parsed on receive.
type Envelope struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// NewEnvelope builds an envelope around payload, stamped with the current
// UTC time. A nil payload produces an envelope without a data field.
func NewEnvelope(kind EventType, payload interface{}) (Envelope, error) {
	env := Envelope{
		Type:      kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		env.Data = data
	}
	return env, nil
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a wire frame. Frames that are not JSON objects or
// carry no type field are rejected.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, MalformedError{Reason: err.Error()}
	}
	if env.Type == "" {
		return Envelope{}, MalformedError{Reason: "missing type field"}
	}
	return env, nil
}
