package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines message types exchanged over the control socket
type MessageType string

const (
	// MessageTypeSnapshot carries the full tunnel list
	MessageTypeSnapshot MessageType = "snapshot"
	// MessageTypeStatus carries one status change
	MessageTypeStatus MessageType = "status"
	// MessageTypeAlert carries a user-visible failure
	MessageTypeAlert MessageType = "alert"
	// MessageTypeReport carries the summary of a finished reconcile pass
	MessageTypeReport MessageType = "report"
	// MessageTypeToggle asks to start or stop a tunnel
	MessageTypeToggle MessageType = "toggle"
	// MessageTypeDisconnect asks to stop every active tunnel
	MessageTypeDisconnect MessageType = "disconnect"
	// MessageTypeReload asks for a reconcile pass
	MessageTypeReload MessageType = "reload"
	// MessageTypeError indicates a rejected intent
	MessageTypeError MessageType = "error"
)

// ProtocolVersion is the control socket protocol version
const ProtocolVersion = "1.0.0"

// Message represents the base structure for all control socket messages
type Message struct {
	// Type is the message type
	Type MessageType `json:"type"`
	// Version is the protocol version
	Version string `json:"version"`
	// Timestamp is when the message was created (in milliseconds since epoch)
	Timestamp int64 `json:"timestamp"`
	// Payload contains the actual message data
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a new message with specified type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadJSON json.RawMessage
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to convert payload to JSON: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Version:   ProtocolVersion,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payloadJSON,
	}, nil
}

// ParsePayload parses message payload into the provided struct
func (m *Message) ParsePayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// SnapshotPayload is the full tunnel list
type SnapshotPayload struct {
	Tunnels []TunnelHandle `json:"tunnels"`
	// AnyActive is set when one tunnel holds the active slot
	AnyActive bool `json:"any_active"`
}

// AlertPayload is a user-visible failure description
type AlertPayload struct {
	Message string `json:"message"`
}

// ReportPayload is the wire form of a PassReport
type ReportPayload struct {
	// RequestID is set on the reply to a reload intent and empty on broadcasts
	RequestID  string   `json:"request_id,omitempty"`
	PassID     string   `json:"pass_id"`
	DurationMs int64    `json:"duration_ms"`
	Removed    int      `json:"removed"`
	Created    []string `json:"created"`
	Changed    []string `json:"changed"`
	Errors     []string `json:"errors,omitempty"`
	Failed     bool     `json:"failed"`
}

// NewReportPayload converts a pass report for the wire
func NewReportPayload(r *PassReport) ReportPayload {
	return ReportPayload{
		PassID:     r.PassID,
		DurationMs: r.Duration().Milliseconds(),
		Removed:    r.Removed,
		Created:    r.Created,
		Changed:    r.Changed,
		Errors:     r.ErrorMessages(),
		Failed:     r.Failed(),
	}
}

// ReloadPayload correlates a reload intent with the report of the pass that served it
type ReloadPayload struct {
	RequestID string `json:"request_id"`
}

// TogglePayload names the tunnel a toggle intent applies to
type TogglePayload struct {
	Name string `json:"name"`
}

// ErrorPayload is for error messages
type ErrorPayload struct {
	// Code is the error code
	Code string `json:"code"`
	// Message contains the error details
	Message string `json:"message"`
}
