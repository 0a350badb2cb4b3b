// Package brokerws implements the rendezvous broker over API Gateway
// WebSocket events: connection lifecycle, client/gatekeeper registries,
// pairing, and envelope routing.
package brokerws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message types exchanged over broker connections.
const (
	ClientPingMessageType               = "client.ping"
	ClientPongMessageType               = "client.pong"
	ClientRequestMessageType            = "client.request"
	ClientResponseMessageType           = "client.response"
	ClientDisconnectMessageType         = "client.disconnect"
	ClientErrorMessageType              = "client.error"
	ClientConnectionOverrideMessageType = "client.connectionOverride"
	BrokerErrorMessageType              = "broker.error"
)

// Record lifetimes. Pairs expire before the client records they reference.
const (
	ClientConnectionTTL     = 24 * time.Hour
	GateKeeperConnectionTTL = 30 * time.Minute
	ConnectionPairTTL       = 30 * time.Minute
)

// BrokerEnvelope is the canonical message wrapper exchanged over every open
// connection. Payload is a JSON-encoded BrokerPayload. The fragmentation
// fields are reserved: the router neither splits nor reassembles, and
// unfragmented envelopes carry fragmentNo = fragmentCount = -1.
type BrokerEnvelope struct {
	ID                   string `json:"id"`
	ConnectionName       string `json:"connectionName"`
	Type                 string `json:"type"`
	Time                 int64  `json:"time,omitempty"`
	ResponseOf           string `json:"responseOf,omitempty"`
	SourceConnectionID   string `json:"sourceConnectionId,omitempty"`
	SourceConnectionType string `json:"sourceConnectionType,omitempty"`
	TargetConnectionID   string `json:"targetConnectionId,omitempty"`
	TargetConnectionType string `json:"targetConnectionType,omitempty"`
	Payload              string `json:"payload"`
	Fragmented           bool   `json:"fragmented"`
	FragmentNo           int    `json:"fragmentNo"`
	FragmentCount        int    `json:"fragmentCount"`
}

// BrokerPayload holds either application data or an error, never both.
type BrokerPayload struct {
	Data  interface{} `json:"data,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Type       string   `json:"type"`
	Message    string   `json:"message,omitempty"`
	StackTrace []string `json:"stackTrace,omitempty"`
	Code       int      `json:"code,omitempty"`
	Internal   bool     `json:"internal,omitempty"`
}

// ParseEnvelope parses a broker envelope from a JSON message body.
func ParseEnvelope(body string) (*BrokerEnvelope, error) {
	var envelope BrokerEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("invalid broker envelope: %w", err)
	}
	return &envelope, nil
}

// ParsePayload decodes the envelope's serialized payload.
func (e *BrokerEnvelope) ParsePayload() (*BrokerPayload, error) {
	var payload BrokerPayload
	if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
		return nil, fmt.Errorf("invalid broker payload: %w", err)
	}
	return &payload, nil
}

// Marshal serializes the envelope for a PostToConnection push.
func (e *BrokerEnvelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshalling broker envelope: %w", err)
	}
	return data, nil
}

// NewEnvelope builds a broker-originated envelope with a fresh id and the
// given payload serialized in place.
func NewEnvelope(msgType, connectionName, targetConnectionID, responseOf, targetConnectionType string, payload BrokerPayload) (*BrokerEnvelope, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling broker payload: %w", err)
	}
	return &BrokerEnvelope{
		ID:                   uuid.NewString(),
		ConnectionName:       connectionName,
		Type:                 msgType,
		Time:                 time.Now().UnixMilli(),
		ResponseOf:           responseOf,
		SourceConnectionType: BrokerConnectionType,
		TargetConnectionID:   targetConnectionID,
		TargetConnectionType: targetConnectionType,
		Payload:              string(payloadBytes),
		Fragmented:           false,
		FragmentNo:           -1,
		FragmentCount:        -1,
	}, nil
}

// NewErrorEnvelope builds the broker.error response for a failed request,
// correlated via responseOf and addressed back to the sender's connection.
func NewErrorEnvelope(request *BrokerEnvelope, senderConnectionID, errorType, message string, code int) *BrokerEnvelope {
	envelope, _ := NewEnvelope(
		BrokerErrorMessageType,
		request.ConnectionName,
		senderConnectionID,
		request.ID,
		request.SourceConnectionType,
		BrokerPayload{
			Error: &ErrorInfo{
				Type:     errorType,
				Message:  message,
				Code:     code,
				Internal: true,
			},
		},
	)
	return envelope
}
