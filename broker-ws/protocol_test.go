package brokerws

import (
	"testing"

	"github.com/tj/assert"
)

func TestEnvelope(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		envelope, err := NewEnvelope(ClientRequestMessageType, "svc-a", "target-1", "", ClientConnectionType,
			BrokerPayload{Data: map[string]interface{}{"q": "1"}})
		assert.NoError(t, err)
		assert.NotEmpty(t, envelope.ID)
		assert.Equal(t, BrokerConnectionType, envelope.SourceConnectionType)
		assert.False(t, envelope.Fragmented)
		assert.Equal(t, -1, envelope.FragmentNo)
		assert.Equal(t, -1, envelope.FragmentCount)

		data, err := envelope.Marshal()
		assert.NoError(t, err)

		parsed, err := ParseEnvelope(string(data))
		assert.NoError(t, err)
		assert.Equal(t, envelope.ID, parsed.ID)
		assert.Equal(t, ClientRequestMessageType, parsed.Type)
		assert.Equal(t, "svc-a", parsed.ConnectionName)
		assert.Equal(t, "target-1", parsed.TargetConnectionID)
		assert.Equal(t, envelope.Payload, parsed.Payload)

		payload, err := parsed.ParsePayload()
		assert.NoError(t, err)
		assert.Nil(t, payload.Error)
		assert.Equal(t, map[string]interface{}{"q": "1"}, payload.Data)
	})

	t.Run("error payload deserializes without data", func(t *testing.T) {
		envelope, err := NewEnvelope(BrokerErrorMessageType, "svc-a", "gk-1", "req-1", GateKeeperConnectionType,
			BrokerPayload{Error: &ErrorInfo{Type: "NoClientConnectionFound", Code: 404}})
		assert.NoError(t, err)

		data, err := envelope.Marshal()
		assert.NoError(t, err)
		parsed, err := ParseEnvelope(string(data))
		assert.NoError(t, err)

		payload, err := parsed.ParsePayload()
		assert.NoError(t, err)
		assert.Nil(t, payload.Data)
		assert.NotNil(t, payload.Error)
		assert.Equal(t, "NoClientConnectionFound", payload.Error.Type)
		assert.Equal(t, 404, payload.Error.Code)
	})

	t.Run("error envelope correlates with the request", func(t *testing.T) {
		request := &BrokerEnvelope{
			ID:                   "req-1",
			ConnectionName:       "svc-a",
			SourceConnectionType: GateKeeperConnectionType,
		}
		envelope := NewErrorEnvelope(request, "gk-conn-1", "ForwardToClientFailed", "boom", 500)
		assert.Equal(t, BrokerErrorMessageType, envelope.Type)
		assert.Equal(t, "req-1", envelope.ResponseOf)
		assert.Equal(t, "gk-conn-1", envelope.TargetConnectionID)
		assert.Equal(t, GateKeeperConnectionType, envelope.TargetConnectionType)
		assert.Equal(t, BrokerConnectionType, envelope.SourceConnectionType)

		payload, err := envelope.ParsePayload()
		assert.NoError(t, err)
		assert.Equal(t, "ForwardToClientFailed", payload.Error.Type)
		assert.Equal(t, 500, payload.Error.Code)
		assert.True(t, payload.Error.Internal)
	})

	t.Run("invalid body", func(t *testing.T) {
		_, err := ParseEnvelope("not json")
		assert.Error(t, err)
	})
}
