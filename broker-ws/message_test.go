package brokerws

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func newMessageHandler() (*MessageHandler, *fakeClientStore, *fakePairStore, *fakePoster) {
	clients := newFakeClientStore()
	pairs := newFakePairStore()
	poster := newFakePoster()
	handler := &MessageHandler{
		Clients: clients,
		Pairs:   pairs,
		Posters: poster,
		Logger:  zerolog.Nop(),
	}
	return handler, clients, pairs, poster
}

func requestEnvelope(name string) *BrokerEnvelope {
	envelope, _ := NewEnvelope(ClientRequestMessageType, name, "", "", ClientConnectionType,
		BrokerPayload{Data: map[string]interface{}{"action": "invoke"}})
	envelope.ID = "req-1"
	envelope.SourceConnectionType = GateKeeperConnectionType
	return envelope
}

func TestForwardToClient(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards to the named client and records the pairing first", func(t *testing.T) {
		handler, clients, pairs, poster := newMessageHandler()
		clients.Save(ctx, "svc-a", "C1")

		paired := false
		poster.onPost = func(connectionID string) {
			if connectionID == "C1" {
				paired = pairs.has("C1", "G1")
			}
		}

		resp, err := handler.HandleEvent(ctx, messageRequest("G1", requestEnvelope("svc-a")))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, "Ok", resp.Body)

		forwarded := poster.postsTo("C1")
		assert.Len(t, forwarded, 1)
		assert.Equal(t, "req-1", forwarded[0].ID)
		assert.Equal(t, "G1", forwarded[0].SourceConnectionID)
		assert.True(t, paired)
	})

	t.Run("falls back to the default client connection", func(t *testing.T) {
		handler, clients, _, poster := newMessageHandler()
		clients.Save(ctx, DefaultClientConnectionName, "C-default")

		resp, err := handler.HandleEvent(ctx, messageRequest("G1", requestEnvelope("svc-missing")))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Len(t, poster.postsTo("C-default"), 1)
	})

	t.Run("default fallback is scoped by api key", func(t *testing.T) {
		handler, clients, _, poster := newMessageHandler()
		clients.Save(ctx, "default##k1", "C-k1")

		req := messageRequest("G1", requestEnvelope("svc-missing"))
		req.RequestContext.Authorizer = map[string]interface{}{"apiKey": "k1"}

		resp, err := handler.HandleEvent(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Len(t, poster.postsTo("C-k1"), 1)
	})

	t.Run("no client connection responds 404 with an error envelope", func(t *testing.T) {
		handler, _, _, poster := newMessageHandler()

		resp, err := handler.HandleEvent(ctx, messageRequest("G1", requestEnvelope("svc-a")))
		assert.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
		assert.Equal(t, "No client connection exist", resp.Body)

		errors := poster.postsTo("G1")
		assert.Len(t, errors, 1)
		assert.Equal(t, BrokerErrorMessageType, errors[0].Type)
		assert.Equal(t, "req-1", errors[0].ResponseOf)
		payload, err := errors[0].ParsePayload()
		assert.NoError(t, err)
		assert.Equal(t, "NoClientConnectionFound", payload.Error.Type)
		assert.Equal(t, 404, payload.Error.Code)
		assert.Equal(t, 1, poster.count())
	})

	t.Run("registry lookup failure responds 500", func(t *testing.T) {
		handler, clients, _, poster := newMessageHandler()
		clients.findErr = fmt.Errorf("table unavailable")

		resp, err := handler.HandleEvent(ctx, messageRequest("G1", requestEnvelope("svc-a")))
		assert.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)

		errors := poster.postsTo("G1")
		assert.Len(t, errors, 1)
		payload, err := errors[0].ParsePayload()
		assert.NoError(t, err)
		assert.Equal(t, "GetClientConnectionFailed", payload.Error.Type)
		assert.Equal(t, 500, payload.Error.Code)
	})

	t.Run("pairing failure does not block the forward", func(t *testing.T) {
		handler, clients, pairs, poster := newMessageHandler()
		clients.Save(ctx, "svc-a", "C1")
		pairs.saveErr = fmt.Errorf("transaction cancelled")

		resp, err := handler.HandleEvent(ctx, messageRequest("G1", requestEnvelope("svc-a")))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Len(t, poster.postsTo("C1"), 1)
	})

	t.Run("delivery failure responds 500 with an error envelope", func(t *testing.T) {
		handler, clients, _, poster := newMessageHandler()
		clients.Save(ctx, "svc-a", "C1")
		poster.failConnection("C1")

		resp, err := handler.HandleEvent(ctx, messageRequest("G1", requestEnvelope("svc-a")))
		assert.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)

		errors := poster.postsTo("G1")
		assert.Len(t, errors, 1)
		payload, err := errors[0].ParsePayload()
		assert.NoError(t, err)
		assert.Equal(t, "ForwardToClientFailed", payload.Error.Type)
		assert.Equal(t, 500, payload.Error.Code)
	})
}

func TestForwardToTarget(t *testing.T) {
	ctx := context.Background()

	responseEnvelope := func(targetID string) *BrokerEnvelope {
		envelope, _ := NewEnvelope(ClientResponseMessageType, "svc-a", targetID, "req-1", GateKeeperConnectionType,
			BrokerPayload{Data: map[string]interface{}{"result": "ok"}})
		envelope.SourceConnectionType = ClientConnectionType
		return envelope
	}

	t.Run("forwards to the explicit target connection", func(t *testing.T) {
		handler, _, _, poster := newMessageHandler()

		resp, err := handler.HandleEvent(ctx, messageRequest("C1", responseEnvelope("G1")))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		forwarded := poster.postsTo("G1")
		assert.Len(t, forwarded, 1)
		assert.Equal(t, "C1", forwarded[0].SourceConnectionID)
		assert.Equal(t, "req-1", forwarded[0].ResponseOf)
	})

	t.Run("missing target id responds 400 with an error envelope", func(t *testing.T) {
		handler, _, _, poster := newMessageHandler()

		resp, err := handler.HandleEvent(ctx, messageRequest("C1", responseEnvelope("")))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)

		errors := poster.postsTo("C1")
		assert.Len(t, errors, 1)
		payload, err := errors[0].ParsePayload()
		assert.NoError(t, err)
		assert.Equal(t, "InvalidRequest", payload.Error.Type)
		assert.Equal(t, 400, payload.Error.Code)
	})

	t.Run("delivery failure responds 500", func(t *testing.T) {
		handler, _, _, poster := newMessageHandler()
		poster.failConnection("G1")

		resp, err := handler.HandleEvent(ctx, messageRequest("C1", responseEnvelope("G1")))
		assert.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)

		errors := poster.postsTo("C1")
		assert.Len(t, errors, 1)
		payload, err := errors[0].ParsePayload()
		assert.NoError(t, err)
		assert.Equal(t, "ForwardToTargetFailed", payload.Error.Type)
	})
}

func TestMessageValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing connection id responds 400", func(t *testing.T) {
		handler, _, _, _ := newMessageHandler()

		resp, err := handler.HandleEvent(ctx, messageRequest("", requestEnvelope("svc-a")))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("missing body responds 400", func(t *testing.T) {
		handler, _, _, _ := newMessageHandler()

		req := messageRequest("G1", requestEnvelope("svc-a"))
		req.Body = ""
		resp, err := handler.HandleEvent(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("malformed body responds 400 without an error envelope", func(t *testing.T) {
		handler, _, _, poster := newMessageHandler()

		req := messageRequest("G1", requestEnvelope("svc-a"))
		req.Body = "not json"
		resp, err := handler.HandleEvent(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, 0, poster.count())
	})

	t.Run("empty connection name responds 400 with an error envelope", func(t *testing.T) {
		handler, _, _, poster := newMessageHandler()

		resp, err := handler.HandleEvent(ctx, messageRequest("G1", requestEnvelope("")))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)

		errors := poster.postsTo("G1")
		assert.Len(t, errors, 1)
		payload, err := errors[0].ParsePayload()
		assert.NoError(t, err)
		assert.Equal(t, "InvalidRequest", payload.Error.Type)
	})
}
