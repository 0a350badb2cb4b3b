package brokerws

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
)

// MessageHandler routes inbound data messages. Envelopes addressed to the
// client class are resolved by logical name (recording a pairing on the
// way); everything else is forwarded to the explicitly named target
// connection. Every failure produces exactly one broker.error envelope back
// to the sender plus an HTTP status for the triggering request.
type MessageHandler struct {
	Clients ClientConnectionStore
	Pairs   ConnectionPairStore
	Posters PosterFactory
	Logger  zerolog.Logger
	Metrics *brokercli.Metrics // optional
}

func (h *MessageHandler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	if connID == "" {
		return response(400, "No connection id could be found in the event"), nil
	}
	if req.Body == "" {
		return response(400, "No body could be found in the event"), nil
	}

	envelope, err := ParseEnvelope(req.Body)
	if err != nil {
		h.Logger.Warn().Err(err).Str("connection_id", connID).Msg("invalid broker envelope")
		return response(400, "Invalid broker envelope"), nil
	}

	logger := h.Logger.With().
		Str("connection_id", connID).
		Str("envelope_id", envelope.ID).
		Str("message_type", envelope.Type).
		Str("connection_name", envelope.ConnectionName).
		Logger()

	poster := h.Posters.ForEndpoint(Endpoint(req))

	if envelope.ConnectionName == "" {
		logger.Error().Msg("connection name is empty")
		h.sendError(ctx, logger, poster, envelope, connID,
			"InvalidRequest", "Invalid request. Connection name is empty", 400)
		return response(400, "Connection name is required"), nil
	}

	if envelope.TargetConnectionType == ClientConnectionType {
		return h.forwardToClient(ctx, logger, poster, envelope, connID, apiKeyFromRequest(req)), nil
	}
	return h.forwardToTarget(ctx, logger, poster, envelope, connID), nil
}

func (h *MessageHandler) forwardToClient(ctx context.Context, logger zerolog.Logger, poster ConnectionPoster, envelope *BrokerEnvelope, senderID, apiKey string) events.APIGatewayProxyResponse {
	name := envelope.ConnectionName

	clientID, err := h.Clients.Find(ctx, name)
	if err == nil && clientID == "" {
		defaultName := DefaultName(ClientConnectionType, apiKey)
		logger.Debug().Str("default_name", defaultName).Msg("no client connection found by name, checking default")
		clientID, err = h.Clients.Find(ctx, defaultName)
	}
	if err != nil {
		logger.Error().Err(err).Msg("unable to get client connection")
		h.sendError(ctx, logger, poster, envelope, senderID,
			"GetClientConnectionFailed",
			fmt.Sprintf("Unable to get client connection with name %v: %v", name, err), 500)
		return response(500, "Could not get client connection")
	}
	if clientID == "" {
		logger.Debug().Msg("no client connection could be found")
		h.sendError(ctx, logger, poster, envelope, senderID,
			"NoClientConnectionFound",
			fmt.Sprintf("No client connection could be found either with name %v or default", name), 404)
		return response(404, "No client connection exist")
	}

	// Pairing bookkeeping happens before delivery so the disconnect fan-out
	// can always reach a gatekeeper that got a message through. A failure
	// here is logged but does not block the forward.
	if err := h.Pairs.Save(ctx, name, clientID, senderID); err != nil {
		logger.Warn().Err(err).
			Str("client_connection_id", clientID).
			Msg("unable to pair gatekeeper with client connection")
	}

	envelope.SourceConnectionID = senderID
	if err := post(ctx, poster, clientID, envelope); err != nil {
		logger.Error().Err(err).
			Str("client_connection_id", clientID).
			Msg("unable to forward message to client connection")
		h.metric(ctx, brokercli.ForwardFailedMetric)
		h.sendError(ctx, logger, poster, envelope, senderID,
			"ForwardToClientFailed",
			fmt.Sprintf("Unable to forward message to client connection (name=%v, id=%v): %v", name, clientID, err), 500)
		return response(500, "Could not forward message to client connection")
	}

	logger.Debug().Str("client_connection_id", clientID).Msg("forwarded message to client connection")
	h.metric(ctx, brokercli.ForwardCountMetric)
	return response(200, "Ok")
}

func (h *MessageHandler) forwardToTarget(ctx context.Context, logger zerolog.Logger, poster ConnectionPoster, envelope *BrokerEnvelope, senderID string) events.APIGatewayProxyResponse {
	targetID := envelope.TargetConnectionID
	if targetID == "" {
		logger.Error().Msg("target connection id is empty")
		h.sendError(ctx, logger, poster, envelope, senderID,
			"InvalidRequest", "Invalid request. Target connection id is empty", 400)
		return response(400, "Target connection id is required")
	}

	envelope.SourceConnectionID = senderID
	if err := post(ctx, poster, targetID, envelope); err != nil {
		logger.Error().Err(err).
			Str("target_connection_id", targetID).
			Msg("unable to forward message to target connection")
		h.metric(ctx, brokercli.ForwardFailedMetric)
		h.sendError(ctx, logger, poster, envelope, senderID,
			"ForwardToTargetFailed",
			fmt.Sprintf("Unable to forward message to target connection (name=%v, id=%v): %v", envelope.ConnectionName, targetID, err), 500)
		return response(500, "Could not forward message to target connection")
	}

	logger.Debug().Str("target_connection_id", targetID).Msg("forwarded message to target connection")
	h.metric(ctx, brokercli.ForwardCountMetric)
	return response(200, "Ok")
}

// sendError delivers a broker.error envelope to the sender. Delivery of the
// error itself is best-effort: the sender may already be gone.
func (h *MessageHandler) sendError(ctx context.Context, logger zerolog.Logger, poster ConnectionPoster, request *BrokerEnvelope, senderID, errorType, message string, code int) {
	envelope := NewErrorEnvelope(request, senderID, errorType, message, code)
	if err := post(ctx, poster, senderID, envelope); err != nil {
		logger.Warn().Err(err).Str("error_type", errorType).Msg("failed to send error envelope to sender")
	}
}

func (h *MessageHandler) metric(ctx context.Context, name brokercli.MetricName) {
	if h.Metrics != nil {
		h.Metrics.Event(ctx, name)
	}
}

func apiKeyFromRequest(req events.APIGatewayWebsocketProxyRequest) string {
	if auth, ok := req.RequestContext.Authorizer.(map[string]interface{}); ok {
		apiKey, _ := auth["apiKey"].(string)
		return apiKey
	}
	return ""
}
