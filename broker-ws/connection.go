package brokerws

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
)

// Transport event types for the $connect/$disconnect routes.
const (
	ConnectEventType    = "CONNECT"
	DisconnectEventType = "DISCONNECT"
)

// AuditFunc records a connection lifecycle event. Implementations are
// best-effort and must not block the handler outcome.
type AuditFunc func(ctx context.Context, eventType, connectionType, connectionName, connectionID string)

// ConnectionHandler processes $connect and $disconnect events, maintaining
// the client and gatekeeper registries and fanning out disconnect notices to
// paired gatekeepers.
type ConnectionHandler struct {
	Clients     ClientConnectionStore
	GateKeepers GateKeeperConnectionStore
	Pairs       ConnectionPairStore
	Posters     PosterFactory
	Logger      zerolog.Logger
	Audit       AuditFunc          // optional
	Metrics     *brokercli.Metrics // optional
	Concurrency int                // max concurrent disconnect notifications (default 10)
}

// HandleEvent routes a WebSocket lifecycle event by its event type and the
// connection's declared class.
func (h *ConnectionHandler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	logger := h.Logger.With().
		Str("connection_id", connID).
		Str("event_type", req.RequestContext.EventType).
		Logger()

	if connID == "" {
		logger.Error().Msg("connection id is empty")
		return response(400, "Connection id is required"), nil
	}

	identity, ok := identityFromRequest(req)
	if !ok {
		logger.Error().Msg("connection identity is missing or invalid")
		return response(400, "Invalid connection name"), nil
	}
	name := identity.ConnectionName()
	logger = logger.With().
		Str("connection_type", identity.Type).
		Str("connection_name", name).
		Logger()

	poster := h.Posters.ForEndpoint(Endpoint(req))

	switch req.RequestContext.EventType {
	case ConnectEventType:
		switch identity.Type {
		case ClientConnectionType:
			return h.handleClientConnect(ctx, logger, poster, name, connID), nil
		case GateKeeperConnectionType:
			return h.handleGateKeeperConnect(ctx, logger, name, connID), nil
		}
		return response(400, "Invalid connection name"), nil

	case DisconnectEventType:
		switch identity.Type {
		case ClientConnectionType:
			return h.handleClientDisconnect(ctx, logger, poster, name, connID), nil
		case GateKeeperConnectionType:
			return h.handleGateKeeperDisconnect(ctx, logger, name, connID), nil
		}
		return response(400, "Invalid connection name"), nil

	default:
		logger.Error().Msg("unsupported event type")
		return response(400, "Invalid event type"), nil
	}
}

func (h *ConnectionHandler) handleClientConnect(ctx context.Context, logger zerolog.Logger, poster ConnectionPoster, name, connID string) events.APIGatewayProxyResponse {
	logger.Debug().Msg("client connected")

	previousID, err := h.Clients.Save(ctx, name, connID)
	if err != nil {
		logger.Error().Err(err).Msg("unable to save client connection")
		return response(500, "Connect failed")
	}

	if previousID != "" && previousID != connID {
		logger.Debug().
			Str("previous_connection_id", previousID).
			Msg("new client connection has overridden previous connection")
		h.metric(ctx, brokercli.ConnectionOverrideMetric)
		envelope, err := NewEnvelope(ClientConnectionOverrideMessageType, name, previousID, "", ClientConnectionType, BrokerPayload{})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to build connection override envelope")
		} else if err := post(ctx, poster, previousID, envelope); err != nil {
			if IsGone(err) {
				logger.Debug().Msg("overridden client connection already gone")
			} else {
				logger.Warn().Err(err).Msg("failed to notify overridden client connection")
			}
		}
	}

	h.audit(ctx, ConnectEventType, ClientConnectionType, name, connID)
	return response(200, "Connected")
}

func (h *ConnectionHandler) handleClientDisconnect(ctx context.Context, logger zerolog.Logger, poster ConnectionPoster, name, connID string) events.APIGatewayProxyResponse {
	logger.Debug().Msg("client disconnected")

	resp := response(200, "Disconnected")
	if err := h.Clients.DeleteIfCurrent(ctx, name, connID); err != nil {
		logger.Error().Err(err).Msg("unable to remove client connection")
		resp = response(500, "Disconnect failed")
	}

	h.notifyPairedGateKeepers(ctx, logger, poster, name, connID)
	h.audit(ctx, DisconnectEventType, ClientConnectionType, name, connID)
	return resp
}

// notifyPairedGateKeepers pushes a client.disconnect envelope to every
// gatekeeper paired with the disconnecting client connection. Each push is
// independent; failures are logged and never affect the handler outcome.
// Pair rows are left to expire by TTL: with the client gone they are
// unreachable anyway.
func (h *ConnectionHandler) notifyPairedGateKeepers(ctx context.Context, logger zerolog.Logger, poster ConnectionPoster, name, clientConnID string) {
	gatekeeperIDs, err := h.Pairs.GateKeepersFor(ctx, clientConnID)
	if err != nil {
		logger.Error().Err(err).Msg("unable to query paired gatekeeper connections")
		return
	}
	if len(gatekeeperIDs) == 0 {
		return
	}

	concurrency := h.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, gatekeeperID := range gatekeeperIDs {
		gatekeeperID := gatekeeperID
		g.Go(func() error {
			envelope, err := NewEnvelope(ClientDisconnectMessageType, name, gatekeeperID, "", GateKeeperConnectionType, BrokerPayload{})
			if err != nil {
				logger.Warn().Err(err).Msg("failed to build client disconnect envelope")
				return nil
			}
			if err := post(ctx, poster, gatekeeperID, envelope); err != nil {
				if IsGone(err) {
					logger.Debug().
						Str("gatekeeper_connection_id", gatekeeperID).
						Msg("paired gatekeeper connection already gone")
				} else {
					logger.Warn().Err(err).
						Str("gatekeeper_connection_id", gatekeeperID).
						Msg("failed to notify paired gatekeeper connection")
				}
				return nil
			}
			logger.Debug().
				Str("gatekeeper_connection_id", gatekeeperID).
				Msg("notified paired gatekeeper connection about client disconnect")
			h.metric(ctx, brokercli.DisconnectNotifyMetric)
			return nil
		})
	}
	g.Wait()
}

func (h *ConnectionHandler) handleGateKeeperConnect(ctx context.Context, logger zerolog.Logger, name, connID string) events.APIGatewayProxyResponse {
	logger.Debug().Msg("gatekeeper connected")

	if err := h.GateKeepers.Save(ctx, connID, name); err != nil {
		logger.Error().Err(err).Msg("unable to save gatekeeper connection")
		return response(500, "Connect failed")
	}

	h.audit(ctx, ConnectEventType, GateKeeperConnectionType, name, connID)
	return response(200, "Connected")
}

func (h *ConnectionHandler) handleGateKeeperDisconnect(ctx context.Context, logger zerolog.Logger, name, connID string) events.APIGatewayProxyResponse {
	logger.Debug().Msg("gatekeeper disconnected")

	pairedClientID, err := h.GateKeepers.Delete(ctx, connID)
	if err != nil {
		logger.Error().Err(err).Msg("unable to remove gatekeeper connection")
		return response(500, "Disconnect failed")
	}
	if pairedClientID != "" {
		if err := h.Pairs.Delete(ctx, pairedClientID, connID); err != nil {
			logger.Warn().Err(err).
				Str("client_connection_id", pairedClientID).
				Msg("unable to remove client/gatekeeper connection pair")
		}
	}

	h.audit(ctx, DisconnectEventType, GateKeeperConnectionType, name, connID)
	return response(200, "Disconnected")
}

func (h *ConnectionHandler) audit(ctx context.Context, eventType, connectionType, name, connID string) {
	if h.Audit != nil {
		h.Audit(ctx, eventType, connectionType, name, connID)
	}
}

func (h *ConnectionHandler) metric(ctx context.Context, name brokercli.MetricName) {
	if h.Metrics != nil {
		h.Metrics.Event(ctx, name)
	}
}

// identityFromRequest derives the connection identity from the auth header
// when present, falling back to the authorizer context: disconnect events
// carry no headers.
func identityFromRequest(req events.APIGatewayWebsocketProxyRequest) (ConnectionIdentity, bool) {
	for k, v := range req.Headers {
		if strings.EqualFold(k, ConnectionNameHeader) && v != "" {
			return ParseIdentity(v)
		}
	}
	if auth, ok := req.RequestContext.Authorizer.(map[string]interface{}); ok {
		connType, _ := auth["connectionType"].(string)
		connName, _ := auth["connectionName"].(string)
		apiKey, _ := auth["apiKey"].(string)
		if connType != "" && connName != "" {
			return ConnectionIdentity{Type: connType, Name: connName, APIKey: apiKey}, true
		}
	}
	return ConnectionIdentity{}, false
}

func post(ctx context.Context, poster ConnectionPoster, connID string, envelope *BrokerEnvelope) error {
	data, err := envelope.Marshal()
	if err != nil {
		return err
	}
	return poster.PostToConnection(ctx, connID, data)
}

func response(statusCode int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       body,
	}
}
