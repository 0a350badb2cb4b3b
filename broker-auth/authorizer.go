// Package brokerauth gates inbound WebSocket connect attempts. The REQUEST
// authorizer validates the identity key, optionally enforces API-key checks,
// and attaches the routing context consumed by the connection and message
// handlers.
package brokerauth

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	brokerws "github.com/merloc-dev/merloc-broker-go/broker-ws"
)

// Handler implements the API Gateway WebSocket REQUEST authorizer.
type Handler struct {
	Logger                    zerolog.Logger
	Verify                    KeyVerifier // optional; EchoVerifier when nil
	APIKeyRequired            bool
	APIKeyVerificationEnabled bool
}

// HandleRequest authorizes a connect attempt. The decision carries
// connectionType/connectionName/apiKey as context so downstream handlers
// never re-parse the identity key.
func (h *Handler) HandleRequest(ctx context.Context, event events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	identityKey := headerValue(event.Headers, brokerws.ConnectionNameHeader)
	if identityKey == "" {
		h.Logger.Error().Msg("identity key header is missing")
		return deny("anonymous"), nil
	}

	identity, ok := brokerws.ParseIdentity(identityKey)
	if !ok {
		h.Logger.Error().Msg("identity key carries no recognizable connection class")
		return deny(identityKey), nil
	}
	name := identity.ConnectionName()
	logger := h.Logger.With().
		Str("connection_type", identity.Type).
		Str("connection_name", name).
		Logger()

	if h.APIKeyRequired && identity.APIKey == "" {
		logger.Error().Msg("api key is required but missing")
		return deny(identityKey), nil
	}

	principalID := identityKey
	if h.APIKeyVerificationEnabled {
		verify := h.Verify
		if verify == nil {
			verify = EchoVerifier
		}
		id, err := verify(identityKey, identity.APIKey)
		if err != nil {
			logger.Error().Err(err).Msg("api key verification failed")
			return deny(identityKey), nil
		}
		principalID = id
	}

	logger.Debug().Str("principal_id", principalID).Msg("connection authorized")
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID:    principalID,
		PolicyDocument: policyDocument("Allow"),
		Context: map[string]interface{}{
			"connectionType": identity.Type,
			"connectionName": name,
			"apiKey":         identity.APIKey,
		},
	}, nil
}

func deny(principalID string) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID:    principalID,
		PolicyDocument: policyDocument("Deny"),
	}
}

func policyDocument(effect string) events.APIGatewayCustomAuthorizerPolicy {
	return events.APIGatewayCustomAuthorizerPolicy{
		Version: "2012-10-17",
		Statement: []events.IAMPolicyStatement{
			{
				Action:   []string{"execute-api:Invoke"},
				Effect:   effect,
				Resource: []string{"*"},
			},
		},
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
