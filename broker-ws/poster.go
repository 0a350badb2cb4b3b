package brokerws

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
)

// ConnectionPoster delivers an opaque payload to an open connection by id.
// A delivery error for a gone connection is routine, not fatal.
type ConnectionPoster interface {
	PostToConnection(ctx context.Context, connectionID string, data []byte) error
}

// PosterFactory yields a poster bound to a management API endpoint.
type PosterFactory interface {
	ForEndpoint(endpoint string) ConnectionPoster
}

// ManagementPosters posts via the API Gateway Management API, caching one
// client per endpoint across invocations.
type ManagementPosters struct {
	mu      sync.RWMutex
	clients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

func NewManagementPosters() *ManagementPosters {
	return &ManagementPosters{}
}

func (p *ManagementPosters) ForEndpoint(endpoint string) ConnectionPoster {
	return &endpointPoster{posters: p, endpoint: endpoint}
}

type endpointPoster struct {
	posters  *ManagementPosters
	endpoint string
}

func (e *endpointPoster) PostToConnection(ctx context.Context, connectionID string, data []byte) error {
	client := e.posters.getManagementClient(e.endpoint)
	_, err := client.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("posting to connection %v: %w", connectionID, err)
	}
	return nil
}

func (p *ManagementPosters) getManagementClient(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	p.mu.RLock()
	if client, ok := p.clients[endpoint]; ok {
		p.mu.RUnlock()
		return client
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if client, ok := p.clients[endpoint]; ok {
		return client
	}

	if p.clients == nil {
		p.clients = make(map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI)
	}

	sess := session.Must(session.NewSession(aws.NewConfig().WithEndpoint(endpoint)))
	client := apigatewaymanagementapi.New(sess)
	p.clients[endpoint] = client
	return client
}

// Endpoint builds the management API endpoint for the request. The raw API
// endpoint is used rather than the request's domain name, which may be a
// custom domain the management API does not answer on.
func Endpoint(req events.APIGatewayWebsocketProxyRequest) string {
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s",
		req.RequestContext.APIID, os.Getenv("AWS_REGION"), req.RequestContext.Stage)
}

// IsGone reports whether the error is a GoneException (HTTP 410),
// indicating the WebSocket connection no longer exists.
func IsGone(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "GoneException") ||
		strings.Contains(err.Error(), "410")
}
