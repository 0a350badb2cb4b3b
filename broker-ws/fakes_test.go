package brokerws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

// In-memory stores mirroring the DynamoDB DAOs' conditional semantics:
// Save returns the superseded id, DeleteIfCurrent is a no-op on a stale id.

type fakeClientStore struct {
	mu      sync.Mutex
	records map[string]string
	saveErr error
	findErr error
}

func newFakeClientStore() *fakeClientStore {
	return &fakeClientStore{records: map[string]string{}}
}

func (s *fakeClientStore) Save(_ context.Context, name, connectionID string) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.records[name]
	s.records[name] = connectionID
	return previous, nil
}

func (s *fakeClientStore) DeleteIfCurrent(_ context.Context, name, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[name] == connectionID {
		delete(s.records, name)
	}
	return nil
}

func (s *fakeClientStore) Find(_ context.Context, name string) (string, error) {
	if s.findErr != nil {
		return "", s.findErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[name], nil
}

type fakeGateKeeperRecord struct {
	name     string
	pairedID string
}

type fakeGateKeeperStore struct {
	mu      sync.Mutex
	records map[string]fakeGateKeeperRecord
	saveErr error
}

func newFakeGateKeeperStore() *fakeGateKeeperStore {
	return &fakeGateKeeperStore{records: map[string]fakeGateKeeperRecord{}}
}

func (s *fakeGateKeeperStore) Save(_ context.Context, connectionID, name string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[connectionID] = fakeGateKeeperRecord{name: name}
	return nil
}

func (s *fakeGateKeeperStore) Delete(_ context.Context, connectionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.records[connectionID]
	delete(s.records, connectionID)
	return record.pairedID, nil
}

type fakePairStore struct {
	mu          sync.Mutex
	pairs       map[string]map[string]bool
	gatekeepers *fakeGateKeeperStore
	saveErr     error
	queryErr    error
	deleted     [][2]string
}

func newFakePairStore() *fakePairStore {
	return &fakePairStore{pairs: map[string]map[string]bool{}}
}

func (s *fakePairStore) Save(_ context.Context, name, clientConnectionID, gatekeeperConnectionID string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pairs[clientConnectionID] == nil {
		s.pairs[clientConnectionID] = map[string]bool{}
	}
	s.pairs[clientConnectionID][gatekeeperConnectionID] = true
	if s.gatekeepers != nil {
		s.gatekeepers.mu.Lock()
		s.gatekeepers.records[gatekeeperConnectionID] = fakeGateKeeperRecord{name: name, pairedID: clientConnectionID}
		s.gatekeepers.mu.Unlock()
	}
	return nil
}

func (s *fakePairStore) GateKeepersFor(_ context.Context, clientConnectionID string) ([]string, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.pairs[clientConnectionID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakePairStore) Delete(_ context.Context, clientConnectionID, gatekeeperConnectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pairs[clientConnectionID], gatekeeperConnectionID)
	s.deleted = append(s.deleted, [2]string{clientConnectionID, gatekeeperConnectionID})
	return nil
}

func (s *fakePairStore) has(clientConnectionID, gatekeeperConnectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs[clientConnectionID][gatekeeperConnectionID]
}

type fakePost struct {
	connectionID string
	data         []byte
}

type fakePoster struct {
	mu      sync.Mutex
	posts   []fakePost
	failFor map[string]error
	onPost  func(connectionID string)
}

func newFakePoster() *fakePoster {
	return &fakePoster{}
}

func (p *fakePoster) ForEndpoint(string) ConnectionPoster { return p }

func (p *fakePoster) PostToConnection(_ context.Context, connectionID string, data []byte) error {
	if p.onPost != nil {
		p.onPost(connectionID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failFor[connectionID]; ok {
		return err
	}
	p.posts = append(p.posts, fakePost{connectionID: connectionID, data: data})
	return nil
}

func (p *fakePoster) failConnection(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor == nil {
		p.failFor = map[string]error{}
	}
	p.failFor[connectionID] = fmt.Errorf("GoneException: connection %v is gone", connectionID)
}

func (p *fakePoster) postsTo(connectionID string) []BrokerEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var envelopes []BrokerEnvelope
	for _, post := range p.posts {
		if post.connectionID != connectionID {
			continue
		}
		var envelope BrokerEnvelope
		if err := json.Unmarshal(post.data, &envelope); err == nil {
			envelopes = append(envelopes, envelope)
		}
	}
	return envelopes
}

func (p *fakePoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.posts)
}

func connectRequest(eventType, connectionID, identityKey string) events.APIGatewayWebsocketProxyRequest {
	req := events.APIGatewayWebsocketProxyRequest{
		Headers: map[string]string{},
	}
	req.RequestContext.ConnectionID = connectionID
	req.RequestContext.EventType = eventType
	if identityKey != "" {
		req.Headers[ConnectionNameHeader] = identityKey
	}
	return req
}

func authorizedRequest(eventType, connectionID, connectionType, connectionName, apiKey string) events.APIGatewayWebsocketProxyRequest {
	req := events.APIGatewayWebsocketProxyRequest{}
	req.RequestContext.ConnectionID = connectionID
	req.RequestContext.EventType = eventType
	req.RequestContext.Authorizer = map[string]interface{}{
		"connectionType": connectionType,
		"connectionName": connectionName,
		"apiKey":         apiKey,
	}
	return req
}

func messageRequest(connectionID string, envelope *BrokerEnvelope) events.APIGatewayWebsocketProxyRequest {
	body, _ := json.Marshal(envelope)
	req := events.APIGatewayWebsocketProxyRequest{Body: string(body)}
	req.RequestContext.ConnectionID = connectionID
	return req
}
