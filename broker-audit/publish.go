// Package brokeraudit publishes connection lifecycle events to a Kinesis
// stream for offline analysis. Publishing is best-effort: the broker never
// fails a connect or disconnect because the audit write failed.
package brokeraudit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/rs/zerolog"

	brokerws "github.com/merloc-dev/merloc-broker-go/broker-ws"
)

// Event is the record format published to the audit stream.
type Event struct {
	Event          string `json:"event"`
	ConnectionType string `json:"connectionType"`
	ConnectionName string `json:"connectionName"`
	ConnectionID   string `json:"connectionId"`
	Time           int64  `json:"time"`
}

// Publisher publishes audit events to the connection events stream.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
}

// New creates a new Publisher.
func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
	}
}

// Build creates a new Publisher for the given stream name.
func Build(streamName string) *Publisher {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	return New(kinesis.New(sess), streamName)
}

// StreamName returns the audit stream name for the given environment.
func StreamName(env string) string {
	return env + "-merloc-broker--connection-events"
}

// Send publishes an audit event. The connection name is the partition key
// so events for one logical endpoint stay ordered.
func (p *Publisher) Send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling audit event: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(event.ConnectionName),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}
	return nil
}

// AuditFunc adapts the publisher to the connection handler's audit hook,
// logging and swallowing failures.
func (p *Publisher) AuditFunc(logger zerolog.Logger) brokerws.AuditFunc {
	return func(ctx context.Context, eventType, connectionType, connectionName, connectionID string) {
		event := Event{
			Event:          eventType,
			ConnectionType: connectionType,
			ConnectionName: connectionName,
			ConnectionID:   connectionID,
			Time:           time.Now().UnixMilli(),
		}
		if err := p.Send(ctx, event); err != nil {
			logger.Warn().Err(err).
				Str("event_type", eventType).
				Str("connection_id", connectionID).
				Msg("failed to publish audit event")
		}
	}
}
