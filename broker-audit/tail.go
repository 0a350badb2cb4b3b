package brokeraudit

import (
	"context"
	"encoding/json"
	"fmt"

	consumer "github.com/harlow/kinesis-consumer"
	"github.com/rs/zerolog"
)

// Tail follows the audit stream from the console, logging each event. Used
// for operational debugging; blocks until the context is cancelled.
func Tail(ctx context.Context, logger zerolog.Logger, streamName string) error {
	var options []consumer.Option
	if AuditOpts.Replay {
		options = append(options, consumer.WithShardIteratorType("TRIM_HORIZON"))
	} else {
		options = append(options, consumer.WithShardIteratorType("LATEST"))
	}

	c, err := consumer.New(streamName, options...)
	if err != nil {
		return fmt.Errorf("creating kinesis consumer for %v: %w", streamName, err)
	}

	fmt.Println("Listening...")
	return c.Scan(ctx, func(record *consumer.Record) error {
		var event Event
		if err := json.Unmarshal(record.Data, &event); err != nil {
			logger.Warn().Err(err).Msg("skipping malformed audit record")
			return nil
		}
		logger.Info().
			Str("event", event.Event).
			Str("connection_type", event.ConnectionType).
			Str("connection_name", event.ConnectionName).
			Str("connection_id", event.ConnectionID).
			Int64("time", event.Time).
			Msg("connection event")
		return nil
	})
}
