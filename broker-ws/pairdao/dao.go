package pairdao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	brokerws "github.com/merloc-dev/merloc-broker-go/broker-ws"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/gatekeeperdao"
)

// DAO provides access to the client/gatekeeper connection pairs table.
// Saving a pair also rewrites the gatekeeper record's paired-client link, so
// the DAO holds both table names.
type DAO struct {
	table            *ddb.Table
	api              dynamodbiface.DynamoDBAPI
	tableName        string
	gatekeepersTable string
}

// New creates a new connection pairs DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName, gatekeepersTable string) *DAO {
	return &DAO{
		table:            ddb.New(api).MustTable(tableName, Pair{}),
		api:              api,
		tableName:        tableName,
		gatekeepersTable: gatekeepersTable,
	}
}

// Save writes the pair row and the gatekeeper's paired-client link as a
// single transaction so a reader can later resolve either direction
// consistently. Re-pairing a gatekeeper overwrites both.
func (d *DAO) Save(ctx context.Context, name, clientConnectionID, gatekeeperConnectionID string) error {
	now := time.Now().Unix()

	gatekeeper, err := dynamodbattribute.MarshalMap(gatekeeperdao.Record{
		ConnectionID:             gatekeeperConnectionID,
		Name:                     name,
		PairedClientConnectionID: clientConnectionID,
		SavedAt:                  now,
		ExpireAt:                 now + int64(brokerws.GateKeeperConnectionTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal gatekeeper connection %v: %w", gatekeeperConnectionID, err)
	}

	pair, err := dynamodbattribute.MarshalMap(Pair{
		ClientConnectionID:     clientConnectionID,
		GateKeeperConnectionID: gatekeeperConnectionID,
		SavedAt:                now,
		ExpireAt:               now + int64(brokerws.ConnectionPairTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection pair: %w", err)
	}

	_, err = d.api.TransactWriteItemsWithContext(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []*dynamodb.TransactWriteItem{
			{
				Put: &dynamodb.Put{
					TableName: aws.String(d.gatekeepersTable),
					Item:      gatekeeper,
				},
			},
			{
				Put: &dynamodb.Put{
					TableName: aws.String(d.tableName),
					Item:      pair,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to pair gatekeeper connection %v with client connection %v: %w",
			gatekeeperConnectionID, clientConnectionID, err)
	}
	return nil
}

// GateKeepersFor lists the gatekeeper connection ids paired with the client
// connection.
func (d *DAO) GateKeepersFor(ctx context.Context, clientConnectionID string) ([]string, error) {
	var pairs []Pair
	err := d.table.Query("#ClientConnectionID = ?", clientConnectionID).
		FindAllWithContext(ctx, &pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to query connection pairs for client %v: %w", clientConnectionID, err)
	}

	ids := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair.GateKeeperConnectionID != "" {
			ids = append(ids, pair.GateKeeperConnectionID)
		}
	}
	return ids, nil
}

// Delete removes a single pair row.
func (d *DAO) Delete(ctx context.Context, clientConnectionID, gatekeeperConnectionID string) error {
	_, err := d.api.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"clientConnectionId":     {S: aws.String(clientConnectionID)},
			"gatekeeperConnectionId": {S: aws.String(gatekeeperConnectionID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete connection pair (%v, %v): %w",
			clientConnectionID, gatekeeperConnectionID, err)
	}
	return nil
}

// DeleteExpired scans for pair rows whose expiry has passed and removes
// them. DynamoDB TTL does this eventually; the sweeper calls this where TTL
// lag matters. Returns the number of rows deleted.
func (d *DAO) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []Pair
	input := &dynamodb.ScanInput{
		TableName:        aws.String(d.tableName),
		FilterExpression: aws.String("expireTimestamp < :now"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":now": {N: aws.String(fmt.Sprintf("%d", now.Unix()))},
		},
	}
	err := d.api.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			var pair Pair
			if err := dynamodbattribute.UnmarshalMap(item, &pair); err == nil {
				expired = append(expired, pair)
			}
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired connection pairs: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	// Batch delete in chunks of 25 (DynamoDB limit)
	const batchSize = 25
	deleted := 0
	for i := 0; i < len(expired); i += batchSize {
		end := i + batchSize
		if end > len(expired) {
			end = len(expired)
		}
		chunk := expired[i:end]

		writeRequests := make([]*dynamodb.WriteRequest, len(chunk))
		for j, pair := range chunk {
			writeRequests[j] = &dynamodb.WriteRequest{
				DeleteRequest: &dynamodb.DeleteRequest{
					Key: map[string]*dynamodb.AttributeValue{
						"clientConnectionId":     {S: aws.String(pair.ClientConnectionID)},
						"gatekeeperConnectionId": {S: aws.String(pair.GateKeeperConnectionID)},
					},
				},
			}
		}

		unprocessed := map[string][]*dynamodb.WriteRequest{
			d.tableName: writeRequests,
		}

		const maxRetries = 5
		for attempt := 0; attempt < maxRetries; attempt++ {
			output, err := d.api.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: unprocessed,
			})
			if err != nil {
				return deleted, fmt.Errorf("failed to batch delete expired connection pairs: %w", err)
			}
			if len(output.UnprocessedItems) == 0 {
				break
			}
			unprocessed = output.UnprocessedItems
			if attempt < maxRetries-1 {
				backoff := time.Duration(1<<attempt) * 100 * time.Millisecond
				timer := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					return deleted, fmt.Errorf("context cancelled during batch delete retry: %w", ctx.Err())
				case <-timer.C:
				}
			} else {
				return deleted, fmt.Errorf("failed to delete all expired pairs: %d items unprocessed after %d retries",
					len(unprocessed[d.tableName]), maxRetries)
			}
		}
		deleted += len(chunk)
	}

	return deleted, nil
}
