package gatekeeperdao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	brokerws "github.com/merloc-dev/merloc-broker-go/broker-ws"
)

// DAO provides access to the gatekeeper connections table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
	ttl       time.Duration
}

// New creates a new gatekeeper connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Record{}),
		api:       api,
		tableName: tableName,
		ttl:       brokerws.GateKeeperConnectionTTL,
	}
}

// Save stores a gatekeeper connection record.
func (d *DAO) Save(ctx context.Context, connectionID, name string) error {
	now := time.Now().Unix()
	record := Record{
		ConnectionID: connectionID,
		Name:         name,
		SavedAt:      now,
		ExpireAt:     now + int64(d.ttl.Seconds()),
	}
	if err := d.table.Put(record).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to save gatekeeper connection %v: %w", connectionID, err)
	}
	return nil
}

// Delete removes a gatekeeper connection record and returns the client
// connection id it was paired with, if any.
func (d *DAO) Delete(ctx context.Context, connectionID string) (string, error) {
	output, err := d.api.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(connectionID)},
		},
		ReturnValues: aws.String(dynamodb.ReturnValueAllOld),
	})
	if err != nil {
		return "", fmt.Errorf("failed to delete gatekeeper connection %v: %w", connectionID, err)
	}
	if v, ok := output.Attributes["pairedClientConnectionId"]; ok && v.S != nil {
		return *v.S, nil
	}
	return "", nil
}
