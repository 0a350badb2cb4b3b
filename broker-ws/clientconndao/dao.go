package clientconndao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	brokerws "github.com/merloc-dev/merloc-broker-go/broker-ws"
)

// DAO provides access to the client connections table. The conditional
// writes here are the broker's concurrency control: there are no in-process
// locks, so correctness under racing connect/disconnect events comes from
// the table's per-key atomicity.
type DAO struct {
	api       dynamodbiface.DynamoDBAPI
	tableName string
	ttl       time.Duration
}

// New creates a new client connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		api:       api,
		tableName: tableName,
		ttl:       brokerws.ClientConnectionTTL,
	}
}

// Save records name -> connectionID as a single atomic put (last-connect-wins)
// and returns the superseded connection id, if any.
func (d *DAO) Save(ctx context.Context, name, connectionID string) (string, error) {
	now := time.Now().Unix()
	item, err := dynamodbattribute.MarshalMap(Record{
		Name:         name,
		ConnectionID: connectionID,
		SavedAt:      now,
		ExpireAt:     now + int64(d.ttl.Seconds()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal client connection %v: %w", name, err)
	}

	output, err := d.api.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:    aws.String(d.tableName),
		Item:         item,
		ReturnValues: aws.String(dynamodb.ReturnValueAllOld),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save client connection %v: %w", name, err)
	}

	if v, ok := output.Attributes["id"]; ok && v.S != nil {
		return *v.S, nil
	}
	return "", nil
}

// DeleteIfCurrent removes the record for name only while it still points at
// connectionID. A condition failure means a newer connect already overwrote
// the record and is treated as a harmless no-op.
func (d *DAO) DeleteIfCurrent(ctx context.Context, name, connectionID string) error {
	_, err := d.api.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"name": {S: aws.String(name)},
		},
		ConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":id": {S: aws.String(connectionID)},
		},
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return nil
		}
		return fmt.Errorf("failed to delete client connection %v: %w", name, err)
	}
	return nil
}

// Find returns the live connection id for name, or "" when absent. The read
// is strongly consistent so a forward immediately after a connect resolves
// the new connection.
func (d *DAO) Find(ctx context.Context, name string) (string, error) {
	output, err := d.api.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"name": {S: aws.String(name)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get client connection %v: %w", name, err)
	}
	if v, ok := output.Item["id"]; ok && v.S != nil {
		return *v.S, nil
	}
	return "", nil
}
