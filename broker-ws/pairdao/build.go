package pairdao

import (
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/merloc-dev/merloc-broker-go/broker-ws/gatekeeperdao"
)

// Build creates a connection pairs DAO using the standard table names for
// the given environment.
func Build(api dynamodbiface.DynamoDBAPI, env string) *DAO {
	return New(api, TableName(env), gatekeeperdao.TableName(env))
}

// TableName returns the DynamoDB table name for the given environment.
func TableName(env string) string {
	return env + "-merloc-broker--connection-pairs"
}
