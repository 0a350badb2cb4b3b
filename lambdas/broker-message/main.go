package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/urfave/cli/v2"

	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
	brokerddb "github.com/merloc-dev/merloc-broker-go/broker-ddb"
	brokerws "github.com/merloc-dev/merloc-broker-go/broker-ws"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/clientconndao"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/gatekeeperdao"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/pairdao"
)

var service = brokercli.NewService("broker-message")

func main() {
	app := brokercli.App(
		service,
		action,
		append(
			brokercli.CommonFlags,
			brokerddb.DDBFlags...,
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := brokerddb.DynamoDBAPI(sess)
	if err != nil {
		return fmt.Errorf("unable to build dynamodb client: %w", err)
	}

	env := brokercli.CommonOpts.Env
	clientsTable := brokerddb.DDBOpts.ClientConnectionsTable
	if clientsTable == "" {
		clientsTable = clientconndao.TableName(env)
	}
	gatekeepersTable := brokerddb.DDBOpts.GateKeeperConnectionsTable
	if gatekeepersTable == "" {
		gatekeepersTable = gatekeeperdao.TableName(env)
	}
	pairsTable := brokerddb.DDBOpts.ConnectionPairsTable
	if pairsTable == "" {
		pairsTable = pairdao.TableName(env)
	}

	metrics := brokercli.NewMetrics(service, cloudwatch.New(sess))
	handler := &brokerws.MessageHandler{
		Clients: clientconndao.New(api, clientsTable),
		Pairs:   pairdao.New(api, pairsTable, gatekeepersTable),
		Posters: brokerws.NewManagementPosters(),
		Logger:  brokercli.Logger(service),
		Metrics: &metrics,
	}

	lambda.Start(handler.HandleEvent)
	return nil
}
