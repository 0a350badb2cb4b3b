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

	brokeraudit "github.com/merloc-dev/merloc-broker-go/broker-audit"
	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
	brokerddb "github.com/merloc-dev/merloc-broker-go/broker-ddb"
	brokerws "github.com/merloc-dev/merloc-broker-go/broker-ws"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/clientconndao"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/gatekeeperdao"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/pairdao"
)

var service = brokercli.NewService("broker-connection")

func main() {
	app := brokercli.App(
		service,
		action,
		append(
			brokercli.CommonFlags,
			append(brokerddb.DDBFlags, brokeraudit.AuditFlags...)...,
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

	logger := brokercli.Logger(service)
	metrics := brokercli.NewMetrics(service, cloudwatch.New(sess))
	handler := &brokerws.ConnectionHandler{
		Clients:     clientconndao.New(api, clientsTable),
		GateKeepers: gatekeeperdao.New(api, gatekeepersTable),
		Pairs:       pairdao.New(api, pairsTable, gatekeepersTable),
		Posters:     brokerws.NewManagementPosters(),
		Logger:      logger,
		Metrics:     &metrics,
	}
	if brokeraudit.AuditOpts.StreamName != "" {
		handler.Audit = brokeraudit.Build(brokeraudit.AuditOpts.StreamName).AuditFunc(logger)
	}

	lambda.Start(handler.HandleEvent)
	return nil
}
