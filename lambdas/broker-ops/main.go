package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"

	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
	brokerddb "github.com/merloc-dev/merloc-broker-go/broker-ddb"
	brokerrest "github.com/merloc-dev/merloc-broker-go/broker-rest"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/clientconndao"
)

var service = brokercli.NewService("broker-ops")

func main() {
	app := brokercli.App(
		service,
		action,
		append(
			brokercli.CommonFlags,
			append([]cli.Flag{brokercli.PortFlag(5001)}, brokerddb.DDBFlags...)...,
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

	clientsTable := brokerddb.DDBOpts.ClientConnectionsTable
	if clientsTable == "" {
		clientsTable = clientconndao.TableName(brokercli.CommonOpts.Env)
	}

	routes := brokerrest.Routes(service, clientconndao.New(api, clientsTable))
	return brokerrest.Webserver(service, routes)
}
