package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"

	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
	brokerddb "github.com/merloc-dev/merloc-broker-go/broker-ddb"
	brokercron "github.com/merloc-dev/merloc-broker-go/broker-cron"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/gatekeeperdao"
	"github.com/merloc-dev/merloc-broker-go/broker-ws/pairdao"
)

var service = brokercli.NewService("broker-sweeper")

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
	gatekeepersTable := brokerddb.DDBOpts.GateKeeperConnectionsTable
	if gatekeepersTable == "" {
		gatekeepersTable = gatekeeperdao.TableName(env)
	}
	pairsTable := brokerddb.DDBOpts.ConnectionPairsTable
	if pairsTable == "" {
		pairsTable = pairdao.TableName(env)
	}

	logger := brokercli.Logger(service)
	pairs := pairdao.New(api, pairsTable, gatekeepersTable)

	handler := brokercron.NewHandler(service, func(ctx context.Context) error {
		deleted, err := pairs.DeleteExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info().Int("deleted", deleted).Msg("swept expired connection pairs")
		return nil
	})
	return handler.Start()
}
