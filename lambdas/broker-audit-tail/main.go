package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	brokeraudit "github.com/merloc-dev/merloc-broker-go/broker-audit"
	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
)

var service = brokercli.NewService("broker-audit-tail")

func main() {
	app := brokercli.App(
		service,
		action,
		append(
			brokercli.CommonFlags,
			append(brokeraudit.AuditFlags, brokeraudit.ReplayFlag)...,
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	streamName := brokeraudit.AuditOpts.StreamName
	if streamName == "" {
		streamName = brokeraudit.StreamName(brokercli.CommonOpts.Env)
	}
	return brokeraudit.Tail(context.Background(), brokercli.Logger(service), streamName)
}
