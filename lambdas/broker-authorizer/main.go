package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"

	brokerauth "github.com/merloc-dev/merloc-broker-go/broker-auth"
	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
)

var service = brokercli.NewService("broker-authorizer")

func main() {
	app := brokercli.App(
		service,
		action,
		append(
			brokercli.CommonFlags,
			brokerauth.AuthFlags...,
		)...,
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	handler := &brokerauth.Handler{
		Logger:                    brokercli.Logger(service),
		APIKeyRequired:            brokerauth.AuthOpts.APIKeyRequired,
		APIKeyVerificationEnabled: brokerauth.AuthOpts.APIKeyVerificationEnabled,
	}

	if brokerauth.AuthOpts.APIKeysSecret != "" {
		sess := session.Must(session.NewSession(aws.NewConfig()))
		verify, err := brokerauth.NewSecretVerifier(sess, brokerauth.AuthOpts.APIKeysSecret)
		if err != nil {
			return fmt.Errorf("unable to load api keys secret: %w", err)
		}
		handler.Verify = verify
	}

	lambda.Start(handler.HandleRequest)
	return nil
}
