// Package brokercron provides utilities for building scheduled Lambda
// functions.
package brokercron

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	service brokercli.Service
	logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(
	service brokercli.Service,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		service: service,
		logger:  brokercli.Logger(service),
		runOnce: runOnce,
	}
}

func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Msg("running scheduled task")
	return h.runOnce(ctx)
}

func (h *Handler) Start() error {
	switch {
	case brokercli.CommonOpts.Console:
		return h.runOnce(context.Background())

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
