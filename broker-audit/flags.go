package brokeraudit

import (
	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
	"github.com/urfave/cli/v2"
)

var AuditOpts struct {
	StreamName string
	Replay     bool
}

var StreamNameFlag = &cli.StringFlag{
	Name:        "audit-stream",
	Usage:       "Kinesis stream for connection audit events; empty disables auditing",
	EnvVars:     []string{"MERLOC_AUDIT_STREAM_NAME"},
	Destination: &AuditOpts.StreamName,
}
var ReplayFlag = brokercli.BoolFlag("replay", "Whether to tail from the beginning of the stream, or start from the next record", &AuditOpts.Replay)

var AuditFlags = []cli.Flag{
	StreamNameFlag,
}
