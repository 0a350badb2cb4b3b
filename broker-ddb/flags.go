package brokerddb

import (
	brokercli "github.com/merloc-dev/merloc-broker-go/broker-cli"
	"github.com/urfave/cli/v2"
)

var DDBOpts struct {
	DAXCluster                 string
	DAXRegion                  string
	ClientConnectionsTable     string
	GateKeeperConnectionsTable string
	ConnectionPairsTable       string
}

var DAXClusterFlag = brokercli.StringFlag("dax-cluster", "The DAX cluster to connect to", &DDBOpts.DAXCluster)
var DAXRegionFlag = brokercli.StringFlag("dax-region", "The region of the DAX cluster", &DDBOpts.DAXRegion, "us-east-2")

var ClientConnectionsTableFlag = &cli.StringFlag{
	Name:        "client-connections-table",
	Usage:       "The table holding live client connections",
	EnvVars:     []string{"MERLOC_CLIENT_CONNECTIONS_TABLE_NAME"},
	Destination: &DDBOpts.ClientConnectionsTable,
}
var GateKeeperConnectionsTableFlag = &cli.StringFlag{
	Name:        "gatekeeper-connections-table",
	Usage:       "The table holding live gatekeeper connections",
	EnvVars:     []string{"MERLOC_GATEKEEPER_CONNECTIONS_TABLE_NAME"},
	Destination: &DDBOpts.GateKeeperConnectionsTable,
}
var ConnectionPairsTableFlag = &cli.StringFlag{
	Name:        "connection-pairs-table",
	Usage:       "The table holding client/gatekeeper connection pairs",
	EnvVars:     []string{"MERLOC_CLIENT_GATEKEEPER_CONNECTION_PAIRS_TABLE_NAME"},
	Destination: &DDBOpts.ConnectionPairsTable,
}

var DDBFlags = []cli.Flag{
	DAXClusterFlag,
	DAXRegionFlag,
	ClientConnectionsTableFlag,
	GateKeeperConnectionsTableFlag,
	ConnectionPairsTableFlag,
}
