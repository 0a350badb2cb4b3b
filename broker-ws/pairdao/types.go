package pairdao

// Pair records an active forwarding relationship: the gatekeeper's current
// client connection target. Multiple gatekeepers may pair with one client;
// a gatekeeper pairs with one client connection at a time.
type Pair struct {
	ClientConnectionID     string `dynamodbav:"clientConnectionId" ddb:"hash"`
	GateKeeperConnectionID string `dynamodbav:"gatekeeperConnectionId" ddb:"range"`
	SavedAt                int64  `dynamodbav:"savedAt"`
	ExpireAt               int64  `dynamodbav:"expireTimestamp"`
}
