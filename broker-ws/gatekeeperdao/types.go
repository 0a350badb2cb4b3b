package gatekeeperdao

// Record tracks a gatekeeper connection by its connection id. The
// paired-client link is written by the message router when the gatekeeper
// first forwards to a client, and consulted on disconnect to clean up the
// pair row.
type Record struct {
	ConnectionID             string `dynamodbav:"id" ddb:"hash"`
	Name                     string `dynamodbav:"name"`
	PairedClientConnectionID string `dynamodbav:"pairedClientConnectionId,omitempty"`
	SavedAt                  int64  `dynamodbav:"savedAt"`
	ExpireAt                 int64  `dynamodbav:"expireTimestamp"`
}
