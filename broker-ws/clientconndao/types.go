package clientconndao

// Record maps a logical client name to its live WebSocket connection.
// At most one record exists per name; a reconnect overwrites it.
type Record struct {
	Name         string `dynamodbav:"name" ddb:"hash"`
	ConnectionID string `dynamodbav:"id"`
	SavedAt      int64  `dynamodbav:"savedAt"`
	ExpireAt     int64  `dynamodbav:"expireTimestamp"`
}
