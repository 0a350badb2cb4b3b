package brokerws

import "context"

// The stores below are the broker's only shared mutable state. All mutation
// is by per-key conditional writes against the backing table; handlers never
// hold locks across round trips. The DAOs under clientconndao, gatekeeperdao,
// and pairdao provide the DynamoDB implementations; tests substitute
// in-memory fakes with the same conditional semantics.

// ClientConnectionStore maps a logical client name to its live connection.
type ClientConnectionStore interface {
	// Save records name -> connectionID (last-connect-wins) and returns the
	// superseded connection id, if any.
	Save(ctx context.Context, name, connectionID string) (previousID string, err error)

	// DeleteIfCurrent removes the record for name only while it still points
	// at connectionID. A mismatch (the record was already overridden by a
	// newer connect) is not an error.
	DeleteIfCurrent(ctx context.Context, name, connectionID string) error

	// Find returns the live connection id for name, or "" when absent.
	Find(ctx context.Context, name string) (string, error)
}

// GateKeeperConnectionStore tracks gatekeeper connections by connection id.
type GateKeeperConnectionStore interface {
	Save(ctx context.Context, connectionID, name string) error

	// Delete removes the record and returns the client connection id the
	// gatekeeper was paired with, if any.
	Delete(ctx context.Context, connectionID string) (pairedClientConnectionID string, err error)
}

// ConnectionPairStore records active forwarding relationships between a
// client connection and the gatekeepers addressing it.
type ConnectionPairStore interface {
	// Save writes the pair row and the gatekeeper's paired-client link as a
	// single transaction so either direction can be resolved consistently.
	Save(ctx context.Context, name, clientConnectionID, gatekeeperConnectionID string) error

	// GateKeepersFor lists the gatekeeper connection ids currently paired
	// with the client connection.
	GateKeepersFor(ctx context.Context, clientConnectionID string) ([]string, error)

	Delete(ctx context.Context, clientConnectionID, gatekeeperConnectionID string) error
}
