package brokerws

import "strings"

// Connection classes as they appear on the wire.
const (
	BrokerConnectionType     = "broker"
	ClientConnectionType     = "client"
	GateKeeperConnectionType = "gatekeeper"
)

const (
	ClientConnectionNamePrefix     = "client::"
	GateKeeperConnectionNamePrefix = "gatekeeper::"
	APIKeySeparator                = "##"

	DefaultClientConnectionName     = "default"
	DefaultGateKeeperConnectionName = "default"

	// ConnectionNameHeader carries the identity key on $connect requests.
	ConnectionNameHeader = "x-api-key"
)

// ConnectionIdentity is the parsed form of an identity key such as
// "client::billing##k1". Name may be empty when the key carries only a
// class prefix; ConnectionName falls back to the class default in that case.
type ConnectionIdentity struct {
	Type   string
	Name   string
	APIKey string
}

// ParseIdentity parses an identity key into its connection class, logical
// name, and optional API key. The API key is split on the last occurrence of
// the separator so that names may themselves contain it. Returns false when
// the key carries no recognizable class prefix.
func ParseIdentity(key string) (ConnectionIdentity, bool) {
	var identity ConnectionIdentity
	switch {
	case strings.HasPrefix(key, ClientConnectionNamePrefix):
		identity.Type = ClientConnectionType
		key = strings.TrimPrefix(key, ClientConnectionNamePrefix)
	case strings.HasPrefix(key, GateKeeperConnectionNamePrefix):
		identity.Type = GateKeeperConnectionType
		key = strings.TrimPrefix(key, GateKeeperConnectionNamePrefix)
	default:
		return ConnectionIdentity{}, false
	}

	if i := strings.LastIndex(key, APIKeySeparator); i >= 0 {
		identity.Name = key[:i]
		identity.APIKey = key[i+len(APIKeySeparator):]
	} else {
		identity.Name = key
	}
	return identity, true
}

// DefaultName returns the fallback connection name for a class, scoped by
// the API key when one is present so key-scoped tenants never collide with
// the unscoped default.
func DefaultName(connectionType, apiKey string) string {
	name := DefaultClientConnectionName
	if connectionType == GateKeeperConnectionType {
		name = DefaultGateKeeperConnectionName
	}
	if apiKey != "" {
		return name + APIKeySeparator + apiKey
	}
	return name
}

// ConnectionName returns the logical name for the identity, falling back to
// the class default when the key carried no explicit name.
func (id ConnectionIdentity) ConnectionName() string {
	if id.Name == "" {
		return DefaultName(id.Type, id.APIKey)
	}
	return id.Name
}
