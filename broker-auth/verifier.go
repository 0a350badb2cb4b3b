package brokerauth

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	brokersecret "github.com/merloc-dev/merloc-broker-go/broker-secret"
)

// KeyVerifier maps (identityKey, apiKey) to a principal id. It is an
// extension seam: the broker ships an echo default and a Secrets Manager
// backed implementation, and deployments may substitute their own.
type KeyVerifier func(identityKey, apiKey string) (string, error)

// EchoVerifier accepts every key and uses the identity key as the
// principal. It performs no check of its own; enable it only together with
// an upstream control.
func EchoVerifier(identityKey, _ string) (string, error) {
	return identityKey, nil
}

// NewSecretVerifier loads the allowed API keys (key -> principal id) from a
// Secrets Manager secret once at cold start and verifies against that set.
func NewSecretVerifier(s *session.Session, secretName string) (KeyVerifier, error) {
	var keys map[string]string
	if err := brokersecret.LoadSecret(s, secretName, &keys); err != nil {
		return nil, err
	}
	return func(_, apiKey string) (string, error) {
		principalID, ok := keys[apiKey]
		if !ok {
			return "", fmt.Errorf("unknown api key")
		}
		return principalID, nil
	}, nil
}
