package brokerauth

import "github.com/urfave/cli/v2"

var AuthOpts struct {
	APIKeyRequired            bool
	APIKeyVerificationEnabled bool
	APIKeysSecret             string
}

var APIKeyRequiredFlag = &cli.BoolFlag{
	Name:        "api-key-required",
	Usage:       "reject connect attempts whose identity key carries no api key",
	EnvVars:     []string{"MERLOC_API_KEY_REQUIRED"},
	Destination: &AuthOpts.APIKeyRequired,
}
var APIKeyVerificationEnabledFlag = &cli.BoolFlag{
	Name:        "api-key-verification-enabled",
	Usage:       "reject connect attempts whose api key fails the verifier",
	EnvVars:     []string{"MERLOC_API_KEY_VERIFICATION_ENABLED"},
	Destination: &AuthOpts.APIKeyVerificationEnabled,
}
var APIKeysSecretFlag = &cli.StringFlag{
	Name:        "api-keys-secret",
	Usage:       "Secrets Manager secret holding the allowed api keys; empty selects the echo verifier",
	EnvVars:     []string{"MERLOC_API_KEYS_SECRET"},
	Destination: &AuthOpts.APIKeysSecret,
}

var AuthFlags = []cli.Flag{
	APIKeyRequiredFlag,
	APIKeyVerificationEnabledFlag,
	APIKeysSecretFlag,
}
