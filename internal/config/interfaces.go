package config

import "context"

// SecretProvider resolves secret values by path. SSMProvider serves deployed
// environments; EnvVarProvider serves local runs.
type SecretProvider interface {
	// GetParametersBatch returns path -> plaintext for every resolved path.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
