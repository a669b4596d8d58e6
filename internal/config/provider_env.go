package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves each key as an environment variable name. It backs
// local runs, where *_SSM_PARAM bindings alias other variables instead of
// reaching SSM. Unknown keys are omitted from the result.
type EnvVarProvider struct{}

func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			out[key] = val
		}
	}
	return out, nil
}
