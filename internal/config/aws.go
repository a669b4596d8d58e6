package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// LoadAWS returns the SDK configuration for the configured region. A
// non-empty EndpointURL routes every client to it, for LocalStack.
func (c AWSConfig) LoadAWS(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", c.Region, err)
	}
	if c.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	return cfg, nil
}

// SecretProviderFromEnv returns the provider LoadConfig should resolve
// *_SSM_PARAM variables with. Local runs get an EnvVarProvider, so a binding
// such as NOTIFY_API_KEY_SSM_PARAM=LOCAL_NOTIFY_KEY copies another variable;
// every other environment gets SSM. It reads the
// process environment directly because it runs before configuration exists.
func SecretProviderFromEnv() SecretProvider {
	return secretProviderFor(osEnvironment{})
}

func secretProviderFor(env environment) SecretProvider {
	if appEnv, _ := env.Lookup("APP_ENV"); appEnv == localEnv {
		return NewEnvVarProvider()
	}
	region, ok := env.Lookup("AWS_REGION")
	if !ok || region == "" {
		region = "eu-west-2"
	}
	var opts []SSMOption
	if endpoint, _ := env.Lookup("AWS_ENDPOINT_URL"); endpoint != "" {
		opts = append(opts, WithSSMEndpoint(endpoint))
	}
	return NewSSMProvider(region, opts...)
}
