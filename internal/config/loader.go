package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the diagnostic error returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// A variable FOO_SSM_PARAM=/path tells the loader to fill FOO from SSM.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv enables stub clients. Local runs resolve *_SSM_PARAM bindings only
// when given a provider, normally an EnvVarProvider.
const localEnv = "local"

// environment abstracts the process environment so the loader can be tested
// without touching os state.
type environment interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	List() []string
}

type osEnvironment struct{}

func (osEnvironment) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnvironment) Set(key, value string) error      { return os.Setenv(key, value) }
func (osEnvironment) List() []string                   { return os.Environ() }

// LoadConfig loads and validates the configuration:
//
//  1. Forces the process timezone to UTC.
//  2. Loads .env if present; existing variables win.
//  3. Fills *_SSM_PARAM targets through provider (skipped for local runs
//     without one).
//  4. Populates Config from envconfig tags.
//  5. Adds linker-injected build info.
//  6. Validates struct tags.
//
// provider may be nil for local runs.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return load(provider, osEnvironment{})
}

func load(provider SecretProvider, env environment) (*Config, error) {
	time.Local = time.UTC
	_ = godotenv.Load()

	if appEnv, _ := env.Lookup("APP_ENV"); appEnv != localEnv || provider != nil {
		if err := resolveSSMParams(provider, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	return &cfg, nil
}

// ssmBindings returns target variable -> SSM path for every *_SSM_PARAM
// variable whose target is not already set.
func ssmBindings(env environment) map[string]string {
	bindings := make(map[string]string)
	for _, entry := range env.List() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || path == "" || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := env.Lookup(target); set {
			continue
		}
		bindings[target] = path
	}
	return bindings
}

// resolveSSMParams fetches every pending SSM binding in one batch and writes
// the values back into the environment for envconfig to pick up.
func resolveSSMParams(provider SecretProvider, env environment) error {
	bindings := ssmBindings(env)
	if len(bindings) == 0 {
		return nil
	}

	targets := make([]string, 0, len(bindings))
	for target := range bindings {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SecretProvider is required outside local (need to resolve: " + strings.Join(targets, ", ") + ")",
		}
	}

	paths := make([]string, 0, len(targets))
	for _, target := range targets {
		paths = append(paths, bindings[target])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, target := range targets {
		value, ok := resolved[bindings[target]]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := env.Set(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: "failed to set resolved value for " + target,
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SSM parameters not found for: " + strings.Join(missing, ", "),
		}
	}
	return nil
}
