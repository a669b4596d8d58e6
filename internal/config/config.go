// Package config defines the configuration of the caseflow service. It is
// loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or invalid format fails startup.
package config

import (
	"time"

	"caseflow/internal/types"
)

// SecretString is an alias for types.SecretString so config structs can be
// declared without importing types.
type SecretString = types.SecretString

// Config is the top-level configuration. Components receive only the
// section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"caseflow"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Notify        NotifyConfig
	CaseStore     CaseStoreConfig
	Security      SecurityConfig
	Feature       FeatureConfig
	Worker        WorkerConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// UseStubs reports whether external clients should be replaced by stubs.
func (c *Config) UseStubs() bool {
	return c.IsTestMode || c.Environment == localEnv
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	// Callback payloads carry full case data, which can be large.
	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"10485760" validate:"min=1024"`
}

// DatabaseConfig configures the delivery ledger. When URL is empty the
// ledger is disabled.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-2"`

	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"required,url"`
	DlqURL            string `envconfig:"SQS_DLQ" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// NotifyConfig configures the notification provider and the retry policy
// applied to its failures.
type NotifyConfig struct {
	APIKey  SecretString  `envconfig:"NOTIFY_API_KEY" validate:"required"`
	BaseURL string        `envconfig:"NOTIFY_BASE_URL" default:"https://api.notifications.service.gov.uk" validate:"url"`
	Timeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`

	// TemplatesJSON maps event type -> channel -> provider template ID.
	// Example: {"hearingBooked": {"email": "tmpl-1", "sms": "tmpl-2"}}
	TemplatesJSON string `envconfig:"NOTIFY_TEMPLATES_JSON" default:"{}" validate:"json"`

	TransientStatuses []int         `envconfig:"NOTIFY_TRANSIENT_STATUSES" default:"429,500,503"`
	MaxAttempts       int           `envconfig:"NOTIFY_MAX_ATTEMPTS" default:"2" validate:"min=1,max=10"`
	RetryBaseDelay    time.Duration `envconfig:"NOTIFY_RETRY_BASE_DELAY" default:"30s"`
	RetryMaxDelay     time.Duration `envconfig:"NOTIFY_RETRY_MAX_DELAY" default:"15m"`
}

// CaseStoreConfig points at the case platform's data store API.
type CaseStoreConfig struct {
	BaseURL      string        `envconfig:"CASE_STORE_URL" validate:"required,url"`
	Timeout      time.Duration `envconfig:"CASE_STORE_TIMEOUT" default:"10s"`
	ServiceToken SecretString  `envconfig:"CASE_STORE_S2S_TOKEN"`
}

// SecurityConfig holds service-to-service authentication settings.
type SecurityConfig struct {
	// S2SSecretHash is the bcrypt hash of the shared secret callers present
	// in the ServiceAuthorization header.
	S2SSecretHash      SecretString `envconfig:"S2S_SECRET_HASH" validate:"required"`
	AllowedServices    []string     `envconfig:"S2S_ALLOWED_SERVICES" default:"ccd_data,sscs_bulk_scan"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// FeatureConfig holds the feature flags read by the notification filter.
type FeatureConfig struct {
	PostHearingsEnabled  bool `envconfig:"FEATURE_POST_HEARINGS" default:"false"`
	PostHearingsBEnabled bool `envconfig:"FEATURE_POST_HEARINGS_B" default:"false"`
}

// WorkerConfig tunes the notification worker.
type WorkerConfig struct {
	Concurrency int `envconfig:"WORKER_CONCURRENCY" default:"10" validate:"min=1,max=100"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"CaseFlow"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
