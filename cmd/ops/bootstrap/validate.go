package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/internal/external"
)

// ValidationResult is the outcome of checking one operator input.
type ValidationResult struct {
	Valid   bool
	Message string
}

// DatabaseConnector opens and immediately closes a connection to dsn.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

// PgxConnector dials the database with pgx.
type PgxConnector struct{}

func (PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// Validator holds the dependencies of the active checks.
type Validator struct {
	dbConn DatabaseConnector
}

func NewValidator(dbConn DatabaseConnector) *Validator {
	return &Validator{dbConn: dbConn}
}

const validateTimeout = 15 * time.Second

// ValidateDatabaseURL parses the DSN and, when a connector is configured,
// proves it by connecting.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, raw string) ValidationResult {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ValidationResult{Message: "database URL must not be empty"}
	}
	cfg, err := pgx.ParseConfig(raw)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid connection string: %v", err)}
	}
	if v.dbConn == nil {
		return ValidationResult{Valid: true, Message: fmt.Sprintf("parsed (host %s, not dialled)", cfg.Host)}
	}

	connCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	if err := v.dbConn.Connect(connCtx, raw); err != nil {
		return ValidationResult{Message: fmt.Sprintf("connection to %s failed: %v", cfg.Host, err)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("connected to %s/%s", cfg.Host, cfg.Database)}
}

// ValidateNotifyKey checks the key carries a service id and secret.
func (v *Validator) ValidateNotifyKey(_ context.Context, key string) ValidationResult {
	if err := external.ValidateNotifyKey(strings.TrimSpace(key)); err != nil {
		return ValidationResult{Message: err.Error()}
	}
	return ValidationResult{Valid: true, Message: "Notify API key format accepted"}
}

// ValidateMinLength rejects values shorter than n characters.
func (v *Validator) ValidateMinLength(n int, label string) func(context.Context, string) ValidationResult {
	return func(_ context.Context, input string) ValidationResult {
		if len(strings.TrimSpace(input)) < n {
			return ValidationResult{Message: fmt.Sprintf("%s must be at least %d characters", label, n)}
		}
		return ValidationResult{Valid: true, Message: label + " accepted"}
	}
}
