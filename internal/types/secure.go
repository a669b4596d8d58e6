package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds credentials loaded from configuration (provider API keys,
// the service-auth hash, the database URL). Formatting or JSON-encoding it
// yields a placeholder so secrets never reach logs or config dumps.
type SecretString string

// String returns the placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the plaintext. Call it only where the raw value is handed to
// a client or driver.
func (s SecretString) Unmask() string {
	return string(s)
}
