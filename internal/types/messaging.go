package types

import "time"

// NotificationMessage is the SQS payload carrying a notification callback to
// the notification worker. The same envelope is used for first attempts and
// for rescheduled retries so both travel the identical code path.
type NotificationMessage struct {
	// MessageID identifies the logical notification and stays stable across
	// retries. The delivery ledger is keyed on it.
	MessageID string `json:"message_id"`

	Callback Callback `json:"callback"`

	// RetryCount is zero on the first attempt and incremented by the
	// publisher each time the message is rescheduled.
	RetryCount int `json:"retry_count"`

	TraceID    string    `json:"trace_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Attempt returns the 1-based attempt number this message represents.
func (m NotificationMessage) Attempt() int {
	return m.RetryCount + 1
}
