package types

import "time"

// DeliveryStatus is the state of a notification in the delivery ledger.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusSkipped   DeliveryStatus = "skipped"
)

// DeliveryRecord is one row of the delivery ledger, keyed by the stable
// NotificationMessage.MessageID.
type DeliveryRecord struct {
	MessageID     string         `db:"message_id"`
	CaseID        int64          `db:"case_id"`
	EventType     EventType      `db:"event_type"`
	Status        DeliveryStatus `db:"status"`
	AttemptCount  int            `db:"attempt_count"`
	LastAttemptAt *time.Time     `db:"last_attempt_at"`
	DeliveredAt   *time.Time     `db:"delivered_at"`
	FailureReason string         `db:"failure_reason"`
	ProviderRef   string         `db:"provider_ref"`
	CreatedAt     time.Time      `db:"created_at"`
}
