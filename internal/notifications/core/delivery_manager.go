package core

import (
	"context"
	"fmt"

	"caseflow/internal/types"
)

// Compile-time assertion that DeliveryManager implements DeliveryLedger.
var _ DeliveryLedger = (*DeliveryManager)(nil)

// DeliveryRepository defines the minimal persistence interface required by
// the DeliveryManager. *db.DeliveryRepository implements it.
type DeliveryRepository interface {
	// InsertDeliveryIfNotExists performs an idempotent insert using
	// INSERT ... ON CONFLICT DO NOTHING and returns the stored status.
	InsertDeliveryIfNotExists(ctx context.Context, rec *types.DeliveryRecord) (status types.DeliveryStatus, created bool, err error)

	// IncrementAttempt updates last_attempt_at and attempt_count.
	IncrementAttempt(ctx context.Context, messageID string) error

	// SetDelivered marks the record delivered with the provider reference.
	SetDelivered(ctx context.Context, messageID string, providerRef string) error

	// UpdateDeliveryStatus sets status and failure reason.
	UpdateDeliveryStatus(ctx context.Context, messageID string, status types.DeliveryStatus, reason string) error
}

// DeliveryManager is the pgx-backed DeliveryLedger. It enforces at-most-once
// delivery across SQS redeliveries and retries of the same MessageID.
type DeliveryManager struct {
	repo   DeliveryRepository
	logger types.Logger
}

// NewDeliveryManager creates a new DeliveryManager.
func NewDeliveryManager(repo DeliveryRepository, logger types.Logger) *DeliveryManager {
	return &DeliveryManager{repo: repo, logger: logger}
}

// Begin ensures a ledger row exists and records the attempt. It reports true
// without recording an attempt when the message was already delivered.
func (m *DeliveryManager) Begin(ctx context.Context, msg types.NotificationMessage) (bool, error) {
	rec := &types.DeliveryRecord{
		MessageID: msg.MessageID,
		CaseID:    msg.Callback.CaseID(),
		EventType: msg.Callback.EventType,
		Status:    types.DeliveryStatusPending,
	}

	status, created, err := m.repo.InsertDeliveryIfNotExists(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("Begin: %w", err)
	}
	if created {
		m.logger.Info("delivery record created",
			"message_id", msg.MessageID,
			"case_id", rec.CaseID,
			"event_type", string(rec.EventType),
		)
	}
	if status == types.DeliveryStatusDelivered || status == types.DeliveryStatusSkipped {
		m.logger.Info("delivery already completed, skipping",
			"message_id", msg.MessageID,
			"status", string(status),
		)
		return true, nil
	}

	if err := m.repo.IncrementAttempt(ctx, msg.MessageID); err != nil {
		return false, fmt.Errorf("Begin: record attempt: %w", err)
	}
	return false, nil
}

// MarkDelivered records a successful provider call.
func (m *DeliveryManager) MarkDelivered(ctx context.Context, messageID string, providerRef string) error {
	if err := m.repo.SetDelivered(ctx, messageID, providerRef); err != nil {
		return fmt.Errorf("MarkDelivered: %w", err)
	}
	m.logger.Info("delivery succeeded",
		"message_id", messageID,
		"provider_ref", providerRef,
	)
	return nil
}

// MarkFailed records a failed attempt. Whether it is retried is decided by the
// RetryCoordinator, not the ledger.
func (m *DeliveryManager) MarkFailed(ctx context.Context, messageID string, reason string) error {
	if err := m.repo.UpdateDeliveryStatus(ctx, messageID, types.DeliveryStatusFailed, reason); err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

// MarkSkipped records that there was nothing to deliver.
func (m *DeliveryManager) MarkSkipped(ctx context.Context, messageID string, reason string) error {
	if err := m.repo.UpdateDeliveryStatus(ctx, messageID, types.DeliveryStatusSkipped, reason); err != nil {
		return fmt.Errorf("MarkSkipped: %w", err)
	}
	m.logger.Info("delivery skipped",
		"message_id", messageID,
		"reason", reason,
	)
	return nil
}

// NoopLedger is used when no database is configured. Every message is treated
// as new, so idempotency falls back to the transport's delivery guarantees.
type NoopLedger struct{}

func (NoopLedger) Begin(context.Context, types.NotificationMessage) (bool, error) { return false, nil }
func (NoopLedger) MarkDelivered(context.Context, string, string) error            { return nil }
func (NoopLedger) MarkFailed(context.Context, string, string) error               { return nil }
func (NoopLedger) MarkSkipped(context.Context, string, string) error              { return nil }
