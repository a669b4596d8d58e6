package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"caseflow/internal/types"
)

// DeliveryRepository provides data access for the notification_deliveries
// table, keyed by queue message ID.
type DeliveryRepository struct {
	db DBTX
}

func NewDeliveryRepository(db DBTX) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// InsertDeliveryIfNotExists inserts rec unless a row with the same message ID
// exists, and returns the stored status either way. created reports whether
// this call inserted the row.
func (r *DeliveryRepository) InsertDeliveryIfNotExists(ctx context.Context, rec *types.DeliveryRecord) (types.DeliveryStatus, bool, error) {
	var status string
	err := r.db.QueryRow(ctx,
		`INSERT INTO notification_deliveries (message_id, case_id, event_type, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (message_id) DO NOTHING
		 RETURNING status`,
		rec.MessageID,
		rec.CaseID,
		string(rec.EventType),
		string(statusOrPending(rec.Status)),
	).Scan(&status)
	if err == nil {
		return types.DeliveryStatus(status), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to insert delivery", err)
	}

	// Conflict: the row exists, read its status.
	err = r.db.QueryRow(ctx,
		`SELECT status FROM notification_deliveries WHERE message_id = $1`,
		rec.MessageID,
	).Scan(&status)
	if err != nil {
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to read delivery status", err)
	}
	return types.DeliveryStatus(status), false, nil
}

func (r *DeliveryRepository) IncrementAttempt(ctx context.Context, messageID string) error {
	return r.exec(ctx, "failed to increment attempt",
		`UPDATE notification_deliveries SET
			attempt_count = attempt_count + 1,
			last_attempt_at = NOW()
		 WHERE message_id = $1`,
		messageID,
	)
}

func (r *DeliveryRepository) SetDelivered(ctx context.Context, messageID, providerRef string) error {
	return r.exec(ctx, "failed to mark delivery delivered",
		`UPDATE notification_deliveries SET
			status = 'delivered',
			provider_ref = $2,
			failure_reason = NULL,
			delivered_at = NOW()
		 WHERE message_id = $1`,
		messageID,
		nilIfEmpty(providerRef),
	)
}

func (r *DeliveryRepository) UpdateDeliveryStatus(ctx context.Context, messageID string, status types.DeliveryStatus, reason string) error {
	return r.exec(ctx, "failed to update delivery status",
		`UPDATE notification_deliveries SET
			status = $2,
			failure_reason = $3
		 WHERE message_id = $1`,
		messageID,
		string(status),
		nilIfEmpty(reason),
	)
}

func (r *DeliveryRepository) exec(ctx context.Context, msg, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, msg, err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalDB, msg+": no delivery for message", nil)
	}
	return nil
}

func statusOrPending(s types.DeliveryStatus) types.DeliveryStatus {
	if s == "" {
		return types.DeliveryStatusPending
	}
	return s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
