package core

import (
	"context"
	"fmt"
	"time"

	"caseflow/internal/types"
)

// Attribute names set on dead-lettered messages.
const (
	AttrFailureReason = "failure_reason"
	AttrAttempts      = "attempts"
)

// MessageSender sends one NotificationMessage to a queue. *queue.Producer
// implements it.
type MessageSender interface {
	Send(ctx context.Context, msg types.NotificationMessage, delay time.Duration, attrs map[string]string) error
}

// NotificationPublisher republishes messages for retry and forwards
// terminal failures to the dead-letter queue.
//
// The key contract: Publish increments msg.RetryCount BEFORE serializing, so
// the next consumer sees the attempt it is running.
type NotificationPublisher struct {
	retryQueue MessageSender
	deadLetter MessageSender
	logger     types.Logger
}

var (
	_ RetryPublisher      = (*NotificationPublisher)(nil)
	_ DeadLetterPublisher = (*NotificationPublisher)(nil)
)

// NewNotificationPublisher creates a publisher. deadLetter may be nil, in
// which case DeadLetter only logs.
func NewNotificationPublisher(retryQueue, deadLetter MessageSender, logger types.Logger) *NotificationPublisher {
	return &NotificationPublisher{
		retryQueue: retryQueue,
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// Publish increments the message's RetryCount and sends it to the
// notification queue with the given delay. msg is passed by value so the
// caller's copy is unchanged.
func (p *NotificationPublisher) Publish(ctx context.Context, msg types.NotificationMessage, delay time.Duration) error {
	msg.RetryCount++

	if err := p.retryQueue.Send(ctx, msg, delay, nil); err != nil {
		return fmt.Errorf("notification publisher: %w", err)
	}

	p.logger.Info("notification message republished",
		"message_id", msg.MessageID,
		"retry_count", msg.RetryCount,
		"trace_id", msg.TraceID,
	)
	return nil
}

// DeadLetter sends msg unchanged to the dead-letter queue with the failure
// reason attached as a message attribute.
func (p *NotificationPublisher) DeadLetter(ctx context.Context, msg types.NotificationMessage, reason string) error {
	if p.deadLetter == nil {
		p.logger.Warn("no dead-letter queue configured, dropping failed notification",
			"message_id", msg.MessageID,
			"reason", reason,
		)
		return nil
	}

	attrs := map[string]string{
		AttrFailureReason: reason,
		AttrAttempts:      fmt.Sprintf("%d", msg.Attempt()),
	}
	if err := p.deadLetter.Send(ctx, msg, 0, attrs); err != nil {
		return fmt.Errorf("notification publisher: dead letter: %w", err)
	}

	p.logger.Info("notification message dead-lettered",
		"message_id", msg.MessageID,
		"trace_id", msg.TraceID,
	)
	return nil
}
