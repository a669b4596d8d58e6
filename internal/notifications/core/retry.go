package core

import (
	"context"
	"fmt"
	"time"

	"caseflow/internal/types"
)

// DefaultTransientStatuses are the provider statuses treated as transient:
// rate limiting and temporary unavailability.
var DefaultTransientStatuses = []int{429, 500, 503}

// RetryPublisher resubmits a message to the notification queue.
type RetryPublisher interface {
	Publish(ctx context.Context, msg types.NotificationMessage, delay time.Duration) error
}

// DeadLetterPublisher records a terminal failure for operators.
type DeadLetterPublisher interface {
	DeadLetter(ctx context.Context, msg types.NotificationMessage, reason string) error
}

// RetryCoordinator classifies delivery failures. Transient failures within
// the budget are rescheduled by republishing the original message to the
// queue the worker consumes, so the retry passes through the same
// eligibility and handler selection as the first attempt. Everything else is
// terminal and reported.
type RetryCoordinator struct {
	publisher  RetryPublisher
	deadLetter DeadLetterPublisher
	metrics    NotificationMetrics
	policy     RetryPolicy
	transient  map[int]struct{}
	logger     types.Logger
}

// NewRetryCoordinator creates a coordinator. deadLetter and metrics may be nil;
// terminal failures are then only logged.
func NewRetryCoordinator(
	publisher RetryPublisher,
	deadLetter DeadLetterPublisher,
	metrics NotificationMetrics,
	policy RetryPolicy,
	transientStatuses []int,
	logger types.Logger,
) *RetryCoordinator {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	transient := make(map[int]struct{}, len(transientStatuses))
	for _, s := range transientStatuses {
		transient[s] = struct{}{}
	}
	return &RetryCoordinator{
		publisher:  publisher,
		deadLetter: deadLetter,
		metrics:    metrics,
		policy:     policy,
		transient:  transient,
		logger:     logger,
	}
}

// Classify returns the attempt record for msg and whether err is transient.
// A delivery error without a status (no response from the provider) is
// transient; an error that is not a delivery error is never transient.
func (c *RetryCoordinator) Classify(msg types.NotificationMessage, err error) (RetryAttempt, bool) {
	attempt := RetryAttempt{
		AttemptNumber: msg.Attempt(),
		MaxAttempts:   c.policy.MaxAttempts,
	}

	status, ok := DeliveryStatusOf(err)
	if !ok {
		attempt.LastErrorKind = "unclassified"
		return attempt, false
	}
	if status == 0 {
		attempt.LastErrorKind = "no_response"
		return attempt, true
	}
	attempt.LastErrorKind = fmt.Sprintf("status_%d", status)
	_, transient := c.transient[status]
	return attempt, transient
}

// HandleFailure moves a failed delivery to RESCHEDULED or FAILED_TERMINAL.
// The returned error is non-nil only when that move could not be completed
// (the republish or dead-letter send failed).
func (c *RetryCoordinator) HandleFailure(ctx context.Context, msg types.NotificationMessage, deliveryErr error) (RetryState, RetryAttempt, error) {
	attempt, transient := c.Classify(msg, deliveryErr)
	log := c.logger.With(
		"message_id", msg.MessageID,
		"case_id", msg.Callback.CaseID(),
		"event_type", string(msg.Callback.EventType),
		"attempt", attempt.AttemptNumber,
		"max_attempts", attempt.MaxAttempts,
		"error_kind", attempt.LastErrorKind,
		"trace_id", msg.TraceID,
	)

	if transient && !attempt.Exhausted() {
		delay := CalculateNextRetry(c.policy, attempt.AttemptNumber-1)
		if err := c.publisher.Publish(ctx, msg, delay); err != nil {
			log.Error("failed to reschedule notification", "error", err.Error())
			return StateFailedTransient, attempt, fmt.Errorf("reschedule: %w", err)
		}
		log.Warn("notification delivery failed, rescheduled",
			"error", deliveryErr.Error(),
			"delay", delay.String(),
		)
		return StateRescheduled, attempt, nil
	}

	log.Error("notification delivery failed permanently", "error", deliveryErr.Error())
	if c.metrics != nil {
		c.metrics.RecordTerminalFailure(ctx, msg.Callback.EventType, attempt.LastErrorKind)
	}
	if c.deadLetter != nil {
		if err := c.deadLetter.DeadLetter(ctx, msg, deliveryErr.Error()); err != nil {
			log.Error("failed to dead-letter notification", "error", err.Error())
			return StateFailedTerminal, attempt, fmt.Errorf("dead letter: %w", err)
		}
	}
	return StateFailedTerminal, attempt, nil
}
