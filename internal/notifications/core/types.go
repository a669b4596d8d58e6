// Package core provides the notification pipeline shared by the notification
// worker: the eligibility gate in front of the notification handlers, the
// delivery ledger, and the retry coordinator that decides whether a failed
// delivery is rescheduled or reported as terminal.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

// RetryState is the state of one delivery attempt.
type RetryState string

const (
	StatePending         RetryState = "PENDING"
	StateDelivered       RetryState = "DELIVERED"
	StateFailedTransient RetryState = "FAILED_TRANSIENT"
	StateRescheduled     RetryState = "RESCHEDULED"
	StateFailedTerminal  RetryState = "FAILED_TERMINAL"
)

// RetryAttempt describes where a failed delivery sits in its retry budget.
type RetryAttempt struct {
	AttemptNumber int
	MaxAttempts   int
	LastErrorKind string
}

// Exhausted reports whether no further attempt is allowed.
func (a RetryAttempt) Exhausted() bool {
	return a.AttemptNumber >= a.MaxAttempts
}

// StatusCoder is implemented by provider delivery errors. DeliveryStatus
// returns the provider's HTTP status, or 0 when no response was received.
type StatusCoder interface {
	error
	DeliveryStatus() int
}

// DeliveryStatusOf extracts the provider status from err.
func DeliveryStatusOf(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.DeliveryStatus(), true
	}
	return 0, false
}

// DeliveryFailure is returned by the eligibility filter once a delivery error
// has been through the retry coordinator. State tells the transport layer
// whether the failure has been fully handled.
type DeliveryFailure struct {
	State   RetryState
	Attempt RetryAttempt
	Err     error
}

func (e *DeliveryFailure) Error() string {
	return fmt.Sprintf("delivery %s after attempt %d/%d: %v",
		e.State, e.Attempt.AttemptNumber, e.Attempt.MaxAttempts, e.Err)
}

func (e *DeliveryFailure) Unwrap() error {
	return e.Err
}

// Handled reports whether the failure was rescheduled or reported, in which
// case the transport message may be acknowledged.
func (e *DeliveryFailure) Handled() bool {
	return e.State == StateRescheduled || e.State == StateFailedTerminal
}

// Processor performs the actual notification work for an eligible message.
type Processor interface {
	Process(ctx context.Context, msg types.NotificationMessage) error
}

// Dispatcher is the subset of *dispatch.Dispatcher used by the processor.
type Dispatcher interface {
	Dispatch(ctx context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error)
}

// RetryHandler classifies a delivery error and acts on it.
type RetryHandler interface {
	HandleFailure(ctx context.Context, msg types.NotificationMessage, err error) (RetryState, RetryAttempt, error)
}

// DeliveryLedger records delivery state so a redelivered message that already
// reached the provider is not sent twice.
type DeliveryLedger interface {
	// Begin registers the attempt. It reports true when the message was
	// already delivered and must be skipped.
	Begin(ctx context.Context, msg types.NotificationMessage) (alreadyDelivered bool, err error)

	MarkDelivered(ctx context.Context, messageID string, providerRef string) error

	MarkFailed(ctx context.Context, messageID string, reason string) error

	// MarkSkipped is used when the notification pipeline had nothing to send.
	MarkSkipped(ctx context.Context, messageID string, reason string) error
}

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// NotificationMetrics abstracts CloudWatch/telemetry operations for the
// notification system.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, eventType types.EventType, result MetricResult)
	RecordLatency(ctx context.Context, eventType types.EventType, duration time.Duration)
	RecordQueueLag(ctx context.Context, lag time.Duration)
	RecordTerminalFailure(ctx context.Context, eventType types.EventType, errorKind string)
}

// RetryPolicy holds the retry budget and the SQS delay schedule between
// attempts. The delay is handed to the transport; nothing here sleeps.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy allows one extra attempt after the first.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:   2,
	BaseDelay:     30 * time.Second,
	MaxDelay:      15 * time.Minute,
	BackoffFactor: 2.0,
}

// CalculateNextRetry computes the delay before the next retry attempt using
// exponential backoff: delay = min(BaseDelay * BackoffFactor^attempt, MaxDelay).
func CalculateNextRetry(policy RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(policy.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= policy.BackoffFactor
	}

	d := time.Duration(delay)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	if d < 0 {
		// Guard against overflow
		d = policy.MaxDelay
	}

	return d
}
