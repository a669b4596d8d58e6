package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/types"
)

func TestCalculateNextRetry_DefaultPolicy(t *testing.T) {
	// DefaultRetryPolicy: BaseDelay=30s, BackoffFactor=2.0, MaxDelay=15m
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 30 * time.Second},
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{10, 15 * time.Minute}, // capped
	}

	for _, tt := range tests {
		d := CalculateNextRetry(DefaultRetryPolicy, tt.attempt)
		if d != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, d)
		}
	}
}

func TestCalculateNextRetry_NegativeAttempt(t *testing.T) {
	d := CalculateNextRetry(DefaultRetryPolicy, -1)
	if d != 30*time.Second {
		t.Errorf("expected 30s for negative attempt, got %v", d)
	}
}

func newTestCoordinator(retryQ, dlq *mockSender, metrics *mockMetrics) *RetryCoordinator {
	logger := &mockLogger{}
	pub := NewNotificationPublisher(retryQ, dlq, logger)
	return NewRetryCoordinator(pub, pub, metrics, DefaultRetryPolicy, DefaultTransientStatuses, logger)
}

func TestClassify(t *testing.T) {
	c := newTestCoordinator(&mockSender{}, &mockSender{}, &mockMetrics{})
	msg := notificationMessage(types.EventAppealReceived, nil)

	tests := []struct {
		name      string
		err       error
		transient bool
		kind      string
	}{
		{"rate limited", &statusError{status: 429}, true, "status_429"},
		{"server error", &statusError{status: 500}, true, "status_500"},
		{"unavailable", &statusError{status: 503}, true, "status_503"},
		{"no response", &statusError{status: 0}, true, "no_response"},
		{"bad request", &statusError{status: 400}, false, "status_400"},
		{"forbidden", &statusError{status: 403}, false, "status_403"},
		{"not a delivery error", errors.New("boom"), false, "unclassified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt, transient := c.Classify(msg, tt.err)
			assert.Equal(t, tt.transient, transient)
			assert.Equal(t, tt.kind, attempt.LastErrorKind)
			assert.Equal(t, 1, attempt.AttemptNumber)
			assert.Equal(t, 2, attempt.MaxAttempts)
		})
	}
}

func TestHandleFailure_TransientFirstAttemptReschedules(t *testing.T) {
	retryQ, dlq, metrics := &mockSender{}, &mockSender{}, &mockMetrics{}
	c := newTestCoordinator(retryQ, dlq, metrics)

	state, attempt, err := c.HandleFailure(context.Background(), notificationMessage(types.EventAppealReceived, nil), &statusError{status: 429})
	require.NoError(t, err)
	assert.Equal(t, StateRescheduled, state)
	assert.Equal(t, 1, attempt.AttemptNumber)

	require.Len(t, retryQ.sent, 1)
	assert.Equal(t, 1, retryQ.sent[0].RetryCount, "republished message must carry the next attempt")
	assert.Equal(t, "msg-1", retryQ.sent[0].MessageID, "message identity is stable across retries")
	assert.Equal(t, 30*time.Second, retryQ.delays[0])
	assert.Empty(t, dlq.sent)
	assert.Empty(t, metrics.failures)
}

func TestHandleFailure_TransientAtBudgetIsTerminal(t *testing.T) {
	retryQ, dlq, metrics := &mockSender{}, &mockSender{}, &mockMetrics{}
	c := newTestCoordinator(retryQ, dlq, metrics)

	msg := notificationMessage(types.EventAppealReceived, nil)
	msg.RetryCount = 1

	state, attempt, err := c.HandleFailure(context.Background(), msg, &statusError{status: 503})
	require.NoError(t, err)
	assert.Equal(t, StateFailedTerminal, state)
	assert.True(t, attempt.Exhausted())
	assert.Empty(t, retryQ.sent)
	require.Len(t, dlq.sent, 1)
	assert.Equal(t, "2", dlq.attrs[0][AttrAttempts])
	assert.Equal(t, []string{"status_503"}, metrics.failures)
}

func TestHandleFailure_NonTransientIsTerminalImmediately(t *testing.T) {
	retryQ, dlq, metrics := &mockSender{}, &mockSender{}, &mockMetrics{}
	c := newTestCoordinator(retryQ, dlq, metrics)

	state, _, err := c.HandleFailure(context.Background(), notificationMessage(types.EventAppealReceived, nil), &statusError{status: 400})
	require.NoError(t, err)
	assert.Equal(t, StateFailedTerminal, state)
	assert.Empty(t, retryQ.sent)
	assert.Len(t, dlq.sent, 1)
	assert.Contains(t, dlq.attrs[0][AttrFailureReason], "400")
}

func TestHandleFailure_RepublishErrorIsReturned(t *testing.T) {
	retryQ := &mockSender{err: errors.New("sqs unavailable")}
	c := newTestCoordinator(retryQ, &mockSender{}, &mockMetrics{})

	state, _, err := c.HandleFailure(context.Background(), notificationMessage(types.EventAppealReceived, nil), &statusError{status: 429})
	assert.Error(t, err)
	assert.Equal(t, StateFailedTransient, state)
}

func TestHandleFailure_ZeroMaxAttemptsMeansSingleAttempt(t *testing.T) {
	retryQ := &mockSender{}
	logger := &mockLogger{}
	pub := NewNotificationPublisher(retryQ, nil, logger)
	c := NewRetryCoordinator(pub, pub, nil, RetryPolicy{}, DefaultTransientStatuses, logger)

	state, _, err := c.HandleFailure(context.Background(), notificationMessage(types.EventAppealReceived, nil), &statusError{status: 429})
	require.NoError(t, err)
	assert.Equal(t, StateFailedTerminal, state)
	assert.Empty(t, retryQ.sent)
}

// TestRetryBound runs the real filter and coordinator against a processor
// that always fails with a transient status. Rescheduled messages are fed
// back into the filter the way the worker would receive them from the queue.
func TestRetryBound_TransientEveryAttempt(t *testing.T) {
	for _, maxAttempts := range []int{1, 2, 3, 5} {
		retryQ, dlq, metrics := &mockSender{}, &mockSender{}, &mockMetrics{}
		logger := &mockLogger{}
		pub := NewNotificationPublisher(retryQ, dlq, logger)
		policy := DefaultRetryPolicy
		policy.MaxAttempts = maxAttempts
		coord := NewRetryCoordinator(pub, pub, metrics, policy, DefaultTransientStatuses, logger)

		attempts := 0
		proc := processorFunc(func(context.Context, types.NotificationMessage) error {
			attempts++
			return &statusError{status: 503}
		})
		filter := NewEligibilityFilter(Features{}, proc, coord, logger)

		queue := []types.NotificationMessage{notificationMessage(types.EventAppealReceived, nil)}
		var last *DeliveryFailure
		for len(queue) > 0 && attempts <= maxAttempts+1 {
			msg := queue[0]
			queue = queue[1:]
			_, err := filter.Filter(context.Background(), msg)
			require.ErrorAs(t, err, &last)
			queue = append(queue, retryQ.sent...)
			retryQ.sent = nil
		}

		assert.Equal(t, maxAttempts, attempts, "maxAttempts=%d", maxAttempts)
		assert.Equal(t, StateFailedTerminal, last.State)
		assert.Len(t, dlq.sent, 1)
		assert.Len(t, metrics.failures, 1)
	}
}

type processorFunc func(context.Context, types.NotificationMessage) error

func (f processorFunc) Process(ctx context.Context, msg types.NotificationMessage) error {
	return f(ctx, msg)
}
