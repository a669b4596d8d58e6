package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

// mockLogger records log calls by level.
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) With(_ ...any) types.Logger { return l }

// statusError is a provider delivery error carrying an HTTP status.
type statusError struct{ status int }

func (e *statusError) Error() string       { return fmt.Sprintf("provider returned %d", e.status) }
func (e *statusError) DeliveryStatus() int { return e.status }

// mockSender records queue sends.
type mockSender struct {
	sent   []types.NotificationMessage
	delays []time.Duration
	attrs  []map[string]string
	err    error
}

func (m *mockSender) Send(_ context.Context, msg types.NotificationMessage, delay time.Duration, attrs map[string]string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	m.delays = append(m.delays, delay)
	m.attrs = append(m.attrs, attrs)
	return nil
}

// mockMetrics counts metric calls.
type mockMetrics struct {
	deliveries []MetricResult
	failures   []string
	latencies  int
	lags       int
}

func (m *mockMetrics) RecordDelivery(_ context.Context, _ types.EventType, r MetricResult) {
	m.deliveries = append(m.deliveries, r)
}
func (m *mockMetrics) RecordLatency(context.Context, types.EventType, time.Duration) { m.latencies++ }
func (m *mockMetrics) RecordQueueLag(context.Context, time.Duration)                 { m.lags++ }
func (m *mockMetrics) RecordTerminalFailure(_ context.Context, _ types.EventType, kind string) {
	m.failures = append(m.failures, kind)
}

// mockProcessor returns errs in order, then nil.
type mockProcessor struct {
	calls []types.NotificationMessage
	errs  []error
}

func (m *mockProcessor) Process(_ context.Context, msg types.NotificationMessage) error {
	m.calls = append(m.calls, msg)
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

// mockRetryHandler returns a fixed outcome.
type mockRetryHandler struct {
	calls int
	state RetryState
	err   error
}

func (m *mockRetryHandler) HandleFailure(_ context.Context, msg types.NotificationMessage, _ error) (RetryState, RetryAttempt, error) {
	m.calls++
	return m.state, RetryAttempt{AttemptNumber: msg.Attempt(), MaxAttempts: 2}, m.err
}

// mockDispatcher returns a canned result or error and can record receipts.
type mockDispatcher struct {
	calls    int
	phases   []types.Phase
	receipts []string
	result   *dispatch.Result
	err      error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error) {
	m.calls++
	m.phases = append(m.phases, phase)
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.receipts {
		RecordReceipt(ctx, r)
	}
	if m.result != nil {
		return m.result, nil
	}
	return dispatch.NewResult(cb.Data()), nil
}

func notificationMessage(event types.EventType, data types.CaseData) types.NotificationMessage {
	return types.NotificationMessage{
		MessageID: "msg-1",
		TraceID:   "trace-1",
		Callback: types.Callback{
			EventType:   event,
			CaseDetails: types.CaseDetails{ID: 1650000000000001, Data: data},
		},
	}
}
