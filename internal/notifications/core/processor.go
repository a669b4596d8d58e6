package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"caseflow/internal/types"
)

type receiptsKey struct{}

type receiptLog struct {
	mu   sync.Mutex
	refs []string
}

// RecordReceipt lets a notification handler report the provider reference of
// a message it sent. It is a no-op outside DispatchProcessor.Process.
func RecordReceipt(ctx context.Context, providerRef string) {
	if r, ok := ctx.Value(receiptsKey{}).(*receiptLog); ok {
		r.mu.Lock()
		r.refs = append(r.refs, providerRef)
		r.mu.Unlock()
	}
}

// DispatchProcessor is the Processor behind the eligibility filter. It guards
// the notification dispatch with the delivery ledger and records the outcome.
type DispatchProcessor struct {
	dispatcher Dispatcher
	ledger     DeliveryLedger
	metrics    NotificationMetrics
	logger     types.Logger
}

var _ Processor = (*DispatchProcessor)(nil)

// NewDispatchProcessor creates a processor over the notification dispatcher.
func NewDispatchProcessor(dispatcher Dispatcher, ledger DeliveryLedger, metrics NotificationMetrics, logger types.Logger) *DispatchProcessor {
	return &DispatchProcessor{
		dispatcher: dispatcher,
		ledger:     ledger,
		metrics:    metrics,
		logger:     logger,
	}
}

// Process runs the notification handlers for msg at most once per MessageID.
// A fatal dispatch error, including a provider delivery error, is returned
// unchanged for the filter to classify.
func (p *DispatchProcessor) Process(ctx context.Context, msg types.NotificationMessage) error {
	log := p.logger.With(
		"message_id", msg.MessageID,
		"case_id", msg.Callback.CaseID(),
		"event_type", string(msg.Callback.EventType),
		"attempt", msg.Attempt(),
	)

	done, err := p.ledger.Begin(ctx, msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record delivery attempt", err)
	}
	if done {
		p.metrics.RecordDelivery(ctx, msg.Callback.EventType, MetricSkipped)
		return nil
	}

	receipts := &receiptLog{}
	dctx := context.WithValue(ctx, receiptsKey{}, receipts)

	// Handlers mutate case data in place; msg must stay as received so a
	// reschedule republishes the original payload.
	cb := msg.Callback.Clone()
	start := time.Now()
	res, err := p.dispatcher.Dispatch(dctx, types.PhaseNotification, &cb)
	p.metrics.RecordLatency(ctx, msg.Callback.EventType, time.Since(start))

	if err != nil {
		if markErr := p.ledger.MarkFailed(ctx, msg.MessageID, err.Error()); markErr != nil {
			log.Error("failed to record delivery failure", "error", markErr.Error())
		}
		p.metrics.RecordDelivery(ctx, msg.Callback.EventType, MetricFailed)
		return err
	}

	if len(res.Errors) > 0 || len(res.Warnings) > 0 {
		log.Warn("notification handlers reported problems",
			"errors", res.Errors,
			"warnings", res.Warnings,
		)
	}

	if len(receipts.refs) == 0 {
		if err := p.ledger.MarkSkipped(ctx, msg.MessageID, "no notification produced"); err != nil {
			log.Error("failed to record skipped delivery", "error", err.Error())
		}
		p.metrics.RecordDelivery(ctx, msg.Callback.EventType, MetricSkipped)
		return nil
	}

	// The provider already accepted the message. A ledger failure here must not
	// trigger a redelivery, so it is logged rather than returned.
	if err := p.ledger.MarkDelivered(ctx, msg.MessageID, strings.Join(receipts.refs, ",")); err != nil {
		log.Error("failed to record delivery", "error", err.Error())
	}
	p.metrics.RecordDelivery(ctx, msg.Callback.EventType, MetricSuccess)
	return nil
}
