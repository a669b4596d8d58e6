// Package main is the entry point for the notification worker Lambda.
//
// The worker consumes NotificationMessages from SQS and hands each one to the
// eligibility filter, which runs the notification handlers and routes
// delivery failures through the retry coordinator. Lambda partial batch
// responses are used: a record is reported as failed only when its failure
// was neither rescheduled nor reported, so SQS redelivers it.
//
// With APP_ENV=local the worker reads one SQS event as JSON from stdin:
//
//	echo '{"Records":[{"messageId":"1","body":"{...}"}]}' | go run ./cmd/notification-worker
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"caseflow/internal/config"
	"caseflow/internal/db"
	"caseflow/internal/dispatch"
	"caseflow/internal/external"
	"caseflow/internal/notifications/core"
	"caseflow/internal/notifications/handlers"
	"caseflow/internal/queue"
	"caseflow/internal/types"
)

// slogAdapter satisfies types.Logger; *slog.Logger's With returns the
// concrete type, so it cannot implement the interface directly.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// NotificationFilter is the entry point for one message. *core.EligibilityFilter
// implements it.
type NotificationFilter interface {
	Filter(ctx context.Context, msg types.NotificationMessage) (bool, error)
}

// Handler holds the dependencies of the SQS Lambda handler.
type Handler struct {
	filter      NotificationFilter
	metrics     core.NotificationMetrics
	logger      types.Logger
	concurrency int
	now         func() time.Time
}

// Handle processes a batch with at most h.concurrency messages in flight.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	failed := make([]bool, len(sqsEvent.Records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(h.concurrency, 1))
	for i, record := range sqsEvent.Records {
		g.Go(func() error {
			if err := h.processRecord(gctx, record); err != nil {
				h.logger.Error("failed to process SQS message",
					"sqs_message_id", record.MessageId,
					"error", err.Error(),
				)
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	var response events.SQSEventResponse
	for i, record := range sqsEvent.Records {
		if failed[i] {
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return response, nil
}

// processRecord returns an error only when SQS should redeliver the record.
func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	msg, err := decodeRecord(record)
	if err != nil {
		// A body we cannot read will not become readable on redelivery.
		h.logger.Error("discarding undecodable notification message",
			"sqs_message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	if sent, ok := sentTimestamp(record); ok {
		h.metrics.RecordQueueLag(ctx, h.now().Sub(sent))
	}

	logger := h.logger.With(
		"message_id", msg.MessageID,
		"trace_id", msg.TraceID,
		"case_id", msg.Callback.CaseID(),
		"event_type", string(msg.Callback.EventType),
		"retry_count", msg.RetryCount,
	)

	handled, err := h.filter.Filter(types.WithLogger(ctx, logger), msg)
	if err == nil {
		if handled {
			logger.Info("notification processed")
		}
		return nil
	}

	var failure *core.DeliveryFailure
	if errors.As(err, &failure) && failure.Handled() {
		logger.Warn("notification delivery failed",
			"state", string(failure.State),
			"attempt", failure.Attempt.AttemptNumber,
			"error", failure.Err.Error(),
		)
		return nil
	}
	return err
}

func decodeRecord(record events.SQSMessage) (types.NotificationMessage, error) {
	var encoding string
	if attr, ok := record.MessageAttributes[queue.AttrContentEncoding]; ok && attr.StringValue != nil {
		encoding = *attr.StringValue
	}
	raw, err := queue.DecodeBody(record.Body, encoding)
	if err != nil {
		return types.NotificationMessage{}, err
	}
	var msg types.NotificationMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return types.NotificationMessage{}, fmt.Errorf("unmarshal NotificationMessage: %w", err)
	}
	return msg, nil
}

// sentTimestamp reads the SQS SentTimestamp attribute (epoch milliseconds).
func sentTimestamp(record events.SQSMessage) (time.Time, bool) {
	v, ok := record.Attributes["SentTimestamp"]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// worker bundles the handler with the resources released on shutdown.
type worker struct {
	handler *Handler
	closers []func()
}

func (w *worker) Close() {
	for _, c := range w.closers {
		c()
	}
}

// buildWorker is the composition root of the notification pipeline.
func buildWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*worker, error) {
	typedLogger := &slogAdapter{logger: logger}
	w := &worker{}

	awsCfg, err := cfg.AWS.LoadAWS(ctx)
	if err != nil {
		return nil, err
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	var metrics core.NotificationMetrics = core.NoopMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = core.NewCloudWatchNotificationMetrics(cloudwatch.NewFromConfig(awsCfg), typedLogger)
	}

	registry, err := external.NewClientRegistry(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating external clients: %w", err)
	}
	templates, err := handlers.ParseTemplates(cfg.Notify.TemplatesJSON)
	if err != nil {
		return nil, fmt.Errorf("parsing notification templates: %w", err)
	}

	var ledger core.DeliveryLedger = core.NoopLedger{}
	if cfg.Database.Enabled() {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, pool.Close)
		ledger = core.NewDeliveryManager(db.NewDeliveryRepository(pool), typedLogger)
	} else {
		logger.Warn("DATABASE_URL not set, delivery ledger disabled")
	}

	dispatcher, err := dispatch.New([]dispatch.Handler{
		handlers.ReferenceHandler{},
		handlers.NewSendHandler(registry.Notify, templates, typedLogger),
	})
	if err != nil {
		return nil, fmt.Errorf("building notification dispatcher: %w", err)
	}

	var deadLetter core.MessageSender
	if cfg.AWS.DlqURL != "" {
		deadLetter = queue.NewProducer(sqsClient, cfg.AWS.DlqURL, logger)
	}
	publisher := core.NewNotificationPublisher(
		queue.NewProducer(sqsClient, cfg.AWS.NotificationQueue, logger),
		deadLetter,
		typedLogger,
	)

	policy := core.DefaultRetryPolicy
	policy.MaxAttempts = cfg.Notify.MaxAttempts
	if cfg.Notify.RetryBaseDelay > 0 {
		policy.BaseDelay = cfg.Notify.RetryBaseDelay
	}
	if cfg.Notify.RetryMaxDelay > 0 {
		policy.MaxDelay = cfg.Notify.RetryMaxDelay
	}
	transient := cfg.Notify.TransientStatuses
	if len(transient) == 0 {
		transient = core.DefaultTransientStatuses
	}

	retry := core.NewRetryCoordinator(publisher, publisher, metrics, policy, transient, typedLogger)
	processor := core.NewDispatchProcessor(dispatcher, ledger, metrics, typedLogger)
	filter := core.NewEligibilityFilter(core.Features{
		PostHearingsEnabled:  cfg.Feature.PostHearingsEnabled,
		PostHearingsBEnabled: cfg.Feature.PostHearingsBEnabled,
	}, processor, retry, typedLogger)

	w.handler = &Handler{
		filter:      filter,
		metrics:     metrics,
		logger:      typedLogger,
		concurrency: cfg.Worker.Concurrency,
		now:         time.Now,
	}
	return w, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("notification worker initializing (cold start)")

	cfg, err := config.LoadConfig(config.SecretProviderFromEnv())
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	w, err := buildWorker(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize notification worker", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	logger.Info("notification worker initialized",
		"notification_queue", cfg.AWS.NotificationQueue,
		"dlq_configured", cfg.AWS.DlqURL != "",
		"ledger_enabled", cfg.Database.Enabled(),
		"concurrency", cfg.Worker.Concurrency,
	)

	if cfg.Environment == "local" {
		if err := runLocal(w.handler, os.Stdin, os.Stdout); err != nil {
			logger.Error("local run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(w.handler.Handle)
}

// runLocal reads one SQS event from r and writes the batch response to out.
func runLocal(h *Handler, r io.Reader, out io.Writer) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(payload) == 0 {
		return errors.New("no input received on stdin")
	}
	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(payload, &sqsEvent); err != nil {
		return fmt.Errorf("parsing stdin as SQS event: %w", err)
	}

	response, err := h.Handle(context.Background(), sqsEvent)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(response)
}
