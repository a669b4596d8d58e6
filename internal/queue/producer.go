// Package queue provides the SQS producer used to hand notification callbacks
// to the notification worker, for first attempts, retries and dead letters.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"caseflow/internal/types"
)

// maxDelaySeconds is the SQS DelaySeconds ceiling.
const maxDelaySeconds = 900

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Producer serializes NotificationMessages and sends them to one SQS queue.
type Producer struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewProducer creates a Producer targeting queueURL.
func NewProducer(client SQSSender, queueURL string, logger *slog.Logger) *Producer {
	return &Producer{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// QueueURL returns the queue this producer sends to.
func (p *Producer) QueueURL() string {
	return p.queueURL
}

// Enqueue wraps a fresh notification callback in a NotificationMessage and
// sends it. MessageID and TraceID are generated; traceID is reused if the
// caller already has one.
func (p *Producer) Enqueue(ctx context.Context, cb types.Callback, traceID string) (types.NotificationMessage, error) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	msg := types.NotificationMessage{
		MessageID:  uuid.NewString(),
		Callback:   cb,
		RetryCount: 0,
		TraceID:    traceID,
		EnqueuedAt: p.now(),
	}
	if err := p.Send(ctx, msg, 0, nil); err != nil {
		return types.NotificationMessage{}, err
	}
	return msg, nil
}

// Send serializes msg as-is and sends it with the given delay, clamped to the
// SQS range [0, 900s]. attrs become String message attributes.
func (p *Producer) Send(ctx context.Context, msg types.NotificationMessage, delay time.Duration, attrs map[string]string) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal NotificationMessage: %w", err)
	}
	body, encoding := EncodeBody(raw)

	delaySec := int32(delay.Seconds())
	if delaySec > maxDelaySeconds {
		delaySec = maxDelaySeconds
	}
	if delaySec < 0 {
		delaySec = 0
	}

	msgAttrs := make(map[string]sqsTypes.MessageAttributeValue, len(attrs)+1)
	for k, v := range attrs {
		msgAttrs[k] = stringAttr(v)
	}
	if encoding != "" {
		msgAttrs[AttrContentEncoding] = stringAttr(encoding)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(p.queueURL),
		MessageBody:  aws.String(body),
		DelaySeconds: delaySec,
	}
	if len(msgAttrs) > 0 {
		input.MessageAttributes = msgAttrs
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send NotificationMessage to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "notification message sent",
		"queue_url", p.queueURL,
		"message_id", msg.MessageID,
		"trace_id", msg.TraceID,
		"event_type", string(msg.Callback.EventType),
		"case_id", msg.Callback.CaseID(),
		"retry_count", msg.RetryCount,
		"delay_seconds", delaySec,
		"compressed", encoding != "",
	)
	return nil
}

func stringAttr(v string) sqsTypes.MessageAttributeValue {
	return sqsTypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}
