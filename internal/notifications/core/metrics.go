package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"caseflow/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchNotificationMetrics implements NotificationMetrics by emitting
// metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {EventType, Result} on every delivery outcome
//   - DeliveryAttemptLatency: Dims {EventType}
//   - NotificationQueueLag: no dims, time between enqueue and processing start
//   - NotificationFailure: Dims {EventType, Result=errorKind} on terminal failure
//
// Metric emission is best effort: errors are logged, never returned.
type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// Compile-time assertion that CloudWatchNotificationMetrics implements NotificationMetrics.
var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

// NewCloudWatchNotificationMetrics creates a new CloudWatchNotificationMetrics
// that publishes to the service namespace.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, logger types.Logger) *CloudWatchNotificationMetrics {
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt count.
func (m *CloudWatchNotificationMetrics) RecordDelivery(ctx context.Context, eventType types.EventType, result MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimEventType, string(eventType)),
			dim(types.DimResult, string(result)),
		},
	})
}

// RecordLatency emits the delivery latency in milliseconds.
func (m *CloudWatchNotificationMetrics) RecordLatency(ctx context.Context, eventType types.EventType, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt + "Latency"),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimEventType, string(eventType)),
		},
	})
}

// RecordQueueLag emits a metric tracking the time between SQS message
// enqueue and worker processing start.
func (m *CloudWatchNotificationMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

// RecordTerminalFailure emits a NotificationFailure count. Operators alarm on
// this metric.
func (m *CloudWatchNotificationMetrics) RecordTerminalFailure(ctx context.Context, eventType types.EventType, errorKind string) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricNotificationFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimEventType, string(eventType)),
			dim(types.DimResult, errorKind),
		},
	})
}

func (m *CloudWatchNotificationMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(datum.MetricName),
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NoopMetrics discards every metric. Used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordDelivery(context.Context, types.EventType, MetricResult)  {}
func (NoopMetrics) RecordLatency(context.Context, types.EventType, time.Duration)  {}
func (NoopMetrics) RecordQueueLag(context.Context, time.Duration)                  {}
func (NoopMetrics) RecordTerminalFailure(context.Context, types.EventType, string) {}
