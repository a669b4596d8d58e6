// Package telemetry buffers CloudWatch metrics for the callback API and
// exposes them as an HTTP metrics collector and as dispatcher hooks.
package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

// maxDatumsPerPut is the CloudWatch PutMetricData limit per request.
const maxDatumsPerPut = 1000

const (
	defaultFlushThreshold = 20
	flushTimeout          = 5 * time.Second
)

// CloudWatchClient is the subset of the CloudWatch API the recorder uses.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder accumulates metric data and sends it in batches. Sends happen
// when the buffer reaches the flush threshold and on Flush. Send failures
// are logged and the batch is dropped.
type Recorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	threshold int
	now       func() time.Time

	mu     sync.Mutex
	buffer []cwtypes.MetricDatum
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithFlushThreshold sets how many buffered datums trigger a send.
func WithFlushThreshold(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.threshold = n
		}
	}
}

// NewRecorder returns a Recorder publishing to namespace. An empty namespace
// falls back to types.MetricNamespace.
func NewRecorder(client CloudWatchClient, namespace string, logger *slog.Logger, opts ...Option) *Recorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	r := &Recorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
		threshold: defaultFlushThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordRequest records API latency per endpoint and status class.
func (r *Recorder) RecordRequest(method, endpoint, status string, duration time.Duration) {
	r.add(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricAPILatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimEndpoint, method+" "+endpoint),
			dim(types.DimResult, statusClass(status)),
		},
	})
}

// DispatchOptions returns dispatcher hooks that count dispatches and the
// errors and warnings they produce, plus fatal handler failures.
func (r *Recorder) DispatchOptions() []dispatch.Option {
	return []dispatch.Option{
		dispatch.WithOnComplete(func(_ context.Context, phase types.Phase, cb *types.Callback, res *dispatch.Result, d time.Duration) {
			dims := []cwtypes.Dimension{dim(types.DimPhase, string(phase)), dim(types.DimEventType, string(cb.EventType))}
			r.add(
				cwtypes.MetricDatum{
					MetricName: aws.String(types.MetricDispatch),
					Value:      aws.Float64(float64(d.Milliseconds())),
					Unit:       cwtypes.StandardUnitMilliseconds,
					Dimensions: dims,
				},
				countDatum(types.MetricDispatchErrors, len(res.Errors), dims),
				countDatum(types.MetricDispatchWarnings, len(res.Warnings), dims),
			)
		}),
		dispatch.WithOnFatal(func(_ context.Context, phase types.Phase, handler string, _ error) {
			r.add(countDatum(types.MetricDispatch+"Fatal", 1, []cwtypes.Dimension{
				dim(types.DimPhase, string(phase)),
				dim(types.DimResult, handler),
			}))
		}),
	}
}

// Flush sends everything buffered.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := r.buffer
	r.buffer = nil
	r.mu.Unlock()

	for start := 0; start < len(pending); start += maxDatumsPerPut {
		end := min(start+maxDatumsPerPut, len(pending))
		_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: pending[start:end],
		})
		if err != nil {
			r.logger.Error("failed to publish metrics",
				"error", err,
				"namespace", r.namespace,
				"dropped", end-start,
			)
			return err
		}
	}
	return nil
}

// Buffered reports how many datums are waiting to be sent.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

func (r *Recorder) add(datums ...cwtypes.MetricDatum) {
	ts := r.now()
	r.mu.Lock()
	for i := range datums {
		datums[i].Timestamp = aws.Time(ts)
	}
	r.buffer = append(r.buffer, datums...)
	full := len(r.buffer) >= r.threshold
	r.mu.Unlock()

	if full {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		_ = r.Flush(ctx)
	}
}

func countDatum(name string, n int, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// statusClass buckets an HTTP status into 2xx/4xx/5xx.
func statusClass(status string) string {
	code, err := strconv.Atoi(status)
	if err != nil || code < 100 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
