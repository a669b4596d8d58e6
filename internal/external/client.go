// Package external provides the clients for the collaborators the service
// talks to over HTTP: the notification provider and the case store. All
// outbound calls go through BaseClient, which enforces circuit breaking,
// bounded retries, trace propagation and error mapping.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"caseflow/internal/types"
)

// UpstreamStatusKey is the AppError detail carrying the last upstream HTTP
// status when BaseClient gives up on a 429/5xx response.
const UpstreamStatusKey = "upstream_status"

// RetryPolicy configures in-process retries for the BaseClient. Clients whose
// retries are driven by a queue set MaxRetries to 0.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns sensible defaults for synchronous API calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker. 429 and 5xx
// responses count as breaker failures and are retried; other responses are
// returned to the caller as-is.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)

	tripAfter uint32
	openFor   time.Duration
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open. Defaults are 5 and 30s.
func WithBreaker(consecutiveFailures uint32, openFor time.Duration) BaseClientOption {
	return func(c *BaseClient) {
		c.tripAfter = consecutiveFailures
		c.openFor = openFor
	}
}

// NewBaseClient creates a BaseClient whose circuit breaker is named
// breakerName in logs and metrics.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	bc := &BaseClient{
		client:      httpClient,
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
		tripAfter:   5,
		openFor:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(bc)
	}

	tripAfter := bc.tripAfter
	bc.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     bc.openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
	})
	return bc
}

// Do executes req through the breaker, retrying 429/5xx within the retry
// policy. The caller closes the body of a returned response.
//
// When retries are exhausted, the breaker is open, or the transport fails,
// Do returns a *types.AppError; for 429/5xx the last status is recorded under
// UpstreamStatusKey.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if id := types.GetRequestID(req.Context()); id != "" {
		req.Header.Set("X-Request-Id", id)
		req.Header.Set("X-B3-TraceId", id)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Buffer the body so it can be replayed.
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to read request body", err)
		}
	}

	var lastResp *http.Response
	var lastErr error
	attempts := 1 + c.retryPolicy.MaxRetries

	for attempt := 0; attempt < attempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if retryable(r.StatusCode) {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp, lastErr = resp, err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < attempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(lastResp, lastErr)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// computeBackoff honours Retry-After (seconds or HTTP date) and otherwise
// uses exponential backoff with jitter clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	p := c.retryPolicy
	clamp := func(d time.Duration) time.Duration {
		if d < p.MinWait {
			return p.MinWait
		}
		if d > p.MaxWait {
			return p.MaxWait
		}
		return d
	}

	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return clamp(time.Duration(seconds) * time.Second)
			}
			if t, err := http.ParseTime(ra); err == nil {
				return clamp(time.Until(t))
			}
		}
	}

	ceiling := math.Min(float64(p.MinWait)*math.Pow(2, float64(attempt)), float64(p.MaxWait))
	floor := float64(p.MinWait)
	if ceiling <= floor {
		return p.MinWait
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}

// mapError translates HTTP-level failures into AppErrors.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}

	if resp != nil {
		details := map[string]any{UpstreamStatusKey: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests {
			return types.NewAppErrorWithDetails(types.ErrCodeUpstreamRateLimited,
				"upstream rate limit exceeded", err, details)
		}
		return types.NewAppErrorWithDetails(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err, details)
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}

// UpstreamStatus returns the HTTP status recorded on a BaseClient error, or 0
// when the request never got a response (network failure, open breaker).
func UpstreamStatus(err error) int {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return 0
	}
	status, _ := appErr.Details[UpstreamStatusKey].(int)
	return status
}
