package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"caseflow/internal/core"
	"caseflow/internal/telemetry"
)

// runLambda serves API Gateway proxy events with the same router the HTTP
// server uses. Buffered metrics are flushed after every invocation because
// the execution environment may be frozen between requests.
func runLambda(srv *core.Server, recorder *telemetry.Recorder, logger *slog.Logger) error {
	proxy := &gatewayProxy{handler: srv.Handler(), recorder: recorder, logger: logger}
	logger.Info("starting in Lambda mode")
	lambda.Start(proxy.Handle)
	return nil
}

type gatewayProxy struct {
	handler  http.Handler
	recorder *telemetry.Recorder
	logger   *slog.Logger
}

// Handle converts one API Gateway REST proxy event into an http.Request and
// the recorded response back into a proxy response.
func (p *gatewayProxy) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := toHTTPRequest(ctx, event)
	if err != nil {
		p.logger.Error("invalid API Gateway event", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	rec := httptest.NewRecorder()
	p.handler.ServeHTTP(rec, req)

	if p.recorder != nil {
		if err := p.recorder.Flush(ctx); err != nil {
			p.logger.Warn("metric flush failed", "error", err)
		}
	}

	res := rec.Result()
	defer res.Body.Close()
	return events.APIGatewayProxyResponse{
		StatusCode:        res.StatusCode,
		MultiValueHeaders: res.Header,
		Body:              rec.Body.String(),
	}, nil
}

func toHTTPRequest(ctx context.Context, event events.APIGatewayProxyRequest) (*http.Request, error) {
	body := event.Body
	if event.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 body: %w", err)
		}
		body = string(raw)
	}

	query := url.Values{}
	for k, vs := range event.MultiValueQueryStringParameters {
		query[k] = append(query[k], vs...)
	}
	for k, v := range event.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}

	target := (&url.URL{Path: event.Path, RawQuery: query.Encode()}).String()
	req, err := http.NewRequestWithContext(ctx, event.HTTPMethod, target, strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, vs := range event.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range event.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if id := event.RequestContext.RequestID; id != "" && req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", id)
	}
	req.RemoteAddr = event.RequestContext.Identity.SourceIP
	return req, nil
}
