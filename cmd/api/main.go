// Package main is the entry point for the caseflow callback API.
//
// It loads configuration, builds the callback handler slice and dispatcher,
// and serves the chi router either as a local HTTP server or behind API
// Gateway in Lambda. Graceful shutdown is handled via SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"caseflow/internal/api/handlers"
	"caseflow/internal/callbacks"
	"caseflow/internal/config"
	"caseflow/internal/core"
	"caseflow/internal/db"
	"caseflow/internal/dispatch"
	"caseflow/internal/external"
	"caseflow/internal/queue"
	"caseflow/internal/telemetry"
	"caseflow/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.SecretProviderFromEnv())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("caseflow API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()
	awsCfg, err := cfg.AWS.LoadAWS(ctx)
	if err != nil {
		return err
	}

	srv, recorder, err := buildServer(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		return runLambda(srv, recorder, logger)
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer is the composition root: clients, handlers, dispatcher and the
// HTTP chassis. recorder is nil when metrics are disabled.
func buildServer(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*core.Server, *telemetry.Recorder, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = core.NewBcryptAuthenticator(cfg.Security.S2SSecretHash, cfg.Security.AllowedServices)

	var dispatchOpts []dispatch.Option
	var recorder *telemetry.Recorder
	if cfg.Observability.EnableMetrics {
		recorder = telemetry.NewRecorder(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
		srv.Metrics = recorder
		dispatchOpts = append(dispatchOpts, recorder.DispatchOptions()...)
		srv.OnShutdown(recorder.Flush)
	}

	registry, err := external.NewClientRegistry(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating external clients: %w", err)
	}

	dispatcher, err := dispatch.New(callbackHandlers(registry.CaseStore, &slogAdapter{logger: logger}), dispatchOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("building dispatcher: %w", err)
	}
	logger.Info("callback dispatcher ready", "handlers", dispatcher.Len())

	producer := queue.NewProducer(sqs.NewFromConfig(awsCfg), cfg.AWS.NotificationQueue, logger)

	if cfg.Database.Enabled() {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		srv.HealthChecks = append(srv.HealthChecks, core.CheckFunc("database", pool.Ping))
		srv.OnShutdown(func(context.Context) error {
			pool.Close()
			return nil
		})
	}

	callbackHandler := handlers.NewCallbackHandler(dispatcher, producer, srv.Validator, logger, srv.MaxBodyBytes())
	srv.RouteRegistrars = append(srv.RouteRegistrars, callbackHandler.RegisterRoutes)
	srv.MountRoutes()
	return srv, recorder, nil
}

// callbackHandlers lists every case-event handler the API serves. The order
// is registration order; the dispatcher sorts by priority.
func callbackHandlers(store types.CaseStore, logger types.Logger) []dispatch.Handler {
	return []dispatch.Handler{
		callbacks.HearingRouteHandler{Default: types.HearingRouteListAssist},
		callbacks.CaseUpdatedValidator{Clock: types.RealClock{}},
		callbacks.WithdrawalHandler{},
		&callbacks.SendToDWPHandler{Store: store, Logger: logger},
	}
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer serves until a signal arrives, then drains connections and
// runs the server's shutdown hooks.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

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
