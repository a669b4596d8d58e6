package dispatch

import (
	"context"
	"time"

	"caseflow/internal/types"
)

// OnSelectFunc is called once per dispatch with the handlers chosen to run,
// in execution order.
type OnSelectFunc func(ctx context.Context, phase types.Phase, cb *types.Callback, selected []string)

// OnHandledFunc is called after each handler returns successfully.
type OnHandledFunc func(ctx context.Context, phase types.Phase, handler string, res *Result, duration time.Duration)

// OnCompleteFunc is called once after the whole chain ran without a fatal error.
type OnCompleteFunc func(ctx context.Context, phase types.Phase, cb *types.Callback, res *Result, duration time.Duration)

// OnFatalFunc is called when a handler returns a fatal error.
type OnFatalFunc func(ctx context.Context, phase types.Phase, handler string, err error)

type hooks struct {
	onSelect   []OnSelectFunc
	onHandled  []OnHandledFunc
	onComplete []OnCompleteFunc
	onFatal    []OnFatalFunc
}

// Option configures a Dispatcher.
type Option func(*hooks)

// WithOnSelect adds a hook observing handler selection.
func WithOnSelect(fn OnSelectFunc) Option {
	return func(h *hooks) {
		h.onSelect = append(h.onSelect, fn)
	}
}

// WithOnHandled adds a hook called after every handler.
func WithOnHandled(fn OnHandledFunc) Option {
	return func(h *hooks) {
		h.onHandled = append(h.onHandled, fn)
	}
}

// WithOnComplete adds a hook called with the folded result.
//
// Example:
//
//	dispatch.WithOnComplete(func(ctx context.Context, phase types.Phase, cb *types.Callback, res *dispatch.Result, d time.Duration) {
//	    metrics.RecordDispatch(ctx, phase, cb.EventType, res, d)
//	})
func WithOnComplete(fn OnCompleteFunc) Option {
	return func(h *hooks) {
		h.onComplete = append(h.onComplete, fn)
	}
}

// WithOnFatal adds a hook called when the chain aborts.
func WithOnFatal(fn OnFatalFunc) Option {
	return func(h *hooks) {
		h.onFatal = append(h.onFatal, fn)
	}
}

func (h *hooks) runSelect(ctx context.Context, phase types.Phase, cb *types.Callback, selected []string) {
	for _, fn := range h.onSelect {
		fn(ctx, phase, cb, selected)
	}
}

func (h *hooks) runHandled(ctx context.Context, phase types.Phase, name string, res *Result, d time.Duration) {
	for _, fn := range h.onHandled {
		fn(ctx, phase, name, res, d)
	}
}

func (h *hooks) runComplete(ctx context.Context, phase types.Phase, cb *types.Callback, res *Result, d time.Duration) {
	for _, fn := range h.onComplete {
		fn(ctx, phase, cb, res, d)
	}
}

func (h *hooks) runFatal(ctx context.Context, phase types.Phase, name string, err error) {
	for _, fn := range h.onFatal {
		fn(ctx, phase, name, err)
	}
}
