package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"caseflow/internal/types"
)

// Dispatcher runs the applicable handlers for a callback in priority order.
type Dispatcher struct {
	// handlers is sorted by priority once at construction; the sort is
	// stable so registration order breaks ties.
	handlers []Handler
	hooks    hooks
}

// New builds a Dispatcher over handlers. The slice order is the registration
// order. Every handler must declare a valid Priority.
func New(handlers []Handler, opts ...Option) (*Dispatcher, error) {
	sorted := make([]Handler, 0, len(handlers))
	for i, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("dispatch: handler %d is nil", i)
		}
		if !h.Priority().Valid() {
			return nil, fmt.Errorf("dispatch: handler %s declares undeclared priority %d", HandlerName(h), int(h.Priority()))
		}
		sorted = append(sorted, h)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority().Rank() < sorted[j].Priority().Rank()
	})

	d := &Dispatcher{handlers: sorted}
	for _, opt := range opts {
		opt(&d.hooks)
	}
	return d, nil
}

// Select returns the handlers applicable to the callback in execution order.
func (d *Dispatcher) Select(phase types.Phase, cb *types.Callback) []Handler {
	var selected []Handler
	for _, h := range d.handlers {
		if h.CanHandle(phase, cb) {
			selected = append(selected, h)
		}
	}
	return selected
}

// Dispatch runs every applicable handler and folds their results. Each handler
// sees the case data written by the one before it. With no applicable handler
// the original data is returned untouched with empty errors and warnings.
//
// A fatal error from a handler stops the chain. Mutations already applied are
// not rolled back.
func (d *Dispatcher) Dispatch(ctx context.Context, phase types.Phase, cb *types.Callback) (*Result, error) {
	if cb == nil {
		return nil, types.NewAppError(types.ErrCodeNullRequiredField, "callback must not be nil", nil)
	}
	if !phase.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPhase, fmt.Sprintf("unknown phase %q", phase), nil)
	}

	start := time.Now()
	selected := d.Select(phase, cb)

	names := make([]string, len(selected))
	for i, h := range selected {
		names[i] = HandlerName(h)
	}
	d.hooks.runSelect(ctx, phase, cb, names)

	final := NewResult(cb.CaseDetails.Data)
	for i, h := range selected {
		handlerStart := time.Now()
		res, err := h.Handle(ctx, phase, cb)
		if err != nil {
			d.hooks.runFatal(ctx, phase, names[i], err)
			return nil, fmt.Errorf("dispatch %s: %w", names[i], err)
		}
		if res == nil {
			err := types.NewAppError(types.ErrCodeNullRequiredField,
				fmt.Sprintf("%s returned a nil result", names[i]), nil)
			d.hooks.runFatal(ctx, phase, names[i], err)
			return nil, err
		}

		final.absorb(res)
		cb.CaseDetails.Data = res.Data
		d.hooks.runHandled(ctx, phase, names[i], res, time.Since(handlerStart))
	}

	d.hooks.runComplete(ctx, phase, cb, final, time.Since(start))
	return final, nil
}

// Len returns the number of registered handlers.
func (d *Dispatcher) Len() int {
	return len(d.handlers)
}
