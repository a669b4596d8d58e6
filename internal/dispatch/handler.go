package dispatch

import (
	"context"
	"fmt"

	"caseflow/internal/types"
)

// Handler is one unit of business logic that conditionally participates in
// processing a callback.
type Handler interface {
	// Priority returns the rank controlling execution order.
	Priority() Priority

	// CanHandle reports whether the handler applies. It must be pure: no
	// mutation of the callback and the same answer for the same input.
	CanHandle(phase types.Phase, cb *types.Callback) bool

	// Handle runs the rule. Validation problems go in the returned Result;
	// a non-nil error is fatal and aborts the dispatch.
	Handle(ctx context.Context, phase types.Phase, cb *types.Callback) (*Result, error)
}

// Named is implemented by handlers that want a stable name in logs and
// metrics. Handlers without it are reported by their Go type.
type Named interface {
	Name() string
}

// HandlerName returns the log name for h.
func HandlerName(h Handler) string {
	if n, ok := h.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}

// RequireCanHandle is the guard every Handle implementation calls first. It
// returns an ErrCodeInvalidInvocation AppError when the caller bypassed
// selection.
func RequireCanHandle(h Handler, phase types.Phase, cb *types.Callback) error {
	if cb == nil {
		return types.NewAppError(types.ErrCodeNullRequiredField, "callback must not be nil", nil)
	}
	if !h.CanHandle(phase, cb) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeInvalidInvocation,
			fmt.Sprintf("%s cannot handle %s for event %s", HandlerName(h), phase, cb.EventType),
			nil,
			map[string]any{
				"handler":    HandlerName(h),
				"phase":      string(phase),
				"event_type": string(cb.EventType),
				"case_id":    cb.CaseID(),
			},
		)
	}
	return nil
}
