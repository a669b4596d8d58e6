package callbacks

import (
	"context"

	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

const dwpStateUnregistered = "unregistered"

// SendToDWPHandler triggers the follow-up sendToDwp event once a valid
// appeal has been created. It runs after submission, so it cannot block the
// transition; a case store failure is fatal and surfaces to the platform.
type SendToDWPHandler struct {
	Store  types.CaseStore
	Logger types.Logger
}

func (h *SendToDWPHandler) Name() string                { return "send-to-dwp" }
func (h *SendToDWPHandler) Priority() dispatch.Priority { return dispatch.PriorityLatest }

func (h *SendToDWPHandler) CanHandle(phase types.Phase, cb *types.Callback) bool {
	return phase == types.PhaseSubmitted && cb.EventType == types.EventValidAppealCreated
}

func (h *SendToDWPHandler) Handle(ctx context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error) {
	if err := dispatch.RequireCanHandle(h, phase, cb); err != nil {
		return nil, err
	}
	updated, err := h.Store.UpdateCase(ctx, cb.CaseID(), types.EventSendToDWP, func(data types.CaseData) {
		data[types.FieldDWPState] = dwpStateUnregistered
	})
	if err != nil {
		return nil, err
	}
	h.Logger.Info("case sent to DWP", "case_id", cb.CaseID())
	return dispatch.NewResult(updated), nil
}
